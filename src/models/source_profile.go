package models

// Source type classifications.
const (
	SourceTypeDemo    = "demo"
	SourceTypeRetail  = "retail"
	SourceTypeECN     = "ecn"
	SourceTypeUnknown = "unknown"
)

// -----------------------------------------------------------------------------

// MSourceProfile is the static classification of an upstream liquidity source.
// Loaded once at startup; unknown sources fall back to a neutral profile.
type MSourceProfile struct {
	SourceName       string  `yaml:"name" json:"source_name"`
	Type             string  `yaml:"type" json:"type"`
	SpreadMultiplier float64 `yaml:"spread_multiplier" json:"spread_multiplier"`
}
