package classifier

import (
	"strings"

	"fleet-observer/src/models"
)

// -----------------------------------------------------------------------------
// SourceClassifier tags an upstream liquidity source with its type and
// expected spread multiplier. Static table loaded at startup; pure lookups,
// no mutable state.
// -----------------------------------------------------------------------------

type SourceClassifier struct {
	profiles []models.MSourceProfile
}

// -----------------------------------------------------------------------------

// neutralProfile is returned for sources with no configured profile.
func neutralProfile(sourceName string) models.MSourceProfile {
	return models.MSourceProfile{
		SourceName:       sourceName,
		Type:             models.SourceTypeUnknown,
		SpreadMultiplier: 1.0,
	}
}

// -----------------------------------------------------------------------------

func NewSourceClassifier(profiles []models.MSourceProfile) *SourceClassifier {
	// Lowercase once so Classify is a cheap scan.
	normalized := make([]models.MSourceProfile, len(profiles))
	for i, p := range profiles {
		p.SourceName = strings.ToLower(p.SourceName)
		normalized[i] = p
	}
	return &SourceClassifier{profiles: normalized}
}

// -----------------------------------------------------------------------------

// Classify maps a live source name to its profile. Matching is
// case-insensitive on the configured prefix, so "ICMarkets-Live04" matches a
// profile named "icmarkets". Unknown sources get the neutral profile.
func (c *SourceClassifier) Classify(sourceName string) models.MSourceProfile {
	name := strings.ToLower(sourceName)
	for _, p := range c.profiles {
		if strings.HasPrefix(name, p.SourceName) {
			out := p
			out.SourceName = sourceName
			return out
		}
	}
	return neutralProfile(sourceName)
}
