package models

// -----------------------------------------------------------------------------
// Tick Structures
// -----------------------------------------------------------------------------

// MTick represents one validated bid/ask observation for an instrument.
type MTick struct {
	Instrument       string  `json:"instrument"`
	Bid              float64 `json:"bid"`
	Ask              float64 `json:"ask"`
	Spread           float64 `json:"spread"`
	Volume           float64 `json:"volume"`
	ObservedAt       int64   `json:"observed_at"`
	LastUpdate       int64   `json:"last_update"`
	SourceName       string  `json:"source_name"`
	SourceServer     string  `json:"source_server"`
	AgentUUID        string  `json:"agent_uuid"`
	SourceType       string  `json:"source_type"`
	ManipulationFlag bool    `json:"manipulation_flag"`
}

// -----------------------------------------------------------------------------

// MRawTick is the wire form inside an inbound batch, before enrichment.
type MRawTick struct {
	Instrument string  `json:"instrument"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	Spread     float64 `json:"spread"`
	Volume     float64 `json:"volume"`
	ObservedAt int64   `json:"observed_at"`
}

// -----------------------------------------------------------------------------

// MTickBatch is one source-tagged report from an agent.
type MTickBatch struct {
	SourceTag    string     `json:"source_tag"`
	SourceName   string     `json:"source_name"`
	SourceServer string     `json:"source_server"`
	AgentUUID    string     `json:"agent_uuid"`
	Ticks        []MRawTick `json:"ticks"`
}

// -----------------------------------------------------------------------------

// MIngestResult is returned to the reporting agent for every accepted batch.
type MIngestResult struct {
	Status            string  `json:"status"`
	AcceptedCount     int     `json:"accepted_count"`
	SourceName        string  `json:"source_name"`
	ProcessingTimeMs  float64 `json:"processing_time_ms"`
	ManipulationCount int     `json:"manipulation_alert_count"`
	AgentUUID         string  `json:"agent_uuid"`
}

// -----------------------------------------------------------------------------
// Spread Analysis
// -----------------------------------------------------------------------------

type MSourceSpread struct {
	SourceName       string  `json:"source_name"`
	Spread           float64 `json:"spread"`
	ManipulationFlag bool    `json:"manipulation_flag"`
	ObservedAt       int64   `json:"observed_at"`
}

type MSpreadAnalysis struct {
	Instrument          string          `json:"instrument"`
	Sources             []MSourceSpread `json:"sources"`
	BestExecutionSource string          `json:"best_execution_source"`
}

// -----------------------------------------------------------------------------
// Health
// -----------------------------------------------------------------------------

type MHealth struct {
	Status          string             `json:"status"`
	StoreConnected  bool               `json:"store_connected"`
	LiveInstruments int                `json:"live_instruments"`
	AvgLatencyMs    map[string]float64 `json:"avg_latency_ms"` // per source
	MarketOpen      bool               `json:"market_open"`
	ThinLiquidity   bool               `json:"thin_liquidity"`
	Timestamp       int64              `json:"timestamp"`
}

// -----------------------------------------------------------------------------

// MSweepAlert is emitted by pluggable liquidity-scan detectors.
type MSweepAlert struct {
	Instrument string  `json:"instrument"`
	SourceName string  `json:"source_name"`
	Kind       string  `json:"kind"`
	Detail     string  `json:"detail"`
	Value      float64 `json:"value"`
	DetectedAt int64   `json:"detected_at"`
}
