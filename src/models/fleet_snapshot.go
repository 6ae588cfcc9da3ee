package models

// -----------------------------------------------------------------------------
// Server State Structure
// -----------------------------------------------------------------------------

// MFleetSnapshot is the state pushed to websocket subscribers after each batch.
type MFleetSnapshot struct {
	Type          string           `json:"type"` // "INITIAL" or "UPDATE"
	Ticks         map[string]MTick `json:"ticks"`
	IngestMetrics MIngestMetrics   `json:"ingest_metrics"`
	Timestamp     int64            `json:"timestamp"`
}

// -----------------------------------------------------------------------------

// MIngestMetrics describes the last processed batch.
type MIngestMetrics struct {
	SourceName        string  `json:"source_name"`
	BatchTimeMs       float64 `json:"batch_time_ms"`
	AcceptedTicks     int     `json:"accepted_ticks"`
	ManipulationCount int     `json:"manipulation_count"`
}
