package models

// Node lifecycle statuses. All but StatusActive are terminal for a node_id.
const (
	StatusActive       = "active"
	StatusReplaced     = "replaced"
	StatusDisconnected = "disconnected"
	StatusTimeout      = "timeout"
)

// -----------------------------------------------------------------------------
// Agent Registry Structures
// -----------------------------------------------------------------------------

// MAgentRecord is the registry's representation of one agent connection.
type MAgentRecord struct {
	NodeID          string  `json:"node_id"`
	AccountID       string  `json:"account_id"`
	SourceName      string  `json:"source_name"`
	Balance         float64 `json:"balance"`
	Equity          float64 `json:"equity"`
	InstrumentInUse string  `json:"instrument_in_use"`
	Server          string  `json:"server"`
	AgentVersion    string  `json:"agent_version"`
	MagicNumber     int     `json:"magic_number"`
	ConnectedAt     int64   `json:"connected_at"`
	LastHeartbeat   int64   `json:"last_heartbeat"`
	Status          string  `json:"status"`
	ConnectionIP    string  `json:"connection_ip"`
	SessionID       string  `json:"session_id"`
	DisconnectedAt  int64   `json:"disconnected_at"`
	TotalUptime     int64   `json:"total_uptime"` // seconds
}

// -----------------------------------------------------------------------------

// MHandshake is the registration payload an agent sends on connect.
type MHandshake struct {
	AccountID       string  `json:"account_id"`
	SourceName      string  `json:"source_name"`
	Balance         float64 `json:"balance"`
	Equity          float64 `json:"equity"`
	InstrumentInUse string  `json:"instrument_in_use"`
	Server          string  `json:"server"`
	AgentVersion    string  `json:"agent_version"`
	MagicNumber     int     `json:"magic_number"`
	ConnectionIP    string  `json:"connection_ip"`
}

// -----------------------------------------------------------------------------

// MHeartbeat carries the optional refresh fields of a liveness signal.
type MHeartbeat struct {
	NodeID          string   `json:"node_id"`
	Balance         *float64 `json:"balance,omitempty"`
	Equity          *float64 `json:"equity,omitempty"`
	InstrumentInUse string   `json:"instrument_in_use,omitempty"`
}

// -----------------------------------------------------------------------------

// MFleetStats is the aggregate view logged by the sweep and served by the API.
type MFleetStats struct {
	ActiveNodes    int                      `json:"active_nodes"`
	UniqueAccounts int                      `json:"unique_accounts"`
	UniqueSources  int                      `json:"unique_sources"`
	TotalBalance   float64                  `json:"total_balance"`
	TotalEquity    float64                  `json:"total_equity"`
	PerSource      map[string]MSourceCensus `json:"per_source"`
	Timestamp      int64                    `json:"timestamp"`
}

type MSourceCensus struct {
	Nodes   int     `json:"nodes"`
	Balance float64 `json:"balance"`
	Equity  float64 `json:"equity"`
}
