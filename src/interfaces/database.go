package interfaces

import "fleet-observer/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for durable storage: the append-only
// confirmation audit trail, the closed-trade history and the archive of
// terminated agent sessions.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables. Audit tables are
	// created if absent, never dropped: the trail must survive restarts.
	Initialize() error

	// -----------------------------------------------------------------------------

	// AppendConfirmation persists one confirmation event verbatim,
	// regardless of downstream processing outcome.
	AppendConfirmation(event models.MConfirmationEvent) error

	// -----------------------------------------------------------------------------

	// SaveClosedTrade records a closed position for history queries.
	SaveClosedTrade(position models.MPosition) error

	// -----------------------------------------------------------------------------

	// SaveAgentSession archives a terminal (replaced/disconnected/timeout) node.
	SaveAgentSession(record models.MAgentRecord) error

	// -----------------------------------------------------------------------------

	// RecentTrades returns closed trades, newest first. scope is "" for all,
	// "symbol:<instrument>" or "account:<account_id>".
	RecentTrades(scope string, limit int) ([]models.MPosition, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
