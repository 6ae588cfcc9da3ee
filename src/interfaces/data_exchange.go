package interfaces

import "fleet-observer/src/models"

// -----------------------------------------------------------------------------
// IBroadcaster defines the interface for pushing fleet state to external
// listeners (websocket subscribers).
// -----------------------------------------------------------------------------

type IBroadcaster interface {

	// Broadcast pushes a snapshot to all connected listeners.
	Broadcast(snapshot *models.MFleetSnapshot)

	// -----------------------------------------------------------------------------

	// Start the server
	Start() error

	// -----------------------------------------------------------------------------

	// Stop the server gracefully
	Stop() error
}

// -----------------------------------------------------------------------------
// ISweepDetector is the extension point for liquidity-gap / stop-sweep
// detection. Implementations inspect the current cross-source view and return
// zero or more alerts per scan. No detection logic is bundled; the default is
// a no-op.
// -----------------------------------------------------------------------------

type ISweepDetector interface {
	Name() string

	// Scan inspects one spread-analysis view and returns any alerts.
	Scan(view map[string]models.MSpreadAnalysis) []models.MSweepAlert
}
