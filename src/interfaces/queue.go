package interfaces

import "context"

// -----------------------------------------------------------------------------
// IQueue defines the pull-based transport carrying confirmation events.
// Delivery is at-least-once; consumers must tolerate duplicates.
// -----------------------------------------------------------------------------

type IQueue interface {

	// Receive blocks up to the configured poll timeout and returns one raw
	// event payload. Returns helpers.ErrQueueEmpty on timeout so an idle
	// queue never stalls the caller's shutdown checks.
	Receive(ctx context.Context) ([]byte, error)

	// -----------------------------------------------------------------------------

	// Publish appends one event payload.
	Publish(ctx context.Context, payload []byte) error

	// -----------------------------------------------------------------------------

	Close() error
}
