package helpers

import (
	"errors"
	"fmt"
	"time"

	"fleet-observer/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type FleetObserverError struct {
	Message string
	Cause   error
}

func (e *FleetObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *FleetObserverError) Unwrap() error {
	return e.Cause
}

// Distinct error types for the ingestion/registry/confirmation entry points.
// RejectedInput: whole unit discarded, caller informed.
// NotFound: operation on an unknown node_id/ticket, explicit failure value.
// BackendUnavailable: shared store unreachable, operation degrades to validate-only.
type RejectedInputError struct{ FleetObserverError }
type NotFoundError struct{ FleetObserverError }
type BackendUnavailableError struct{ FleetObserverError }
type DatabaseError struct{ FleetObserverError }
type ConfigurationError struct{ FleetObserverError }

// -----------------------------------------------------------------------------

// ErrQueueEmpty signals a Receive that timed out with nothing to deliver.
// Not a failure: the pull loop uses it to re-check its context.
var ErrQueueEmpty = errors.New("queue empty")

// ErrForbiddenSource marks a batch whose authenticity tag does not match the
// accepted live-feed marker. The HTTP layer maps it to 403.
var ErrForbiddenSource = errors.New("forbidden source")

// -----------------------------------------------------------------------------

func NewRejectedInput(format string, args ...interface{}) error {
	return &RejectedInputError{FleetObserverError{Message: fmt.Sprintf(format, args...)}}
}

func NewForbiddenSource(format string, args ...interface{}) error {
	return &RejectedInputError{FleetObserverError{Message: fmt.Sprintf(format, args...), Cause: ErrForbiddenSource}}
}

func NewNotFound(format string, args ...interface{}) error {
	return &NotFoundError{FleetObserverError{Message: fmt.Sprintf(format, args...)}}
}

func NewBackendUnavailable(cause error) error {
	return &BackendUnavailableError{FleetObserverError{Message: "store unavailable", Cause: cause}}
}

// -----------------------------------------------------------------------------

// IsNotFound reports whether err is a NotFoundError anywhere in its chain.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// -----------------------------------------------------------------------------

// IsRejectedInput reports whether err is a RejectedInputError anywhere in its chain.
func IsRejectedInput(err error) bool {
	var ri *RejectedInputError
	return errors.As(err, &ri)
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times
// with exponential backoff. Used for store/database connection setup, never
// on the hot ingestion path.
func RetryWithBackoff(log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		time.Sleep(delay)
	}

	return &FleetObserverError{Message: fmt.Sprintf("%s failed after %d attempts", operation, maxRetries), Cause: lastErr}
}
