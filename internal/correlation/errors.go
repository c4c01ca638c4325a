package correlation

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected       = errors.New("session not connected")
	ErrSendFailed         = errors.New("send failed")
	ErrRejected           = errors.New("request rejected")
	ErrTimedOut           = errors.New("request timed out")
	ErrCancelled          = errors.New("request cancelled")
	ErrUnknownCorrelation = errors.New("unknown correlation id")
	ErrConnectorClosed    = errors.New("connector closed")
	ErrInvalidRequest     = errors.New("invalid request")
)

// ReasonConnectorClosed is the reject reason used when a session stops with requests in flight.
const ReasonConnectorClosed = "connector closed"

// RejectError carries the reason of a session-level or application-level rejection.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string {
	if e.Reason == "" {
		return ErrRejected.Error()
	}
	return fmt.Sprintf("%s: %s", ErrRejected.Error(), e.Reason)
}

func (e *RejectError) Is(target error) bool {
	if target == ErrRejected {
		return true
	}
	return target == ErrConnectorClosed && e.Reason == ReasonConnectorClosed
}

// Rejected builds a *RejectError.
func Rejected(reason string) error {
	return &RejectError{Reason: reason}
}

// SendFailed wraps a transport error so that errors.Is(err, ErrSendFailed) holds.
func SendFailed(cause error) error {
	if cause == nil {
		return ErrSendFailed
	}
	return fmt.Errorf("%w: %w", ErrSendFailed, cause)
}

// TimeoutError reports a caller-side timeout for a request that may still complete later.
type TimeoutError struct {
	Kind          string
	CorrelationID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Kind, e.CorrelationID, ErrTimedOut.Error())
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimedOut
}

// Outcome names the terminal result of err for logging and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrConnectorClosed):
		return "closed"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrTimedOut):
		return "timed_out"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ErrSendFailed):
		return "send_failed"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	default:
		return "error"
	}
}
