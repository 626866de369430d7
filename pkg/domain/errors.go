package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by cache adapters when a key does not exist.
var ErrNotFound = errors.New("key not found")

// ErrNoCachedData is returned when a persisted transaction record cannot be found.
var ErrNoCachedData = errors.New("no cached data found")

// ErrTransitionInProgress is returned when a transition is fired while another one is in flight.
var ErrTransitionInProgress = errors.New("transition in progress")

// ErrTransitionSuperseded is returned by a transition that completed after an
// interrupting (error/abort) transition already took over the machine.
var ErrTransitionSuperseded = errors.New("transition superseded")

// ErrUnknownTransition is returned when firing a transition that was never registered.
var ErrUnknownTransition = errors.New("unknown transition")

// ErrInvalidTransition is returned when a transition is not allowed from the current state.
var ErrInvalidTransition = errors.New("transition not allowed from current state")

// ErrNoHandler is returned when a registered transition has no handler.
var ErrNoHandler = errors.New("no handler registered for transition")

// ProtocolError is produced when a correlated notification itself signals failure,
// or when the switch refuses an outbound request.
type ProtocolError struct {
	Message       string
	StatusCode    int
	MojaloopError *ErrorInformationObject
}

func (e *ProtocolError) Error() string {
	if e.MojaloopError != nil {
		info := e.MojaloopError.ErrorInformation
		return fmt.Sprintf("%s: %s %s", e.Message, info.ErrorCode, info.ErrorDescription)
	}
	return e.Message
}

// TimeoutError reports that no notification arrived on Channel before the deadline.
type TimeoutError struct {
	Channel string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout waiting for notification on channel %s after %s", e.Channel, e.Elapsed.Round(time.Millisecond))
}

// ValidationError reports that a request or a returned entity failed a local sanity check.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// TransitionError reports a state machine misuse: an unknown, out-of-order or overlapping transition.
type TransitionError struct {
	Transition string
	From       string
	Err        error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %q from state %q: %v", e.Transition, e.From, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// ErrorDetail is the serialisable record of the last failure of a transaction.
// It never holds the error value itself so persisted records stay acyclic.
type ErrorDetail struct {
	Message       string                  `json:"message"`
	StatusCode    int                     `json:"httpStatusCode,omitempty"`
	MojaloopError *ErrorInformationObject `json:"mojaloopError,omitempty"`
}

// NewErrorDetail captures the diagnostic fields of err.
func NewErrorDetail(err error) *ErrorDetail {
	if err == nil {
		return nil
	}
	detail := &ErrorDetail{Message: err.Error()}

	var protocolErr *ProtocolError
	var timeoutErr *TimeoutError
	var validationErr *ValidationError
	switch {
	case errors.As(err, &protocolErr):
		detail.StatusCode = protocolErr.StatusCode
		detail.MojaloopError = protocolErr.MojaloopError
	case errors.As(err, &timeoutErr):
		detail.StatusCode = 504
	case errors.As(err, &validationErr):
		detail.StatusCode = 400
	default:
		detail.StatusCode = 500
	}
	return detail
}
