package dispatch

import (
	"fmt"
)

// ValidationReason says why a message was rejected before any network call.
type ValidationReason string

const (
	ReasonEmpty           ValidationReason = "empty"
	ReasonTooLong         ValidationReason = "too_long"
	ReasonInvalidSettings ValidationReason = "invalid_settings"
)

// ValidationError is a local, pre-flight rejection. It is never sent over
// the wire.
type ValidationError struct {
	Reason    ValidationReason
	Length    int
	MaxLength int
	Err       error
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonEmpty:
		return "message is empty"
	case ReasonTooLong:
		return fmt.Sprintf("message too long: %d characters, limit is %d", e.Length, e.MaxLength)
	default:
		return fmt.Sprintf("invalid dispatch settings: %v", e.Err)
	}
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ErrorKind classifies a failed webhook call.
type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindHTTPStatus        ErrorKind = "http_status"
	KindNetwork           ErrorKind = "network"
	KindMalformedResponse ErrorKind = "malformed_response"
)

// DispatchError reports a webhook call that was issued and failed.
type DispatchError struct {
	Kind       ErrorKind
	StatusCode int // set for KindHTTPStatus
	Cause      error
}

func (e *DispatchError) Error() string {
	switch e.Kind {
	case KindTimeout:
		return "webhook request timed out"
	case KindHTTPStatus:
		return fmt.Sprintf("webhook returned HTTP status %d", e.StatusCode)
	case KindMalformedResponse:
		return fmt.Sprintf("webhook returned a malformed response: %v", e.Cause)
	default:
		return fmt.Sprintf("webhook request failed: %v", e.Cause)
	}
}

func (e *DispatchError) Unwrap() error { return e.Cause }
