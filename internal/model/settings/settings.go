package settings

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	MinTimeoutSeconds = 5
	MaxTimeoutSeconds = 120
)

// Settings is the user-editable widget configuration read on every send.
type Settings struct {
	EndpointURL    string `json:"endpointUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// Timeout returns the bounded wait as a duration.
func (s Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Reason names the field a ValidationError is about.
type Reason string

const (
	ReasonEmptyURL     Reason = "empty_url"
	ReasonInvalidURL   Reason = "invalid_url"
	ReasonTimeoutRange Reason = "timeout_out_of_range"
)

// ValidationError reports settings that cannot be saved.
type ValidationError struct {
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid settings (%s): %s", e.Reason, e.Detail)
}

// Validate checks the endpoint URL and the [5,120] second timeout window.
// Both timeout bounds are inclusive.
func (s Settings) Validate() error {
	raw := strings.TrimSpace(s.EndpointURL)
	if raw == "" {
		return &ValidationError{Reason: ReasonEmptyURL, Detail: "endpoint URL is required"}
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Reason: ReasonInvalidURL, Detail: fmt.Sprintf("endpoint URL %q must be an absolute http(s) URL", raw)}
	}

	if s.TimeoutSeconds < MinTimeoutSeconds || s.TimeoutSeconds > MaxTimeoutSeconds {
		return &ValidationError{
			Reason: ReasonTimeoutRange,
			Detail: fmt.Sprintf("timeout %d must be between %d and %d seconds", s.TimeoutSeconds, MinTimeoutSeconds, MaxTimeoutSeconds),
		}
	}
	return nil
}
