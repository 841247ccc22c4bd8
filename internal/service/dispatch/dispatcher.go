package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/webhook-chat/backend/internal/model/settings"
)

const (
	// FallbackReply is returned when the webhook answers with neither a
	// "response" nor a "message" field.
	FallbackReply = "Thank you for your message!"

	DefaultMaxMessageLength = 500
	DefaultClientInfo       = "webhook-chat-backend/1.0"

	maxResponseBytes = 1 << 20
)

var errWebhookDeadline = errors.New("webhook deadline exceeded")

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Payload is the JSON body posted to the webhook.
type Payload struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	SessionID string `json:"sessionId"`
	UserAgent string `json:"userAgent"`
}

// Options configures a Dispatcher. Zero values fall back to defaults.
type Options struct {
	MaxMessageLength int
	ClientInfo       string
	Client           Doer
	Now              func() time.Time
}

// Dispatcher validates a user message, posts it to the configured webhook
// and turns the answer into reply text. It holds no per-session state;
// callers serialize sends per session.
type Dispatcher struct {
	maxLength  int
	clientInfo string
	client     Doer
	now        func() time.Time
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		maxLength:  opts.MaxMessageLength,
		clientInfo: opts.ClientInfo,
		client:     opts.Client,
		now:        opts.Now,
	}
	if d.maxLength <= 0 {
		d.maxLength = DefaultMaxMessageLength
	}
	if d.clientInfo == "" {
		d.clientInfo = DefaultClientInfo
	}
	if d.client == nil {
		d.client = &http.Client{}
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// MaxMessageLength returns the configured character limit.
func (d *Dispatcher) MaxMessageLength() int {
	return d.maxLength
}

// Validate trims rawText and checks it against the length limit.
func (d *Dispatcher) Validate(rawText string) (string, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return "", &ValidationError{Reason: ReasonEmpty, MaxLength: d.maxLength}
	}
	if n := utf8.RuneCountInString(text); n > d.maxLength {
		return "", &ValidationError{Reason: ReasonTooLong, Length: n, MaxLength: d.maxLength}
	}
	return text, nil
}

// Send posts rawText to cfg.EndpointURL and returns the reply text. The wait
// is bounded by cfg.TimeoutSeconds; when it elapses the request is aborted
// and a KindTimeout DispatchError is returned. Send never retries.
func (d *Dispatcher) Send(ctx context.Context, rawText string, cfg settings.Settings, sessionID string) (string, error) {
	text, err := d.Validate(rawText)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cfg.EndpointURL) == "" || cfg.TimeoutSeconds <= 0 {
		return "", &ValidationError{Reason: ReasonInvalidSettings, Err: fmt.Errorf("endpoint %q, timeout %ds", cfg.EndpointURL, cfg.TimeoutSeconds)}
	}

	body, err := json.Marshal(Payload{
		Message:   text,
		Timestamp: d.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		SessionID: sessionID,
		UserAgent: d.clientInfo,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	reqCtx, cancel := context.WithTimeoutCause(ctx, cfg.Timeout(), errWebhookDeadline)
	defer cancel()

	started := time.Now()
	reply, err := d.post(reqCtx, cfg.EndpointURL, body)
	logger := log.With().
		Str("component", "dispatch").
		Str("session", sessionID).
		Dur("duration", time.Since(started)).
		Logger()
	if err != nil {
		logger.Warn().Err(err).Msg("webhook request failed")
		return "", err
	}

	logger.Info().Int("replyLength", len(reply)).Msg("webhook request completed")
	return reply, nil
}

func (d *Dispatcher) post(ctx context.Context, endpoint string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &DispatchError{Kind: KindNetwork, Cause: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return "", &DispatchError{Kind: KindHTTPStatus, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", classify(ctx, err)
	}

	return extractReply(raw)
}

// classify maps a transport error onto Timeout or Network.
func classify(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), errWebhookDeadline) {
		return &DispatchError{Kind: KindTimeout, Cause: err}
	}
	return &DispatchError{Kind: KindNetwork, Cause: err}
}

// extractReply picks "response", then "message", then FallbackReply. Only
// non-empty strings count as present.
func extractReply(raw []byte) (string, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &DispatchError{Kind: KindMalformedResponse, Cause: err}
	}

	switch body := decoded.(type) {
	case nil:
		return "", &DispatchError{Kind: KindMalformedResponse, Cause: errors.New("response body is null")}
	case map[string]any:
		for _, field := range []string{"response", "message"} {
			if s, ok := body[field].(string); ok && s != "" {
				return s, nil
			}
		}
	}
	return FallbackReply, nil
}
