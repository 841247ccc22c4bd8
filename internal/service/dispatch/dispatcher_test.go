package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/webhook-chat/backend/internal/model/settings"
)

// countingDoer records calls and delegates to fn.
type countingDoer struct {
	calls atomic.Int32
	fn    func(*http.Request) (*http.Response, error)
}

func (c *countingDoer) Do(req *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return c.fn(req)
}

func webhook(t *testing.T, handler http.HandlerFunc) settings.Settings {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return settings.Settings{EndpointURL: srv.URL, TimeoutSeconds: 5}
}

func respondWith(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestSendRejectsTooLongWithoutNetwork(t *testing.T) {
	doer := &countingDoer{fn: func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	}}
	d := New(Options{MaxMessageLength: 10, Client: doer})
	cfg := settings.Settings{EndpointURL: "https://example.com", TimeoutSeconds: 5}

	for _, text := range []string{strings.Repeat("a", 11), strings.Repeat("é", 11), "  " + strings.Repeat("b", 50) + "  "} {
		_, err := d.Send(context.Background(), text, cfg, "s")
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "text %q", text)
		assert.Equal(t, ReasonTooLong, verr.Reason)
		assert.Equal(t, 10, verr.MaxLength)
	}
	assert.Zero(t, doer.calls.Load())
}

func TestSendLengthLimitIsInclusive(t *testing.T) {
	cfg := webhook(t, respondWith(http.StatusOK, `{"response":"ok"}`))
	d := New(Options{MaxMessageLength: 10})

	reply, err := d.Send(context.Background(), "  "+strings.Repeat("a", 10)+"\n", cfg, "s")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
}

func TestSendRejectsEmpty(t *testing.T) {
	doer := &countingDoer{fn: func(*http.Request) (*http.Response, error) { return nil, errors.New("unexpected") }}
	d := New(Options{Client: doer})
	cfg := settings.Settings{EndpointURL: "https://example.com", TimeoutSeconds: 5}

	for _, text := range []string{"", " ", "\t\n  \r"} {
		_, err := d.Send(context.Background(), text, cfg, "s")
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, ReasonEmpty, verr.Reason)
	}
	assert.Zero(t, doer.calls.Load())
}

func TestSendRejectsMissingEndpoint(t *testing.T) {
	d := New(Options{})
	_, err := d.Send(context.Background(), "hi", settings.Settings{TimeoutSeconds: 5}, "s")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, ReasonInvalidSettings, verr.Reason)
}

func TestSendTimesOutAndAborts(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the minimum webhook timeout")
	}

	var aborted atomic.Bool
	doer := &countingDoer{fn: func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		aborted.Store(true)
		return nil, req.Context().Err()
	}}
	d := New(Options{Client: doer})
	cfg := settings.Settings{EndpointURL: "https://example.com/hook", TimeoutSeconds: 5}

	started := time.Now()
	_, err := d.Send(context.Background(), "hello", cfg, "s")
	elapsed := time.Since(started)

	var derr *DispatchError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, KindTimeout, derr.Kind)
	assert.True(t, aborted.Load(), "transfer must be aborted")
	assert.GreaterOrEqual(t, elapsed, 5*time.Second)
	assert.Less(t, elapsed, 6*time.Second)
}

func TestSendParentCancelIsNetworkError(t *testing.T) {
	doer := &countingDoer{fn: func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}}
	d := New(Options{Client: doer})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Send(ctx, "hello", settings.Settings{EndpointURL: "https://example.com", TimeoutSeconds: 5}, "s")
	var derr *DispatchError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, KindNetwork, derr.Kind)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendHTTPStatus(t *testing.T) {
	cfg := webhook(t, respondWith(http.StatusInternalServerError, `{"response":"ignored"}`))

	_, err := New(Options{}).Send(context.Background(), "hello", cfg, "s")
	var derr *DispatchError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, KindHTTPStatus, derr.Kind)
	assert.Equal(t, 500, derr.StatusCode)
}

func TestSendNetworkFailure(t *testing.T) {
	boom := errors.New("connection refused")
	doer := &countingDoer{fn: func(*http.Request) (*http.Response, error) { return nil, boom }}

	_, err := New(Options{Client: doer}).Send(context.Background(), "hello", settings.Settings{EndpointURL: "https://example.com", TimeoutSeconds: 5}, "s")
	var derr *DispatchError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, KindNetwork, derr.Kind)
	assert.ErrorIs(t, err, boom)
}

func TestSendReplyExtraction(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"response", `{"response":"hi"}`, "hi"},
		{"message", `{"message":"hi2"}`, "hi2"},
		{"response wins", `{"message":"second","response":"first"}`, "first"},
		{"empty response falls through", `{"response":"","message":"m"}`, "m"},
		{"empty object", `{}`, FallbackReply},
		{"non string field", `{"response":42}`, FallbackReply},
		{"array", `[1,2]`, FallbackReply},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := webhook(t, respondWith(http.StatusOK, tc.body))
			reply, err := New(Options{}).Send(context.Background(), "hello", cfg, "s")
			require.NoError(t, err)
			assert.Equal(t, tc.want, reply)
		})
	}
}

func TestSendMalformedResponse(t *testing.T) {
	for _, body := range []string{"not json", "", "null"} {
		cfg := webhook(t, respondWith(http.StatusOK, body))
		_, err := New(Options{}).Send(context.Background(), "hello", cfg, "s")
		var derr *DispatchError
		require.True(t, errors.As(err, &derr), "body %q", body)
		assert.Equal(t, KindMalformedResponse, derr.Kind)
	}
}

func TestSendRequestShape(t *testing.T) {
	var got Payload
	var headers http.Header
	var method string
	cfg := webhook(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&got)
		respondWith(http.StatusOK, `{"response":"ok"}`)(w, r)
	})

	now := time.Date(2024, 5, 6, 7, 8, 9, 123_000_000, time.FixedZone("X", 3600))
	d := New(Options{ClientInfo: "test-agent", Now: func() time.Time { return now }})

	_, err := d.Send(context.Background(), "  hello there  ", cfg, "session_1_abc")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "application/json", headers.Get("Accept"))
	assert.Equal(t, Payload{
		Message:   "hello there",
		Timestamp: "2024-05-06T06:08:09.123Z",
		SessionID: "session_1_abc",
		UserAgent: "test-agent",
	}, got)
}
