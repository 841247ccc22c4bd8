package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/webhook-chat/backend/internal/model/chat"
	"github.com/zhouzirui/webhook-chat/backend/internal/model/settings"
	chatService "github.com/zhouzirui/webhook-chat/backend/internal/service/chat"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/dispatch"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/widget"
)

type staticSettings struct{ url string }

func (s staticSettings) Load(context.Context) (settings.Settings, error) {
	return settings.Settings{EndpointURL: s.url, TimeoutSeconds: 5}, nil
}

func setup(t *testing.T) (*widget.Controller, string) {
	t.Helper()

	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p dispatch.Payload
		_ = json.NewDecoder(r.Body).Decode(&p)
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "echo: " + p.Message})
	}))
	t.Cleanup(hook.Close)

	controller := widget.New(context.Background(), dispatch.New(dispatch.Options{MaxMessageLength: 10}), staticSettings{hook.URL}, chatService.NewService(), widget.Options{ThinkingInterval: time.Hour})

	r := chi.NewRouter()
	New(controller).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return controller, "ws" + strings.TrimPrefix(srv.URL, "http")
}

type frame struct {
	Type    string        `json:"type"`
	Message *chat.Message `json:"message"`
	Reason  string        `json:"reason"`
}

// readUntil reads frames until match returns true.
func readUntil(t *testing.T, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if match(f) {
			return f
		}
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	_, base := setup(t)

	_, resp, err := websocket.DefaultDialer.Dial(base+"/ws/session_missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketSendReceivesReply(t *testing.T) {
	controller, base := setup(t)
	session, err := controller.Open(context.Background(), "")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/"+session.ID, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "send", Text: "hi"}))

	f := readUntil(t, conn, func(f frame) bool {
		return f.Type == string(widget.EventMessage) && f.Message != nil && f.Message.Origin == chat.OriginBot
	})
	assert.Equal(t, "echo: hi", f.Message.Text)
}

func TestWebSocketReportsValidationErrors(t *testing.T) {
	controller, base := setup(t)
	session, err := controller.Open(context.Background(), "")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/"+session.ID, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "send", Text: "   "}))
	f := readUntil(t, conn, func(f frame) bool { return f.Type == "error" })
	assert.Equal(t, string(dispatch.ReasonEmpty), f.Reason)

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "shout"}))
	f = readUntil(t, conn, func(f frame) bool { return f.Type == "error" })
	assert.Empty(t, f.Reason)
}

func TestWebSocketClear(t *testing.T) {
	controller, base := setup(t)
	session, err := controller.Open(context.Background(), "")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/"+session.ID, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(inboundMessage{Type: "clear"}))
	readUntil(t, conn, func(f frame) bool { return f.Type == string(widget.EventCleared) })

	f := readUntil(t, conn, func(f frame) bool { return f.Type == string(widget.EventMessage) })
	assert.Equal(t, widget.WelcomeMessage, f.Message.Text)
}
