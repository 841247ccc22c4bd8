package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	chatService "github.com/zhouzirui/webhook-chat/backend/internal/service/chat"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/dispatch"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/widget"
	"github.com/zhouzirui/webhook-chat/backend/pkg/utils"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Handler serves the widget transcript over a WebSocket.
type Handler struct {
	controller *widget.Controller
	upgrader   websocket.Upgrader
}

// New creates a WebSocket handler around the widget controller.
func New(controller *widget.Controller) *Handler {
	return &Handler{
		controller: controller,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type errorMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := h.controller.Transcript(r.Context(), sessionID); err != nil {
		if errors.Is(err, chatService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to open session")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Str("component", "ws").Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	logger := log.With().Str("component", "ws").Str("session", sessionID).Logger()
	logger.Info().Msg("connection opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := h.controller.Subscribe(sessionID)
	defer unsubscribe()

	out := make(chan any, 8)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		writeLoop(ctx, conn, events, out, logger)
	}()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("read error")
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch msg.Type {
		case "send":
			// The writer delivers the resulting transcript events; only
			// rejections are reported directly.
			go func(text string) {
				if _, err := h.controller.Submit(context.WithoutCancel(ctx), sessionID, text); err != nil {
					enqueue(ctx, out, toErrorMessage(sessionID, err))
				}
			}(msg.Text)
		case "clear":
			if err := h.controller.Clear(ctx, sessionID); err != nil {
				enqueue(ctx, out, toErrorMessage(sessionID, err))
			}
		default:
			enqueue(ctx, out, errorMessage{Type: "error", SessionID: sessionID, Error: "unsupported message type: " + msg.Type})
		}
	}

	cancel()
	<-writerDone
	logger.Info().Msg("connection closed")
}

// writeLoop is the only goroutine that writes to conn.
func writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan widget.Event, out <-chan any, logger zerolog.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	write := func(v any) bool {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(v); err != nil {
			logger.Debug().Err(err).Msg("write failed")
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok || !write(ev) {
				return
			}
		case v := <-out:
			if !write(v) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func enqueue(ctx context.Context, out chan<- any, v any) {
	select {
	case out <- v:
	case <-ctx.Done():
	}
}

func toErrorMessage(sessionID string, err error) errorMessage {
	msg := errorMessage{Type: "error", SessionID: sessionID, Error: err.Error()}

	var verr *dispatch.ValidationError
	switch {
	case errors.As(err, &verr):
		msg.Reason = string(verr.Reason)
	case errors.Is(err, widget.ErrBusy):
		msg.Reason = "busy"
	}
	return msg
}
