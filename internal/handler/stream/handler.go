package stream

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	chatService "github.com/zhouzirui/webhook-chat/backend/internal/service/chat"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/widget"
	"github.com/zhouzirui/webhook-chat/backend/pkg/utils"
)

const defaultKeepAlive = 15 * time.Second

// Handler pushes widget events to the browser via Server-Sent Events.
type Handler struct {
	controller *widget.Controller
	keepAlive  time.Duration
}

// New creates a new stream handler
func New(controller *widget.Controller) *Handler {
	return &Handler{
		controller: controller,
		keepAlive:  defaultKeepAlive,
	}
}

// RegisterRoutes mounts the SSE endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

type readyEvent struct {
	SessionID string `json:"sessionId"`
	Pending   bool   `json:"pending"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	if _, err := h.controller.Transcript(r.Context(), sessionID); err != nil {
		if errors.Is(err, chatService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to open stream")
		return
	}

	events, cancel := h.controller.Subscribe(sessionID)
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	logger := log.With().Str("component", "stream").Str("session", sessionID).Logger()
	logger.Debug().Msg("stream opened")
	defer logger.Debug().Msg("stream closed")

	if err := utils.SendSSEEvent(w, flusher, "ready", readyEvent{
		SessionID: sessionID,
		Pending:   h.controller.Pending(sessionID),
	}); err != nil {
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keep-alive"); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
				logger.Warn().Err(err).Msg("write event")
				return
			}
		}
	}
}
