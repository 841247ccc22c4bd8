package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/webhook-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/webhook-chat/backend/internal/service/chat"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/dispatch"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/widget"
	"github.com/zhouzirui/webhook-chat/backend/pkg/utils"
)

// Handler serves the widget's session and message endpoints.
type Handler struct {
	controller *widget.Controller
}

// New creates a chat handler around the widget controller.
func New(controller *widget.Controller) *Handler {
	return &Handler{controller: controller}
}

// RegisterRoutes mounts the session and message routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleOpenSession)
	r.Route("/session/{sessionID}/messages", func(r chi.Router) {
		r.Get("/", h.handleTranscript)
		r.Post("/", h.handleSend)
		r.Delete("/", h.handleClear)
	})
}

type sessionResponse struct {
	SessionID        string    `json:"sessionId"`
	CreatedAt        time.Time `json:"createdAt"`
	MaxMessageLength int       `json:"maxMessageLength"`
}

type transcriptResponse struct {
	SessionID string         `json:"sessionId"`
	Pending   bool           `json:"pending"`
	Messages  []chat.Message `json:"messages"`
}

// handleOpenSession issues a session, or re-registers the one the browser
// kept in sessionStorage.
func (h *Handler) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.controller.Open(r.Context(), payload.SessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, sessionResponse{
		SessionID:        session.ID,
		CreatedAt:        session.CreatedAt,
		MaxMessageLength: h.controller.MaxMessageLength(),
	})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.controller.Transcript(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, transcriptResponse{
		SessionID: sessionID,
		Pending:   h.controller.Pending(sessionID),
		Messages:  messages,
	})
}

// handleSend blocks until the webhook answers or times out.
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.controller.Submit(r.Context(), sessionID, payload.Message)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"reply": reply})
}

// handleClear answers with the transcript as it stands after the clear.
func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.controller.Clear(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}
	h.handleTranscript(w, r)
}

func respondServiceError(w http.ResponseWriter, err error) {
	var verr *dispatch.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.RespondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":     verr.Error(),
			"reason":    verr.Reason,
			"maxLength": verr.MaxLength,
		})
	case errors.Is(err, widget.ErrBusy):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrInvalidSessionID):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Str("component", "chat").Err(err).Msg("request failed")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
