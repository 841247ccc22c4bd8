package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/webhook-chat/backend/internal/service/dispatch"
	"github.com/zhouzirui/webhook-chat/backend/pkg/utils"
)

// Replier produces the answer for a widget message.
type Replier interface {
	Reply(ctx context.Context, sessionID, message string) (string, error)
}

// Handler is a local stand-in for the automation webhook the widget posts
// to. Without a Replier it echoes the message back.
type Handler struct {
	replier Replier
}

func New(replier Replier) *Handler {
	return &Handler{replier: replier}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook", h.handleWebhook)
}

type response struct {
	Response string `json:"response"`
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload dispatch.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message := strings.TrimSpace(payload.Message)
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	if h.replier == nil {
		utils.RespondJSON(w, http.StatusOK, response{Response: "You said: " + message})
		return
	}

	reply, err := h.replier.Reply(r.Context(), payload.SessionID, message)
	if err != nil {
		log.Error().Str("component", "webhook").Str("session", payload.SessionID).Err(err).Msg("reply failed")
		utils.RespondError(w, http.StatusBadGateway, "reply generation failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, response{Response: reply})
}
