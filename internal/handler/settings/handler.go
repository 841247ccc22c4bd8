package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	settingsModel "github.com/zhouzirui/webhook-chat/backend/internal/model/settings"
	settingsService "github.com/zhouzirui/webhook-chat/backend/internal/service/settings"
	"github.com/zhouzirui/webhook-chat/backend/pkg/utils"
)

// Handler exposes the widget settings modal's load, save and reset actions.
type Handler struct {
	svc *settingsService.Service
}

func New(svc *settingsService.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.handleGet)
	r.Put("/settings", h.handleSave)
	r.Delete("/settings", h.handleReset)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	current, err := h.svc.Load(r.Context())
	if err != nil {
		log.Error().Str("component", "settings").Err(err).Msg("load settings")
		utils.RespondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	utils.RespondJSON(w, http.StatusOK, current)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var payload settingsModel.Settings
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	saved, err := h.svc.Save(r.Context(), payload)
	if err != nil {
		var verr *settingsModel.ValidationError
		if errors.As(err, &verr) {
			utils.RespondJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":  verr.Error(),
				"reason": string(verr.Reason),
			})
			return
		}
		log.Error().Str("component", "settings").Err(err).Msg("save settings")
		utils.RespondError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	utils.RespondJSON(w, http.StatusOK, saved)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	defaults, err := h.svc.Reset(r.Context())
	if err != nil {
		log.Error().Str("component", "settings").Err(err).Msg("reset settings")
		utils.RespondError(w, http.StatusInternalServerError, "failed to reset settings")
		return
	}
	utils.RespondJSON(w, http.StatusOK, defaults)
}
