package starter

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/webhook-chat/backend/internal/model/starter"
	"github.com/zhouzirui/webhook-chat/backend/pkg/utils"
)

// Handler 对话开场白的HTTP处理器
type Handler struct {
	starters starter.Store
}

// New 创建开场白处理器
func New(starters starter.Store) *Handler {
	return &Handler{
		starters: starters,
	}
}

// RegisterRoutes 注册开场白相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/starters", h.handleListStarters)
}

// handleListStarters 列出所有开场白
func (h *Handler) handleListStarters(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.starters.List())
}
