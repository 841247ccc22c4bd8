package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"

	"github.com/zhouzirui/webhook-chat/backend/internal/handler/chat"
	settingsHandler "github.com/zhouzirui/webhook-chat/backend/internal/handler/settings"
	starterHandler "github.com/zhouzirui/webhook-chat/backend/internal/handler/starter"
	"github.com/zhouzirui/webhook-chat/backend/internal/handler/stream"
	"github.com/zhouzirui/webhook-chat/backend/internal/handler/webhook"
	"github.com/zhouzirui/webhook-chat/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/webhook-chat/backend/internal/middleware"
	"github.com/zhouzirui/webhook-chat/backend/internal/model/starter"
	settingsService "github.com/zhouzirui/webhook-chat/backend/internal/service/settings"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/widget"
)

// Dependencies groups what the router wires into handlers.
type Dependencies struct {
	Controller *widget.Controller
	Settings   *settingsService.Service
	Starters   starter.Store

	// DevWebhook mounts POST /webhook. Replier may be nil, in which case
	// the endpoint echoes.
	DevWebhook bool
	Replier    webhook.Replier
}

// cors lets the widget be embedded on any origin.
func cors() func(http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Accept", "X-Session-ID"}),
		handlers.OptionStatusCode(http.StatusNoContent),
	)
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(api chi.Router) {
		// Long-lived streams must not be buffered by the compressor.
		stream.New(deps.Controller).RegisterRoutes(api)
		ws.New(deps.Controller).RegisterRoutes(api)

		api.Group(func(rest chi.Router) {
			rest.Use(handlers.CompressHandler)

			chat.New(deps.Controller).RegisterRoutes(rest)
			settingsHandler.New(deps.Settings).RegisterRoutes(rest)
			starterHandler.New(deps.Starters).RegisterRoutes(rest)
		})
	})

	if deps.DevWebhook {
		webhook.New(deps.Replier).RegisterRoutes(r)
	}

	return r
}
