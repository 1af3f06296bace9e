package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	chatHandler "github.com/mukoma-ai/backend/internal/handler/chat"
	personaHandler "github.com/mukoma-ai/backend/internal/handler/persona"
	settingsHandler "github.com/mukoma-ai/backend/internal/handler/settings"
	streamHandler "github.com/mukoma-ai/backend/internal/handler/stream"
	"github.com/mukoma-ai/backend/internal/middleware"
	personaModel "github.com/mukoma-ai/backend/internal/model/persona"
	chatService "github.com/mukoma-ai/backend/internal/service/chat"
	"github.com/mukoma-ai/backend/internal/store"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Personas  personaModel.Store
	ChatSvc   *chatService.Service
	Settings  *store.SettingsStore
	Defaults  settingsHandler.Recommender
	JWTSecret string
	Logger    *zap.Logger
}

// NewRouter wires HTTP routes to the core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)
	r.Use(middleware.Identity(deps.JWTSecret))

	personas := personaHandler.New(deps.Personas)
	chats := chatHandler.New(deps.ChatSvc)
	userSettings := settingsHandler.New(deps.Settings, deps.Personas, deps.Defaults, deps.Logger)
	streams := streamHandler.New(deps.ChatSvc, deps.Logger)

	r.Route("/api", func(api chi.Router) {
		personas.RegisterRoutes(api)
		chats.RegisterRoutes(api)
		userSettings.RegisterRoutes(api)
		streams.RegisterRoutes(api)
	})

	return r
}
