package settings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mukoma-ai/backend/internal/middleware"
	chatModel "github.com/mukoma-ai/backend/internal/model/chat"
	"github.com/mukoma-ai/backend/internal/model/persona"
	"github.com/mukoma-ai/backend/internal/model/settings"
	"github.com/mukoma-ai/backend/internal/store"
	"github.com/mukoma-ai/backend/pkg/utils"
)

// Recommender produces first-run profile settings.
type Recommender interface {
	RecommendDefaults(ctx context.Context) (settings.UserSettings, error)
}

// Handler serves the per-user settings surface. Saving here is the only write
// path for UserSettings; the chat core only ever reads them.
type Handler struct {
	settings *store.SettingsStore
	personas persona.Store
	ai       Recommender
	logger   *zap.Logger
}

// New creates the settings handler.
func New(settingsStore *store.SettingsStore, personas persona.Store, ai Recommender, logger *zap.Logger) *Handler {
	return &Handler{settings: settingsStore, personas: personas, ai: ai, logger: logger}
}

// RegisterRoutes mounts the settings routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.handleGet)
	r.Put("/settings", h.handleSave)
}

// handleGet returns stored settings, asking the defaults backend for a
// recommendation the first time around and falling back to the system
// defaults when that call fails.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	st, err := h.settings.Get(r.Context(), p.UserID)
	if err == nil {
		utils.RespondJSON(w, http.StatusOK, st)
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	recommended, err := h.ai.RecommendDefaults(r.Context())
	if err != nil {
		h.logger.Warn("defaults recommendation failed, using system defaults", zap.Error(err))
		recommended = settings.SystemDefaults()
	}
	if _, ok := h.personas.FindByID(recommended.DefaultPersona); !ok {
		recommended.DefaultPersona = persona.FallbackID
	}

	utils.RespondJSON(w, http.StatusOK, recommended)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	if p.Guest {
		utils.RespondError(w, http.StatusForbidden, "guest settings are not persisted")
		return
	}

	var payload struct {
		Language       string `json:"language"`
		DefaultPersona string `json:"defaultPersona"`
		Theme          string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	language, ok := chatModel.ParseLanguage(payload.Language)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "unknown language")
		return
	}
	if _, ok := h.personas.FindByID(payload.DefaultPersona); !ok {
		utils.RespondError(w, http.StatusBadRequest, "persona not found")
		return
	}

	st := settings.UserSettings{
		Language:       language,
		DefaultPersona: payload.DefaultPersona,
		Theme:          payload.Theme,
	}
	if err := h.settings.Save(r.Context(), p.UserID, st); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, st)
}
