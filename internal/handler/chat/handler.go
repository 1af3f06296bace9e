package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatModel "github.com/mukoma-ai/backend/internal/model/chat"
	"github.com/mukoma-ai/backend/internal/middleware"
	chatService "github.com/mukoma-ai/backend/internal/service/chat"
	"github.com/mukoma-ai/backend/pkg/utils"
)

// Handler exposes the conversation engine over HTTP.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates the chat handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chats", h.handleCreate)
	r.Get("/chats", h.handleList)
	r.Get("/chats/{chatID}", h.handleGet)
	r.Post("/chats/{chatID}/messages", h.handleSend)
	r.Put("/chats/{chatID}/selection", h.handleSelect)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}

	sess, err := h.chatSvc.CreateSession(r.Context(), user)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}

	sessions, err := h.chatSvc.Sessions(r.Context(), user)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}

	sess, err := h.chatSvc.Session(r.Context(), user, chi.URLParam(r, "chatID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.chatSvc.Send(r.Context(), user, chi.URLParam(r, "chatID"), payload.Text)
	if err != nil {
		if errors.Is(err, chatService.ErrInference) {
			// Hand the raw input back so the client can restore it.
			utils.RespondJSON(w, http.StatusBadGateway, map[string]string{
				"error": "Sorry, I encountered an error. Please try again.",
				"text":  payload.Text,
			})
			return
		}
		respondServiceError(w, err)
		return
	}

	if result.Ignored {
		utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "ignored"})
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]chatModel.Message{
		"userMessage": result.UserMessage,
		"reply":       result.Reply,
	})
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}

	var payload struct {
		PersonaID string `json:"personaId"`
		Language  string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.PersonaID == "" && payload.Language == "" {
		utils.RespondError(w, http.StatusBadRequest, "personaId or language is required")
		return
	}

	chatID := chi.URLParam(r, "chatID")

	if payload.Language != "" {
		lang, ok := chatModel.ParseLanguage(payload.Language)
		if !ok {
			utils.RespondError(w, http.StatusBadRequest, "unknown language")
			return
		}
		if err := h.chatSvc.SelectLanguage(r.Context(), user, chatID, lang); err != nil {
			respondServiceError(w, err)
			return
		}
	}

	if payload.PersonaID != "" {
		if err := h.chatSvc.SelectPersona(r.Context(), user, chatID, payload.PersonaID); err != nil {
			respondServiceError(w, err)
			return
		}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func principal(w http.ResponseWriter, r *http.Request) (chatService.User, bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing identity")
		return chatService.User{}, false
	}
	return chatService.User{ID: p.UserID, Guest: p.Guest}, true
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrPersonaNotFound):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chatService.ErrQuotaExceeded):
		utils.RespondJSON(w, http.StatusForbidden, map[string]string{
			"error": "You've reached your message limit for guest mode. Please create an account to continue chatting.",
			"code":  "quota_exceeded",
		})
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
