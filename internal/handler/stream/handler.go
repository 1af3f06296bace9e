package stream

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mukoma-ai/backend/internal/middleware"
	chatModel "github.com/mukoma-ai/backend/internal/model/chat"
	chatService "github.com/mukoma-ai/backend/internal/service/chat"
	"github.com/mukoma-ai/backend/pkg/utils"
)

const heartbeatInterval = 25 * time.Second

// Handler pushes live timeline snapshots to clients, over Server-Sent Events
// or a WebSocket. Both feeds read only the merged Message Timeline.
type Handler struct {
	chatSvc  *chatService.Service
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New creates the stream handler.
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the live-feed routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chats/{chatID}/stream", h.handleSSE)
	r.Get("/chats/{chatID}/ws", h.handleWebSocket)
}

type snapshotEvent struct {
	ChatID   string              `json:"chatId"`
	Messages []chatModel.Message `json:"messages"`
}

func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	user, chatID, feed, cancel, ok := h.openFeed(w, r)
	if !ok {
		return
	}
	defer cancel()

	utils.SetupSSEHeaders(w)

	logger := h.logger.With(zap.String("chatId", chatID), zap.String("userId", user.ID))
	logger.Info("opening timeline stream")

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			logger.Info("closing timeline stream")
			return
		case <-ticker.C:
			if err := utils.SendSSEEvent(w, flusher, "heartbeat", map[string]string{"status": "alive"}); err != nil {
				logger.Warn("heartbeat write failed", zap.Error(err))
				return
			}
		case messages := <-feed:
			event := snapshotEvent{ChatID: chatID, Messages: messages}
			if err := utils.SendSSEEvent(w, flusher, "timeline", event); err != nil {
				logger.Warn("snapshot write failed", zap.Error(err))
				return
			}
		}
	}
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, chatID, feed, cancel, ok := h.openFeed(w, r)
	if !ok {
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger := h.logger.With(zap.String("chatId", chatID), zap.String("userId", user.ID))
	logger.Info("websocket feed connected")

	// Reads are discarded; the socket exists to detect the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			logger.Info("websocket feed disconnected")
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case messages := <-feed:
			if err := conn.WriteJSON(snapshotEvent{ChatID: chatID, Messages: messages}); err != nil {
				logger.Warn("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}

// openFeed resolves identity, attaches a timeline watch, and reports the
// subscription parts. On failure it has already written the error response.
func (h *Handler) openFeed(w http.ResponseWriter, r *http.Request) (chatService.User, string, <-chan []chatModel.Message, func(), bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing identity")
		return chatService.User{}, "", nil, nil, false
	}
	user := chatService.User{ID: p.UserID, Guest: p.Guest}
	chatID := chi.URLParam(r, "chatID")

	feed, cancel, err := h.chatSvc.Watch(r.Context(), user, chatID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chatService.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return chatService.User{}, "", nil, nil, false
	}

	return user, chatID, feed, cancel, true
}
