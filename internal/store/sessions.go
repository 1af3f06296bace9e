package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/mukoma-ai/backend/internal/model/chat"
	"github.com/mukoma-ai/backend/internal/model/settings"
)

// SessionPath is the document path of one conversation.
func SessionPath(userID, chatID string) string {
	return "users/" + userID + "/chats/" + chatID
}

// UserPath is the document path of the per-user record (settings plus the
// conversation index).
func UserPath(userID string) string {
	return "users/" + userID
}

// SessionStore adapts the raw document store to chat sessions.
type SessionStore struct {
	store  Store
	logger *zap.Logger
}

// NewSessionStore wraps a document store.
func NewSessionStore(s Store, logger *zap.Logger) *SessionStore {
	return &SessionStore{store: s, logger: logger}
}

// Create writes the bootstrap session document and indexes the conversation on
// the user record.
func (s *SessionStore) Create(ctx context.Context, userID string, sess chat.Session) error {
	doc := Document{
		"id":        sess.ID,
		"createdAt": sess.CreatedAt,
		"messages":  []any{},
		"summary":   sess.Summary,
	}
	if err := s.store.Set(ctx, SessionPath(userID, sess.ID), doc, true); err != nil {
		return fmt.Errorf("create session %s: %w", sess.ID, err)
	}

	index := Document{"chatIds": ArrayUnion{Elems: []any{sess.ID}}}
	if err := s.store.Set(ctx, UserPath(userID), index, true); err != nil {
		return fmt.Errorf("index session %s: %w", sess.ID, err)
	}
	return nil
}

// Load performs a point read of the session document.
func (s *SessionStore) Load(ctx context.Context, userID, chatID string) (chat.Session, error) {
	doc, err := s.store.Get(ctx, SessionPath(userID, chatID))
	if err != nil {
		return chat.Session{}, err
	}
	return decodeSession(doc)
}

// List returns the user's sessions in index order, without message bodies.
func (s *SessionStore) List(ctx context.Context, userID string) ([]chat.Session, error) {
	doc, err := s.store.Get(ctx, UserPath(userID))
	if err != nil {
		return nil, err
	}

	ids, _ := doc["chatIds"].([]any)
	sessions := make([]chat.Session, 0, len(ids))
	for _, raw := range ids {
		id, ok := raw.(string)
		if !ok {
			continue
		}
		sess, err := s.Load(ctx, userID, id)
		if err != nil {
			s.logger.Warn("skipping unreadable session", zap.String("chatId", id), zap.Error(err))
			continue
		}
		sess.Messages = nil
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// AppendMessage durably appends one turn. The store assigns the timestamp at
// write time.
func (s *SessionStore) AppendMessage(ctx context.Context, userID, chatID string, msg chat.Message) error {
	elem := Document{
		"role":      string(msg.Role),
		"text":      msg.Text,
		"language":  string(msg.Language),
		"timestamp": ServerTimestamp{},
	}
	if msg.Persona != "" {
		elem["persona"] = msg.Persona
	}

	patch := Document{"messages": ArrayUnion{Elems: []any{elem}}}
	if err := s.store.Set(ctx, SessionPath(userID, chatID), patch, true); err != nil {
		return fmt.Errorf("append message to %s: %w", chatID, err)
	}
	return nil
}

// SetSummary replaces the session's rolling summary. Writes are
// last-write-wins on the durable side.
func (s *SessionStore) SetSummary(ctx context.Context, userID, chatID, summary string) error {
	patch := Document{"summary": summary}
	if err := s.store.Set(ctx, SessionPath(userID, chatID), patch, true); err != nil {
		return fmt.Errorf("set summary on %s: %w", chatID, err)
	}
	return nil
}

// Subscribe pushes the decoded session on every durable change.
func (s *SessionStore) Subscribe(userID, chatID string, onChange func(chat.Session)) (Unsubscribe, error) {
	return s.store.Subscribe(SessionPath(userID, chatID), func(doc Document) {
		sess, err := decodeSession(doc)
		if err != nil {
			s.logger.Warn("dropping undecodable session snapshot",
				zap.String("chatId", chatID), zap.Error(err))
			return
		}
		onChange(sess)
	})
}

func decodeSession(doc Document) (chat.Session, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return chat.Session{}, fmt.Errorf("encode session document: %w", err)
	}
	var sess chat.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return chat.Session{}, fmt.Errorf("decode session document: %w", err)
	}
	return sess, nil
}

// SettingsStore adapts the raw document store to per-user settings.
type SettingsStore struct {
	store Store
}

// NewSettingsStore wraps a document store.
func NewSettingsStore(s Store) *SettingsStore {
	return &SettingsStore{store: s}
}

// Get reads the user's stored defaults. ErrNotFound means the user has never
// saved settings.
func (s *SettingsStore) Get(ctx context.Context, userID string) (settings.UserSettings, error) {
	doc, err := s.store.Get(ctx, UserPath(userID))
	if err != nil {
		return settings.UserSettings{}, err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return settings.UserSettings{}, fmt.Errorf("encode settings document: %w", err)
	}
	var st settings.UserSettings
	if err := json.Unmarshal(data, &st); err != nil {
		return settings.UserSettings{}, fmt.Errorf("decode settings document: %w", err)
	}
	if st.Language == "" && st.DefaultPersona == "" {
		return settings.UserSettings{}, ErrNotFound
	}
	return st, nil
}

// Save merges the settings fields into the user record.
func (s *SettingsStore) Save(ctx context.Context, userID string, st settings.UserSettings) error {
	patch := Document{
		"language":       string(st.Language),
		"defaultPersona": st.DefaultPersona,
	}
	if st.Theme != "" {
		patch["theme"] = st.Theme
	}
	if err := s.store.Set(ctx, UserPath(userID), patch, true); err != nil {
		return fmt.Errorf("save settings for %s: %w", userID, err)
	}
	return nil
}
