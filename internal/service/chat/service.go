// Package chat implements the conversation synchronization and dispatch
// engine: message ordering, optimistic/durable reconciliation, persona and
// language resolution, quota enforcement, and summarization scheduling.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mukoma-ai/backend/internal/model/chat"
	"github.com/mukoma-ai/backend/internal/model/persona"
	"github.com/mukoma-ai/backend/internal/store"
)

// User is the identity surface the engine consumes: a stable identifier plus
// the guest-tier flag.
type User struct {
	ID    string
	Guest bool
}

// Service owns the per-session controllers and their store subscriptions.
type Service struct {
	mu          sync.RWMutex
	controllers map[string]*Controller

	sessions   *store.SessionStore
	settings   *store.SettingsStore
	resolver   *Resolver
	generator  Generator
	summarizer *Summarizer
	logger     *zap.Logger
	guestLimit int
}

// NewService wires the engine's collaborators together.
func NewService(sessions *store.SessionStore, settingsStore *store.SettingsStore, catalog persona.Store, generator Generator, summarizer *Summarizer, logger *zap.Logger, guestLimit int) *Service {
	return &Service{
		controllers: make(map[string]*Controller),
		sessions:    sessions,
		settings:    settingsStore,
		resolver:    NewResolver(catalog),
		generator:   generator,
		summarizer:  summarizer,
		logger:      logger,
		guestLimit:  guestLimit,
	}
}

// CreateSession provisions a new conversation. The id is generated here, not
// by the store, so callers can navigate before the durable record exists; the
// bootstrap document write is non-blocking for the same reason. Stored user
// defaults seed the selection exactly once, at this point.
func (s *Service) CreateSession(ctx context.Context, user User) (chat.Session, error) {
	sess := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Summary:   chat.DefaultSummary,
	}

	ctl := newController(sess, user, s.deps())

	st, err := s.settings.Get(ctx, user.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("settings read failed, using system defaults",
			zap.String("userId", user.ID), zap.Error(err))
	}
	ctl.ApplyDefaults(st)

	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.sessions.Create(writeCtx, user.ID, sess); err != nil {
			s.logger.Warn("session bootstrap write failed",
				zap.String("chatId", sess.ID), zap.Error(err))
		}
	}()

	s.attach(ctl, user)
	return sess, nil
}

// Send dispatches one user message on the named session.
func (s *Service) Send(ctx context.Context, user User, chatID, text string) (*SendResult, error) {
	ctl, err := s.controller(ctx, user, chatID)
	if err != nil {
		return nil, err
	}
	return ctl.Send(ctx, text)
}

// Session returns the live view of a conversation.
func (s *Service) Session(ctx context.Context, user User, chatID string) (chat.Session, error) {
	ctl, err := s.controller(ctx, user, chatID)
	if err != nil {
		return chat.Session{}, err
	}
	return ctl.Snapshot(), nil
}

// Sessions lists the user's conversations for the sidebar, newest index last.
func (s *Service) Sessions(ctx context.Context, user User) ([]chat.Session, error) {
	sessions, err := s.sessions.List(ctx, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		return []chat.Session{}, nil
	}
	return sessions, err
}

// SelectPersona records an explicit in-session persona choice.
func (s *Service) SelectPersona(ctx context.Context, user User, chatID, personaID string) error {
	ctl, err := s.controller(ctx, user, chatID)
	if err != nil {
		return err
	}
	return ctl.SelectPersona(personaID)
}

// SelectLanguage records an explicit in-session language choice.
func (s *Service) SelectLanguage(ctx context.Context, user User, chatID string, lang chat.Language) error {
	ctl, err := s.controller(ctx, user, chatID)
	if err != nil {
		return err
	}
	ctl.SelectLanguage(lang)
	return nil
}

// Watch returns a live feed of timeline snapshots for the session.
func (s *Service) Watch(ctx context.Context, user User, chatID string) (<-chan []chat.Message, func(), error) {
	ctl, err := s.controller(ctx, user, chatID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := ctl.Watch()
	return ch, cancel, nil
}

// Close detaches all store subscriptions and waits for background
// summarization passes.
func (s *Service) Close() {
	s.mu.Lock()
	controllers := make([]*Controller, 0, len(s.controllers))
	for _, ctl := range s.controllers {
		controllers = append(controllers, ctl)
	}
	s.controllers = make(map[string]*Controller)
	s.mu.Unlock()

	for _, ctl := range controllers {
		ctl.close()
	}
	s.summarizer.Wait()
}

func (s *Service) deps() controllerDeps {
	return controllerDeps{
		sessions:   s.sessions,
		generator:  s.generator,
		resolver:   s.resolver,
		summarizer: s.summarizer,
		logger:     s.logger,
		guestLimit: s.guestLimit,
	}
}

// controller finds the live controller for a session, lazily attaching one for
// a conversation that exists durably but has no in-memory state yet (e.g.
// after a restart). A controller never serves a user other than the session's
// owner.
func (s *Service) controller(ctx context.Context, user User, chatID string) (*Controller, error) {
	s.mu.RLock()
	ctl, ok := s.controllers[chatID]
	s.mu.RUnlock()
	if ok {
		if ctl.userID != user.ID {
			return nil, ErrSessionNotFound
		}
		return ctl, nil
	}

	sess, err := s.sessions.Load(ctx, user.ID, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	ctl = newController(sess, user, s.deps())
	ctl.timeline.Apply(sess.Messages)
	return s.attach(ctl, user), nil
}

// attach registers the controller and wires its durable subscription. If a
// concurrent caller attached one first, that one wins.
func (s *Service) attach(ctl *Controller, user User) *Controller {
	s.mu.Lock()
	if existing, ok := s.controllers[ctl.sessionID]; ok {
		s.mu.Unlock()
		return existing
	}
	s.controllers[ctl.sessionID] = ctl
	s.mu.Unlock()

	unsub, err := s.sessions.Subscribe(user.ID, ctl.sessionID, ctl.applyRemote)
	if err != nil {
		// The optimistic view still works; durable confirmations just will not
		// stream in for this process.
		s.logger.Warn("session subscription failed",
			zap.String("chatId", ctl.sessionID), zap.Error(err))
		return ctl
	}

	ctl.watchMu.Lock()
	ctl.unsubscribe = unsub
	ctl.watchMu.Unlock()
	return ctl
}
