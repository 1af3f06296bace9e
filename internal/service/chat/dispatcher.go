package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mukoma-ai/backend/internal/model/chat"
	"github.com/mukoma-ai/backend/internal/model/settings"
	"github.com/mukoma-ai/backend/internal/store"
)

// Generator is the external inference backend at its interface.
type Generator interface {
	Generate(ctx context.Context, message, personaID string, language chat.Language) (string, error)
}

// SendResult reports the outcome of one dispatch attempt. Ignored is set for
// the silent rejections: empty input or a send already in flight.
type SendResult struct {
	Ignored     bool
	UserMessage chat.Message
	Reply       chat.Message
}

// Controller orchestrates one session's send-cycles: optimistic append,
// non-blocking durable patch, inference call, rollback on failure, and
// summarization scheduling. At most one send is in flight per session;
// concurrent attempts are rejected, not queued.
type Controller struct {
	sessionID  string
	userID     string
	isGuest    bool
	guestLimit int
	createdAt  time.Time

	timeline   *Timeline
	sessions   *store.SessionStore
	generator  Generator
	resolver   *Resolver
	summarizer *Summarizer
	logger     *zap.Logger

	inFlight atomic.Bool

	mu           sync.Mutex
	selection    Selection
	hasSelection bool
	summary      string

	watchMu     sync.Mutex
	watchers    map[uint64]chan []chat.Message
	nextWatch   uint64
	unsubscribe store.Unsubscribe
}

func newController(sess chat.Session, user User, deps controllerDeps) *Controller {
	return &Controller{
		sessionID:  sess.ID,
		userID:     user.ID,
		isGuest:    user.Guest,
		guestLimit: deps.guestLimit,
		createdAt:  sess.CreatedAt,
		timeline:   NewTimeline(),
		sessions:   deps.sessions,
		generator:  deps.generator,
		resolver:   deps.resolver,
		summarizer: deps.summarizer,
		logger:     deps.logger.With(zap.String("chatId", sess.ID)),
		summary:    sess.Summary,
		watchers:   make(map[uint64]chan []chat.Message),
	}
}

type controllerDeps struct {
	sessions   *store.SessionStore
	generator  Generator
	resolver   *Resolver
	summarizer *Summarizer
	logger     *zap.Logger
	guestLimit int
}

// Send runs one dispatch cycle for rawText.
func (c *Controller) Send(ctx context.Context, rawText string) (*SendResult, error) {
	if strings.TrimSpace(rawText) == "" {
		return &SendResult{Ignored: true}, nil
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return &SendResult{Ignored: true}, nil
	}
	// Terminal step: the in-flight flag clears only here.
	defer c.inFlight.Store(false)

	sel, err := c.resolve()
	if err != nil {
		return nil, err
	}
	if err := CheckAllowed(c.isGuest, c.timeline.UserTurns(), c.guestLimit); err != nil {
		return nil, err
	}

	userMsg := chat.Message{
		Role:      chat.RoleUser,
		Text:      rawText,
		Language:  sel.Language,
		Timestamp: time.Now().UTC(),
	}
	token := c.timeline.AppendOptimistic(userMsg)
	c.broadcast()
	c.patchAsync(userMsg)

	reply, err := c.generator.Generate(ctx, rawText, sel.Persona, sel.Language)
	if err != nil {
		// Roll the visible timeline back. The earlier non-blocking patch may
		// already have landed; that durable remainder is an accepted, documented
		// inconsistency window, never a compensating delete.
		c.timeline.Rollback(token)
		c.broadcast()
		c.logger.Warn("inference call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	assistantMsg := chat.Message{
		Role:      chat.RoleAssistant,
		Text:      reply,
		Language:  sel.Language,
		Persona:   sel.Persona,
		Timestamp: time.Now().UTC(),
	}
	c.timeline.AppendOptimistic(assistantMsg)
	c.broadcast()
	c.patchAsync(assistantMsg)

	c.summarizer.OnTurnCountChanged(c.userID, c.sessionID, c.timeline.Len())

	return &SendResult{UserMessage: userMsg, Reply: assistantMsg}, nil
}

// patchAsync issues the durable append without blocking the send cycle.
// Exactly one patch per appended turn.
func (c *Controller) patchAsync(msg chat.Message) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := c.sessions.AppendMessage(ctx, c.userID, c.sessionID, msg); err != nil {
			c.logger.Warn("durable append failed", zap.Error(err))
		}
	}()
}

func (c *Controller) resolve() (Selection, error) {
	c.mu.Lock()
	sel, ok := c.selection, c.hasSelection
	c.mu.Unlock()

	return c.resolver.Resolve(func() (Selection, bool) { return sel, ok })
}

// ApplyDefaults seeds the session's selection from stored user settings. It
// runs once, at creation; once any selection exists, later settings changes
// only seed new sessions.
func (c *Controller) ApplyDefaults(st settings.UserSettings) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasSelection {
		return
	}
	c.selection = c.resolver.FromSettings(st)
	c.hasSelection = true
}

// SelectPersona records an explicit in-session persona choice.
func (c *Controller) SelectPersona(id string) error {
	if err := c.resolver.ValidatePersona(id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasSelection {
		c.selection = c.resolver.Fallback()
		c.hasSelection = true
	}
	c.selection.Persona = id
	return nil
}

// SelectLanguage records an explicit in-session language choice.
func (c *Controller) SelectLanguage(lang chat.Language) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasSelection {
		c.selection = c.resolver.Fallback()
		c.hasSelection = true
	}
	c.selection.Language = lang
}

// Snapshot renders the session as the UI reads it: the merged timeline plus
// the latest summary.
func (c *Controller) Snapshot() chat.Session {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()

	return chat.Session{
		ID:        c.sessionID,
		CreatedAt: c.createdAt,
		Messages:  c.timeline.Messages(),
		Summary:   summary,
	}
}

// applyRemote folds a durable snapshot into the timeline. The durable snapshot
// is authoritative and supersedes optimistic entries for the same turns.
func (c *Controller) applyRemote(sess chat.Session) {
	c.timeline.Apply(sess.Messages)

	c.mu.Lock()
	if sess.Summary != "" {
		c.summary = sess.Summary
	}
	c.mu.Unlock()

	c.broadcast()
}

// Watch registers a live feed of merged timeline snapshots. Slow consumers
// only ever miss intermediate states, never the latest one.
func (c *Controller) Watch() (<-chan []chat.Message, func()) {
	ch := make(chan []chat.Message, 1)
	ch <- c.timeline.Messages()

	c.watchMu.Lock()
	c.nextWatch++
	id := c.nextWatch
	c.watchers[id] = ch
	c.watchMu.Unlock()

	return ch, func() {
		c.watchMu.Lock()
		defer c.watchMu.Unlock()
		delete(c.watchers, id)
	}
}

func (c *Controller) broadcast() {
	snapshot := c.timeline.Messages()

	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	for _, ch := range c.watchers {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func (c *Controller) close() {
	c.watchMu.Lock()
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.watchMu.Unlock()

	if unsub != nil {
		unsub()
	}
}
