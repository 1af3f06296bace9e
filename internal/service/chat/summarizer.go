package chat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mukoma-ai/backend/internal/model/chat"
	"github.com/mukoma-ai/backend/internal/service/ai"
	"github.com/mukoma-ai/backend/internal/store"
)

// summarizeEvery fires a pass on every fifth turn once a conversation has more
// than two.
const summarizeEvery = 5

// SummaryBackend condenses a mapped history into a short label.
type SummaryBackend interface {
	Summarize(ctx context.Context, history []ai.HistoryEntry) (string, error)
}

// Summarizer schedules background history condensation. Passes are best-effort:
// they read the durable snapshot rather than the optimistic view, never block
// the surrounding conversation, and swallow their own failures. Overlapping
// passes resolve last-write-wins on the summary field.
type Summarizer struct {
	backend  SummaryBackend
	sessions *store.SessionStore
	logger   *zap.Logger
	slots    chan struct{}
	wg       sync.WaitGroup
	timeout  time.Duration
}

// NewSummarizer bounds the background task set at maxConcurrent.
func NewSummarizer(backend SummaryBackend, sessions *store.SessionStore, logger *zap.Logger, maxConcurrent int) *Summarizer {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Summarizer{
		backend:  backend,
		sessions: sessions,
		logger:   logger,
		slots:    make(chan struct{}, maxConcurrent),
		timeout:  60 * time.Second,
	}
}

// shouldSummarize is the firing condition on the total turn count.
func shouldSummarize(total int) bool {
	return total > 2 && total%summarizeEvery == 0
}

// OnTurnCountChanged fires a background pass when the total crosses a firing
// point. When the bounded task set is full the pass is skipped; a later firing
// point will cover the missed history.
func (s *Summarizer) OnTurnCountChanged(userID, chatID string, total int) {
	if !shouldSummarize(total) {
		return
	}

	select {
	case s.slots <- struct{}{}:
	default:
		s.logger.Warn("summarization skipped, background set full",
			zap.String("chatId", chatID))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.slots }()
		s.run(userID, chatID)
	}()
}

// Wait blocks until in-flight passes finish. Used by shutdown and tests.
func (s *Summarizer) Wait() {
	s.wg.Wait()
}

func (s *Summarizer) run(userID, chatID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	sess, err := s.sessions.Load(ctx, userID, chatID)
	if err != nil {
		s.logger.Warn("summarization read failed", zap.String("chatId", chatID), zap.Error(err))
		return
	}
	if len(sess.Messages) <= 2 {
		return
	}

	summary, err := s.backend.Summarize(ctx, mapHistory(sess.Messages))
	if err != nil {
		s.logger.Warn("summarization call failed", zap.String("chatId", chatID), zap.Error(err))
		return
	}

	if err := s.sessions.SetSummary(ctx, userID, chatID, summary); err != nil {
		s.logger.Warn("summary write failed", zap.String("chatId", chatID), zap.Error(err))
	}
}

func mapHistory(msgs []chat.Message) []ai.HistoryEntry {
	history := make([]ai.HistoryEntry, 0, len(msgs))
	for _, msg := range msgs {
		history = append(history, ai.HistoryEntry{
			Role:            msg.Role,
			Text:            msg.Text,
			Language:        msg.Language,
			TimestampMillis: msg.Timestamp.UnixMilli(),
		})
	}
	return history
}
