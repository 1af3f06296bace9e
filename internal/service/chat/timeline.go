package chat

import (
	"sort"
	"sync"

	"github.com/mukoma-ai/backend/internal/model/chat"
)

// Timeline is the authoritative in-memory view of one session's turns, merged
// from the durable subscription feed (confirmed) and locally-queued optimistic
// turns not yet observed in a durable snapshot (pending). Confirmed entries
// always win over a pending entry describing the same logical turn.
type Timeline struct {
	mu        sync.RWMutex
	confirmed []chat.Message
	pending   []pendingTurn
	nextToken uint64
}

type pendingTurn struct {
	token uint64
	msg   chat.Message
}

// NewTimeline returns an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{}
}

// Apply replaces the confirmed portion with the latest durable snapshot,
// sorted by timestamp ascending. Pending turns whose role/text pair now
// appears in the confirmed set are dropped so the merged view never shows a
// turn twice.
func (t *Timeline) Apply(remote []chat.Message) {
	confirmed := append([]chat.Message(nil), remote...)
	sort.SliceStable(confirmed, func(i, j int) bool {
		return confirmed[i].Timestamp.Before(confirmed[j].Timestamp)
	})

	t.mu.Lock()
	defer t.mu.Unlock()

	t.confirmed = confirmed
	kept := t.pending[:0]
	for _, p := range t.pending {
		if !containsTurn(confirmed, p.msg) {
			kept = append(kept, p)
		}
	}
	t.pending = kept
}

// AppendOptimistic inserts a locally-timestamped turn, immediately visible to
// readers. The returned token identifies the turn for Rollback, so textually
// identical turns stay distinguishable.
func (t *Timeline) AppendOptimistic(msg chat.Message) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextToken++
	t.pending = append(t.pending, pendingTurn{token: t.nextToken, msg: msg})
	return t.nextToken
}

// Rollback removes a previously appended optimistic turn, restoring the
// timeline to its pre-append state. It reports whether the turn was still
// pending.
func (t *Timeline) Rollback(token uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, p := range t.pending {
		if p.token == token {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Messages returns the merged view in non-decreasing timestamp order. Ties
// keep insertion order, confirmed turns first.
func (t *Timeline) Messages() []chat.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	merged := make([]chat.Message, 0, len(t.confirmed)+len(t.pending))
	merged = append(merged, t.confirmed...)
	for _, p := range t.pending {
		merged = append(merged, p.msg)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}

// Len is the total turn count of the merged view.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.confirmed) + len(t.pending)
}

// UserTurns counts turns authored by the user in the merged view; this is the
// quota input.
func (t *Timeline) UserTurns() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, msg := range t.confirmed {
		if msg.Role == chat.RoleUser {
			count++
		}
	}
	for _, p := range t.pending {
		if p.msg.Role == chat.RoleUser {
			count++
		}
	}
	return count
}

// containsTurn matches on the {role, text} pair only, against any confirmed
// turn. Re-sending text that is already confirmed therefore hides the new
// pending turn until its own durable echo arrives; the window closes with the
// next snapshot.
func containsTurn(msgs []chat.Message, target chat.Message) bool {
	for _, msg := range msgs {
		if msg.Role == target.Role && msg.Text == target.Text {
			return true
		}
	}
	return false
}
