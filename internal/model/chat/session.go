package chat

import "time"

// DefaultSummary labels a session until the first summarization pass lands.
const DefaultSummary = "New Chat"

// Session is a conversation container. The ID is generated client-side at
// creation so navigation can happen before the durable record exists.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages"`
	Summary   string    `json:"summary,omitempty"`
}
