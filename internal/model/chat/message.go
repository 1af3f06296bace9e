package chat

import "time"

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Language is the language a turn was produced or requested in.
type Language string

const (
	LanguageShona   Language = "Shona"
	LanguageEnglish Language = "English"
	LanguageNdebele Language = "Ndebele"
)

// ParseLanguage maps a wire value onto a known language.
func ParseLanguage(raw string) (Language, bool) {
	switch Language(raw) {
	case LanguageShona, LanguageEnglish, LanguageNdebele:
		return Language(raw), true
	}
	return "", false
}

// Message is one conversational turn. Persona is set on assistant turns only.
// Durable turns get their Timestamp from the store at write time; an optimistic
// local turn carries a local clock reading until the durable write is observed.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Language  Language  `json:"language"`
	Persona   string    `json:"persona,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
