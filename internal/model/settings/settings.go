package settings

import (
	"github.com/mukoma-ai/backend/internal/model/chat"
	"github.com/mukoma-ai/backend/internal/model/persona"
)

// UserSettings holds per-user defaults. They seed brand-new sessions only and
// never override a selection a conversation already carries. Theme is carried
// through for the presentation layer; the chat core does not read it.
type UserSettings struct {
	Language       chat.Language `json:"language"`
	DefaultPersona string        `json:"defaultPersona"`
	Theme          string        `json:"theme,omitempty"`
}

// SystemDefaults is the hard-coded fallback at the bottom of the resolution
// chain.
func SystemDefaults() UserSettings {
	return UserSettings{
		Language:       chat.LanguageShona,
		DefaultPersona: persona.FallbackID,
		Theme:          "light",
	}
}
