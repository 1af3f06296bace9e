package chat

import (
	"fmt"

	"github.com/mukoma-ai/backend/internal/model/chat"
	"github.com/mukoma-ai/backend/internal/model/persona"
	"github.com/mukoma-ai/backend/internal/model/settings"
)

// Selection is the effective persona/language pair for a send attempt.
type Selection struct {
	Persona  string
	Language chat.Language
}

// Resolver collapses the ordered sources of a selection: the explicit
// in-session choice, the user's stored defaults (seeding new sessions only;
// the caller decides whether to offer them), then the hard system fallback.
// The winning persona must exist in the catalog.
type Resolver struct {
	catalog  persona.Store
	fallback Selection
}

// NewResolver builds a resolver over the given catalog.
func NewResolver(catalog persona.Store) *Resolver {
	return &Resolver{
		catalog: catalog,
		fallback: Selection{
			Persona:  persona.FallbackID,
			Language: chat.LanguageShona,
		},
	}
}

// Fallback exposes the hard system default pair.
func (r *Resolver) Fallback() Selection {
	return r.fallback
}

// FromSettings turns stored user defaults into a selection, filling missing
// fields from the system fallback.
func (r *Resolver) FromSettings(st settings.UserSettings) Selection {
	sel := r.fallback
	if st.DefaultPersona != "" {
		sel.Persona = st.DefaultPersona
	}
	if st.Language != "" {
		sel.Language = st.Language
	}
	return sel
}

// Resolve reduces the sources left-to-right, highest precedence first, and
// validates the winning persona against the catalog. A missing persona aborts
// the attempt before any network call.
func (r *Resolver) Resolve(sources ...func() (Selection, bool)) (Selection, error) {
	sel := r.fallback
	for _, source := range sources {
		if candidate, ok := source(); ok {
			sel = candidate
			break
		}
	}

	if _, ok := r.catalog.FindByID(sel.Persona); !ok {
		return Selection{}, fmt.Errorf("%w: %s", ErrPersonaNotFound, sel.Persona)
	}
	return sel, nil
}

// ValidatePersona checks a persona id against the catalog.
func (r *Resolver) ValidatePersona(id string) error {
	if _, ok := r.catalog.FindByID(id); !ok {
		return fmt.Errorf("%w: %s", ErrPersonaNotFound, id)
	}
	return nil
}
