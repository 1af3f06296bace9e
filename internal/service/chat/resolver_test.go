package chat_test

import (
	"errors"
	"testing"

	chatModel "github.com/mukoma-ai/backend/internal/model/chat"
	"github.com/mukoma-ai/backend/internal/model/persona"
	"github.com/mukoma-ai/backend/internal/model/settings"
	chatservice "github.com/mukoma-ai/backend/internal/service/chat"
)

func TestResolverFallsBackToSystemDefaults(t *testing.T) {
	r := chatservice.NewResolver(persona.NewMemoryStore(persona.Seed()))

	sel, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if sel.Persona != persona.FallbackID || sel.Language != chatModel.LanguageShona {
		t.Fatalf("unexpected fallback: %+v", sel)
	}
}

func TestResolverExplicitSourceWins(t *testing.T) {
	r := chatservice.NewResolver(persona.NewMemoryStore(persona.Seed()))

	explicit := chatservice.Selection{Persona: "tateguru", Language: chatModel.LanguageEnglish}
	sel, err := r.Resolve(
		func() (chatservice.Selection, bool) { return explicit, true },
		func() (chatservice.Selection, bool) {
			return chatservice.Selection{Persona: "auntie", Language: chatModel.LanguageNdebele}, true
		},
	)
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if sel != explicit {
		t.Fatalf("explicit source lost: %+v", sel)
	}
}

func TestResolverSkipsEmptySources(t *testing.T) {
	r := chatservice.NewResolver(persona.NewMemoryStore(persona.Seed()))

	stored := r.FromSettings(settings.UserSettings{Language: chatModel.LanguageEnglish, DefaultPersona: "tateguru"})
	sel, err := r.Resolve(
		func() (chatservice.Selection, bool) { return chatservice.Selection{}, false },
		func() (chatservice.Selection, bool) { return stored, true },
	)
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if sel.Persona != "tateguru" || sel.Language != chatModel.LanguageEnglish {
		t.Fatalf("stored defaults lost: %+v", sel)
	}
}

func TestResolverUnknownPersonaAborts(t *testing.T) {
	r := chatservice.NewResolver(persona.NewMemoryStore(persona.Seed()))

	_, err := r.Resolve(func() (chatservice.Selection, bool) {
		return chatservice.Selection{Persona: "non-existent", Language: chatModel.LanguageShona}, true
	})
	if !errors.Is(err, chatservice.ErrPersonaNotFound) {
		t.Fatalf("expected ErrPersonaNotFound, got %v", err)
	}
}

func TestFromSettingsFillsMissingFields(t *testing.T) {
	r := chatservice.NewResolver(persona.NewMemoryStore(persona.Seed()))

	sel := r.FromSettings(settings.UserSettings{DefaultPersona: "auntie"})
	if sel.Persona != "auntie" || sel.Language != chatModel.LanguageShona {
		t.Fatalf("partial settings resolved wrong: %+v", sel)
	}
}
