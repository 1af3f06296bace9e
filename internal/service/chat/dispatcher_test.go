package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	chatModel "github.com/mukoma-ai/backend/internal/model/chat"
	"github.com/mukoma-ai/backend/internal/model/persona"
	"github.com/mukoma-ai/backend/internal/model/settings"
	"github.com/mukoma-ai/backend/internal/service/ai"
	chatservice "github.com/mukoma-ai/backend/internal/service/chat"
	"github.com/mukoma-ai/backend/internal/store"
)

type generateCall struct {
	message  string
	persona  string
	language chatModel.Language
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls []generateCall
	reply string
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, message, personaID string, language chatModel.Language) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, generateCall{message: message, persona: personaID, language: language})
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeGenerator) lastCall() generateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeSummaryBackend struct {
	mu      sync.Mutex
	calls   [][]ai.HistoryEntry
	summary string
	err     error
}

func (f *fakeSummaryBackend) Summarize(_ context.Context, history []ai.HistoryEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, history)
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

func (f *fakeSummaryBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// dropMessagePatches swallows durable message appends so dispatch tests see a
// purely optimistic timeline, free of the background patch race.
type dropMessagePatches struct {
	store.Store
}

func (d dropMessagePatches) Set(ctx context.Context, path string, patch store.Document, merge bool) error {
	if _, ok := patch["messages"].(store.ArrayUnion); ok {
		return nil
	}
	return d.Store.Set(ctx, path, patch, merge)
}

// blockingGenerator parks inside Generate until released, so tests can hold a
// send in flight.
type blockingGenerator struct {
	entered chan struct{}
	release chan struct{}
	reply   string
}

func newBlockingGenerator(reply string) *blockingGenerator {
	return &blockingGenerator{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
		reply:   reply,
	}
}

func (b *blockingGenerator) Generate(context.Context, string, string, chatModel.Language) (string, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.reply, nil
}

type testEnv struct {
	svc      *chatservice.Service
	settings *store.SettingsStore
	backend  *fakeSummaryBackend
}

func newTestEnv(t *testing.T, gen chatservice.Generator) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	documents := dropMessagePatches{Store: store.NewMemoryStore()}
	sessions := store.NewSessionStore(documents, logger)
	settingsStore := store.NewSettingsStore(documents)
	catalog := persona.NewMemoryStore(persona.Seed())
	backend := &fakeSummaryBackend{summary: "condensed"}
	summarizer := chatservice.NewSummarizer(backend, sessions, logger, 2)

	svc := chatservice.NewService(sessions, settingsStore, catalog, gen, summarizer, logger, 5)
	t.Cleanup(svc.Close)

	return &testEnv{svc: svc, settings: settingsStore, backend: backend}
}

func TestSendAppendsUserAndAssistantTurns(t *testing.T) {
	gen := &fakeGenerator{reply: "mhoro shamwari"}
	env := newTestEnv(t, gen)
	ctx := context.Background()
	user := chatservice.User{ID: "guest:1", Guest: true}

	sess, err := env.svc.CreateSession(ctx, user)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	result, err := env.svc.Send(ctx, user, sess.ID, "mhoro")
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if result.Ignored {
		t.Fatal("send unexpectedly ignored")
	}
	if result.Reply.Text != "mhoro shamwari" || result.Reply.Role != chatModel.RoleAssistant {
		t.Fatalf("unexpected reply: %+v", result.Reply)
	}
	if result.Reply.Persona != persona.FallbackID {
		t.Fatalf("assistant turn missing persona: %+v", result.Reply)
	}

	view, err := env.svc.Session(ctx, user, sess.ID)
	if err != nil {
		t.Fatalf("Session err: %v", err)
	}
	if len(view.Messages) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(view.Messages))
	}
	if view.Messages[0].Role != chatModel.RoleUser || view.Messages[1].Role != chatModel.RoleAssistant {
		t.Fatalf("turns out of order: %+v", view.Messages)
	}
	if view.Messages[1].Timestamp.Before(view.Messages[0].Timestamp) {
		t.Fatal("timestamps not non-decreasing")
	}
}

func TestSendInferenceFailureRollsBack(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("backend down")}
	env := newTestEnv(t, gen)
	ctx := context.Background()
	user := chatservice.User{ID: "guest:1", Guest: true}

	sess, err := env.svc.CreateSession(ctx, user)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	_, err = env.svc.Send(ctx, user, sess.ID, "hello")
	if !errors.Is(err, chatservice.ErrInference) {
		t.Fatalf("expected ErrInference, got %v", err)
	}

	view, _ := env.svc.Session(ctx, user, sess.ID)
	if len(view.Messages) != 0 {
		t.Fatalf("rollback left turns behind: %+v", view.Messages)
	}

	// The in-flight flag must clear so a retry can go through.
	gen.mu.Lock()
	gen.err = nil
	gen.reply = "recovered"
	gen.mu.Unlock()

	result, err := env.svc.Send(ctx, user, sess.ID, "hello")
	if err != nil || result.Ignored {
		t.Fatalf("retry after failure blocked: %v %+v", err, result)
	}
}

func TestSendEmptyTextIsNoOp(t *testing.T) {
	gen := &fakeGenerator{reply: "never"}
	env := newTestEnv(t, gen)
	ctx := context.Background()
	user := chatservice.User{ID: "guest:1", Guest: true}

	sess, _ := env.svc.CreateSession(ctx, user)

	result, err := env.svc.Send(ctx, user, sess.ID, "   \t ")
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if !result.Ignored {
		t.Fatal("expected whitespace send to be ignored")
	}
	if gen.callCount() != 0 {
		t.Fatal("whitespace send reached the inference backend")
	}

	view, _ := env.svc.Session(ctx, user, sess.ID)
	if len(view.Messages) != 0 {
		t.Fatalf("whitespace send mutated the timeline: %+v", view.Messages)
	}
}

func TestSendConcurrentAttemptRejected(t *testing.T) {
	gen := newBlockingGenerator("done")
	env := newTestEnv(t, gen)
	ctx := context.Background()
	user := chatservice.User{ID: "guest:1", Guest: true}

	sess, _ := env.svc.CreateSession(ctx, user)

	type outcome struct {
		result *chatservice.SendResult
		err    error
	}
	firstDone := make(chan outcome, 1)
	go func() {
		result, err := env.svc.Send(ctx, user, sess.ID, "first")
		firstDone <- outcome{result: result, err: err}
	}()

	// Wait until the first send is parked inside the backend call.
	<-gen.entered

	second, err := env.svc.Send(ctx, user, sess.ID, "second")
	if err != nil {
		t.Fatalf("concurrent Send err: %v", err)
	}
	if !second.Ignored {
		t.Fatal("expected concurrent send to be rejected, not queued")
	}

	view, _ := env.svc.Session(ctx, user, sess.ID)
	if len(view.Messages) != 1 || view.Messages[0].Text != "first" {
		t.Fatalf("rejected send mutated the timeline: %+v", view.Messages)
	}

	close(gen.release)
	first := <-firstDone
	if first.err != nil || first.result.Ignored {
		t.Fatalf("in-flight send broken by rejected one: %v %+v", first.err, first.result)
	}

	view, _ = env.svc.Session(ctx, user, sess.ID)
	if len(view.Messages) != 2 {
		t.Fatalf("expected 2 turns after the first send completed, got %d", len(view.Messages))
	}
}

func TestSendGuestQuota(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	env := newTestEnv(t, gen)
	ctx := context.Background()
	user := chatservice.User{ID: "guest:1", Guest: true}

	sess, _ := env.svc.CreateSession(ctx, user)

	for i := 0; i < 5; i++ {
		if _, err := env.svc.Send(ctx, user, sess.ID, "turn"); err != nil {
			t.Fatalf("send %d err: %v", i, err)
		}
	}

	_, err := env.svc.Send(ctx, user, sess.ID, "one too many")
	if !errors.Is(err, chatservice.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if gen.callCount() != 5 {
		t.Fatalf("denied send reached the backend: %d calls", gen.callCount())
	}

	view, _ := env.svc.Session(ctx, user, sess.ID)
	if len(view.Messages) != 10 {
		t.Fatalf("denied send mutated the timeline: %d turns", len(view.Messages))
	}
}

func TestSendAuthenticatedUserBeyondGuestCap(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	env := newTestEnv(t, gen)
	ctx := context.Background()
	user := chatservice.User{ID: "u-auth", Guest: false}

	sess, _ := env.svc.CreateSession(ctx, user)

	for i := 0; i < 7; i++ {
		if _, err := env.svc.Send(ctx, user, sess.ID, "turn"); err != nil {
			t.Fatalf("send %d err: %v", i, err)
		}
	}
}

func TestNewSessionSeededFromStoredSettings(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	env := newTestEnv(t, gen)
	ctx := context.Background()
	user := chatservice.User{ID: "u-auth", Guest: false}

	st := settings.UserSettings{Language: chatModel.LanguageEnglish, DefaultPersona: "tateguru"}
	if err := env.settings.Save(ctx, user.ID, st); err != nil {
		t.Fatalf("Save err: %v", err)
	}

	sess, _ := env.svc.CreateSession(ctx, user)
	if _, err := env.svc.Send(ctx, user, sess.ID, "hello"); err != nil {
		t.Fatalf("Send err: %v", err)
	}

	call := gen.lastCall()
	if call.persona != "tateguru" || call.language != chatModel.LanguageEnglish {
		t.Fatalf("stored defaults not applied: %+v", call)
	}
}

func TestExplicitSelectionSurvivesSettingsChanges(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	env := newTestEnv(t, gen)
	ctx := context.Background()
	user := chatservice.User{ID: "u-auth", Guest: false}

	sess, _ := env.svc.CreateSession(ctx, user)
	if err := env.svc.SelectPersona(ctx, user, sess.ID, "muzukuru"); err != nil {
		t.Fatalf("SelectPersona err: %v", err)
	}
	if err := env.svc.SelectLanguage(ctx, user, sess.ID, chatModel.LanguageNdebele); err != nil {
		t.Fatalf("SelectLanguage err: %v", err)
	}

	// A later settings save must only seed new sessions.
	st := settings.UserSettings{Language: chatModel.LanguageEnglish, DefaultPersona: "corporate_guru"}
	if err := env.settings.Save(ctx, user.ID, st); err != nil {
		t.Fatalf("Save err: %v", err)
	}

	if _, err := env.svc.Send(ctx, user, sess.ID, "ndeip"); err != nil {
		t.Fatalf("Send err: %v", err)
	}

	call := gen.lastCall()
	if call.persona != "muzukuru" || call.language != chatModel.LanguageNdebele {
		t.Fatalf("in-session selection overwritten: %+v", call)
	}
}

func TestSendUnknownDefaultPersonaFailsFast(t *testing.T) {
	gen := &fakeGenerator{reply: "never"}
	env := newTestEnv(t, gen)
	ctx := context.Background()
	user := chatservice.User{ID: "u-auth", Guest: false}

	st := settings.UserSettings{Language: chatModel.LanguageShona, DefaultPersona: "ghost"}
	if err := env.settings.Save(ctx, user.ID, st); err != nil {
		t.Fatalf("Save err: %v", err)
	}

	sess, _ := env.svc.CreateSession(ctx, user)
	_, err := env.svc.Send(ctx, user, sess.ID, "hello")
	if !errors.Is(err, chatservice.ErrPersonaNotFound) {
		t.Fatalf("expected ErrPersonaNotFound, got %v", err)
	}
	if gen.callCount() != 0 {
		t.Fatal("persona miss still reached the backend")
	}

	view, _ := env.svc.Session(ctx, user, sess.ID)
	if len(view.Messages) != 0 {
		t.Fatal("persona miss mutated the timeline")
	}
}

func TestSendUnknownSession(t *testing.T) {
	gen := &fakeGenerator{reply: "never"}
	env := newTestEnv(t, gen)
	ctx := context.Background()
	user := chatservice.User{ID: "guest:1", Guest: true}

	_, err := env.svc.Send(ctx, user, "missing", "hello")
	if !errors.Is(err, chatservice.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionOwnershipEnforced(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	env := newTestEnv(t, gen)
	ctx := context.Background()

	owner := chatservice.User{ID: "u-owner", Guest: false}
	intruder := chatservice.User{ID: "u-intruder", Guest: false}

	sess, _ := env.svc.CreateSession(ctx, owner)
	_, err := env.svc.Send(ctx, intruder, sess.ID, "mine now")
	if !errors.Is(err, chatservice.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for foreign session, got %v", err)
	}
}

func TestWatchDeliversTimelineSnapshots(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	env := newTestEnv(t, gen)
	ctx := context.Background()
	user := chatservice.User{ID: "guest:1", Guest: true}

	sess, _ := env.svc.CreateSession(ctx, user)

	feed, cancel, err := env.svc.Watch(ctx, user, sess.ID)
	if err != nil {
		t.Fatalf("Watch err: %v", err)
	}
	defer cancel()

	if initial := <-feed; len(initial) != 0 {
		t.Fatalf("expected empty initial snapshot, got %+v", initial)
	}

	if _, err := env.svc.Send(ctx, user, sess.ID, "hello"); err != nil {
		t.Fatalf("Send err: %v", err)
	}

	// A slow consumer only ever misses intermediate states; the latest
	// snapshot holds both turns.
	snapshot := <-feed
	if len(snapshot) != 2 {
		t.Fatalf("expected latest snapshot with 2 turns, got %d", len(snapshot))
	}
}
