package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mukoma-ai/backend/internal/config"
	"github.com/mukoma-ai/backend/internal/handler"
	"github.com/mukoma-ai/backend/internal/model/persona"
	"github.com/mukoma-ai/backend/internal/service/ai"
	chatservice "github.com/mukoma-ai/backend/internal/service/chat"
	"github.com/mukoma-ai/backend/internal/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded, using system environment", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	documents := newDocumentStore(ctx, cfg.Store, logger)
	sessions := store.NewSessionStore(documents, logger)
	settingsStore := store.NewSettingsStore(documents)

	personaStore := persona.NewMemoryStore(persona.Seed())

	aiClient := ai.NewClient(ai.Config{
		InferenceURL: cfg.AI.InferenceURL,
		SummarizeURL: cfg.AI.SummarizeURL,
		DefaultsURL:  cfg.AI.DefaultsURL,
		Timeout:      cfg.AI.Timeout,
	}, logger)

	summarizer := chatservice.NewSummarizer(aiClient, sessions, logger, cfg.Chat.SummarizeConcurrency)
	chatSvc := chatservice.NewService(sessions, settingsStore, personaStore, aiClient, summarizer, logger, cfg.Chat.GuestMessageLimit)
	defer chatSvc.Close()

	router := handler.NewRouter(handler.Deps{
		Personas:  personaStore,
		ChatSvc:   chatSvc,
		Settings:  settingsStore,
		Defaults:  aiClient,
		JWTSecret: cfg.Auth.JWTSecret,
		Logger:    logger,
	})

	startServer(ctx, cfg.Server, router, logger)
}

// newDocumentStore picks the Redis-backed store when configured, otherwise the
// in-memory one for credential-less development.
func newDocumentStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) store.Store {
	if !cfg.Enabled() {
		logger.Info("REDIS_ADDR not set, using in-memory document store")
		return store.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, falling back to in-memory document store", zap.Error(err))
		return store.NewMemoryStore()
	}

	logger.Info("connected to redis document store", zap.String("addr", cfg.RedisAddr))
	return store.NewRedisStore(client)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("mukoma.ai backend listening", zap.String("addr", serverCfg.Addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
