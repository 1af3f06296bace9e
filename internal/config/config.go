package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting the service reads.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Store  StoreConfig
	Auth   AuthConfig
	Chat   ChatConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		AI:     ai,
		Store:  loadStoreConfig(),
		Auth:   loadAuthConfig(),
		Chat:   chat,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig holds the external backend endpoints.
type AIConfig struct {
	InferenceURL string
	SummarizeURL string
	DefaultsURL  string
	Timeout      time.Duration
}

func loadAIConfig() (AIConfig, error) {
	timeoutSeconds := 30
	if override, err := parseOptionalIntEnv("AI_TIMEOUT_SECONDS"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return AIConfig{}, fmt.Errorf("AI_TIMEOUT_SECONDS must be positive, got %d", *override)
		}
		timeoutSeconds = *override
	}

	return AIConfig{
		InferenceURL: getEnvOrDefault("INFERENCE_URL", "https://mukomaai-backend.onrender.com/mukoma-ai"),
		SummarizeURL: getEnvOrDefault("SUMMARIZE_URL", "https://mukomaai-backend.onrender.com/summarize-chat-history"),
		DefaultsURL:  getEnvOrDefault("DEFAULTS_URL", "https://mukomaai-backend.onrender.com/profile-defaults"),
		Timeout:      time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// StoreConfig selects the document store backend. An empty RedisAddr means the
// in-memory store.
type StoreConfig struct {
	RedisAddr     string
	RedisUsername string
	RedisPassword string
}

// Enabled reports whether a Redis backend is configured.
func (c StoreConfig) Enabled() bool {
	return c.RedisAddr != ""
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisUsername: strings.TrimSpace(os.Getenv("REDIS_USERNAME")),
		RedisPassword: strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
	}
}

// AuthConfig holds the token-verification secret. Requests without a valid
// token run as guests, so an empty secret just means everyone is a guest.
type AuthConfig struct {
	JWTSecret string
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{JWTSecret: strings.TrimSpace(os.Getenv("JWT_SECRET"))}
}

// ChatConfig tunes the conversation engine.
type ChatConfig struct {
	GuestMessageLimit    int
	SummarizeConcurrency int
}

func loadChatConfig() (ChatConfig, error) {
	limit := 5
	if override, err := parseOptionalIntEnv("GUEST_MESSAGE_LIMIT"); err != nil {
		return ChatConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ChatConfig{}, fmt.Errorf("GUEST_MESSAGE_LIMIT must be positive, got %d", *override)
		}
		limit = *override
	}

	concurrency := 4
	if override, err := parseOptionalIntEnv("SUMMARIZE_CONCURRENCY"); err != nil {
		return ChatConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ChatConfig{}, fmt.Errorf("SUMMARIZE_CONCURRENCY must be positive, got %d", *override)
		}
		concurrency = *override
	}

	return ChatConfig{GuestMessageLimit: limit, SummarizeConcurrency: concurrency}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
