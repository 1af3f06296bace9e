// Package ai implements the HTTP clients for the external language-generation
// and summarization backends. Both are plain JSON request/reply calls; this
// service owns no prompt composition beyond forwarding the persona id.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mukoma-ai/backend/internal/model/chat"
	"github.com/mukoma-ai/backend/internal/model/settings"
)

// FallbackReply is substituted when a successful inference response carries
// neither a reply nor a response field.
const FallbackReply = "Sorry, something went wrong talking to the Mukoma.ai backend."

// Config carries the backend endpoints.
type Config struct {
	InferenceURL string
	SummarizeURL string
	DefaultsURL  string
	Timeout      time.Duration
}

// Client talks to the inference and summarization backends.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a client with a sane default timeout.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// HistoryEntry is one turn as the summarization backend expects it.
type HistoryEntry struct {
	Role            chat.Role     `json:"role"`
	Text            string        `json:"text"`
	Language        chat.Language `json:"language"`
	TimestampMillis int64         `json:"timestampMillis"`
}

// Generate sends one user message for a persona/language pair and returns the
// reply text. A transport failure or non-2xx status is a hard failure; a
// malformed success payload is recovered with FallbackReply, never an error.
func (c *Client) Generate(ctx context.Context, message, personaID string, language chat.Language) (string, error) {
	payload := map[string]string{
		"message":  message,
		"persona":  personaID,
		"language": string(language),
	}

	var body struct {
		Reply    *string `json:"reply"`
		Response *string `json:"response"`
	}
	if err := c.post(ctx, c.cfg.InferenceURL, payload, &body); err != nil {
		return "", err
	}

	switch {
	case body.Reply != nil:
		return *body.Reply, nil
	case body.Response != nil:
		return *body.Response, nil
	default:
		c.logger.Warn("inference response missing reply fields, using fallback")
		return FallbackReply, nil
	}
}

// Summarize condenses a chat history into a short label.
func (c *Client) Summarize(ctx context.Context, history []HistoryEntry) (string, error) {
	payload := map[string]any{"chatHistory": history}

	var body struct {
		Summary string `json:"summary"`
	}
	if err := c.post(ctx, c.cfg.SummarizeURL, payload, &body); err != nil {
		return "", err
	}
	if body.Summary == "" {
		return "", fmt.Errorf("summarize backend returned an empty summary")
	}
	return body.Summary, nil
}

// RecommendDefaults asks the backend for first-run profile settings. Callers
// fall back to settings.SystemDefaults when this fails.
func (c *Client) RecommendDefaults(ctx context.Context) (settings.UserSettings, error) {
	var body struct {
		Theme          string `json:"theme"`
		Language       string `json:"language"`
		DefaultPersona string `json:"defaultPersona"`
	}
	if err := c.post(ctx, c.cfg.DefaultsURL, map[string]any{}, &body); err != nil {
		return settings.UserSettings{}, err
	}

	language, ok := chat.ParseLanguage(body.Language)
	if !ok || body.DefaultPersona == "" {
		return settings.UserSettings{}, fmt.Errorf("defaults backend returned an unusable profile")
	}
	return settings.UserSettings{
		Language:       language,
		DefaultPersona: body.DefaultPersona,
		Theme:          body.Theme,
	}, nil
}

func (c *Client) post(ctx context.Context, url string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	// A success status with an undecodable body counts as malformed, not
	// failed; leave out zeroed so the caller applies its fallback.
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Warn("undecodable backend response body", zap.Error(err))
	}
	return nil
}
