// Package gemini calls the Gemini generateContent API to produce snippet
// text.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash"

	defaultMaxTokens = 4096
)

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("gemini API key not configured")

// ErrEmptyContent is returned when the model answered without any text.
var ErrEmptyContent = errors.New("gemini returned no content")

// Config configures a Generator. Zero values select the defaults.
type Config struct {
	APIKey string
	Model  string

	// BaseURL is overridable for tests.
	BaseURL string

	// RatePerMinute bounds outgoing calls. Zero disables the limit.
	RatePerMinute float64

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Generator implements domain.Generator against the Gemini REST API.
type Generator struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Generator from cfg.
func New(cfg Config) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerMinute/60), 1)
	}

	return &Generator{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  cfg.HTTPClient,
		limiter: limiter,
		logger:  cfg.Logger,
	}
}

// Available reports whether an API key is configured.
func (g *Generator) Available() bool {
	return g.apiKey != ""
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	ModelVersion string `json:"modelVersion"`
}

// Generate sends prompt as a single user turn and returns the concatenated
// text of the first candidate.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if !g.Available() {
		return "", ErrNotConfigured
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for rate limiter: %w", err)
	}

	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{MaxOutputTokens: defaultMaxTokens},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		g.logger.Error("gemini API error", "status", resp.StatusCode, "body", string(respBody))
		return "", fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(result.Candidates) == 0 {
		return "", ErrEmptyContent
	}

	candidate := result.Candidates[0]
	var sb strings.Builder
	for _, p := range candidate.Content.Parts {
		sb.WriteString(p.Text)
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyContent
	}

	model := g.model
	if result.ModelVersion != "" {
		model = result.ModelVersion
	}
	if candidate.FinishReason == "MAX_TOKENS" {
		g.logger.Warn("gemini response truncated", "model", model, "max_tokens", defaultMaxTokens)
	}
	g.logger.Info("gemini response",
		"model", model,
		"content_length", len(text),
		"finish_reason", candidate.FinishReason,
		"duration", time.Since(start),
	)

	return text, nil
}
