// Package openai generates podcast scripts through an OpenAI-compatible chat
// completions endpoint.
package openai

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

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"podcastai/internal/config"
	"podcastai/internal/domain"
)

const maxErrorBody = 512

var errTransport = errors.New("execute request")

type Generator struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	model          string
	wordsPerMinute int

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	sleep          func(ctx context.Context, d time.Duration) error

	logger *slog.Logger
}

func New(cfg config.GeneratorConfig, logger *slog.Logger) *Generator {
	maxAttempts := cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Generator{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		apiKey:         strings.TrimSpace(cfg.APIKey),
		model:          cfg.Model,
		wordsPerMinute: cfg.WordsPerMinute,
		maxAttempts:    maxAttempts,
		initialBackoff: cfg.Retry.InitialBackoff,
		maxBackoff:     cfg.Retry.MaxBackoff,
		sleep:          sleepContext,
		logger:         logger.With("component", "generator"),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// statusError is a non-200 reply. 429 and 5xx are retried.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %d: %s", e.StatusCode, e.Body)
}

func (e *statusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Generate asks the model for a script of roughly minutes*wordsPerMinute words.
func (g *Generator) Generate(ctx context.Context, topic string, style domain.Style, lang string, minutes int) (string, error) {
	payload := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(style, lang, minutes*g.wordsPerMinute)},
			{Role: "user", Content: "Topic: " + topic},
		},
		Temperature: 0.7,
	}

	var (
		script string
		err    error
	)
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		script, err = g.doRequest(ctx, payload)
		if err == nil {
			return script, nil
		}
		if !retryable(err) || attempt == g.maxAttempts {
			break
		}

		backoff := g.calculateBackoff(attempt)
		g.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if err := g.sleep(ctx, backoff); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailure, err)
}

func (g *Generator) doRequest(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &statusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("empty choices")
	}

	script := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if script == "" {
		return "", fmt.Errorf("empty content (finish_reason=%q)", decoded.Choices[0].FinishReason)
	}
	return script, nil
}

// retryable reports transport failures and 429/5xx replies. Context errors
// are final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	return errors.Is(err, errTransport)
}

func (g *Generator) calculateBackoff(attempt int) time.Duration {
	backoff := g.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if g.maxBackoff > 0 && backoff > g.maxBackoff {
		backoff = g.maxBackoff
	}
	return backoff
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func systemPrompt(style domain.Style, lang string, words int) string {
	tone := "a relaxed, conversational tone, as if talking to a friend"
	if style == domain.StyleFormal {
		tone = "a formal, well-structured tone suited to a briefing"
	}

	var sb strings.Builder
	sb.WriteString("You write scripts for a single-host audio podcast. ")
	fmt.Fprintf(&sb, "Write in %s using %s. ", languageName(lang), tone)
	fmt.Fprintf(&sb, "Aim for about %d words. ", words)
	sb.WriteString("Return only the spoken script: no titles, stage directions, speaker labels or markdown.")
	return sb.String()
}

func languageName(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return lang
}
