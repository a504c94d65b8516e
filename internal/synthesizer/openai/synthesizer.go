// Package openai turns scripts into audio through an OpenAI-compatible speech
// endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"

	"podcastai/internal/config"
	"podcastai/internal/domain"
)

const (
	maxErrorBody   = 512
	defaultWPM     = 150
	maxAudioLength = 64 << 20
)

type Synthesizer struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	model          string
	format         string
	wordsPerMinute int
	logger         *slog.Logger
}

func New(cfg config.SynthesizerConfig, logger *slog.Logger) *Synthesizer {
	wpm := cfg.WordsPerMinute
	if wpm <= 0 {
		wpm = defaultWPM
	}
	return &Synthesizer{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		apiKey:         strings.TrimSpace(cfg.APIKey),
		model:          cfg.Model,
		format:         cfg.ResponseFormat,
		wordsPerMinute: wpm,
		logger:         logger.With("component", "synthesizer"),
	}
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize returns the encoded audio. The speech API does not report a
// duration, so it is estimated from the word count.
func (s *Synthesizer) Synthesize(ctx context.Context, script, voiceID, language string) (*domain.Audio, error) {
	if strings.TrimSpace(script) == "" {
		return nil, fmt.Errorf("%w: empty script", domain.ErrSynthesisFailure)
	}

	body, err := json.Marshal(speechRequest{
		Model:          s.model,
		Input:          script,
		Voice:          voiceID,
		ResponseFormat: s.format,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", domain.ErrSynthesisFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", domain.ErrSynthesisFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: execute request: %w", domain.ErrSynthesisFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: unexpected status: %d: %s",
			domain.ErrSynthesisFailure, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioLength+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read audio: %w", domain.ErrSynthesisFailure, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty audio", domain.ErrSynthesisFailure)
	}
	if len(data) > maxAudioLength {
		return nil, fmt.Errorf("%w: audio exceeds %s", domain.ErrSynthesisFailure, humanize.IBytes(maxAudioLength))
	}

	audio := &domain.Audio{
		Data:     data,
		Duration: EstimateDuration(script, s.wordsPerMinute),
		Format:   s.format,
	}

	s.logger.Debug("speech received",
		"voice", voiceID,
		"language", language,
		"size", humanize.Bytes(uint64(len(data))),
		"estimated_seconds", audio.Duration,
	)
	return audio, nil
}

// EstimateDuration converts a word count into seconds of speech.
func EstimateDuration(script string, wordsPerMinute int) float64 {
	if wordsPerMinute <= 0 {
		wordsPerMinute = defaultWPM
	}
	words := len(strings.Fields(script))
	return float64(words) * 60 / float64(wordsPerMinute)
}
