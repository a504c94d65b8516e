package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcastai/internal/config"
	"podcastai/internal/domain"
	"podcastai/internal/logging"
)

func newTestSynthesizer(url string) *Synthesizer {
	return New(config.SynthesizerConfig{
		BaseURL:        url,
		APIKey:         "test-key",
		Model:          "tts-1",
		ResponseFormat: "mp3",
		WordsPerMinute: 120,
		Timeout:        time.Second,
	}, logging.Discard())
}

func TestSynthesize_ReturnsAudioWithEstimatedDuration(t *testing.T) {
	var got speechRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-fake-mp3"))
	}))
	defer server.Close()

	script := strings.Repeat("word ", 240)
	audio, err := newTestSynthesizer(server.URL).Synthesize(context.Background(), script, "nova", "en")
	require.NoError(t, err)

	assert.Equal(t, []byte("ID3-fake-mp3"), audio.Data)
	assert.Equal(t, "mp3", audio.Format)
	assert.InDelta(t, 120.0, audio.Duration, 0.001)

	assert.Equal(t, "tts-1", got.Model)
	assert.Equal(t, "nova", got.Voice)
	assert.Equal(t, "mp3", got.ResponseFormat)
	assert.Equal(t, script, got.Input)
}

func TestSynthesize_Non200IsSynthesisFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice not found", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestSynthesizer(server.URL).Synthesize(context.Background(), "hello", "missing", "en")
	assert.ErrorIs(t, err, domain.ErrSynthesisFailure)
	assert.Contains(t, err.Error(), "voice not found")
}

func TestSynthesize_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := newTestSynthesizer(server.URL).Synthesize(context.Background(), "hello", "alloy", "en")
	assert.ErrorIs(t, err, domain.ErrSynthesisFailure)
}

func TestSynthesize_EmptyScript(t *testing.T) {
	_, err := newTestSynthesizer("http://unused").Synthesize(context.Background(), " ", "alloy", "en")
	assert.ErrorIs(t, err, domain.ErrSynthesisFailure)
}

func TestEstimateDuration(t *testing.T) {
	assert.Equal(t, 0.0, EstimateDuration("", 150))
	assert.InDelta(t, 60.0, EstimateDuration(strings.Repeat("a ", 150), 150), 0.001)
	assert.InDelta(t, 60.0, EstimateDuration(strings.Repeat("a ", 150), 0), 0.001)
}
