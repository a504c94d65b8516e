package domain

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const (
	MinLengthMinutes     = 3
	MaxLengthMinutes     = 30
	DefaultLengthMinutes = 5
	DefaultLanguage      = "en"
)

type Style string

const (
	StyleConversational Style = "conversational"
	StyleFormal         Style = "formal"
)

func (s Style) Valid() bool {
	return s == StyleConversational || s == StyleFormal
}

// PodcastRequest describes what the user asked to be generated.
type PodcastRequest struct {
	UserID   string `json:"userId" db:"user_id"`
	Topic    string `json:"topic" db:"topic"`
	Length   int    `json:"length" db:"length_minutes"`
	Language string `json:"language" db:"language"`
	VoiceID  string `json:"voiceId" db:"voice_id"`
	Style    Style  `json:"style" db:"style"`
}

// Normalize trims free-text fields and canonicalizes the language tag.
func (r *PodcastRequest) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Topic = strings.TrimSpace(r.Topic)
	r.VoiceID = strings.TrimSpace(r.VoiceID)
	r.Style = Style(strings.ToLower(strings.TrimSpace(string(r.Style))))
	r.Language = strings.TrimSpace(r.Language)
	if tag, err := language.Parse(r.Language); err == nil {
		r.Language = tag.String()
	}
}

// Validate reports the first problem with the request wrapped in ErrInvalidRequest.
func (r PodcastRequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user id required", ErrInvalidRequest)
	}
	if r.Topic == "" {
		return fmt.Errorf("%w: topic required", ErrInvalidRequest)
	}
	if r.Length < MinLengthMinutes || r.Length > MaxLengthMinutes {
		return fmt.Errorf("%w: length must be between %d and %d minutes, got %d",
			ErrInvalidRequest, MinLengthMinutes, MaxLengthMinutes, r.Length)
	}
	if r.Language == "" {
		return fmt.Errorf("%w: language required", ErrInvalidRequest)
	}
	if _, err := language.Parse(r.Language); err != nil {
		return fmt.Errorf("%w: language %q: %v", ErrInvalidRequest, r.Language, err)
	}
	if r.VoiceID == "" {
		return fmt.Errorf("%w: voice id required", ErrInvalidRequest)
	}
	if !r.Style.Valid() {
		return fmt.Errorf("%w: unknown style %q", ErrInvalidRequest, r.Style)
	}
	return nil
}

// Podcast is a finished, immutable episode.
type Podcast struct {
	ID         string    `json:"id" db:"id"`
	JobID      string    `json:"jobId" db:"job_id"`
	Title      string    `json:"title" db:"title"`
	Content    string    `json:"content" db:"content"`
	AudioURL   string    `json:"audioUrl" db:"audio_url"`
	Transcript string    `json:"transcript" db:"transcript"`
	Duration   float64   `json:"duration" db:"duration_seconds"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UserID     string    `json:"userId" db:"user_id"`
	Topic      string    `json:"topic" db:"topic"`
}

// UserPreferences mirrors the defaults a user picks in settings.
type UserPreferences struct {
	DefaultLanguage      string  `json:"defaultLanguage" yaml:"default_language"`
	VoiceID              string  `json:"voiceId" yaml:"voice_id"`
	PlaybackSpeed        float64 `json:"playbackSpeed" yaml:"playback_speed"`
	DefaultPodcastLength int     `json:"defaultPodcastLength" yaml:"default_podcast_length"`
}

// DefaultLength is the episode length for requests that omit one.
func (p UserPreferences) DefaultLength() int {
	if p.DefaultPodcastLength == 0 {
		return DefaultLengthMinutes
	}
	return p.DefaultPodcastLength
}

// ApplyDefaults fills the text fields the caller left empty. Length is left
// alone: a zero length is indistinguishable from an omitted one here, so the
// decoder decides and uses DefaultLength.
func (p UserPreferences) ApplyDefaults(r *PodcastRequest) {
	if r.Language == "" {
		r.Language = p.DefaultLanguage
		if r.Language == "" {
			r.Language = DefaultLanguage
		}
	}
	if r.VoiceID == "" {
		r.VoiceID = p.VoiceID
	}
	if r.Style == "" {
		r.Style = StyleConversational
	}
}

// Audio is a synthesized asset before it is stored.
type Audio struct {
	Data     []byte
	Duration float64
	Format   string
}
