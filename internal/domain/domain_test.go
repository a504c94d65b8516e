package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() PodcastRequest {
	return PodcastRequest{
		UserID:   "user-1",
		Topic:    "History of Rome",
		Length:   5,
		Language: "en",
		VoiceID:  "alloy",
		Style:    StyleConversational,
	}
}

func TestPodcastRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *PodcastRequest)
		wantErr bool
	}{
		{name: "valid", mutate: func(r *PodcastRequest) {}},
		{name: "min length", mutate: func(r *PodcastRequest) { r.Length = 3 }},
		{name: "max length", mutate: func(r *PodcastRequest) { r.Length = 30 }},
		{name: "too short", mutate: func(r *PodcastRequest) { r.Length = 2 }, wantErr: true},
		{name: "too long", mutate: func(r *PodcastRequest) { r.Length = 31 }, wantErr: true},
		{name: "empty topic", mutate: func(r *PodcastRequest) { r.Topic = "" }, wantErr: true},
		{name: "missing user", mutate: func(r *PodcastRequest) { r.UserID = "" }, wantErr: true},
		{name: "missing voice", mutate: func(r *PodcastRequest) { r.VoiceID = "" }, wantErr: true},
		{name: "bad style", mutate: func(r *PodcastRequest) { r.Style = "casual" }, wantErr: true},
		{name: "bad language", mutate: func(r *PodcastRequest) { r.Language = "not a language" }, wantErr: true},
		{name: "regional language", mutate: func(r *PodcastRequest) { r.Language = "es-MX" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPodcastRequest_NormalizeTrimsTopic(t *testing.T) {
	r := validRequest()
	r.Topic = "   \n\t "
	r.Style = " Formal "
	r.Language = "EN-us"
	r.Normalize()

	assert.Equal(t, "", r.Topic)
	assert.Equal(t, StyleFormal, r.Style)
	assert.Equal(t, "en-US", r.Language)
	assert.ErrorIs(t, r.Validate(), ErrInvalidRequest)
}

func TestUserPreferences_ApplyDefaults(t *testing.T) {
	var r PodcastRequest
	UserPreferences{VoiceID: "nova"}.ApplyDefaults(&r)

	assert.Equal(t, DefaultLanguage, r.Language)
	assert.Zero(t, r.Length, "length defaults belong to the decoder")
	assert.ErrorIs(t, PodcastRequest{UserID: "u", Topic: "t", Language: "en", VoiceID: "v", Style: StyleFormal}.Validate(), ErrInvalidRequest)
	assert.Equal(t, "nova", r.VoiceID)
	assert.Equal(t, StyleConversational, r.Style)

	r = PodcastRequest{Language: "fr", Length: 12, Style: StyleFormal}
	UserPreferences{DefaultLanguage: "es", DefaultPodcastLength: 20}.ApplyDefaults(&r)
	assert.Equal(t, "fr", r.Language)
	assert.Equal(t, 12, r.Length)
	assert.Equal(t, StyleFormal, r.Style)
}

func TestUserPreferences_DefaultLength(t *testing.T) {
	assert.Equal(t, DefaultLengthMinutes, UserPreferences{}.DefaultLength())
	assert.Equal(t, 20, UserPreferences{DefaultPodcastLength: 20}.DefaultLength())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(JobQueued, JobGenerating))
	assert.True(t, CanTransition(JobGenerating, JobSynthesizing))
	assert.True(t, CanTransition(JobSynthesizing, JobUploading))
	assert.True(t, CanTransition(JobUploading, JobComplete))
	assert.True(t, CanTransition(JobSynthesizing, JobFailed))
	assert.True(t, CanTransition(JobQueued, JobCancelled))

	assert.False(t, CanTransition(JobQueued, JobComplete))
	assert.False(t, CanTransition(JobGenerating, JobUploading))
	assert.False(t, CanTransition(JobComplete, JobFailed))
	assert.False(t, CanTransition(JobComplete, JobCancelled))
	assert.False(t, CanTransition(JobFailed, JobGenerating))
}

func TestGenerationJob_CloneIsIndependent(t *testing.T) {
	script := "hello"
	job := GenerationJob{ID: "j", Script: &script}
	cp := job.Clone()
	*cp.Script = "changed"
	assert.Equal(t, "hello", *job.Script)
}

func TestParseRate(t *testing.T) {
	for _, v := range []float64{1.0, 1.25, 1.5, 1.75, 2.0} {
		r, err := ParseRate(v)
		require.NoError(t, err)
		assert.Equal(t, Rate(v), r)
	}

	_, err := ParseRate(3.0)
	assert.ErrorIs(t, err, ErrUnsupportedRate)
	_, err = ParseRate(1.1)
	assert.ErrorIs(t, err, ErrUnsupportedRate)
}

func TestNextRateWraps(t *testing.T) {
	assert.Equal(t, Rate(1.25), NextRate(1.0))
	assert.Equal(t, Rate(1.0), NextRate(2.0))
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "0:00", FormatClock(0))
	assert.Equal(t, "5:00", FormatClock(300))
	assert.Equal(t, "1:05", FormatClock(65.9))
	assert.Equal(t, "0:00", FormatClock(-3))
}
