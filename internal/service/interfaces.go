package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"io"

	"podcastai/internal/domain"
)

type JobStore interface {
	Create(ctx context.Context, job *domain.GenerationJob) error
	Get(ctx context.Context, id string) (*domain.GenerationJob, error)
	Update(ctx context.Context, job *domain.GenerationJob) error
	MarkCancelRequested(ctx context.Context, id string) error
	ListByStates(ctx context.Context, states []domain.JobState) ([]domain.GenerationJob, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.GenerationJob, error)
}

type AudioStageStore interface {
	Save(ctx context.Context, audio *domain.StagedAudio) error
	Get(ctx context.Context, jobID string) (*domain.StagedAudio, error)
	Delete(ctx context.Context, jobID string) error
}

type PodcastStore interface {
	Create(ctx context.Context, podcast *domain.Podcast) error
	Get(ctx context.Context, id string) (*domain.Podcast, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Podcast, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ContentGenerator interface {
	Generate(ctx context.Context, topic string, style domain.Style, language string, minutes int) (string, error)
}

type AudioSynthesizer interface {
	Synthesize(ctx context.Context, script, voiceID, language string) (*domain.Audio, error)
}

type AssetStore interface {
	Store(ctx context.Context, data []byte) (string, error)
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
	Delete(ctx context.Context, url string) error
}

type Publisher interface {
	PublishJobEvent(ctx context.Context, event domain.JobEvent) error
	PublishPodcast(ctx context.Context, podcast *domain.Podcast) error
	Close() error
}
