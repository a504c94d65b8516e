package api

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"io"

	"podcastai/internal/domain"
	"podcastai/internal/playback"
)

type JobService interface {
	Submit(ctx context.Context, req domain.PodcastRequest) (string, error)
	Status(ctx context.Context, jobID string) (*domain.GenerationJob, error)
	Cancel(ctx context.Context, jobID string) error
	ListJobs(ctx context.Context, userID string, limit int) ([]domain.GenerationJob, error)
}

type CatalogService interface {
	ListPodcasts(ctx context.Context, userID string) ([]domain.Podcast, error)
	GetPodcast(ctx context.Context, id string) (*domain.Podcast, error)
	OpenAudio(ctx context.Context, id string) (*domain.Podcast, io.ReadCloser, error)
}

type SessionRegistry interface {
	Open(ctx context.Context, podcast *domain.Podcast, rate float64) (*playback.Session, error)
	Get(id string) (*playback.Session, error)
	Close(id string) error
}
