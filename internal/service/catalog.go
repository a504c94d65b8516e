package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"podcastai/internal/domain"
)

// Catalog serves finished podcasts. Only jobs that reached Complete ever
// produce rows here, so everything it returns is safe to show.
type Catalog struct {
	podcasts PodcastStore
	assets   AssetStore
	logger   *slog.Logger
}

func NewCatalog(podcasts PodcastStore, assets AssetStore, logger *slog.Logger) *Catalog {
	return &Catalog{
		podcasts: podcasts,
		assets:   assets,
		logger:   logger.With("component", "catalog"),
	}
}

func (c *Catalog) ListPodcasts(ctx context.Context, userID string) ([]domain.Podcast, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", domain.ErrInvalidRequest)
	}
	podcasts, err := c.podcasts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list podcasts: %w", err)
	}
	return podcasts, nil
}

func (c *Catalog) GetPodcast(ctx context.Context, id string) (*domain.Podcast, error) {
	podcast, err := c.podcasts.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get podcast: %w", err)
	}
	return podcast, nil
}

// OpenAudio streams the stored audio of a podcast. The caller closes it.
func (c *Catalog) OpenAudio(ctx context.Context, id string) (*domain.Podcast, io.ReadCloser, error) {
	podcast, err := c.GetPodcast(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := c.assets.Fetch(ctx, podcast.AudioURL)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch audio: %w", err)
	}
	c.logger.Debug("streaming audio", "podcast_id", id, "audio_url", podcast.AudioURL)
	return podcast, rc, nil
}
