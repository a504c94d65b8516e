package publisher

import (
	"context"
	"log/slog"

	"podcastai/internal/domain"
)

// LogPublisher stands in for RabbitMQ when the broker is disabled. Events
// are written to the log and never fail.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("component", "publisher")}
}

func (p *LogPublisher) PublishJobEvent(ctx context.Context, event domain.JobEvent) error {
	p.logger.DebugContext(ctx, "job event", "action", ActionJobState, "job_id", event.JobID, "state", event.State)
	return nil
}

func (p *LogPublisher) PublishPodcast(ctx context.Context, podcast *domain.Podcast) error {
	p.logger.DebugContext(ctx, "podcast event", "action", ActionPodcastCreated, "podcast_id", podcast.ID)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
