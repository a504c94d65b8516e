package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"podcastai/internal/domain"
)

type PodcastStore struct {
	db *sqlx.DB
}

func NewPodcastStore(db *sqlx.DB) *PodcastStore {
	return &PodcastStore{db: db}
}

const podcastColumns = `id, job_id, user_id, topic, title, content, transcript, audio_url, duration_seconds, created_at`

func (s *PodcastStore) Create(ctx context.Context, podcast *domain.Podcast) error {
	query := `
		INSERT INTO podcasts (` + podcastColumns + `)
		VALUES (:id, :job_id, :user_id, :topic, :title, :content, :transcript, :audio_url, :duration_seconds, :created_at)`

	_, err := sqlx.NamedExecContext(ctx, GetExecutor(ctx, s.db), query, podcast)
	if isUniqueViolation(err) {
		return fmt.Errorf("podcast for job %s already exists: %w", podcast.JobID, err)
	}
	return err
}

func (s *PodcastStore) Get(ctx context.Context, id string) (*domain.Podcast, error) {
	var podcast domain.Podcast
	query := `SELECT ` + podcastColumns + ` FROM podcasts WHERE id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &podcast, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &podcast, nil
}

// ListByUser returns the user's podcasts, newest first.
func (s *PodcastStore) ListByUser(ctx context.Context, userID string) ([]domain.Podcast, error) {
	query := `SELECT ` + podcastColumns + ` FROM podcasts WHERE user_id = $1 ORDER BY created_at DESC`

	podcasts := []domain.Podcast{}
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &podcasts, query, userID)
	return podcasts, err
}
