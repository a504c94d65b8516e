package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"podcastai/internal/domain"
)

type JobStore struct {
	db *sqlx.DB
}

func NewJobStore(db *sqlx.DB) *JobStore {
	return &JobStore{db: db}
}

type jobRow struct {
	ID              string         `db:"id"`
	UserID          string         `db:"user_id"`
	Topic           string         `db:"topic"`
	LengthMinutes   int            `db:"length_minutes"`
	Language        string         `db:"language"`
	VoiceID         string         `db:"voice_id"`
	Style           string         `db:"style"`
	State           string         `db:"state"`
	Script          sql.NullString `db:"script"`
	AudioRef        sql.NullString `db:"audio_ref"`
	Duration        float64        `db:"duration_seconds"`
	Error           sql.NullString `db:"error"`
	CancelRequested bool           `db:"cancel_requested"`
	PodcastID       sql.NullString `db:"podcast_id"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

const jobColumns = `id, user_id, topic, length_minutes, language, voice_id, style, state,
	script, audio_ref, duration_seconds, error, cancel_requested, podcast_id, created_at, updated_at`

func (r jobRow) toDomain() domain.GenerationJob {
	return domain.GenerationJob{
		ID: r.ID,
		Request: domain.PodcastRequest{
			UserID:   r.UserID,
			Topic:    r.Topic,
			Length:   r.LengthMinutes,
			Language: r.Language,
			VoiceID:  r.VoiceID,
			Style:    domain.Style(r.Style),
		},
		State:           domain.JobState(r.State),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		Script:          nullable(r.Script),
		AudioRef:        nullable(r.AudioRef),
		Duration:        r.Duration,
		Error:           nullable(r.Error),
		CancelRequested: r.CancelRequested,
		PodcastID:       nullable(r.PodcastID),
	}
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// Create inserts a queued job. A second active job for the same user violates
// idx_generation_jobs_one_active_per_user and is reported as ErrActiveJob.
func (s *JobStore) Create(ctx context.Context, job *domain.GenerationJob) error {
	query := `
		INSERT INTO generation_jobs (
			id, user_id, topic, length_minutes, language, voice_id, style, state,
			script, audio_ref, duration_seconds, error, cancel_requested, podcast_id,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		job.ID,
		job.Request.UserID,
		job.Request.Topic,
		job.Request.Length,
		job.Request.Language,
		job.Request.VoiceID,
		string(job.Request.Style),
		string(job.State),
		job.Script,
		job.AudioRef,
		job.Duration,
		job.Error,
		job.CancelRequested,
		job.PodcastID,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", domain.ErrActiveJob, job.Request.UserID)
	}
	return err
}

func (s *JobStore) Get(ctx context.Context, id string) (*domain.GenerationJob, error) {
	var row jobRow
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	job := row.toDomain()
	return &job, nil
}

// Update persists the mutable fields of a job. cancel_requested is owned by
// MarkCancelRequested and is never cleared here. Rows that already reached a
// terminal state are left untouched.
func (s *JobStore) Update(ctx context.Context, job *domain.GenerationJob) error {
	query := `
		UPDATE generation_jobs SET
			state = $2,
			script = $3,
			audio_ref = $4,
			duration_seconds = $5,
			error = $6,
			podcast_id = $7,
			updated_at = $8
		WHERE id = $1 AND state NOT IN ('complete', 'failed', 'cancelled')`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		job.ID,
		string(job.State),
		job.Script,
		job.AudioRef,
		job.Duration,
		job.Error,
		job.PodcastID,
		job.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return s.checkAffected(ctx, res, job.ID)
}

func (s *JobStore) MarkCancelRequested(ctx context.Context, id string) error {
	query := `
		UPDATE generation_jobs SET cancel_requested = TRUE, updated_at = NOW()
		WHERE id = $1 AND state NOT IN ('complete', 'failed', 'cancelled')`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return s.checkAffected(ctx, res, id)
}

// checkAffected tells a missing row apart from a terminal one.
func (s *JobStore) checkAffected(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists bool
	err = sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &exists,
		`SELECT EXISTS (SELECT 1 FROM generation_jobs WHERE id = $1)`, id)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrAlreadyTerminal
}

func (s *JobStore) ListByStates(ctx context.Context, states []domain.JobState) ([]domain.GenerationJob, error) {
	if len(states) == 0 {
		return nil, nil
	}
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = string(st)
	}

	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE state = ANY($1) ORDER BY created_at ASC`

	var rows []jobRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query, pq.Array(names)); err != nil {
		return nil, err
	}
	return toJobs(rows), nil
}

func (s *JobStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	var rows []jobRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query, userID, limit); err != nil {
		return nil, err
	}
	return toJobs(rows), nil
}

func toJobs(rows []jobRow) []domain.GenerationJob {
	jobs := make([]domain.GenerationJob, len(rows))
	for i, r := range rows {
		jobs[i] = r.toDomain()
	}
	return jobs
}
