package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"podcastai/internal/domain"
)

// AudioStageStore keeps synthesized audio between the synthesize and upload
// steps so a restarted process can upload without synthesizing again.
type AudioStageStore struct {
	db *sqlx.DB
}

func NewAudioStageStore(db *sqlx.DB) *AudioStageStore {
	return &AudioStageStore{db: db}
}

type stagedRow struct {
	JobID    string  `db:"job_id"`
	Data     []byte  `db:"data"`
	Duration float64 `db:"duration_seconds"`
}

func (s *AudioStageStore) Save(ctx context.Context, audio *domain.StagedAudio) error {
	query := `
		INSERT INTO job_audio (job_id, data, duration_seconds)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id) DO UPDATE SET
			data = EXCLUDED.data,
			duration_seconds = EXCLUDED.duration_seconds,
			created_at = NOW()`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, audio.JobID, audio.Data, audio.Duration)
	return err
}

func (s *AudioStageStore) Get(ctx context.Context, jobID string) (*domain.StagedAudio, error) {
	var row stagedRow
	query := `SELECT job_id, data, duration_seconds FROM job_audio WHERE job_id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.StagedAudio{JobID: row.JobID, Data: row.Data, Duration: row.Duration}, nil
}

// Delete is a no-op when nothing is staged.
func (s *AudioStageStore) Delete(ctx context.Context, jobID string) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, `DELETE FROM job_audio WHERE job_id = $1`, jobID)
	return err
}
