package repo

import (
	"context"
	"fmt"
	"time"

	"imagebatch/internal/domain"
	"imagebatch/internal/infra"
	"imagebatch/internal/sqlinline"
)

const defaultHistoryLimit = 20

// BatchRepositoryPG records finished batches in PostgreSQL through the
// marker-checked SQL runner.
type BatchRepositoryPG struct {
	db infra.SQLExecutor
}

func NewBatchRepository(db infra.SQLExecutor) *BatchRepositoryPG {
	return &BatchRepositoryPG{db: db}
}

// EnsureSchema creates the batch_jobs table and its index when missing.
func (r *BatchRepositoryPG) EnsureSchema(ctx context.Context) error {
	for _, q := range []string{sqlinline.QBatchJobsEnsureTable, sqlinline.QBatchJobsUserIndex} {
		if _, err := r.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("ensure batch schema: %w", err)
		}
	}
	return nil
}

// SaveBatchJob inserts rec. A job id that was already recorded yields
// domain.ErrDuplicateOperation.
func (r *BatchRepositoryPG) SaveBatchJob(ctx context.Context, rec domain.BatchRecord) error {
	tag, err := r.db.Exec(ctx, sqlinline.QBatchJobInsert,
		rec.JobID,
		rec.UserID,
		rec.Mode,
		rec.TotalCost,
		rec.ResultsCount,
		durationMillis(rec.Duration),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save batch job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: batch job %s", domain.ErrDuplicateOperation, rec.JobID)
	}
	return nil
}

// ListByUser returns the user's recorded batches, newest first.
func (r *BatchRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.BatchRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := r.db.Query(ctx, sqlinline.QBatchJobsByUser, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list batch jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.BatchRecord
	for rows.Next() {
		var (
			rec        domain.BatchRecord
			durationMS *int64
		)
		if err := rows.Scan(
			&rec.JobID,
			&rec.UserID,
			&rec.Mode,
			&rec.TotalCost,
			&rec.ResultsCount,
			&durationMS,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan batch job: %w", err)
		}
		rec.Duration = millisDuration(durationMS)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch jobs: %w", err)
	}
	return out, nil
}

func durationMillis(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

func millisDuration(ms *int64) *time.Duration {
	if ms == nil {
		return nil
	}
	d := time.Duration(*ms) * time.Millisecond
	return &d
}

var (
	_ domain.BatchRecorder = (*BatchRepositoryPG)(nil)
	_ domain.BatchHistory  = (*BatchRepositoryPG)(nil)
)
