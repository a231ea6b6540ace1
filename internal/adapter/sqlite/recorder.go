// Package sqlite records finished batch jobs in a local SQLite file, for
// single-node deployments without PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"imagebatch/internal/domain"
)

const defaultHistoryLimit = 20

const schema = `
CREATE TABLE IF NOT EXISTS batch_jobs (
	job_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	mode TEXT NOT NULL,
	total_cost INTEGER NOT NULL,
	results_count INTEGER NOT NULL,
	duration_ms INTEGER,
	created_at DATETIME NOT NULL,
	recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_batch_jobs_user ON batch_jobs(user_id, created_at);
`

// Recorder implements domain.BatchRecorder and domain.BatchHistory.
type Recorder struct {
	db *sql.DB
}

// Open connects to the database at dsn and creates the schema.
func Open(ctx context.Context, dsn string) (*Recorder, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single writer avoids SQLITE_BUSY under concurrent finalization
	db.SetMaxOpenConns(1)
	r := &Recorder{db: db}
	if err := r.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Recorder) initSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	return nil
}

func (r *Recorder) Close() error {
	return r.db.Close()
}

// SaveBatchJob inserts rec; a job id recorded before yields domain.ErrDuplicateOperation.
func (r *Recorder) SaveBatchJob(ctx context.Context, rec domain.BatchRecord) error {
	var duration sql.NullInt64
	if rec.Duration != nil {
		duration = sql.NullInt64{Int64: rec.Duration.Milliseconds(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO batch_jobs (job_id, user_id, mode, total_cost, results_count, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.JobID, rec.UserID, rec.Mode, rec.TotalCost, rec.ResultsCount, duration, rec.CreatedAt.UTC())
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: batch job %s", domain.ErrDuplicateOperation, rec.JobID)
		}
		return fmt.Errorf("save batch job: %w", err)
	}
	return nil
}

// ListByUser returns the user's recorded batches, newest first.
func (r *Recorder) ListByUser(ctx context.Context, userID string, limit int) ([]domain.BatchRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT job_id, user_id, mode, total_cost, results_count, duration_ms, created_at
		FROM batch_jobs
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list batch jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.BatchRecord
	for rows.Next() {
		var (
			rec      domain.BatchRecord
			duration sql.NullInt64
		)
		if err := rows.Scan(&rec.JobID, &rec.UserID, &rec.Mode, &rec.TotalCost, &rec.ResultsCount, &duration, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan batch job: %w", err)
		}
		if duration.Valid {
			d := time.Duration(duration.Int64) * time.Millisecond
			rec.Duration = &d
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch jobs: %w", err)
	}
	return out, nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

var (
	_ domain.BatchRecorder = (*Recorder)(nil)
	_ domain.BatchHistory  = (*Recorder)(nil)
)
