package domain

import (
	"context"
	"time"
)

// BatchRecord is the history row written once a batch job is finalized.
type BatchRecord struct {
	JobID        string
	UserID       string
	Mode         string
	TotalCost    int
	ResultsCount int
	Duration     *time.Duration
	CreatedAt    time.Time
}

// BatchRecorder persists finalized jobs. Implementations return
// ErrDuplicateOperation when the job id was already recorded.
type BatchRecorder interface {
	SaveBatchJob(ctx context.Context, rec BatchRecord) error
}

// BatchHistory lists recorded jobs for a user, newest first.
type BatchHistory interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]BatchRecord, error)
}

// NopRecorder discards records. It is used when persistence is disabled.
type NopRecorder struct{}

func (NopRecorder) SaveBatchJob(context.Context, BatchRecord) error { return nil }

var _ BatchRecorder = NopRecorder{}
