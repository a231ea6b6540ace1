package domain

import "time"

// ItemSnapshot is a point-in-time, byte-free view of an item.
type ItemSnapshot struct {
	Index      int         `json:"index"`
	Prompt     string      `json:"prompt"`
	Status     BatchStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
	ResultSize int         `json:"result_size,omitempty"`
	DurationMS int64       `json:"duration_ms,omitempty"`
}

// JobSnapshot is a point-in-time view of a job, safe to serialize and to hand
// to other goroutines.
type JobSnapshot struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Mode        string         `json:"mode"`
	PresetID    string         `json:"preset_id,omitempty"`
	Model       string         `json:"model,omitempty"`
	TotalCost   int            `json:"total_cost"`
	Status      BatchStatus    `json:"status"`
	Progress    int            `json:"progress_percent"`
	Completed   int            `json:"completed"`
	Failed      int            `json:"failed"`
	Total       int            `json:"total"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Items       []ItemSnapshot `json:"items"`
}

// Snapshot captures the job under a single read lock.
func (j *BatchJob) Snapshot() JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	snap := JobSnapshot{
		ID:        j.ID,
		UserID:    j.UserID,
		Mode:      j.Mode,
		PresetID:  j.PresetID,
		Model:     j.Model,
		TotalCost: j.TotalCost,
		Status:    j.status,
		Completed: j.countLocked(BatchStatusCompleted),
		Failed:    j.countLocked(BatchStatusFailed),
		Total:     len(j.items),
		CreatedAt: j.CreatedAt,
		Items:     make([]ItemSnapshot, len(j.items)),
	}
	if snap.Total > 0 {
		snap.Progress = 100 * snap.Completed / snap.Total
	}
	if !j.completedAt.IsZero() {
		at := j.completedAt
		snap.CompletedAt = &at
	}
	for i, it := range j.items {
		is := ItemSnapshot{
			Index:      it.Index,
			Prompt:     it.Prompt,
			Status:     it.Status,
			Error:      it.Error,
			ResultSize: len(it.Result),
		}
		if d, ok := it.Duration(); ok {
			is.DurationMS = d.Milliseconds()
		}
		snap.Items[i] = is
	}
	return snap
}
