package domain

import (
	"sync"
	"time"
)

// BatchStatus enumerates lifecycle states shared by jobs and their items.
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusPartial   BatchStatus = "partial"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
)

// IsTerminal reports whether no further transitions happen from s.
// Items only ever end in completed or failed; partial is a job-level outcome.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusPartial:
		return true
	default:
		return false
	}
}

// BatchItem is one generated image within a job.
type BatchItem struct {
	Index       int
	Prompt      string
	Status      BatchStatus
	Result      []byte
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

// Duration returns the wall-clock generation time once both markers are set.
func (i BatchItem) Duration() (time.Duration, bool) {
	if i.StartedAt.IsZero() || i.CompletedAt.IsZero() {
		return 0, false
	}
	return i.CompletedAt.Sub(i.StartedAt), true
}

// BatchJob owns an ordered, fixed-length set of items. Identity fields are
// immutable after NewBatchJob; item state is guarded by the job lock and only
// changes through the mutators below.
type BatchJob struct {
	ID         string
	UserID     string
	Mode       string
	PresetID   string
	BasePrompt string
	Model      string
	TotalCost  int
	CreatedAt  time.Time

	mu          sync.RWMutex
	items       []BatchItem
	status      BatchStatus
	completedAt time.Time
}

// BatchJobParams carries the immutable attributes of a new job.
type BatchJobParams struct {
	ID         string
	UserID     string
	Mode       string
	PresetID   string
	BasePrompt string
	Model      string
	TotalCost  int
	Prompts    []string
	CreatedAt  time.Time
}

// NewBatchJob builds a pending job with one pending item per prompt.
func NewBatchJob(p BatchJobParams) *BatchJob {
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	items := make([]BatchItem, len(p.Prompts))
	for i, prompt := range p.Prompts {
		items[i] = BatchItem{Index: i, Prompt: prompt, Status: BatchStatusPending}
	}
	return &BatchJob{
		ID:         p.ID,
		UserID:     p.UserID,
		Mode:       p.Mode,
		PresetID:   p.PresetID,
		BasePrompt: p.BasePrompt,
		Model:      p.Model,
		TotalCost:  p.TotalCost,
		CreatedAt:  created,
		items:      items,
		status:     BatchStatusPending,
	}
}

// Len returns the fixed number of items.
func (j *BatchJob) Len() int {
	return len(j.items)
}

// Status returns the job-level status.
func (j *BatchJob) Status() BatchStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// CompletedAt returns the finalization time, or the zero time while running.
func (j *BatchJob) CompletedAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.completedAt
}

// Items returns a copy of the items in index order. Result slices are shared
// and must be treated as read-only.
func (j *BatchJob) Items() []BatchItem {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]BatchItem, len(j.items))
	copy(out, j.items)
	return out
}

// Item returns a copy of the item at index.
func (j *BatchJob) Item(index int) (BatchItem, bool) {
	if index < 0 || index >= len(j.items) {
		return BatchItem{}, false
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.items[index], true
}

// Successful returns the items holding a result, in index order.
func (j *BatchJob) Successful() []BatchItem {
	return j.filter(func(it BatchItem) bool { return it.Result != nil })
}

// Failed returns the failed items, in index order.
func (j *BatchJob) Failed() []BatchItem {
	return j.filter(func(it BatchItem) bool { return it.Status == BatchStatusFailed })
}

func (j *BatchJob) filter(keep func(BatchItem) bool) []BatchItem {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []BatchItem
	for _, it := range j.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// ProgressPercent is floor(100 * completed / total).
func (j *BatchJob) ProgressPercent() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.items) == 0 {
		return 0
	}
	return 100 * j.countLocked(BatchStatusCompleted) / len(j.items)
}

// IsComplete reports whether every item reached completed or failed.
func (j *BatchJob) IsComplete() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, it := range j.items {
		if it.Status != BatchStatusCompleted && it.Status != BatchStatusFailed {
			return false
		}
	}
	return true
}

// CountStatus returns how many items currently have status s.
func (j *BatchJob) CountStatus(s BatchStatus) int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.countLocked(s)
}

func (j *BatchJob) countLocked(s BatchStatus) int {
	n := 0
	for _, it := range j.items {
		if it.Status == s {
			n++
		}
	}
	return n
}

// Begin moves a pending job to running. It returns false if the job was
// already started.
func (j *BatchJob) Begin() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != BatchStatusPending {
		return false
	}
	j.status = BatchStatusRunning
	return true
}

// MarkRunning records the dispatch of an item.
func (j *BatchJob) MarkRunning(index int, at time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	it := &j.items[index]
	it.Status = BatchStatusRunning
	it.StartedAt = at
}

// CompleteItem stores the result of an item. An empty result fails the item
// instead, so a completed item always carries bytes.
func (j *BatchJob) CompleteItem(index int, result []byte, at time.Time) {
	if len(result) == 0 {
		j.FailItem(index, ErrEmptyResult.Error(), at)
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	it := &j.items[index]
	if it.StartedAt.IsZero() {
		it.StartedAt = at
	}
	it.Result = result
	it.Error = ""
	it.Status = BatchStatusCompleted
	it.CompletedAt = at
}

// FailItem marks an item failed with reason.
func (j *BatchJob) FailItem(index int, reason string, at time.Time) {
	if reason == "" {
		reason = ErrProviderFailure.Error()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	it := &j.items[index]
	if it.StartedAt.IsZero() {
		it.StartedAt = at
	}
	it.Result = nil
	it.Error = reason
	it.Status = BatchStatusFailed
	it.CompletedAt = at
}

// Finalize computes the aggregate status and stamps completion. Only the
// first call has an effect; it reports whether this call finalized the job.
func (j *BatchJob) Finalize(at time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.completedAt.IsZero() {
		return false
	}
	j.completedAt = at
	j.status = AggregateStatus(j.countLocked(BatchStatusCompleted), len(j.items))
	return true
}

// AggregateStatus derives the job status from its completed item count.
func AggregateStatus(completed, total int) BatchStatus {
	switch {
	case total > 0 && completed == total:
		return BatchStatusCompleted
	case completed > 0:
		return BatchStatusPartial
	default:
		return BatchStatusFailed
	}
}
