package batch

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"imagebatch/internal/domain"
)

// Registry holds the jobs a Service has created. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*domain.BatchJob
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*domain.BatchJob)}
}

// Put registers job. An id that is already present is rejected.
func (r *Registry) Put(job *domain.BatchJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("%w: job %q already registered", domain.ErrDuplicateOperation, job.ID)
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *Registry) Get(id string) (*domain.BatchJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: job %q", domain.ErrNotFound, id)
	}
	return job, nil
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return false
	}
	delete(r.jobs, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// ByUser returns the registered jobs of userID, newest first.
func (r *Registry) ByUser(userID string) []*domain.BatchJob {
	r.mu.RLock()
	var out []*domain.BatchJob
	for _, job := range r.jobs {
		if job.UserID == userID {
			out = append(out, job)
		}
	}
	r.mu.RUnlock()
	sortNewestFirst(out)
	return out
}

// Cleanup evicts every job finalized before now-maxAge and returns how many
// were removed. Jobs that have not finalized are kept regardless of age.
func (r *Registry) Cleanup(maxAge time.Duration, now time.Time) int {
	cutoff := now.Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, job := range r.jobs {
		done := job.CompletedAt()
		if done.IsZero() || !done.Before(cutoff) {
			continue
		}
		delete(r.jobs, id)
		evicted++
	}
	return evicted
}

func sortNewestFirst(jobs []*domain.BatchJob) {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
}
