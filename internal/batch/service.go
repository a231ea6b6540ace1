// Package batch creates batch jobs from the mode catalog, executes them against
// an image provider under a service-wide concurrency bound, and serves the
// finished results (gallery preview, upscale).
package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"imagebatch/internal/catalog"
	"imagebatch/internal/domain"
	"imagebatch/internal/imaging"
	"imagebatch/internal/providers/image"
)

const (
	DefaultMaxConcurrent = 3
	DefaultMaxAge        = 24 * time.Hour
	recordTimeout        = 10 * time.Second
)

// ProgressFunc is called after every item reaches a terminal state. Calls for
// one execution never overlap. The core does not throttle; callers that drive
// a UI should debounce.
type ProgressFunc func(ctx context.Context, job *domain.BatchJob)

// Options wires a Service. Catalog and Generator are required.
type Options struct {
	Catalog       *catalog.Catalog
	Generator     image.Generator
	Recorder      domain.BatchRecorder
	Registry      *Registry
	Pool          *imaging.Pool
	MaxConcurrent int
	Logger        zerolog.Logger
	Now           func() time.Time
}

type Service struct {
	catalog   *catalog.Catalog
	generator image.Generator
	recorder  domain.BatchRecorder
	registry  *Registry
	pool      *imaging.Pool
	sem       *semaphore.Weighted
	limit     int
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(opts Options) (*Service, error) {
	if opts.Catalog == nil {
		return nil, errors.New("batch: catalog is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("batch: generator is required")
	}
	if opts.Recorder == nil {
		opts.Recorder = domain.NopRecorder{}
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Pool == nil {
		opts.Pool = imaging.NewPool(imaging.DefaultWorkers)
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		catalog:   opts.Catalog,
		generator: opts.Generator,
		recorder:  opts.Recorder,
		registry:  opts.Registry,
		pool:      opts.Pool,
		sem:       semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		limit:     opts.MaxConcurrent,
		logger:    opts.Logger,
		now:       opts.Now,
	}, nil
}

func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// MaxConcurrent is the bound on in-flight provider calls across all jobs.
func (s *Service) MaxConcurrent() int { return s.limit }

// CreateRequest describes a new batch.
type CreateRequest struct {
	JobID      string
	UserID     string
	Mode       string
	PresetID   string
	BasePrompt string
	Params     map[string]string
}

// CreateJob resolves the mode and preset, prices the batch and registers a
// pending job. Nothing is registered when the mode or preset is unknown.
func (s *Service) CreateJob(req CreateRequest) (*domain.BatchJob, error) {
	mode, err := s.catalog.Mode(req.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMode, req.Mode)
	}
	preset, err := s.catalog.Preset(req.PresetID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPreset, req.PresetID)
	}

	base := strings.TrimSpace(req.BasePrompt)
	if base == "" {
		base = preset.Prompt
	}

	id := req.JobID
	if id == "" {
		id = s.newJobID(req.UserID, mode.Key)
	}

	job := domain.NewBatchJob(domain.BatchJobParams{
		ID:         id,
		UserID:     req.UserID,
		Mode:       mode.Key,
		PresetID:   preset.ID,
		BasePrompt: base,
		Model:      mode.ModelOr(preset.Model),
		TotalCost:  TotalCost(preset.Cost, mode.CostMultiplier),
		Prompts:    mode.ItemPrompts(base, req.Params),
		CreatedAt:  s.now(),
	})
	if err := s.registry.Put(job); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Str("mode", job.Mode).
		Int("items", job.Len()).
		Int("total_cost", job.TotalCost).
		Msg("batch: job created")
	return job, nil
}

// TotalCost is round(baseCost * multiplier).
func TotalCost(baseCost int, multiplier float64) int {
	return int(math.Round(float64(baseCost) * multiplier))
}

func (s *Service) newJobID(userID, mode string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("batch_%s_%d_%s_%s", userID, s.now().Unix(), mode, suffix)
}

// Get returns a registered job.
func (s *Service) Get(id string) (*domain.BatchJob, error) {
	return s.registry.Get(id)
}

// JobsByUser returns the user's jobs still held in memory, newest first.
func (s *Service) JobsByUser(userID string) []*domain.BatchJob {
	return s.registry.ByUser(userID)
}

// Cleanup evicts jobs finalized more than maxAge ago.
func (s *Service) Cleanup(maxAge time.Duration) int {
	n := s.registry.Cleanup(maxAge, s.now())
	if n > 0 {
		s.logger.Info().Int("evicted", n).Dur("max_age", maxAge).Msg("batch: cleaned up old jobs")
	}
	return n
}

// CleanupOldJobs is Cleanup with the age given in hours.
func (s *Service) CleanupOldJobs(maxAgeHours int) int {
	return s.Cleanup(time.Duration(maxAgeHours) * time.Hour)
}

func (s *Service) finalize(ctx context.Context, job *domain.BatchJob) {
	at := s.now()
	if !job.Finalize(at) {
		return
	}
	completed := job.CountStatus(domain.BatchStatusCompleted)
	duration := at.Sub(job.CreatedAt)

	s.logger.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status())).
		Int("completed", completed).
		Int("total", job.Len()).
		Dur("duration", duration).
		Msg("batch: job finalized")

	rec := domain.BatchRecord{
		JobID:        job.ID,
		UserID:       job.UserID,
		Mode:         job.Mode,
		TotalCost:    job.TotalCost,
		ResultsCount: completed,
		Duration:     &duration,
		CreatedAt:    job.CreatedAt,
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.recorder.SaveBatchJob(saveCtx, rec); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("batch: failed to record job")
	}
}
