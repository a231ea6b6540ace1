package batch

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"imagebatch/internal/catalog"
	"imagebatch/internal/domain"
	"imagebatch/internal/providers/image"
)

// Execute runs a pending job to completion and returns it. Every item ends
// completed or failed and the job is finalized exactly once before Execute
// returns. Cancelling ctx fails the items that have not been dispatched yet;
// it is not reported as an error.
func (s *Service) Execute(ctx context.Context, job *domain.BatchJob, progress ProgressFunc) (*domain.BatchJob, error) {
	if job == nil {
		return nil, fmt.Errorf("%w: nil job", domain.ErrNotFound)
	}
	if !job.Begin() {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyStarted, job.ID)
	}
	s.run(ctx, job, progress)
	return job, nil
}

// ExecuteStream starts job in the background and returns a channel carrying
// one snapshot per item transition plus a final snapshot after finalization.
// The channel is closed afterwards.
func (s *Service) ExecuteStream(ctx context.Context, job *domain.BatchJob) (<-chan domain.JobSnapshot, error) {
	if job == nil {
		return nil, fmt.Errorf("%w: nil job", domain.ErrNotFound)
	}
	if !job.Begin() {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyStarted, job.ID)
	}
	// sized so sends never block on a slow or absent reader
	out := make(chan domain.JobSnapshot, job.Len()+1)
	go func() {
		defer close(out)
		s.run(ctx, job, func(_ context.Context, j *domain.BatchJob) {
			out <- j.Snapshot()
		})
		out <- job.Snapshot()
	}()
	return out, nil
}

func (s *Service) run(ctx context.Context, job *domain.BatchJob, progress ProgressFunc) {
	report := serialize(progress)
	log := s.logger.With().Str("job_id", job.ID).Str("mode", job.Mode).Logger()

	mode, err := s.catalog.Mode(job.Mode)
	if err != nil {
		log.Error().Err(err).Msg("batch: mode disappeared from catalog")
		at := s.now()
		for i := 0; i < job.Len(); i++ {
			job.FailItem(i, err.Error(), at)
			report(ctx, job)
		}
		s.finalize(ctx, job)
		return
	}

	log.Info().Str("strategy", string(mode.Strategy)).Int("items", job.Len()).Msg("batch: executing")
	switch mode.Strategy {
	case catalog.StrategyGrid:
		s.runGrid(ctx, job, mode, report)
	default:
		s.runParallel(ctx, job, report)
	}
	s.finalize(ctx, job)
}

func serialize(progress ProgressFunc) ProgressFunc {
	if progress == nil {
		return func(context.Context, *domain.BatchJob) {}
	}
	var mu sync.Mutex
	return func(ctx context.Context, job *domain.BatchJob) {
		mu.Lock()
		defer mu.Unlock()
		progress(ctx, job)
	}
}

// runParallel dispatches one goroutine per item. Each waits for a slot on the
// service semaphore before calling the provider.
func (s *Service) runParallel(ctx context.Context, job *domain.BatchJob, report ProgressFunc) {
	var g errgroup.Group
	for _, item := range job.Items() {
		g.Go(func() error {
			s.runItem(ctx, job, item.Index, item.Prompt, report)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) runItem(ctx context.Context, job *domain.BatchJob, index int, prompt string, report ProgressFunc) {
	defer report(ctx, job)

	if err := ctx.Err(); err != nil {
		job.FailItem(index, err.Error(), s.now())
		return
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		job.FailItem(index, err.Error(), s.now())
		return
	}
	job.MarkRunning(index, s.now())
	data, err := s.invoke(ctx, image.GenerateRequest{Prompt: prompt, Model: job.Model})
	s.sem.Release(1)

	at := s.now()
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("job_id", job.ID).
			Int("item", index).
			Msg("batch: item failed")
		job.FailItem(index, err.Error(), at)
		return
	}
	job.CompleteItem(index, data, at)
}

// runGrid asks for a single rows×cols composite and crops it into the items.
// Any failure fails every item with the same reason.
func (s *Service) runGrid(ctx context.Context, job *domain.BatchJob, mode catalog.Mode, report ProgressFunc) {
	n := job.Len()
	cells, err := s.generateGrid(ctx, job, mode)
	if err == nil && len(cells) < n {
		err = fmt.Errorf("grid produced %d cells for %d items", len(cells), n)
	}

	at := s.now()
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("batch: grid generation failed")
	}
	for i := 0; i < n; i++ {
		if err != nil {
			job.FailItem(i, err.Error(), at)
		} else {
			job.CompleteItem(i, cells[i], at)
		}
		report(ctx, job)
	}
}

func (s *Service) generateGrid(ctx context.Context, job *domain.BatchJob, mode catalog.Mode) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	started := s.now()
	for i := 0; i < job.Len(); i++ {
		job.MarkRunning(i, started)
	}
	data, err := s.invoke(ctx, image.GenerateRequest{Prompt: mode.GridPrompt(job.BasePrompt), Model: job.Model})
	s.sem.Release(1)
	if err != nil {
		return nil, err
	}
	cells, err := s.pool.SplitGrid(ctx, data, mode.Rows, mode.Cols)
	if err != nil {
		return nil, fmt.Errorf("split grid: %w", err)
	}
	return cells, nil
}

// invoke calls the provider, turning empty output and panics into errors.
func (s *Service) invoke(ctx context.Context, req image.GenerateRequest) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("%w: panic: %v", domain.ErrProviderFailure, r)
		}
	}()
	data, err = s.generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, domain.ErrEmptyResult
	}
	return data, nil
}
