package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"imagebatch/internal/adapter"
	"imagebatch/internal/batch"
	"imagebatch/internal/domain"
	"imagebatch/internal/imaging"
	"imagebatch/internal/providers/image"
	"imagebatch/internal/storage"
)

type runOptions struct {
	mode    string
	preset  string
	prompt  string
	user    string
	out     string
	params  map[string]string
	timeout time.Duration
	record  bool
}

func newRunCmd(st *state) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create and execute one batch, writing results to disk",
		Example: `  # Four grid cells from a single generation
  batchctl run --mode grid_2x2 --preset portrait --prompt "a lighthouse at dusk"

  # Six template variations into ./out
  batchctl run --mode batch_6 --preset product --out ./out`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if opts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.timeout)
				defer cancel()
			}
			return runBatch(ctx, cmd, st, opts)
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", "", "batch mode key (see batchctl modes)")
	cmd.Flags().StringVar(&opts.preset, "preset", "portrait", "preset id")
	cmd.Flags().StringVar(&opts.prompt, "prompt", "", "base prompt (defaults to the preset prompt)")
	cmd.Flags().StringVar(&opts.user, "user", "cli", "user id recorded with the batch")
	cmd.Flags().StringVar(&opts.out, "out", "", "output directory (defaults to STORAGE_PATH)")
	cmd.Flags().StringToStringVar(&opts.params, "param", nil, "extra prompt template parameters, key=value")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "overall deadline for the batch")
	cmd.Flags().BoolVar(&opts.record, "record", false, "record the finished batch in the configured history store")
	_ = cmd.MarkFlagRequired("mode")

	return cmd
}

func runBatch(ctx context.Context, cmd *cobra.Command, st *state, opts runOptions) error {
	log := st.logger

	chain, err := image.NewChainFromConfig(st.cfg, &log)
	if err != nil {
		return err
	}

	recorder := domain.BatchRecorder(domain.NopRecorder{})
	if opts.record {
		p, err := adapter.Open(ctx, st.cfg, log)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer p.Close()
		recorder = p.Recorder
	}

	svc, err := batch.NewService(batch.Options{
		Catalog:       st.catalog,
		Generator:     chain,
		Recorder:      recorder,
		Pool:          imaging.NewPool(st.cfg.ImageWorkers),
		MaxConcurrent: st.cfg.MaxConcurrent,
		Logger:        log,
	})
	if err != nil {
		return err
	}

	outDir := opts.out
	if outDir == "" {
		outDir = st.cfg.StoragePath
	}
	store, err := storage.NewFileStore(outDir)
	if err != nil {
		return err
	}

	job, err := svc.CreateJob(batch.CreateRequest{
		UserID:     opts.user,
		Mode:       opts.mode,
		PresetID:   opts.preset,
		BasePrompt: opts.prompt,
		Params:     opts.params,
	})
	if err != nil {
		return err
	}
	log.Info().
		Str("job_id", job.ID).
		Strs("providers", chain.Names()).
		Int("total_cost", job.TotalCost).
		Msg("batch started")

	job, err = svc.Execute(ctx, job, func(_ context.Context, j *domain.BatchJob) {
		log.Info().
			Int("progress", j.ProgressPercent()).
			Int("done", j.CountStatus(domain.BatchStatusCompleted)+j.CountStatus(domain.BatchStatusFailed)).
			Int("total", j.Len()).
			Msg("batch progress")
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "job %s: %s (%d/%d), cost %d\n",
		job.ID, job.Status(), job.CountStatus(domain.BatchStatusCompleted), job.Len(), job.TotalCost)

	for _, it := range job.Items() {
		if it.Result == nil {
			fmt.Fprintf(out, "  #%d failed: %s\n", it.Index+1, it.Error)
			continue
		}
		key, err := store.Write(ctx, storage.JobKey(job.ID, batch.ItemFilename(it)), it.Result)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  #%d %s\n", it.Index+1, key)
	}

	gallery, err := svc.GalleryPreview(ctx, job)
	if errors.Is(err, domain.ErrNoResults) {
		return fmt.Errorf("batch %s produced no images", job.ID)
	}
	if err != nil {
		return err
	}
	key, err := store.Write(ctx, storage.JobKey(job.ID, "gallery.jpg"), gallery)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  gallery %s\n", key)

	archive, err := svc.Archive(job)
	if err != nil {
		return err
	}
	key, err = store.Write(ctx, storage.JobKey(job.ID, "results.zip"), archive)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  archive %s\n", key)
	return nil
}
