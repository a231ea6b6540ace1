package batch

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagebatch/internal/catalog"
	"imagebatch/internal/domain"
	"imagebatch/internal/imaging"
	imgprov "imagebatch/internal/providers/image"
)

type memRecorder struct {
	mu      sync.Mutex
	records []domain.BatchRecord
	err     error
}

func (r *memRecorder) SaveBatchJob(_ context.Context, rec domain.BatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

func (r *memRecorder) all() []domain.BatchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.BatchRecord(nil), r.records...)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func solidPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func okGenerator(data []byte) imgprov.GeneratorFunc {
	return func(context.Context, imgprov.GenerateRequest) ([]byte, error) { return data, nil }
}

func newService(t *testing.T, gen imgprov.Generator, opts ...func(*Options)) (*Service, *memRecorder) {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	rec := &memRecorder{}
	o := Options{
		Catalog:   cat,
		Generator: gen,
		Recorder:  rec,
		Pool:      imaging.NewPool(2),
		Logger:    zerolog.Nop(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	svc, err := NewService(o)
	require.NoError(t, err)
	return svc, rec
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(Options{Generator: okGenerator(nil)})
	assert.Error(t, err)

	cat, err := catalog.Default()
	require.NoError(t, err)
	_, err = NewService(Options{Catalog: cat})
	assert.Error(t, err)

	svc, err := NewService(Options{Catalog: cat, Generator: okGenerator(nil)})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxConcurrent, svc.MaxConcurrent())
}

func TestCreateJob(t *testing.T) {
	svc, _ := newService(t, okGenerator([]byte("x")))

	job, err := svc.CreateJob(CreateRequest{UserID: "u1", Mode: "batch_6", PresetID: "portrait", BasePrompt: "a red fox"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(job.ID, "batch_u1_"), job.ID)
	assert.Contains(t, job.ID, "_batch_6_")
	assert.Equal(t, domain.BatchStatusPending, job.Status())
	assert.Equal(t, 20, job.TotalCost)
	assert.Equal(t, catalog.DefaultModel, job.Model)
	require.Equal(t, 6, job.Len())
	items := job.Items()
	assert.Equal(t, "a red fox. Variation 1: vary the composition.", items[0].Prompt)
	assert.Equal(t, "a red fox. Variation 6: vary the background.", items[5].Prompt)
	for i, it := range items {
		assert.Equal(t, i, it.Index)
		assert.Equal(t, domain.BatchStatusPending, it.Status)
	}

	got, err := svc.Get(job.ID)
	require.NoError(t, err)
	assert.Same(t, job, got)
}

func TestCreateJobRejectsUnknownConfig(t *testing.T) {
	svc, _ := newService(t, okGenerator([]byte("x")))

	_, err := svc.CreateJob(CreateRequest{UserID: "u1", Mode: "batch_99", PresetID: "portrait"})
	assert.ErrorIs(t, err, domain.ErrUnknownMode)

	_, err = svc.CreateJob(CreateRequest{UserID: "u1", Mode: "batch_6", PresetID: "nope"})
	assert.ErrorIs(t, err, domain.ErrUnknownPreset)

	assert.Equal(t, 0, svc.registry.Len())
}

func TestCreateJobDefaultsAndDuplicates(t *testing.T) {
	svc, _ := newService(t, okGenerator([]byte("x")))

	job, err := svc.CreateJob(CreateRequest{JobID: "fixed", UserID: "u1", Mode: "variations_3", PresetID: "landscape"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", job.ID)
	assert.Equal(t, "A cinematic landscape at golden hour, wide angle", job.BasePrompt)
	assert.Equal(t, "Style realistic: A cinematic landscape at golden hour, wide angle", job.Items()[0].Prompt)
	assert.Equal(t, 14, job.TotalCost)

	_, err = svc.CreateJob(CreateRequest{JobID: "fixed", UserID: "u1", Mode: "variations_3", PresetID: "landscape"})
	assert.ErrorIs(t, err, domain.ErrDuplicateOperation)
}

func TestTotalCostRounds(t *testing.T) {
	assert.Equal(t, 13, TotalCost(4, 3.2))
	assert.Equal(t, 20, TotalCost(4, 5.1))
	assert.Equal(t, 11, TotalCost(4, 2.7))
	assert.Equal(t, 0, TotalCost(0, 2.7))
}

func TestExecutePartialBatch(t *testing.T) {
	data := []byte("img")
	gen := imgprov.GeneratorFunc(func(_ context.Context, req imgprov.GenerateRequest) ([]byte, error) {
		if strings.Contains(req.Prompt, "Variation 2:") || strings.Contains(req.Prompt, "Variation 4:") {
			return nil, errors.New("provider refused")
		}
		return data, nil
	})
	svc, rec := newService(t, gen)

	job, err := svc.CreateJob(CreateRequest{UserID: "u1", Mode: "batch_6", PresetID: "portrait", BasePrompt: "fox"})
	require.NoError(t, err)

	var calls int32
	got, err := svc.Execute(context.Background(), job, func(_ context.Context, j *domain.BatchJob) {
		atomic.AddInt32(&calls, 1)
	})
	require.NoError(t, err)
	assert.Same(t, job, got)

	assert.Equal(t, domain.BatchStatusPartial, job.Status())
	assert.Equal(t, 66, job.ProgressPercent())
	assert.Len(t, job.Successful(), 4)
	assert.True(t, job.IsComplete())
	assert.False(t, job.CompletedAt().IsZero())
	assert.Equal(t, int32(6), atomic.LoadInt32(&calls))

	for _, it := range job.Items() {
		if it.Index == 1 || it.Index == 3 {
			assert.Equal(t, domain.BatchStatusFailed, it.Status)
			assert.Equal(t, "provider refused", it.Error)
			assert.Nil(t, it.Result)
		} else {
			assert.Equal(t, domain.BatchStatusCompleted, it.Status)
			assert.Equal(t, data, it.Result)
			assert.Empty(t, it.Error)
		}
		assert.False(t, it.StartedAt.IsZero())
		assert.False(t, it.CompletedAt.IsZero())
	}

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, job.ID, records[0].JobID)
	assert.Equal(t, 4, records[0].ResultsCount)
	assert.Equal(t, 20, records[0].TotalCost)
	require.NotNil(t, records[0].Duration)
}

func TestExecuteAggregateStatus(t *testing.T) {
	tests := []struct {
		name   string
		failOn map[string]bool
		want   domain.BatchStatus
	}{
		{name: "all fail", failOn: map[string]bool{"realistic": true, "artistic": true, "abstract": true}, want: domain.BatchStatusFailed},
		{name: "all succeed", failOn: map[string]bool{}, want: domain.BatchStatusCompleted},
		{name: "one of three", failOn: map[string]bool{"artistic": true, "abstract": true}, want: domain.BatchStatusPartial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := imgprov.GeneratorFunc(func(_ context.Context, req imgprov.GenerateRequest) ([]byte, error) {
				for style := range tt.failOn {
					if strings.HasPrefix(req.Prompt, "Style "+style+":") {
						return nil, nil
					}
				}
				return []byte("ok"), nil
			})
			svc, _ := newService(t, gen)
			job, err := svc.CreateJob(CreateRequest{UserID: "u", Mode: "variations_3", PresetID: "portrait", BasePrompt: "cat"})
			require.NoError(t, err)

			_, err = svc.Execute(context.Background(), job, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, job.Status())
			for _, it := range job.Failed() {
				assert.Equal(t, domain.ErrEmptyResult.Error(), it.Error)
			}
		})
	}
}

func TestExecuteBoundsConcurrencyAcrossJobs(t *testing.T) {
	var inflight, peak int32
	gen := imgprov.GeneratorFunc(func(ctx context.Context, _ imgprov.GenerateRequest) ([]byte, error) {
		n := atomic.AddInt32(&inflight, 1)
		defer atomic.AddInt32(&inflight, -1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(15 * time.Millisecond)
		return []byte("ok"), nil
	})
	svc, _ := newService(t, gen, func(o *Options) { o.MaxConcurrent = 3 })

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		job, err := svc.CreateJob(CreateRequest{UserID: "u", Mode: "batch_6", PresetID: "portrait", BasePrompt: "x"})
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Execute(context.Background(), job, nil)
			assert.NoError(t, err)
			assert.Equal(t, domain.BatchStatusCompleted, job.Status())
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&peak), int32(1))
}

func TestExecuteSerializesProgress(t *testing.T) {
	svc, _ := newService(t, okGenerator([]byte("ok")), func(o *Options) { o.MaxConcurrent = 6 })
	job, err := svc.CreateJob(CreateRequest{UserID: "u", Mode: "batch_6", PresetID: "portrait", BasePrompt: "x"})
	require.NoError(t, err)

	var active, overlaps, calls int32
	_, err = svc.Execute(context.Background(), job, func(_ context.Context, j *domain.BatchJob) {
		if atomic.AddInt32(&active, 1) > 1 {
			atomic.AddInt32(&overlaps, 1)
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		atomic.AddInt32(&calls, 1)
	})
	require.NoError(t, err)
	assert.Equal(t, int32(0), overlaps)
	assert.Equal(t, int32(6), calls)
}

func TestExecuteGridSplitsSingleCall(t *testing.T) {
	var calls int32
	var prompt string
	src := solidPNG(t, 512, 512)
	gen := imgprov.GeneratorFunc(func(_ context.Context, req imgprov.GenerateRequest) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		prompt = req.Prompt
		return src, nil
	})
	svc, _ := newService(t, gen)
	job, err := svc.CreateJob(CreateRequest{UserID: "u", Mode: "grid_2x2", PresetID: "portrait", BasePrompt: "a lighthouse"})
	require.NoError(t, err)
	assert.Equal(t, 13, job.TotalCost)

	var reports int
	_, err = svc.Execute(context.Background(), job, func(context.Context, *domain.BatchJob) { reports++ })
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Contains(t, prompt, "Create a 2×2 grid image showing 4 variations of: a lighthouse.")
	assert.Equal(t, 4, reports)
	assert.Equal(t, domain.BatchStatusCompleted, job.Status())
	for _, it := range job.Items() {
		require.Equal(t, domain.BatchStatusCompleted, it.Status)
		img, err := imaging.Decode(it.Result)
		require.NoError(t, err)
		assert.Equal(t, image.Pt(256, 256), img.Bounds().Size())
	}
}

func TestExecuteGridFailures(t *testing.T) {
	tests := []struct {
		name string
		gen  imgprov.GeneratorFunc
		want string
	}{
		{
			name: "provider error",
			gen:  func(context.Context, imgprov.GenerateRequest) ([]byte, error) { return nil, errors.New("quota") },
			want: "quota",
		},
		{
			name: "empty result",
			gen:  func(context.Context, imgprov.GenerateRequest) ([]byte, error) { return nil, nil },
			want: domain.ErrEmptyResult.Error(),
		},
		{
			name: "undecodable",
			gen:  func(context.Context, imgprov.GenerateRequest) ([]byte, error) { return []byte("garbage"), nil },
			want: "split grid",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t, tt.gen)
			job, err := svc.CreateJob(CreateRequest{UserID: "u", Mode: "grid_2x2", PresetID: "portrait", BasePrompt: "x"})
			require.NoError(t, err)

			_, err = svc.Execute(context.Background(), job, nil)
			require.NoError(t, err)
			assert.Equal(t, domain.BatchStatusFailed, job.Status())
			items := job.Items()
			for _, it := range items {
				assert.Equal(t, domain.BatchStatusFailed, it.Status)
				assert.Contains(t, it.Error, tt.want)
				assert.Equal(t, items[0].Error, it.Error)
			}
		})
	}
}

func TestExecuteRejectsRestart(t *testing.T) {
	svc, _ := newService(t, okGenerator([]byte("ok")))
	job, err := svc.CreateJob(CreateRequest{UserID: "u", Mode: "variations_3", PresetID: "portrait", BasePrompt: "x"})
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), job, nil)
	require.NoError(t, err)
	_, err = svc.Execute(context.Background(), job, nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyStarted)
	_, err = svc.ExecuteStream(context.Background(), job)
	assert.ErrorIs(t, err, domain.ErrAlreadyStarted)
}

func TestExecuteCancelledContext(t *testing.T) {
	var calls int32
	gen := imgprov.GeneratorFunc(func(context.Context, imgprov.GenerateRequest) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("ok"), nil
	})
	svc, rec := newService(t, gen)
	job, err := svc.CreateJob(CreateRequest{UserID: "u", Mode: "batch_6", PresetID: "portrait", BasePrompt: "x"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var reports int32
	_, err = svc.Execute(ctx, job, func(context.Context, *domain.BatchJob) { atomic.AddInt32(&reports, 1) })
	require.NoError(t, err)

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(6), atomic.LoadInt32(&reports))
	assert.True(t, job.IsComplete())
	assert.Equal(t, domain.BatchStatusFailed, job.Status())
	for _, it := range job.Items() {
		assert.Equal(t, context.Canceled.Error(), it.Error)
	}
	assert.Len(t, rec.all(), 1)
}

func TestExecuteRecoversProviderPanic(t *testing.T) {
	gen := imgprov.GeneratorFunc(func(_ context.Context, req imgprov.GenerateRequest) ([]byte, error) {
		if strings.HasPrefix(req.Prompt, "Style artistic") {
			panic("nil map")
		}
		return []byte("ok"), nil
	})
	svc, _ := newService(t, gen)
	job, err := svc.CreateJob(CreateRequest{UserID: "u", Mode: "variations_3", PresetID: "portrait", BasePrompt: "x"})
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), job, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusPartial, job.Status())
	failed := job.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Index)
	assert.Contains(t, failed[0].Error, "nil map")
}

func TestExecuteRecorderErrorIsNotFatal(t *testing.T) {
	svc, rec := newService(t, okGenerator([]byte("ok")))
	rec.err = errors.New("db down")
	job, err := svc.CreateJob(CreateRequest{UserID: "u", Mode: "variations_3", PresetID: "portrait", BasePrompt: "x"})
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), job, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCompleted, job.Status())
	assert.Len(t, rec.all(), 1)
}

func TestExecuteStream(t *testing.T) {
	svc, _ := newService(t, okGenerator([]byte("ok")))
	job, err := svc.CreateJob(CreateRequest{UserID: "u", Mode: "batch_6", PresetID: "portrait", BasePrompt: "x"})
	require.NoError(t, err)

	stream, err := svc.ExecuteStream(context.Background(), job)
	require.NoError(t, err)

	var snaps []domain.JobSnapshot
	for s := range stream {
		snaps = append(snaps, s)
	}
	require.Len(t, snaps, 7)
	last := snaps[len(snaps)-1]
	assert.Equal(t, domain.BatchStatusCompleted, last.Status)
	assert.Equal(t, 100, last.Progress)
	require.NotNil(t, last.CompletedAt)
	for i := 1; i < len(snaps); i++ {
		assert.GreaterOrEqual(t, snaps[i].Completed, snaps[i-1].Completed)
	}
}

func TestGalleryPreview(t *testing.T) {
	src := solidPNG(t, 64, 48)
	gen := imgprov.GeneratorFunc(func(_ context.Context, req imgprov.GenerateRequest) ([]byte, error) {
		if strings.HasPrefix(req.Prompt, "Style abstract") {
			return nil, errors.New("nope")
		}
		return src, nil
	})
	svc, _ := newService(t, gen)
	job, err := svc.CreateJob(CreateRequest{UserID: "u", Mode: "variations_3", PresetID: "portrait", BasePrompt: "x"})
	require.NoError(t, err)
	_, err = svc.Execute(context.Background(), job, nil)
	require.NoError(t, err)

	first, err := svc.GalleryPreview(context.Background(), job)
	require.NoError(t, err)
	second, err := svc.GalleryPreview(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	img, err := imaging.Decode(first)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(1024, 512), img.Bounds().Size())
}

func TestGalleryPreviewWithoutResults(t *testing.T) {
	svc, _ := newService(t, okGenerator(nil))
	job, err := svc.CreateJob(CreateRequest{UserID: "u", Mode: "variations_3", PresetID: "portrait", BasePrompt: "x"})
	require.NoError(t, err)
	_, err = svc.Execute(context.Background(), job, nil)
	require.NoError(t, err)

	_, err = svc.GalleryPreview(context.Background(), job)
	assert.ErrorIs(t, err, domain.ErrNoResults)
}

func TestArchive(t *testing.T) {
	src := solidPNG(t, 16, 16)
	gen := imgprov.GeneratorFunc(func(_ context.Context, req imgprov.GenerateRequest) ([]byte, error) {
		if strings.HasPrefix(req.Prompt, "Style abstract") {
			return nil, errors.New("nope")
		}
		return src, nil
	})
	svc, _ := newService(t, gen)
	job, err := svc.CreateJob(CreateRequest{UserID: "u", Mode: "variations_3", PresetID: "portrait", BasePrompt: "x"})
	require.NoError(t, err)

	_, err = svc.Archive(job)
	assert.ErrorIs(t, err, domain.ErrNoResults)

	_, err = svc.Execute(context.Background(), job, nil)
	require.NoError(t, err)

	out, err := svc.Archive(job)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"item_01.png", "item_02.png"}, names)
}

func TestItemFilename(t *testing.T) {
	assert.Equal(t, "item_01.png", ItemFilename(domain.BatchItem{Index: 0, Result: solidPNG(t, 2, 2)}))
	assert.Equal(t, "item_12.jpg", ItemFilename(domain.BatchItem{Index: 11, Result: []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")}))
}

func TestUpscale(t *testing.T) {
	var last imgprov.GenerateRequest
	gen := imgprov.GeneratorFunc(func(_ context.Context, req imgprov.GenerateRequest) ([]byte, error) {
		if req.Image != nil {
			last = req
			return []byte("big"), nil
		}
		if strings.HasPrefix(req.Prompt, "Style abstract") {
			return nil, errors.New("nope")
		}
		return []byte("small-" + req.Prompt[:10]), nil
	})
	svc, _ := newService(t, gen)
	job, err := svc.CreateJob(CreateRequest{UserID: "u", Mode: "variations_3", PresetID: "portrait", BasePrompt: "x"})
	require.NoError(t, err)
	_, err = svc.Execute(context.Background(), job, nil)
	require.NoError(t, err)
	before := job.Snapshot()

	out, err := svc.Upscale(context.Background(), job.ID, 0, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("big"), out)
	item, _ := job.Item(0)
	assert.Equal(t, item.Result, last.Image)
	assert.Equal(t, catalog.DefaultUpscaleModel, last.Model)
	assert.Equal(t, UpscalePrompt("4K"), last.Prompt)
	assert.Equal(t, before, job.Snapshot())

	_, err = svc.Upscale(context.Background(), job.ID, 1, "2k")
	require.NoError(t, err)
	assert.Contains(t, last.Prompt, "to 2K quality")

	_, err = svc.Upscale(context.Background(), "missing", 0, "4K")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Upscale(context.Background(), job.ID, 3, "4K")
	assert.ErrorIs(t, err, domain.ErrInvalidIndex)
	_, err = svc.Upscale(context.Background(), job.ID, -1, "4K")
	assert.ErrorIs(t, err, domain.ErrInvalidIndex)
	_, err = svc.Upscale(context.Background(), job.ID, 2, "4K")
	assert.ErrorIs(t, err, domain.ErrNoResults)
	_, err = svc.Upscale(context.Background(), job.ID, 0, "8K")
	assert.ErrorIs(t, err, domain.ErrBadResolution)
}

func TestCleanupOldJobs(t *testing.T) {
	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, _ := newService(t, okGenerator([]byte("ok")), func(o *Options) { o.Now = clk.Now })
	start := clk.Now()

	old, err := svc.CreateJob(CreateRequest{JobID: "old", UserID: "u", Mode: "variations_3", PresetID: "portrait", BasePrompt: "x"})
	require.NoError(t, err)
	_, err = svc.Execute(context.Background(), old, nil)
	require.NoError(t, err)

	stale, err := svc.CreateJob(CreateRequest{JobID: "stale-running", UserID: "u", Mode: "variations_3", PresetID: "portrait", BasePrompt: "x"})
	require.NoError(t, err)
	require.True(t, stale.Begin())

	clk.Set(start.Add(29 * time.Hour))
	recent, err := svc.CreateJob(CreateRequest{JobID: "recent", UserID: "u", Mode: "variations_3", PresetID: "portrait", BasePrompt: "x"})
	require.NoError(t, err)
	_, err = svc.Execute(context.Background(), recent, nil)
	require.NoError(t, err)

	clk.Set(start.Add(30 * time.Hour))
	assert.Equal(t, 1, svc.CleanupOldJobs(24))

	_, err = svc.Get("old")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Get("stale-running")
	assert.NoError(t, err)
	_, err = svc.Get("recent")
	assert.NoError(t, err)
	assert.Len(t, svc.JobsByUser("u"), 2)
}

func TestJanitorEvicts(t *testing.T) {
	clk := &clock{t: time.Now()}
	svc, _ := newService(t, okGenerator([]byte("ok")), func(o *Options) { o.Now = clk.Now })
	job, err := svc.CreateJob(CreateRequest{UserID: "u", Mode: "variations_3", PresetID: "portrait", BasePrompt: "x"})
	require.NoError(t, err)
	_, err = svc.Execute(context.Background(), job, nil)
	require.NoError(t, err)
	clk.Set(clk.Now().Add(2 * time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewJanitor(svc, 5*time.Millisecond, time.Hour).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return svc.registry.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
