package batch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"imagebatch/internal/domain"
	"imagebatch/internal/imaging"
	"imagebatch/internal/providers/image"
	"imagebatch/pkg/zip"
)

const upscalePromptFormat = "Faithfully upscale and enhance this image to %s quality. " +
	"Preserve all details, enhance sharpness, add fine texture where appropriate. " +
	"Professional photo restoration and enhancement."

// GalleryPreview composes the successful items of job into one labelled JPEG.
// The result depends only on the item results, so repeated calls on a
// finalized job return identical bytes.
func (s *Service) GalleryPreview(ctx context.Context, job *domain.BatchJob) ([]byte, error) {
	succeeded := job.Successful()
	if len(succeeded) == 0 {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNoResults, job.ID)
	}
	thumbs := make([]imaging.Thumbnail, len(succeeded))
	for i, it := range succeeded {
		thumbs[i] = imaging.Thumbnail{Label: strconv.Itoa(it.Index + 1), Data: it.Result}
	}
	out, err := s.pool.ComposeGallery(ctx, thumbs, imaging.GalleryOptions{})
	if errors.Is(err, imaging.ErrNoImages) {
		return nil, fmt.Errorf("%w: job %s has no decodable results", domain.ErrNoResults, job.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("compose gallery: %w", err)
	}
	return out, nil
}

// ItemFilename names an item result for downloads, e.g. item_01.png.
func ItemFilename(it domain.BatchItem) string {
	return fmt.Sprintf("item_%02d%s", it.Index+1, extensionFor(it.Result))
}

func extensionFor(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

// Archive zips the successful items of job, stamped with the job's creation
// time.
func (s *Service) Archive(job *domain.BatchJob) ([]byte, error) {
	succeeded := job.Successful()
	if len(succeeded) == 0 {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNoResults, job.ID)
	}
	entries := make([]zip.Entry, len(succeeded))
	for i, it := range succeeded {
		entries[i] = zip.Entry{Filename: ItemFilename(it), Data: it.Result}
	}
	return zip.Archive(entries, job.CreatedAt)
}

// UpscalePrompt is the instruction sent with the source image.
func UpscalePrompt(resolution string) string {
	return fmt.Sprintf(upscalePromptFormat, resolution)
}

// Upscale re-renders one finished item at a higher resolution. The job is
// not modified.
func (s *Service) Upscale(ctx context.Context, jobID string, index int, resolution string) ([]byte, error) {
	job, err := s.registry.Get(jobID)
	if err != nil {
		return nil, err
	}
	item, ok := job.Item(index)
	if !ok {
		return nil, fmt.Errorf("%w: %d of %d", domain.ErrInvalidIndex, index, job.Len())
	}
	if item.Result == nil {
		return nil, fmt.Errorf("%w: item %d has no result", domain.ErrNoResults, index)
	}
	opt, ok := s.catalog.UpscaleOption(resolution)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrBadResolution, resolution)
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	data, err := s.invoke(ctx, image.GenerateRequest{
		Prompt:    UpscalePrompt(opt.Resolution),
		Model:     s.catalog.Upscale.Model,
		Image:     item.Result,
		ImageMIME: http.DetectContentType(item.Result),
	})
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("job_id", jobID).
			Int("item", index).
			Str("resolution", opt.Resolution).
			Msg("batch: upscale failed")
		return nil, fmt.Errorf("upscale: %w", err)
	}
	s.logger.Info().
		Str("job_id", jobID).
		Int("item", index).
		Str("resolution", opt.Resolution).
		Int("bytes", len(data)).
		Msg("batch: item upscaled")
	return data, nil
}
