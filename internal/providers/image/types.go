package image

import (
	"context"
	"errors"
)

// ErrNoProvider is returned by a Chain with nothing configured.
var ErrNoProvider = errors.New("image: no provider configured")

// GenerateRequest describes a normalized request passed to any image provider.
// Image, when set, is the conditioning input for edits and upscales.
type GenerateRequest struct {
	Prompt      string
	Model       string
	AspectRatio string
	Image       []byte
	ImageMIME   string
}

// Generator is the contract implemented by all image providers. A successful
// call returns the encoded image bytes.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]byte, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) ([]byte, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) ([]byte, error) {
	return f(ctx, req)
}
