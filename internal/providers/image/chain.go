package image

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"imagebatch/internal/infra"
)

// Provider is a named Generator inside a Chain.
type Provider struct {
	Name      string
	Generator Generator
}

// Chain tries each provider in order and returns the first non-empty image.
// When every provider fails the errors are joined.
type Chain struct {
	providers []Provider
	logger    *infra.Logger
}

func NewChain(logger *infra.Logger, providers ...Provider) *Chain {
	if logger == nil {
		l := zerolog.New(io.Discard)
		logger = &l
	}
	filtered := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.Generator != nil {
			filtered = append(filtered, p)
		}
	}
	return &Chain{providers: filtered, logger: logger}
}

// Names lists the configured providers in fallback order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name
	}
	return names
}

func (c *Chain) Generate(ctx context.Context, req GenerateRequest) ([]byte, error) {
	if len(c.providers) == 0 {
		return nil, ErrNoProvider
	}
	var errs []error
	for i, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := p.Generator.Generate(ctx, req)
		if err == nil && len(data) > 0 {
			return data, nil
		}
		if err == nil {
			err = errors.New("empty response")
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
		if ctx.Err() != nil {
			break
		}
		if i < len(c.providers)-1 {
			c.logger.Info().
				Err(err).
				Str("provider", p.Name).
				Str("next", c.providers[i+1].Name).
				Msg("image: provider failed, trying next")
		}
	}
	c.logger.Warn().Int("providers", len(c.providers)).Msg("image: all providers failed")
	return nil, errors.Join(errs...)
}

var _ Generator = (*Chain)(nil)
