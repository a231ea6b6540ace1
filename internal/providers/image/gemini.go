package image

import (
	"context"

	"imagebatch/internal/providers/genai"
)

type GeminiGenerator struct {
	client *genai.Client
}

func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) Name() string {
	if g.client != nil && g.client.Synthetic() {
		return "gemini-synthetic"
	}
	return "gemini"
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) ([]byte, error) {
	return g.client.GenerateImage(ctx, genai.ImageRequest{
		Prompt:      req.Prompt,
		Model:       req.Model,
		AspectRatio: req.AspectRatio,
		Image:       req.Image,
		ImageMIME:   req.ImageMIME,
	})
}

var _ Generator = (*GeminiGenerator)(nil)
