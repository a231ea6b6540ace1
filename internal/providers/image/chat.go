package image

import (
	"context"

	"imagebatch/internal/providers/chatimage"
)

// ChatGenerator serves images from an OpenAI-compatible chat endpoint.
type ChatGenerator struct {
	client *chatimage.Client
}

func NewChatGenerator(client *chatimage.Client) *ChatGenerator {
	return &ChatGenerator{client: client}
}

func (g *ChatGenerator) Name() string {
	return g.client.Name()
}

func (g *ChatGenerator) Generate(ctx context.Context, req GenerateRequest) ([]byte, error) {
	return g.client.GenerateImage(ctx, chatimage.ImageRequest{
		Prompt:    req.Prompt,
		Model:     req.Model,
		Image:     req.Image,
		ImageMIME: req.ImageMIME,
	})
}

var _ Generator = (*ChatGenerator)(nil)
