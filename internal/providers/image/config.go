package image

import (
	"fmt"

	"imagebatch/internal/infra"
	"imagebatch/internal/providers/chatimage"
	"imagebatch/internal/providers/genai"
)

const nanoBananaMaxTokens = 4096

// NewChainFromConfig builds the fallback chain NanoBanana, OpenRouter,
// Gemini. Chat providers without an API key are skipped; Gemini is always
// last and renders synthetic images when it has no key.
func NewChainFromConfig(cfg *infra.Config, logger *infra.Logger) (*Chain, error) {
	var providers []Provider

	if cfg.NanoBananaAPIKey != "" {
		c, err := chatimage.NewClient(chatimage.Options{
			Name:      "nanobanana",
			APIKey:    cfg.NanoBananaAPIKey,
			BaseURL:   cfg.NanoBananaBaseURL,
			MaxTokens: nanoBananaMaxTokens,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("nanobanana: %w", err)
		}
		providers = append(providers, Provider{Name: c.Name(), Generator: NewChatGenerator(c)})
	}

	if cfg.OpenRouterAPIKey != "" {
		c, err := chatimage.NewClient(chatimage.Options{
			Name:     "openrouter",
			APIKey:   cfg.OpenRouterAPIKey,
			BaseURL:  cfg.OpenRouterBaseURL,
			ModelMap: chatimage.OpenRouterModel,
			Headers:  map[string]string{"X-Title": "imagebatch"},
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("openrouter: %w", err)
		}
		providers = append(providers, Provider{Name: c.Name(), Generator: NewChatGenerator(c)})
	}

	gc, err := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	gemini := NewGeminiGenerator(gc)
	providers = append(providers, Provider{Name: gemini.Name(), Generator: gemini})

	return NewChain(logger, providers...), nil
}
