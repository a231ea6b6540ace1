package image

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagebatch/internal/infra"
)

func TestNewChainFromConfig(t *testing.T) {
	cfg := &infra.Config{
		GeminiModel:       "gemini-2.5-flash-image",
		GeminiBaseURL:     "https://example.invalid/v1beta",
		NanoBananaBaseURL: "https://nb.invalid/v1",
		OpenRouterBaseURL: "https://or.invalid/api/v1",
	}

	chain, err := NewChainFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-synthetic"}, chain.Names())

	cfg.NanoBananaAPIKey = "nb"
	cfg.OpenRouterAPIKey = "or"
	cfg.GeminiAPIKey = "g"
	chain, err = NewChainFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"nanobanana", "openrouter", "gemini"}, chain.Names())
}
