package image

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagebatch/internal/providers/genai"
)

func fixed(data []byte, err error) GeneratorFunc {
	return func(context.Context, GenerateRequest) ([]byte, error) { return data, err }
}

func TestChainFallsBackInOrder(t *testing.T) {
	var calls []string
	track := func(name string, g Generator) Generator {
		return GeneratorFunc(func(ctx context.Context, req GenerateRequest) ([]byte, error) {
			calls = append(calls, name)
			return g.Generate(ctx, req)
		})
	}
	chain := NewChain(nil,
		Provider{Name: "nanobanana", Generator: track("nanobanana", fixed(nil, errors.New("down")))},
		Provider{Name: "openrouter", Generator: track("openrouter", fixed(nil, nil))},
		Provider{Name: "gemini", Generator: track("gemini", fixed([]byte("img"), nil))},
	)

	data, err := chain.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)
	assert.Equal(t, []string{"nanobanana", "openrouter", "gemini"}, calls)
}

func TestChainJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	chain := NewChain(nil,
		Provider{Name: "a", Generator: fixed(nil, boom)},
		Provider{Name: "b", Generator: fixed(nil, nil)},
	)
	_, err := chain.Generate(context.Background(), GenerateRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "b: empty response")
}

func TestChainSkipsNilAndEmpty(t *testing.T) {
	chain := NewChain(nil, Provider{Name: "nil"})
	assert.Empty(t, chain.Names())
	_, err := chain.Generate(context.Background(), GenerateRequest{})
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestChainStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	second := false
	chain := NewChain(nil,
		Provider{Name: "a", Generator: GeneratorFunc(func(ctx context.Context, _ GenerateRequest) ([]byte, error) {
			cancel()
			return nil, ctx.Err()
		})},
		Provider{Name: "b", Generator: GeneratorFunc(func(context.Context, GenerateRequest) ([]byte, error) {
			second = true
			return []byte("x"), nil
		})},
	)
	_, err := chain.Generate(ctx, GenerateRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, second)
}

func TestGeminiGeneratorSynthetic(t *testing.T) {
	client, err := genai.NewClient(genai.Options{})
	require.NoError(t, err)
	g := NewGeminiGenerator(client)
	assert.Equal(t, "gemini-synthetic", g.Name())

	data, err := g.Generate(context.Background(), GenerateRequest{Prompt: "a cat"})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
