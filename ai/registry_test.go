package ai_test

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/docchat/ai"
	"github.com/poiesic/docchat/ai/mock"
	"github.com/poiesic/docchat/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Resolve(t *testing.T) {
	first := mock.NewMockProviderWithServices("first", mock.NewMockEmbedder(), mock.NewMockSummarizer())
	second := mock.NewMockProviderWithServices("second", mock.NewMockEmbedder(), mock.NewMockSummarizer())
	reg, err := ai.NewRegistry(first, second)
	require.NoError(t, err)

	p, model, err := reg.Resolve("second", "llama3.2")
	require.NoError(t, err)
	assert.Equal(t, "second", p.ID())
	assert.Equal(t, "llama3.2", model.Name())

	p, _, err = reg.Resolve("", "x")
	require.NoError(t, err)
	assert.Equal(t, "first", p.ID())
	assert.Equal(t, "first", reg.Default().ID())
	assert.Equal(t, []string{"first", "second"}, reg.IDs())

	_, _, err = reg.Resolve("bogus", "x")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, err, ai.ErrProviderNotFound)

	_, _, err = reg.Resolve("first", "  ")
	assert.ErrorIs(t, err, core.ErrValidation)

	assert.NoError(t, reg.Close())
}

func TestRegistry_Errors(t *testing.T) {
	_, err := ai.NewRegistry()
	assert.ErrorIs(t, err, ai.ErrNoProviders)

	_, err = ai.NewRegistry(mock.NewMockProvider(), mock.NewMockProvider())
	assert.ErrorIs(t, err, ai.ErrDuplicateProvider)
}

func TestRateLimitedEmbedder(t *testing.T) {
	inner := mock.NewMockEmbedder()
	assert.Same(t, inner, ai.NewRateLimitedEmbedder(inner, 0, 1))

	limited := ai.NewRateLimitedEmbedder(inner, 1000, 1)
	for range 3 {
		_, err := limited.EmbedText(context.Background(), "x")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.CallCount())

	slow := ai.NewRateLimitedEmbedder(inner, 0.001, 1)
	_, err := slow.EmbedTexts(context.Background(), []string{"first"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = slow.EmbedTexts(ctx, []string{"second"})
	assert.Error(t, err)
}
