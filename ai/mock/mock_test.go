package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/poiesic/docchat/ai"
	"github.com/poiesic/docchat/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector_DeterministicUnitLength(t *testing.T) {
	a := Vector("The sky is blue.")
	b := Vector("The sky is blue.")
	c := Vector("Water is wet.")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	require.Len(t, a, Dimension)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4)
}

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder()
	vs, err := e.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vs, 2)
	assert.Equal(t, 1, e.CallCount())

	boom := errors.New("boom")
	e.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) { return nil, boom }
	_, err = e.EmbedText(context.Background(), "x")
	assert.ErrorIs(t, err, boom)

	e.Reset()
	assert.Zero(t, e.CallCount())
}

func TestMockChatModel_Streams(t *testing.T) {
	m := NewMockChatModel("m", "a", "b")
	var got []string
	full, err := m.StreamChat(context.Background(), []ai.ChatMessage{{Role: ai.ChatRoleUser, Content: "q"}},
		func(ctx context.Context, f string) error {
			got = append(got, f)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, "ab", full)
	assert.Equal(t, []string{"a", "b"}, got)
	require.Len(t, m.Calls(), 1)
}

func TestMockSummarizer_FirstSentence(t *testing.T) {
	s := NewMockSummarizer()
	summary, err := s.Summarize(context.Background(), "The sky is blue. Water is wet.")
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", summary)
	assert.Len(t, s.Inputs(), 1)
}

func TestMockProvider_ChatModel(t *testing.T) {
	p := NewMockProvider()

	_, err := p.ChatModel("")
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = p.ChatModel("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	scripted := NewMockChatModel("scripted", "x")
	p.SetChatModel(scripted)
	got, err := p.ChatModel("scripted")
	require.NoError(t, err)
	assert.Same(t, scripted, got)
}
