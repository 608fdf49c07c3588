package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/groundwork/core"
)

type fakeInner struct {
	dim      int
	failures int
	calls    int
	batches  [][]string
}

func (f *fakeInner) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection refused")
	}
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, f.dim)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

func (f *fakeInner) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func testConfig(dim, batch int) *Config {
	return &Config{Model: "fake", Dimension: dim, BatchSize: batch, MaxRetries: 3, RetryDelay: time.Millisecond}
}

func TestLangchainEmbedder_BatchesInOrder(t *testing.T) {
	inner := &fakeInner{dim: 4}
	e := NewLangchainEmbedder(inner, testConfig(4, 2), nil)

	vectors, err := e.EmbedTexts(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	for i, v := range vectors {
		assert.Equal(t, float32(i+1), v[0])
	}
	assert.Len(t, inner.batches, 3)
	assert.Equal(t, 4, e.Dimension())
}

func TestLangchainEmbedder_Retries(t *testing.T) {
	inner := &fakeInner{dim: 4, failures: 2}
	e := NewLangchainEmbedder(inner, testConfig(4, 10), nil)

	v, err := e.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, v, 4)
	assert.Equal(t, 3, inner.calls)
}

func TestLangchainEmbedder_RetriesExhausted(t *testing.T) {
	inner := &fakeInner{dim: 4, failures: 10}
	e := NewLangchainEmbedder(inner, testConfig(4, 10), nil)

	_, err := e.EmbedText(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbedding)
}

func TestLangchainEmbedder_DimensionMismatch(t *testing.T) {
	inner := &fakeInner{dim: 3}
	e := NewLangchainEmbedder(inner, testConfig(4, 10), nil)

	_, err := e.EmbedTexts(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbedding)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestLangchainEmbedder_Empty(t *testing.T) {
	inner := &fakeInner{dim: 4}
	e := NewLangchainEmbedder(inner, testConfig(4, 10), nil)

	vectors, err := e.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Zero(t, inner.calls)
}
