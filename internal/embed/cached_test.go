package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder is a test double that records provider calls.
type countingEmbedder struct {
	calls atomic.Int32
}

func (f *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	return []float32{float32(len(text)), 1, 0}, nil
}

func (f *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, _ := f.Embed(ctx, t)
		out[i] = vec
	}
	return out, nil
}

func (f *countingEmbedder) Dimensions() int    { return 3 }
func (f *countingEmbedder) ModelName() string  { return "counting" }
func (f *countingEmbedder) Close() error       { return nil }

func TestCachedEmbedder_HitSkipsProvider(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 10)

	v1, err := c.Embed(context.Background(), "query")
	require.NoError(t, err)
	v2, err := c.Embed(context.Background(), "query")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedEmbedder_BatchMixedHits(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 10)

	_, err := c.Embed(context.Background(), "aa")
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(context.Background(), []string{"aa", "bbb", "aa"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, vecs[0], vecs[2])
	// One warm entry; only "bbb" goes to the provider.
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	c := NewCachedEmbedder(&countingEmbedder{}, 0)
	assert.Equal(t, 3, c.Dimensions())
	assert.Equal(t, "counting", c.ModelName())
	assert.NoError(t, c.Close())
}
