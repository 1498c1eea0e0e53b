package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerr "github.com/DrNightingales/Custom-RAG/internal/errors"
)

// newEmbeddingsStub serves the embeddings endpoint, returning a distinct
// 3-dimensional vector per input.
func newEmbeddingsStub(t *testing.T, calls *atomic.Int32, failFirst int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		if n <= failFirst {
			http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
			return
		}

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp embedResponse
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float64 `json:"embedding"`
			}{Index: i, Embedding: []float64{float64(i + 1), 0, 0}})
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func fastRetryEmbedder(t *testing.T, baseURL string) *OpenAIEmbedder {
	t.Helper()
	e, err := NewOpenAIEmbedder(OpenAIConfig{
		BaseURL:    baseURL,
		APIKey:     "sk-test",
		Model:      "text-embedding-3-small",
		BatchSize:  4,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
	})
	require.NoError(t, err)
	return e
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	var calls atomic.Int32
	srv := newEmbeddingsStub(t, &calls, 0)
	defer srv.Close()

	e := fastRetryEmbedder(t, srv.URL)
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "parse json")
	require.NoError(t, err)
	require.Len(t, vec, 3)
	// Vectors come back unit-normalized.
	assert.InDelta(t, 1.0, vec[0], 1e-6)
}

func TestOpenAIEmbedder_BatchPartitioning(t *testing.T) {
	var calls atomic.Int32
	srv := newEmbeddingsStub(t, &calls, 0)
	defer srv.Close()

	e := fastRetryEmbedder(t, srv.URL)
	defer func() { _ = e.Close() }()

	texts := make([]string, 10) // batch size 4 => 3 requests
	for i := range texts {
		texts[i] = "chunk"
	}

	vecs, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vecs, 10)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAIEmbedder_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := newEmbeddingsStub(t, &calls, 1)
	defer srv.Close()

	e := fastRetryEmbedder(t, srv.URL)
	defer func() { _ = e.Close() }()

	_, err := e.Embed(context.Background(), "retry me")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIEmbedder_ExhaustedRetriesSurfaceProviderError(t *testing.T) {
	var calls atomic.Int32
	srv := newEmbeddingsStub(t, &calls, 99)
	defer srv.Close()

	e := fastRetryEmbedder(t, srv.URL)
	defer func() { _ = e.Close() }()

	_, err := e.Embed(context.Background(), "doomed")
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeEmbedProvider, ragerr.GetCode(err))
	assert.True(t, ragerr.IsRetryable(err))
}

func TestOpenAIEmbedder_DimensionAutoDetect(t *testing.T) {
	var calls atomic.Int32
	srv := newEmbeddingsStub(t, &calls, 0)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{
		BaseURL: srv.URL,
		Model:   "some-unknown-model",
	})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Equal(t, 0, e.Dimensions(), "unknown model has no dimension until first call")

	_, err = e.Embed(context.Background(), "probe")
	require.NoError(t, err)
	assert.Equal(t, 3, e.Dimensions())
}

func TestOpenAIEmbedder_KnownModelDimensions(t *testing.T) {
	e, err := NewOpenAIEmbedder(OpenAIConfig{Model: "text-embedding-3-large"})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()
	assert.Equal(t, 3072, e.Dimensions())
}

func TestOpenAIEmbedder_EmptyBatch(t *testing.T) {
	e, err := NewOpenAIEmbedder(OpenAIConfig{})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	vecs, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestDoWithRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := DoWithRetry(ctx, DefaultRetryConfig(), func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
