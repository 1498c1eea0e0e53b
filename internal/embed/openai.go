package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	ragerr "github.com/DrNightingales/Custom-RAG/internal/errors"
)

// DefaultOpenAIBaseURL is the default provider endpoint.
const DefaultOpenAIBaseURL = "https://api.openai.com"

// DefaultOpenAIModel is the default embedding model.
const DefaultOpenAIModel = "text-embedding-3-large"

// knownModelDimensions maps model identifiers to their output dimensions.
// Unknown models fall back to auto-detection on the first request.
var knownModelDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

// OpenAIConfig configures the OpenAI embedder.
type OpenAIConfig struct {
	// BaseURL is the API endpoint (default: DefaultOpenAIBaseURL).
	BaseURL string

	// APIKey is the bearer credential. Threaded through as an opaque value.
	APIKey string

	// Model is the embedding model identifier.
	Model string

	// Dimensions overrides the known-model table when non-zero.
	Dimensions int

	// BatchSize for batch requests (default: DefaultBatchSize).
	BatchSize int

	// Timeout for a single API request (default: DefaultTimeout).
	Timeout time.Duration

	// MaxRetries for transient failures (default: DefaultMaxRetries).
	MaxRetries int

	// HTTPProxy / HTTPSProxy route requests through a proxy, selected by
	// target scheme. Empty falls back to the process environment.
	HTTPProxy  string
	HTTPSProxy string
}

// OpenAIEmbedder generates embeddings via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    OpenAIConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

// Verify interface implementation at compile time.
var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an OpenAI embedder.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	proxy, err := proxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy:               proxy,
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = knownModelDimensions[cfg.Model]
	}

	return &OpenAIEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		dims:      dims,
	}, nil
}

// proxyFunc builds a per-scheme proxy selector. When neither proxy is
// configured it defers to the process environment.
func proxyFunc(httpProxy, httpsProxy string) (func(*http.Request) (*url.URL, error), error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment, nil
	}

	var httpURL, httpsURL *url.URL
	var err error
	if httpProxy != "" {
		if httpURL, err = url.Parse(httpProxy); err != nil {
			return nil, fmt.Errorf("invalid http proxy %q: %w", httpProxy, err)
		}
	}
	if httpsProxy != "" {
		if httpsURL, err = url.Parse(httpsProxy); err != nil {
			return nil, fmt.Errorf("invalid https proxy %q: %w", httpsProxy, err)
		}
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsURL != nil {
			return httpsURL, nil
		}
		if req.URL.Scheme == "http" && httpURL != nil {
			return httpURL, nil
		}
		return nil, nil
	}, nil
}

// embedRequest is the OpenAI embeddings API request body.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the OpenAI embeddings API response body.
type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed generates the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, ragerr.EmbedProvider("no embedding returned", nil)
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts, partitioned into
// provider-sized batches. Each batch is a blocking request with retry; the
// first unrecoverable failure aborts the whole call.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(texts))

		var batch [][]float32
		retryCfg := DefaultRetryConfig()
		retryCfg.MaxRetries = e.config.MaxRetries
		err := DoWithRetry(ctx, retryCfg, func() error {
			var doErr error
			batch, doErr = e.doEmbed(ctx, texts[start:end])
			return doErr
		})
		if err != nil {
			return nil, ragerr.EmbedProvider(
				fmt.Sprintf("embedding batch %d-%d failed", start, end), err,
			).WithDetail("model", e.config.Model)
		}

		results = append(results, batch...)
	}

	return results, nil
}

// doEmbed performs a single embeddings API request.
func (e *OpenAIEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.config.BaseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	// The API may return entries out of order; place by index.
	embeddings := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		embeddings[d.Index] = normalizeVector(vec)
	}

	if e.dimensions() == 0 && len(embeddings) > 0 {
		e.setDimensions(len(embeddings[0]))
	}

	return embeddings, nil
}

func (e *OpenAIEmbedder) dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

func (e *OpenAIEmbedder) setDimensions(d int) {
	e.mu.Lock()
	e.dims = d
	e.mu.Unlock()
}

// Dimensions returns the embedding dimension. Zero means the dimension is
// unknown until the first successful request.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions()
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return e.config.Model
}

// Close releases HTTP resources.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
