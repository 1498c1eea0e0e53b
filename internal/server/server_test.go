package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerr "github.com/DrNightingales/Custom-RAG/internal/errors"
	"github.com/DrNightingales/Custom-RAG/internal/keywords"
	"github.com/DrNightingales/Custom-RAG/internal/retrieve"
	"github.com/DrNightingales/Custom-RAG/internal/store"
)

type stubSearcher struct {
	hits []store.SearchHit
	err  error
}

func (s *stubSearcher) Search(ctx context.Context, query string, limit int) ([]store.SearchHit, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func newTestServer(searcher retrieve.Searcher) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := retrieve.NewService(searcher, keywords.NewExtractor(), logger)
	return New(Config{Addr: "127.0.0.1:0"}, svc, logger)
}

func postRetrieve(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/retrieve", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRetrieveEndpoint(t *testing.T) {
	srv := newTestServer(&stubSearcher{hits: []store.SearchHit{
		{Filename: "db/pool.py", Text: "class ConnectionPool: ..."},
	}})

	rec := postRetrieve(t, srv, `{"query":"connection pool","fullInput":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var results []retrieve.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "db/pool.py", results[0].Name)
	assert.Equal(t, "db/pool.py", results[0].Description)
	assert.Equal(t, "class ConnectionPool: ...", results[0].Content)
}

func TestRetrieveEmptyResultIsJSONArray(t *testing.T) {
	srv := newTestServer(&stubSearcher{})

	rec := postRetrieve(t, srv, `{"query":"nothing matches this"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestRetrieveRejectsEmptyInput(t *testing.T) {
	srv := newTestServer(&stubSearcher{})

	rec := postRetrieve(t, srv, `{"query":"","fullInput":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ERR_401_INVALID_QUERY", resp["code"])
}

func TestRetrieveRejectsMalformedJSON(t *testing.T) {
	srv := newTestServer(&stubSearcher{})

	rec := postRetrieve(t, srv, `{"query": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetrieveRejectsGet(t *testing.T) {
	srv := newTestServer(&stubSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/retrieve", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRetrieveStoreFailureIs500(t *testing.T) {
	srv := newTestServer(&stubSearcher{
		err: ragerr.StoreUnavailable("index gone", nil),
	})

	rec := postRetrieve(t, srv, `{"query":"anything"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ERR_205_STORE_UNAVAILABLE", resp["code"])
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGracefulShutdown(t *testing.T) {
	srv := newTestServer(&stubSearcher{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	cancel()
	require.NoError(t, <-done)
}
