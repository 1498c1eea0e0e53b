package retrieve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerr "github.com/DrNightingales/Custom-RAG/internal/errors"
	"github.com/DrNightingales/Custom-RAG/internal/keywords"
	"github.com/DrNightingales/Custom-RAG/internal/store"
)

// recordingSearcher captures the search string and serves canned hits.
type recordingSearcher struct {
	lastQuery string
	lastLimit int
	hits      []store.SearchHit
	err       error
	calls     int
}

func (r *recordingSearcher) Search(ctx context.Context, query string, limit int) ([]store.SearchHit, error) {
	r.calls++
	r.lastQuery = query
	r.lastLimit = limit
	if r.err != nil {
		return nil, r.err
	}
	if len(r.hits) > limit {
		return r.hits[:limit], nil
	}
	return r.hits, nil
}

func newTestService(searcher Searcher) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(searcher, keywords.NewExtractor(), logger)
}

func TestRetrieveUsesExtractedKeywords(t *testing.T) {
	searcher := &recordingSearcher{hits: []store.SearchHit{
		{Filename: "parser/json.py", Text: "def parse(payload): ..."},
	}}
	svc := newTestService(searcher)

	results, err := svc.Retrieve(context.Background(), Query{
		Query:     "how do I parse json",
		FullInput: "The user is working on a parser and asked: how do I parse json payloads in the ingestion service",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Stop words never survive extraction.
	assert.NotContains(t, searcher.lastQuery, "the")
	assert.NotContains(t, searcher.lastQuery, "how")
	assert.Contains(t, searcher.lastQuery, "json")
	assert.Equal(t, MaxResults, searcher.lastLimit)
}

func TestRetrievePrefersFullInputOverQuery(t *testing.T) {
	searcher := &recordingSearcher{}
	svc := newTestService(searcher)

	_, err := svc.Retrieve(context.Background(), Query{
		Query:     "unrelated",
		FullInput: "database connection pooling",
	})
	require.NoError(t, err)
	assert.Contains(t, searcher.lastQuery, "database connection pooling")
	assert.NotContains(t, searcher.lastQuery, "unrelated")
}

func TestRetrieveFallsBackToRawQuery(t *testing.T) {
	searcher := &recordingSearcher{}
	svc := newTestService(searcher)

	// Stop-word-only analysis text extracts nothing.
	_, err := svc.Retrieve(context.Background(), Query{Query: "is it the and of"})
	require.NoError(t, err)
	assert.Equal(t, "is it the and of", searcher.lastQuery)
}

func TestRetrieveEmptyQueryAnalyzesRawQuery(t *testing.T) {
	searcher := &recordingSearcher{}
	svc := newTestService(searcher)

	_, err := svc.Retrieve(context.Background(), Query{Query: "parse json"})
	require.NoError(t, err)
	assert.Contains(t, searcher.lastQuery, "parse json")
}

func TestRetrieveRejectsEmptyInputBeforeStoreAccess(t *testing.T) {
	searcher := &recordingSearcher{}
	svc := newTestService(searcher)

	for _, q := range []Query{
		{},
		{Query: "   ", FullInput: ""},
		{Query: "", FullInput: "\n\t "},
	} {
		_, err := svc.Retrieve(context.Background(), q)
		require.Error(t, err)
		assert.Equal(t, ragerr.ErrCodeInvalidQuery, ragerr.GetCode(err))
	}
	assert.Zero(t, searcher.calls)
}

func TestRetrieveCapsResults(t *testing.T) {
	hits := make([]store.SearchHit, 40)
	for i := range hits {
		hits[i] = store.SearchHit{Filename: fmt.Sprintf("f%d.py", i), Text: "x"}
	}
	searcher := &recordingSearcher{hits: hits}
	svc := newTestService(searcher)

	results, err := svc.Retrieve(context.Background(), Query{Query: "anything relevant"})
	require.NoError(t, err)
	assert.Len(t, results, MaxResults)
}

func TestRetrieveResultShape(t *testing.T) {
	searcher := &recordingSearcher{hits: []store.SearchHit{
		{Filename: "auth/session.py", Text: "def refresh(token): ..."},
	}}
	svc := newTestService(searcher)

	results, err := svc.Retrieve(context.Background(), Query{Query: "refresh token session"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "auth/session.py", results[0].Name)
	assert.Equal(t, results[0].Name, results[0].Description)
	assert.Equal(t, "def refresh(token): ...", results[0].Content)
}

func TestRetrievePropagatesStoreError(t *testing.T) {
	searcher := &recordingSearcher{err: ragerr.StoreUnavailable("index gone", nil)}
	svc := newTestService(searcher)

	_, err := svc.Retrieve(context.Background(), Query{Query: "anything"})
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeStoreUnavailable, ragerr.GetCode(err))
}
