// Package retrieve turns a free-form query, optionally wrapped in
// longer conversational context, into a ranked list of indexed chunks.
package retrieve

import (
	"context"
	"log/slog"
	"strings"

	ragerr "github.com/DrNightingales/Custom-RAG/internal/errors"
	"github.com/DrNightingales/Custom-RAG/internal/keywords"
	"github.com/DrNightingales/Custom-RAG/internal/store"
)

// MaxResults caps how many results a single request can return.
const MaxResults = 25

// Query is one retrieval request.
type Query struct {
	// Query is the user's raw question.
	Query string
	// FullInput optionally carries the surrounding conversation or
	// document context. When non-empty it drives keyword extraction
	// instead of Query.
	FullInput string
}

// Result is one retrieved chunk. Name and Description both carry the
// source filename so callers with either shape get the same value.
type Result struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// Searcher is the slice of the store the service needs.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]store.SearchHit, error)
}

// Service answers retrieval requests against a shared store handle and
// keyword extractor. Both are safe for concurrent use, so one Service
// serves all requests.
type Service struct {
	store     Searcher
	extractor *keywords.Extractor
	logger    *slog.Logger
}

// NewService creates a retrieval service.
func NewService(s Searcher, extractor *keywords.Extractor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, extractor: extractor, logger: logger}
}

// Retrieve derives a search string from q and returns the top matching
// chunks, at most MaxResults. An empty query with empty context fails
// with an invalid-query error before the store is touched.
func (s *Service) Retrieve(ctx context.Context, q Query) ([]Result, error) {
	analysis := strings.TrimSpace(q.FullInput)
	if analysis == "" {
		analysis = strings.TrimSpace(q.Query)
	}
	if analysis == "" {
		return nil, ragerr.InvalidQuery("query and fullInput are both empty")
	}

	searchString := s.searchString(analysis, q.Query)
	s.logger.Debug("retrieval search",
		slog.String("search_string", searchString),
		slog.Int("analysis_len", len(analysis)))

	hits, err := s.store.Search(ctx, searchString, MaxResults)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			Name:        hit.Filename,
			Description: hit.Filename,
			Content:     hit.Text,
		})
	}
	return results, nil
}

// searchString joins the extractor's ranked phrases in rank order, or
// falls back to the raw query when nothing salient was found.
func (s *Service) searchString(analysis, rawQuery string) string {
	phrases := s.extractor.RankedPhrases(analysis)
	if len(phrases) == 0 {
		return rawQuery
	}
	return strings.Join(phrases, " ")
}
