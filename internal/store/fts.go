package store

import (
	"context"
	"strconv"

	"github.com/blevesearch/bleve/v2"

	ragerr "github.com/DrNightingales/Custom-RAG/internal/errors"
)

// ftsDoc is the shape bleve indexes: chunk text plus the source
// filename, both searchable.
type ftsDoc struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

type ftsHit struct {
	ID    int64
	Score float64
}

// ftsIndex wraps a bleve index whose document IDs are chunk row IDs.
type ftsIndex struct {
	index bleve.Index
}

func openFTSIndex(path string) (*ftsIndex, error) {
	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		mapping := bleve.NewIndexMapping()
		index, err = bleve.New(path, mapping)
	}
	if err != nil {
		return nil, ragerr.StoreUnavailable("open text index", err)
	}
	return &ftsIndex{index: index}, nil
}

func (f *ftsIndex) Close() error {
	if err := f.index.Close(); err != nil {
		return ragerr.StoreUnavailable("close text index", err)
	}
	return nil
}

func (f *ftsIndex) DocCount() (uint64, error) {
	n, err := f.index.DocCount()
	if err != nil {
		return 0, ragerr.StoreUnavailable("count indexed docs", err)
	}
	return n, nil
}

// IndexRecords adds records under their row IDs. ids and recs are
// parallel slices.
func (f *ftsIndex) IndexRecords(ids []int64, recs []Record) error {
	batch := f.index.NewBatch()
	for i, rec := range recs {
		doc := ftsDoc{Text: rec.Text, Filename: rec.Filename}
		if err := batch.Index(strconv.FormatInt(ids[i], 10), doc); err != nil {
			return ragerr.StoreUnavailable("batch chunk", err)
		}
	}
	if err := f.index.Batch(batch); err != nil {
		return ragerr.StoreUnavailable("index chunks", err)
	}
	return nil
}

// Search matches queryStr against chunk text and filenames and returns
// up to limit hits by descending score.
func (f *ftsIndex) Search(ctx context.Context, queryStr string, limit int) ([]ftsHit, error) {
	textQuery := bleve.NewMatchQuery(queryStr)
	textQuery.SetField("text")
	fileQuery := bleve.NewMatchQuery(queryStr)
	fileQuery.SetField("filename")
	disjunction := bleve.NewDisjunctionQuery(textQuery, fileQuery)

	req := bleve.NewSearchRequest(disjunction)
	req.Size = limit

	result, err := f.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, ragerr.StoreUnavailable("search text index", err)
	}

	hits := make([]ftsHit, 0, len(result.Hits))
	for _, h := range result.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, ftsHit{ID: id, Score: h.Score})
	}
	return hits, nil
}
