package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	_ "modernc.org/sqlite"

	ragerr "github.com/DrNightingales/Custom-RAG/internal/errors"
)

const (
	dbFileName   = "chunks.db"
	ftsDirName   = "fts"
	graphName    = "vectors.hnsw"
	metaDimsKey  = "embedding_dimensions"
	metaModelKey = "embedding_model"
)

// Store is the chunk database plus its derived indexes.
type Store struct {
	dir    string
	db     *sql.DB
	logger *slog.Logger

	mu      sync.Mutex
	fts     *ftsIndex
	vectors *vectorIndex
}

// Open opens or creates the store under opts.DataDir. The full-text
// index is not opened here; call EnsureSearchIndex before Search.
func Open(opts Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, ragerr.StoreUnavailable("create data dir", err)
	}

	dbPath := filepath.Join(opts.DataDir, dbFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ragerr.StoreUnavailable("open chunk database", err)
	}
	// modernc.org/sqlite serializes access per connection; a single
	// connection avoids SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, ragerr.StoreUnavailable("configure chunk database", err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS chunks (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT NOT NULL,
			text     TEXT NOT NULL,
			vector   BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_filename ON chunks(filename);
		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, ragerr.StoreUnavailable("create schema", err)
	}

	s := &Store{dir: opts.DataDir, db: db, logger: logger}

	dims, err := s.metaInt(metaDimsKey)
	if err != nil {
		db.Close()
		return nil, err
	}
	if dims > 0 {
		vi, err := openVectorIndex(filepath.Join(opts.DataDir, graphName), dims, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.vectors = vi
	}
	return s, nil
}

// Close releases the database and any open indexes.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.fts != nil {
		if err := s.fts.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.fts = nil
	}
	if s.vectors != nil {
		if err := s.vectors.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.vectors = nil
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// SetModel records which embedding model produced the stored vectors.
func (s *Store) SetModel(model string) error {
	return s.setMeta(metaModelKey, model)
}

// Append inserts records and adds their vectors to the nearest-neighbor
// graph. The store is append-only: re-indexing the same file inserts
// new rows alongside the old ones.
func (s *Store) Append(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dims := len(records[0].Vector)
	if dims == 0 {
		return ragerr.New(ragerr.ErrCodeInternal, "record has empty vector", nil)
	}
	if s.vectors == nil {
		if err := s.setMeta(metaDimsKey, strconv.Itoa(dims)); err != nil {
			return err
		}
		vi, err := openVectorIndex(filepath.Join(s.dir, graphName), dims, s.logger)
		if err != nil {
			return err
		}
		s.vectors = vi
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ragerr.StoreUnavailable("begin append", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (filename, text, vector) VALUES (?, ?, ?)")
	if err != nil {
		return ragerr.StoreUnavailable("prepare append", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		if len(rec.Vector) != s.vectors.Dimensions() {
			return ragerr.New(ragerr.ErrCodeInternal,
				fmt.Sprintf("vector dimension mismatch: got %d, store has %d",
					len(rec.Vector), s.vectors.Dimensions()), nil)
		}
		res, err := stmt.ExecContext(ctx, rec.Filename, rec.Text, encodeVector(rec.Vector))
		if err != nil {
			return ragerr.StoreUnavailable("insert chunk", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return ragerr.StoreUnavailable("read chunk id", err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return ragerr.StoreUnavailable("commit append", err)
	}

	for i, rec := range records {
		s.vectors.Add(uint64(ids[i]), rec.Vector)
	}
	if err := s.vectors.Save(); err != nil {
		return err
	}

	// Keep an already-open text index in step so EnsureSearchIndex
	// stays a no-op afterwards.
	if s.fts != nil {
		if err := s.fts.IndexRecords(ids, records); err != nil {
			return err
		}
	}
	return nil
}

// EnsureSearchIndex opens the full-text index, rebuilding it from the
// chunk table when the two have diverged. Calling it twice in a row is
// a no-op the second time.
func (s *Store) EnsureSearchIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureSearchIndexLocked(ctx)
}

func (s *Store) ensureSearchIndexLocked(ctx context.Context) error {
	ftsPath := filepath.Join(s.dir, ftsDirName)
	if s.fts == nil {
		fts, err := openFTSIndex(ftsPath)
		if err != nil {
			return err
		}
		s.fts = fts
	}

	var rows int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&rows); err != nil {
		return ragerr.StoreUnavailable("count chunks", err)
	}
	docs, err := s.fts.DocCount()
	if err != nil {
		return err
	}
	if int64(docs) == rows {
		return nil
	}

	s.logger.Info("rebuilding text index", "indexed", docs, "chunks", rows)
	if err := s.fts.Close(); err != nil {
		return err
	}
	s.fts = nil
	if err := os.RemoveAll(ftsPath); err != nil {
		return ragerr.StoreUnavailable("remove stale text index", err)
	}
	fts, err := openFTSIndex(ftsPath)
	if err != nil {
		return err
	}

	const batchSize = 500
	batchIDs := make([]int64, 0, batchSize)
	batchRecs := make([]Record, 0, batchSize)
	flush := func() error {
		if len(batchIDs) == 0 {
			return nil
		}
		err := fts.IndexRecords(batchIDs, batchRecs)
		batchIDs = batchIDs[:0]
		batchRecs = batchRecs[:0]
		return err
	}

	result, err := s.db.QueryContext(ctx, "SELECT id, filename, text FROM chunks ORDER BY id")
	if err != nil {
		fts.Close()
		return ragerr.StoreUnavailable("read chunks", err)
	}
	defer result.Close()
	for result.Next() {
		var id int64
		var rec Record
		if err := result.Scan(&id, &rec.Filename, &rec.Text); err != nil {
			fts.Close()
			return ragerr.StoreUnavailable("scan chunk", err)
		}
		batchIDs = append(batchIDs, id)
		batchRecs = append(batchRecs, rec)
		if len(batchIDs) >= batchSize {
			if err := flush(); err != nil {
				fts.Close()
				return err
			}
		}
	}
	if err := result.Err(); err != nil {
		fts.Close()
		return ragerr.StoreUnavailable("iterate chunks", err)
	}
	if err := flush(); err != nil {
		fts.Close()
		return err
	}

	s.fts = fts
	return nil
}

// Search runs a full-text query over chunk text and filenames and
// returns up to limit hits in relevance order.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fts == nil {
		if err := s.ensureSearchIndexLocked(ctx); err != nil {
			return nil, err
		}
	}

	ftsHits, err := s.fts.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(ftsHits) == 0 {
		return nil, nil
	}

	hits := make([]SearchHit, 0, len(ftsHits))
	for _, h := range ftsHits {
		var hit SearchHit
		hit.ID = h.ID
		hit.Score = h.Score
		err := s.db.QueryRowContext(ctx,
			"SELECT filename, text FROM chunks WHERE id = ?", h.ID).
			Scan(&hit.Filename, &hit.Text)
		if err == sql.ErrNoRows {
			// Index ahead of the table; skip the orphan.
			continue
		}
		if err != nil {
			return nil, ragerr.StoreUnavailable("fetch chunk", err)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// SearchVector returns the k chunks whose embeddings are nearest to vec.
func (s *Store) SearchVector(ctx context.Context, vec []float32, k int) ([]VectorHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vectors == nil {
		return nil, nil
	}
	if s.vectors.Len() == 0 {
		// Graph file lost or never saved; rebuild from stored vectors.
		if err := s.rebuildVectorsLocked(ctx); err != nil {
			return nil, err
		}
	}
	matches := s.vectors.Search(vec, k)

	hits := make([]VectorHit, 0, len(matches))
	for _, m := range matches {
		var hit VectorHit
		hit.ID = int64(m.Key)
		hit.Score = m.Score
		err := s.db.QueryRowContext(ctx,
			"SELECT filename, text FROM chunks WHERE id = ?", hit.ID).
			Scan(&hit.Filename, &hit.Text)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, ragerr.StoreUnavailable("fetch chunk", err)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *Store) rebuildVectorsLocked(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, vector FROM chunks ORDER BY id")
	if err != nil {
		return ragerr.StoreUnavailable("read vectors", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return ragerr.StoreUnavailable("scan vector", err)
		}
		s.vectors.Add(uint64(id), decodeVector(blob))
		n++
	}
	if err := rows.Err(); err != nil {
		return ragerr.StoreUnavailable("iterate vectors", err)
	}
	if n > 0 {
		s.logger.Info("rebuilt vector graph", "vectors", n)
		return s.vectors.Save()
	}
	return nil
}

// Stats reports chunk and file counts plus embedding metadata.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT filename) FROM chunks").
		Scan(&st.Chunks, &st.Files)
	if err != nil {
		return Stats{}, ragerr.StoreUnavailable("count chunks", err)
	}
	dims, err := s.metaInt(metaDimsKey)
	if err != nil {
		return Stats{}, err
	}
	st.Dimensions = dims
	st.Model, _ = s.metaString(metaModelKey)

	if info, err := os.Stat(filepath.Join(s.dir, dbFileName)); err == nil {
		st.SizeBytes = info.Size()
		st.UpdatedAt = info.ModTime()
	}
	return st, nil
}

func (s *Store) setMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return ragerr.StoreUnavailable("write meta", err)
	}
	return nil
}

func (s *Store) metaString(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", ragerr.StoreUnavailable("read meta", err)
	}
	return value, nil
}

func (s *Store) metaInt(key string) (int, error) {
	value, err := s.metaString(key)
	if err != nil || value == "" {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, ragerr.New(ragerr.ErrCodeInternal,
			fmt.Sprintf("corrupt meta value for %s: %q", key, value), nil)
	}
	return n, nil
}
