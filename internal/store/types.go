// Package store persists indexed chunks and serves keyword and vector
// lookups over them. Chunks live in SQLite, the full-text index is a
// Bleve directory rebuilt from SQLite when stale, and embedding vectors
// are held in an HNSW graph keyed by SQLite row IDs.
package store

import "time"

// Record is one indexed chunk: the file it came from, the chunk text,
// and its embedding vector.
type Record struct {
	Filename string
	Text     string
	Vector   []float32
}

// SearchHit is a full-text match with its relevance score.
type SearchHit struct {
	ID       int64
	Filename string
	Text     string
	Score    float64
}

// VectorHit is a nearest-neighbor match. Score is cosine similarity
// mapped to [0, 1].
type VectorHit struct {
	ID       int64
	Filename string
	Text     string
	Score    float64
}

// Stats summarizes store contents.
type Stats struct {
	Chunks     int64
	Files      int64
	Dimensions int
	Model      string
	SizeBytes  int64
	UpdatedAt  time.Time
}

// Options configures Open.
type Options struct {
	// DataDir holds chunks.db, the fts/ directory, and the vector
	// graph files.
	DataDir string
}
