package store

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/coder/hnsw"

	ragerr "github.com/DrNightingales/Custom-RAG/internal/errors"
)

// vectorMatch is one nearest-neighbor result. Score is cosine
// similarity mapped to [0, 1].
type vectorMatch struct {
	Key   uint64
	Score float64
}

// vectorIndex is an HNSW graph over chunk embeddings, keyed by chunk
// row ID. Vectors are normalized on insert so cosine distance behaves.
type vectorIndex struct {
	path   string
	dims   int
	graph  *hnsw.Graph[uint64]
	logger *slog.Logger
	dirty  bool
}

type vectorMeta struct {
	Dimensions int
}

func openVectorIndex(path string, dims int, logger *slog.Logger) (*vectorIndex, error) {
	vi := &vectorIndex{path: path, dims: dims, logger: logger}
	vi.graph = newGraph()

	if _, err := os.Stat(path); err == nil {
		if err := vi.load(); err != nil {
			// A corrupt graph is rebuildable from SQLite but that is
			// a manual re-index; surface the error instead of
			// silently starting empty.
			return nil, err
		}
	}
	return vi, nil
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 100
	g.Ml = 0.25
	return g
}

func (vi *vectorIndex) Dimensions() int { return vi.dims }

func (vi *vectorIndex) Len() int { return vi.graph.Len() }

// Add inserts a vector under key. The input slice is not retained.
func (vi *vectorIndex) Add(key uint64, vec []float32) {
	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeInPlace(normalized)
	vi.graph.Add(hnsw.MakeNode(key, normalized))
	vi.dirty = true
}

// Search returns up to k nearest keys by cosine similarity.
func (vi *vectorIndex) Search(vec []float32, k int) []vectorMatch {
	if k <= 0 {
		return nil
	}
	queryVec := make([]float32, len(vec))
	copy(queryVec, vec)
	normalizeInPlace(queryVec)

	nodes := vi.graph.Search(queryVec, k)
	matches := make([]vectorMatch, 0, len(nodes))
	for _, node := range nodes {
		d := hnsw.CosineDistance(queryVec, node.Value)
		matches = append(matches, vectorMatch{
			Key:   node.Key,
			Score: distanceToScore(d),
		})
	}
	return matches
}

// Save writes the graph and its metadata sidecar atomically. A no-op
// when nothing changed since the last save.
func (vi *vectorIndex) Save() error {
	if !vi.dirty {
		return nil
	}
	tmp := vi.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return ragerr.StoreUnavailable("create vector graph", err)
	}
	if err := vi.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmp)
		return ragerr.StoreUnavailable("export vector graph", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return ragerr.StoreUnavailable("flush vector graph", err)
	}
	if err := os.Rename(tmp, vi.path); err != nil {
		os.Remove(tmp)
		return ragerr.StoreUnavailable("replace vector graph", err)
	}

	metaFile, err := os.Create(vi.path + ".meta")
	if err != nil {
		return ragerr.StoreUnavailable("create vector meta", err)
	}
	defer metaFile.Close()
	if err := gob.NewEncoder(metaFile).Encode(vectorMeta{Dimensions: vi.dims}); err != nil {
		return ragerr.StoreUnavailable("write vector meta", err)
	}

	vi.dirty = false
	return nil
}

func (vi *vectorIndex) load() error {
	metaFile, err := os.Open(vi.path + ".meta")
	if err != nil {
		return ragerr.StoreUnavailable("open vector meta", err)
	}
	defer metaFile.Close()
	var meta vectorMeta
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return ragerr.StoreUnavailable("read vector meta", err)
	}
	if meta.Dimensions != vi.dims {
		return ragerr.New(ragerr.ErrCodeInternal,
			fmt.Sprintf("vector graph has %d dimensions, store expects %d",
				meta.Dimensions, vi.dims), nil)
	}

	file, err := os.Open(vi.path)
	if err != nil {
		return ragerr.StoreUnavailable("open vector graph", err)
	}
	defer file.Close()
	// Import needs an io.ByteReader.
	if err := vi.graph.Import(bufio.NewReader(file)); err != nil {
		return ragerr.StoreUnavailable("import vector graph", err)
	}
	vi.logger.Debug("vector graph loaded", "nodes", vi.graph.Len(), "dimensions", vi.dims)
	return nil
}

func (vi *vectorIndex) Close() error {
	return vi.Save()
}

// distanceToScore maps cosine distance [0, 2] to similarity [0, 1].
func distanceToScore(d float32) float64 {
	score := 1 - float64(d)/2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func normalizeInPlace(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

// encodeVector packs a vector as little-endian float32s for BLOB storage.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}
