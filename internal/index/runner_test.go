package index

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrNightingales/Custom-RAG/internal/chunk"
	ragerr "github.com/DrNightingales/Custom-RAG/internal/errors"
	"github.com/DrNightingales/Custom-RAG/internal/scanner"
	"github.com/DrNightingales/Custom-RAG/internal/store"
	"github.com/DrNightingales/Custom-RAG/internal/ui"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEmbedder returns a fixed-dimension vector per text without any
// network calls.
type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = []float32{float32(len(text)), 1, 0}
	}
	return vecs, nil
}

func (f *fakeEmbedder) Dimensions() int   { return 3 }
func (f *fakeEmbedder) ModelName() string { return "fake-model" }
func (f *fakeEmbedder) Close() error      { return nil }

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(root, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func newTestRunner(t *testing.T, root, dataDir string) (*Runner, *store.Store) {
	t.Helper()
	s, err := store.Open(store.Options{DataDir: dataDir}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	var buf bytes.Buffer
	return &Runner{
		Scan: scanner.Options{
			RootDir:    root,
			Extensions: []string{"py", "js"},
		},
		Chunker:  chunk.Chunker{MaxTokens: chunk.DefaultMaxTokens, Count: chunk.EstimateTokens},
		Embedder: &fakeEmbedder{},
		Store:    s,
		Renderer: ui.NewPlainRenderer(ui.Config{Output: &buf}),
		Logger:   testLogger(),
	}, s
}

func TestRunIndexesMatchingFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app/main.py":     "def main():\n    run()\n",
		"web/index.js":    "console.log('hi')\n",
		"README.md":       "not indexed\n",
		"venv/lib/mod.py": "excluded\n",
	})

	r, s := newTestRunner(t, root, t.TempDir())
	r.Scan.ExcludeDirs = []string{"venv"}

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Files)
	assert.Equal(t, 2, summary.Chunks)
	assert.Zero(t, summary.Skipped)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Chunks)
	assert.Equal(t, "fake-model", stats.Model)
}

func TestRunSkipsUnreadableFiles(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are ignored when running as root")
	}
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"ok.py":     "print('ok')\n",
		"broken.py": "print('nope')\n",
	})
	require.NoError(t, os.Chmod(filepath.Join(root, "broken.py"), 0o000))
	t.Cleanup(func() { os.Chmod(filepath.Join(root, "broken.py"), 0o644) })

	r, _ := newTestRunner(t, root, t.TempDir())
	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Files)
	assert.Equal(t, 1, summary.Skipped)
}

func TestRunDropsInvalidUTF8Bytes(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"bad.py": "valid \xff\xfe tail\n",
	})

	r, s := newTestRunner(t, root, t.TempDir())
	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Files)

	hits, err := s.Search(context.Background(), "tail", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "valid  tail", hits[0].Text)
	assert.NotContains(t, hits[0].Text, "�")
}

func TestRunWithWorkers(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for i := 0; i < 8; i++ {
		files[filepath.Join("pkg", string(rune('a'+i))+".py")] = "x = 1\n"
	}
	writeTree(t, root, files)

	r, s := newTestRunner(t, root, t.TempDir())
	r.Workers = 4

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, summary.Files)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(8), stats.Chunks)
}

func TestRunEmptyTree(t *testing.T) {
	r, _ := newTestRunner(t, t.TempDir(), t.TempDir())
	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Files)
	assert.Zero(t, summary.Chunks)
}

func TestAcquireLockConflict(t *testing.T) {
	dataDir := t.TempDir()

	release, err := AcquireLock(dataDir)
	require.NoError(t, err)
	defer release()

	_, err = AcquireLock(dataDir)
	require.Error(t, err)
	assert.Equal(t, ragerr.ErrCodeIndexLocked, ragerr.GetCode(err))
}

func TestAcquireLockReleases(t *testing.T) {
	dataDir := t.TempDir()

	release, err := AcquireLock(dataDir)
	require.NoError(t, err)
	release()

	release2, err := AcquireLock(dataDir)
	require.NoError(t, err)
	release2()
}
