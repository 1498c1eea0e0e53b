// Package index drives the indexing pipeline: scan the source tree,
// chunk each file by token budget, embed the chunks, and append the
// results to the store.
package index

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DrNightingales/Custom-RAG/internal/chunk"
	"github.com/DrNightingales/Custom-RAG/internal/embed"
	ragerr "github.com/DrNightingales/Custom-RAG/internal/errors"
	"github.com/DrNightingales/Custom-RAG/internal/scanner"
	"github.com/DrNightingales/Custom-RAG/internal/store"
	"github.com/DrNightingales/Custom-RAG/internal/ui"
)

// Summary reports the outcome of one indexing run.
type Summary struct {
	Files    int
	Chunks   int
	Skipped  int
	Duration time.Duration
}

// Runner wires the pipeline stages together. All fields except Workers
// and Logger are required.
type Runner struct {
	Scan     scanner.Options
	Chunker  chunk.Chunker
	Embedder embed.Embedder
	Store    *store.Store
	Renderer ui.Renderer
	Workers  int
	Logger   *slog.Logger
}

// Run executes the full pipeline. Files that cannot be read or decoded
// are skipped with a warning; embedding and store failures abort the
// run.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	if r.Workers < 1 {
		r.Workers = 1
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	files, skipped, err := r.scanFiles(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("scan complete",
		slog.String("root", r.Scan.RootDir),
		slog.Int("files", len(files)),
		slog.Int("skipped", skipped))

	var (
		mu      sync.Mutex
		done    int
		indexed int
		chunks  int
	)
	progress := func(file string) {
		mu.Lock()
		done++
		current := done
		mu.Unlock()
		r.Renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageIndexing,
			Current:     current,
			Total:       len(files),
			CurrentFile: file,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Workers)
	for _, file := range files {
		g.Go(func() error {
			n, err := r.processFile(gctx, file)
			if err != nil {
				if ragerr.GetCode(err) == ragerr.ErrCodeFileUnreadable {
					r.Renderer.AddError(ui.ErrorEvent{File: file.Path, Err: err, IsWarn: true})
					logger.Warn("skipping file",
						slog.String("path", file.Path),
						slog.String("error", err.Error()))
					mu.Lock()
					skipped++
					mu.Unlock()
					progress(file.Path)
					return nil
				}
				return err
			}
			mu.Lock()
			indexed++
			chunks += n
			mu.Unlock()
			progress(file.Path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := r.Store.SetModel(r.Embedder.ModelName()); err != nil {
		return nil, err
	}

	summary := &Summary{
		Files:    indexed,
		Chunks:   chunks,
		Skipped:  skipped,
		Duration: time.Since(start),
	}
	r.Renderer.Complete(ui.CompletionStats{
		Files:    summary.Files,
		Chunks:   summary.Chunks,
		Skipped:  summary.Skipped,
		Duration: summary.Duration,
		Model:    r.Embedder.ModelName(),
	})
	logger.Info("index complete",
		slog.Int("files", summary.Files),
		slog.Int("chunks", summary.Chunks),
		slog.Int("skipped", summary.Skipped),
		slog.Int64("duration_ms", summary.Duration.Milliseconds()),
		slog.String("model", r.Embedder.ModelName()))
	return summary, nil
}

// scanFiles collects candidate files up front so progress has a total.
func (r *Runner) scanFiles(ctx context.Context) ([]*scanner.FileInfo, int, error) {
	r.Renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageScanning,
		Message: "scanning " + r.Scan.RootDir,
	})

	results, err := scanner.New().Scan(ctx, r.Scan)
	if err != nil {
		return nil, 0, err
	}

	var files []*scanner.FileInfo
	skipped := 0
	for res := range results {
		if res.Error != nil {
			var path string
			if res.File != nil {
				path = res.File.Path
			}
			r.Renderer.AddError(ui.ErrorEvent{File: path, Err: res.Error, IsWarn: true})
			skipped++
			continue
		}
		files = append(files, res.File)
	}
	return files, skipped, nil
}

// processFile reads, chunks, embeds, and stores a single file. It
// returns the number of chunks written.
func (r *Runner) processFile(ctx context.Context, file *scanner.FileInfo) (int, error) {
	data, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return 0, ragerr.Wrap(ragerr.ErrCodeFileUnreadable, err)
	}
	// Drop stray invalid bytes instead of dropping the file.
	text := strings.ToValidUTF8(string(data), "")

	var texts []string
	for c := range r.Chunker.Split(text) {
		texts = append(texts, c.Text)
	}
	if len(texts) == 0 {
		return 0, nil
	}

	vectors, err := r.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}

	records := make([]store.Record, len(texts))
	for i := range texts {
		records[i] = store.Record{
			Filename: file.Path,
			Text:     texts[i],
			Vector:   vectors[i],
		}
	}
	if err := r.Store.Append(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}
