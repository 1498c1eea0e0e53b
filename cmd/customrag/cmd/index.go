package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DrNightingales/Custom-RAG/internal/chunk"
	"github.com/DrNightingales/Custom-RAG/internal/config"
	ragerr "github.com/DrNightingales/Custom-RAG/internal/errors"
	"github.com/DrNightingales/Custom-RAG/internal/index"
	"github.com/DrNightingales/Custom-RAG/internal/scanner"
	"github.com/DrNightingales/Custom-RAG/internal/store"
	"github.com/DrNightingales/Custom-RAG/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var (
		presets  []string
		exts     []string
		excludes []string
		hidden   bool
		model    string
		dataDir  string
		workers  int
		noTUI    bool
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a source tree into the store",
		Long: `Scan a source tree, slice each matching file into token-bounded
chunks, embed the chunks, and append them to the store.

Which files are indexed is controlled by presets (named extension
groups) and explicit extensions. Indexing is append-only: re-running
it adds new rows next to the old ones.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			cfg, err := loadConfig(dataDir)
			if err != nil {
				return err
			}
			if len(presets) > 0 {
				cfg.Index.Presets = presets
			}
			if len(exts) > 0 {
				cfg.Index.ExtraExtensions = append(cfg.Index.ExtraExtensions, exts...)
			}
			if len(excludes) > 0 {
				cfg.Index.ExcludeDirs = append(cfg.Index.ExcludeDirs, excludes...)
			}
			if cmd.Flags().Changed("hidden") {
				cfg.Index.IncludeHidden = hidden
			}
			if model != "" {
				cfg.Embeddings.Model = model
			}
			if cmd.Flags().Changed("workers") {
				cfg.Index.Workers = workers
			}
			return runIndex(cmd, root, cfg, noTUI)
		},
	}

	cmd.Flags().StringSliceVar(&presets, "preset", nil,
		fmt.Sprintf("Extension presets to index (available: %v)", config.PresetNames()))
	cmd.Flags().StringSliceVar(&exts, "ext", nil,
		"Extra file extensions to index, without the dot (e.g. proto)")
	cmd.Flags().StringSliceVar(&excludes, "exclude", nil,
		"Additional directory names to skip")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "Index hidden files and directories")
	cmd.Flags().StringVar(&model, "model", "", "Embedding model override")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Store directory (default: .customrag)")
	cmd.Flags().IntVar(&workers, "workers", 1, "Concurrent embedding workers")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Plain text progress output")

	return cmd
}

func runIndex(cmd *cobra.Command, root string, cfg *config.Config, noTUI bool) error {
	ctx := cmd.Context()

	extensions, unknown := config.ResolveExtensions(cfg.Index.Presets, cfg.Index.ExtraExtensions)
	for _, name := range unknown {
		// Unknown presets shrink scope but do not fail the run.
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: unknown preset %q ignored\n", name)
		slog.Warn("unknown preset ignored",
			slog.String("preset", name),
			slog.String("code", ragerr.ErrCodeUnknownPreset))
	}
	if len(extensions) == 0 {
		return fmt.Errorf("no file extensions selected; check --preset and --ext")
	}

	release, err := index.AcquireLock(cfg.DataDir)
	if err != nil {
		return err
	}
	defer release()

	s, err := store.Open(store.Options{DataDir: cfg.DataDir}, slog.Default())
	if err != nil {
		return err
	}
	defer s.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	defer embedder.Close()

	renderer := ui.NewRenderer(ui.Config{
		Output:     os.Stdout,
		ForcePlain: noTUI,
		RootDir:    root,
	})
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer renderer.Stop()

	runner := &index.Runner{
		Scan: scanner.Options{
			RootDir:       root,
			Extensions:    extensions,
			ExcludeDirs:   cfg.Index.ExcludeDirs,
			IncludeHidden: cfg.Index.IncludeHidden,
		},
		Chunker:  chunk.Chunker{MaxTokens: cfg.Index.MaxChunkTokens},
		Embedder: embedder,
		Store:    s,
		Renderer: renderer,
		Workers:  cfg.Index.Workers,
		Logger:   slog.Default(),
	}
	_, err = runner.Run(ctx)
	return err
}
