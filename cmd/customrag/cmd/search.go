package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DrNightingales/Custom-RAG/internal/config"
	"github.com/DrNightingales/Custom-RAG/internal/keywords"
	"github.com/DrNightingales/Custom-RAG/internal/retrieve"
	"github.com/DrNightingales/Custom-RAG/internal/store"
)

func newSearchCmd() *cobra.Command {
	var (
		dataDir  string
		limit    int
		semantic bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Query the store from the command line",
		Long: `Run a retrieval query directly against the local store, without the
HTTP server. By default this is the same keyword path the /retrieve
endpoint uses; --semantic searches by embedding similarity instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			cfg, err := loadConfig(dataDir)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := store.Open(store.Options{DataDir: cfg.DataDir}, slog.Default())
			if err != nil {
				return err
			}
			defer s.Close()

			if semantic {
				return runSemanticSearch(cmd, cfg, s, query, limit)
			}

			if err := s.EnsureSearchIndex(ctx); err != nil {
				return err
			}
			service := retrieve.NewService(s, keywords.NewExtractor(), slog.Default())
			results, err := service.Retrieve(ctx, retrieve.Query{Query: query})
			if err != nil {
				return err
			}
			if limit < len(results) {
				results = results[:limit]
			}

			w := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(w, "no matches")
				return nil
			}
			for i, res := range results {
				fmt.Fprintf(w, "%d. %s\n", i+1, res.Name)
				fmt.Fprintln(w, indent(snippet(res.Content), "   "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Store directory (default: .customrag)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum results to print")
	cmd.Flags().BoolVar(&semantic, "semantic", false, "Search by embedding similarity")

	return cmd
}

func runSemanticSearch(cmd *cobra.Command, cfg *config.Config, s *store.Store, query string, limit int) error {
	ctx := cmd.Context()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	defer embedder.Close()

	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return err
	}
	hits, err := s.SearchVector(ctx, vec, limit)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(hits) == 0 {
		fmt.Fprintln(w, "no matches")
		return nil
	}
	for i, hit := range hits {
		fmt.Fprintf(w, "%d. %s (%.3f)\n", i+1, hit.Filename, hit.Score)
		fmt.Fprintln(w, indent(snippet(hit.Text), "   "))
	}
	return nil
}

// snippet returns the first few lines of chunk text for display.
func snippet(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > 4 {
		lines = append(lines[:4], "...")
	}
	return strings.Join(lines, "\n")
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}
