package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/DrNightingales/Custom-RAG/internal/keywords"
	"github.com/DrNightingales/Custom-RAG/internal/retrieve"
	"github.com/DrNightingales/Custom-RAG/internal/server"
	"github.com/DrNightingales/Custom-RAG/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		addr    string
		dataDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the retrieval HTTP endpoint",
		Long: `Open the store, make sure its text index is up to date, and serve
POST /retrieve until interrupted. The text index is reconciled once at
startup, not per request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(dataDir)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx := cmd.Context()
			s, err := store.Open(store.Options{DataDir: cfg.DataDir}, slog.Default())
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.EnsureSearchIndex(ctx); err != nil {
				return err
			}
			stats, err := s.Stats(ctx)
			if err != nil {
				return err
			}
			if stats.Chunks == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(),
					"warning: store is empty; run 'customrag index' first")
			}

			service := retrieve.NewService(s, keywords.NewExtractor(), slog.Default())
			srv := server.New(server.Config{Addr: cfg.Server.Addr}, service, slog.Default())
			fmt.Fprintf(cmd.OutOrStdout(), "serving on http://%s\n", cfg.Server.Addr)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: 127.0.0.1:8422)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Store directory (default: .customrag)")

	return cmd
}
