package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/DrNightingales/Custom-RAG/internal/store"
)

// statsOutput is the JSON shape of `customrag stats --json`.
type statsOutput struct {
	Chunks     int64  `json:"chunks"`
	Files      int64  `json:"files"`
	Dimensions int    `json:"dimensions"`
	Model      string `json:"model,omitempty"`
	SizeBytes  int64  `json:"size_bytes"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

func newStatsCmd() *cobra.Command {
	var (
		dataDir    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(dataDir)
			if err != nil {
				return err
			}
			s, err := store.Open(store.Options{DataDir: cfg.DataDir}, slog.Default())
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := s.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := statsOutput{
				Chunks:     stats.Chunks,
				Files:      stats.Files,
				Dimensions: stats.Dimensions,
				Model:      stats.Model,
				SizeBytes:  stats.SizeBytes,
			}
			if !stats.UpdatedAt.IsZero() {
				out.UpdatedAt = stats.UpdatedAt.Format(time.RFC3339)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Store:      %s\n", cfg.DataDir)
			fmt.Fprintf(w, "Chunks:     %d\n", out.Chunks)
			fmt.Fprintf(w, "Files:      %d\n", out.Files)
			if out.Model != "" {
				fmt.Fprintf(w, "Embeddings: %s (%d dims)\n", out.Model, out.Dimensions)
			}
			fmt.Fprintf(w, "Size:       %.1f KB\n", float64(out.SizeBytes)/1024)
			if out.UpdatedAt != "" {
				fmt.Fprintf(w, "Updated:    %s\n", out.UpdatedAt)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Store directory (default: .customrag)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
