// Package cmd provides the CLI commands for customrag.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DrNightingales/Custom-RAG/internal/config"
	"github.com/DrNightingales/Custom-RAG/internal/embed"
	"github.com/DrNightingales/Custom-RAG/internal/logging"
	"github.com/DrNightingales/Custom-RAG/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the customrag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customrag",
		Short: "Index a source tree and serve retrieval queries over it",
		Long: `customrag indexes a source tree into a store of token-bounded
chunks with embeddings, and serves a /retrieve endpoint that turns a
free-form query (optionally with surrounding context) into a ranked
list of matching chunks.

Run 'customrag index' in a project, then 'customrag serve'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("customrag version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"Enable debug logging to ~/.customrag/logs/")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	cfg.WriteToStderr = false
	if debugMode {
		cfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	if debugMode {
		slog.Debug("debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command with signal-aware cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// loadConfig loads layered configuration, applying the data-dir flag
// when set.
func loadConfig(dataDirFlag string) (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	return cfg, nil
}

// newEmbedder builds the embedding client from config: the OpenAI-style
// provider wrapped in an LRU cache.
func newEmbedder(cfg *config.Config) (embed.Embedder, error) {
	provider, err := embed.NewOpenAIEmbedder(embed.OpenAIConfig{
		BaseURL:    cfg.Embeddings.BaseURL,
		APIKey:     cfg.Embeddings.APIKey,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
		MaxRetries: cfg.Embeddings.MaxRetries,
		HTTPProxy:  cfg.Embeddings.HTTPProxy,
		HTTPSProxy: cfg.Embeddings.HTTPSProxy,
	})
	if err != nil {
		return nil, err
	}
	return embed.NewCachedEmbedder(provider, embed.DefaultCacheSize), nil
}
