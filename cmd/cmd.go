package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/standard-charity/indexer/internal/config"
	"github.com/standard-charity/indexer/pkg/logger"
	"github.com/standard-charity/indexer/pkg/logger/slogx"
)

var rootCmd = &cobra.Command{
	Use:  "standard-charity-indexer",
	Long: `Backend service mirroring the StandardCharity contract state into a Redis cache`,
}

func init() {
	var configFile string

	// Add global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file, E.g. `./config.yaml`")

	// Initialize configuration and logger on start command
	cobra.OnInitialize(func() {
		config := config.Parse(configFile)

		if err := logger.Init(config.Logger); err != nil {
			logger.Panic("Failed to initialize logger", slogx.Error(err), slog.Any("config", config.Logger))
		}
	})
}

func Execute(ctx context.Context) {
	// Register sub-commands
	rootCmd.AddCommand(
		NewRunCommand(),
		NewVersionCommand(),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Panic("Failed to execute root command", slogx.Error(err))
	}
}
