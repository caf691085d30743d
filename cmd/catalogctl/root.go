package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tendant/catalog-ingest/internal/logging"
	"github.com/tendant/catalog-ingest/pkg/ingest/config"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	configFile string
	envFile    string
	logLevel   string
	logFormat  string
}

// load reads .env, the config file and the environment, applies opts and
// installs the logger.
func (g *globalFlags) load(opts ...config.Option) (*config.Config, *slog.Logger, error) {
	if g.envFile != "" {
		if err := godotenv.Load(g.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("failed to load %s: %w", g.envFile, err)
		}
	}

	opts = append(opts, config.WithLogging(g.logLevel, g.logFormat))
	cfg, err := config.Load(g.configFile, opts...)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// NewRootCommand builds the catalogctl command tree
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "catalogctl",
		Short: "Bulk-ingest documents into the product catalog",
		Long: `catalogctl uploads a directory of documents to object storage and
registers each one as a product in the catalog.

All settings come from the environment, a .env file or an optional YAML
config file.

` + config.Usage(),
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format: text, json, console")

	rootCmd.AddCommand(newUploadCommand(flags))
	rootCmd.AddCommand(newCountCommand(flags))
	rootCmd.AddCommand(newCleanupCommand(flags))
	rootCmd.AddCommand(newPurgeCommand(flags))

	return rootCmd
}
