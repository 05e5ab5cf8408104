// Package cmd provides the CLI commands for kbrag.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"kbrag/internal/config"
	"kbrag/internal/logging"
)

// Version is set at build time.
var Version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string

	cfg            *config.AppConfig
	logger         *slog.Logger
	loggingCleanup func()
}

// NewRootCmd creates the root command for the kbrag CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "kbrag",
		Short: "Lexical retrieval over a PDF knowledge base",
		Long: `kbrag indexes a directory of PDF documents into a TF-IDF snapshot and
answers top-k passage queries against it, from the command line, an
interactive terminal or an HTTP endpoint.`,
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: opts.setup,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.loggingCleanup != nil {
				opts.loggingCleanup()
			}
		},
	}
	cmd.SetVersionTemplate("kbrag version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config (default ./kbrag.yaml or ~/.config/kbrag/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	cmd.AddCommand(newBuildCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newTUICmd(opts))
	cmd.AddCommand(newInspectCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads configuration and installs the default logger.
func (o *rootOptions) setup(_ *cobra.Command, _ []string) error {
	var (
		cfg *config.AppConfig
		err error
	)
	if o.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(o.configPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	o.cfg = cfg

	logger, cleanup, err := logging.Setup(logging.Config{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		FilePath: cfg.Logging.File,
	})
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	o.logger = logger
	o.loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}
