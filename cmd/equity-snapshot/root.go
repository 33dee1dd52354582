package main

import (
	"fmt"
	"os"

	"github.com/iwvelando/equity-snapshot/internal/config"
	"github.com/iwvelando/equity-snapshot/pkg/constants"
	"github.com/iwvelando/equity-snapshot/pkg/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "equity-snapshot",
		Short:         "Rent burden and pay equity snapshot",
		Long:          "equity-snapshot turns a job title, monthly income, monthly rent and location into rent burden, wage gap, living wage and financial pressure figures.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to configuration file (./"+constants.DefaultConfigFile+" if present, otherwise defaults plus EQUITY_* environment)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(newAnalyzeCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

// loadConfiguration reads, validates and reports warnings for the
// application configuration, returning it along with a logger built from it.
func (o *rootOptions) loadConfiguration(loggingOverride *config.LoggingConfig) (*config.Configuration, *zap.Logger, error) {
	if err := validation.ValidateLogLevel(o.logLevel); err != nil {
		return nil, nil, err
	}

	path := o.configPath
	if path == "" {
		if _, err := os.Stat(constants.DefaultConfigFile); err == nil {
			path = constants.DefaultConfigFile
		}
	}

	conf, err := config.LoadConfiguration(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration at %q: %w", path, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logging := conf.Logging
	if loggingOverride != nil && *loggingOverride != (config.LoggingConfig{}) {
		logging = *loggingOverride
	}
	logger, err := initializeLogger(logging, o.logLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main.loadConfiguration"),
		)
	}
	return conf, logger, nil
}
