package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iwvelando/equity-snapshot/internal/form"
	"github.com/iwvelando/equity-snapshot/internal/metrics"
	"github.com/iwvelando/equity-snapshot/internal/server"
	"github.com/iwvelando/equity-snapshot/internal/sink"
	"github.com/iwvelando/equity-snapshot/internal/telemetry"
	"github.com/iwvelando/equity-snapshot/pkg/constants"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type serveOptions struct {
	*rootOptions
	serverConfigPath string
	address          string
	maxBodySize      string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.serverConfigPath, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	cmd.Flags().StringVar(&opts.address, "address", "", "listen address override")
	cmd.Flags().StringVar(&opts.maxBodySize, "max-body-size", "", "request body limit override (e.g. 64KB, 1MB)")

	return cmd
}

// serverConfig loads the server configuration and applies flag overrides.
func (o *serveOptions) serverConfig() (*server.Config, error) {
	srvCfg, err := server.LoadConfig(o.serverConfigPath)
	if err != nil {
		return nil, err
	}
	if o.address != "" {
		srvCfg.Address = o.address
	}
	if o.maxBodySize != "" {
		size, err := server.ParseSize(o.maxBodySize)
		if err != nil {
			return nil, fmt.Errorf("invalid --max-body-size: %w", err)
		}
		srvCfg.SetBodySizeBytes(size)
	}
	return srvCfg, nil
}

func runServe(ctx context.Context, opts *serveOptions) error {
	srvCfg, err := opts.serverConfig()
	if err != nil {
		return err
	}

	conf, logger, err := opts.loadConfiguration(&srvCfg.Logging)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	collectors := telemetry.New()

	s, err := sink.New(ctx, conf.Sink, logger)
	if err != nil {
		logger.Error("failed to open sink, persistence disabled",
			zap.String("op", "main.runServe"),
			zap.String("sink", conf.Sink.Type),
			zap.Error(err),
		)
		s = sink.NopSink{}
	}
	if err := sink.Prepare(ctx, s); err != nil {
		logger.Error("failed to prepare sink",
			zap.String("op", "main.runServe"),
			zap.String("sink", s.Name()),
			zap.Error(err),
		)
	}
	recorder := sink.NewRecorder(s, logger, collectors, conf.Sink.Timeout)

	handler := server.NewHandler(logger, server.Dependencies{
		Normalizer: form.NewNormalizer(),
		Engine:     metrics.NewEngine(conf.NewBenchmark()),
		Recorder:   recorder,
		Collectors: collectors,
	}, srvCfg.BodySizeBytes(), version)

	serveErr := server.Serve(ctx, srvCfg.Address, handler, logger)

	// Let in-flight writes settle before releasing the sink.
	recorder.Wait()
	if err := sink.Close(s); err != nil {
		logger.Warn("failed to close sink",
			zap.String("op", "main.runServe"),
			zap.Error(err),
		)
	}
	return serveErr
}
