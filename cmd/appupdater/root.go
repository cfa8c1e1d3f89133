package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/narwhalmedia/appupdater/internal/config"
	"github.com/narwhalmedia/appupdater/internal/container"
	"github.com/narwhalmedia/appupdater/internal/logger"
)

const serviceName = "appupdater"

var version = "dev"

var debug bool

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Download, verify and install application updates",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newFetchCmd(), newServeCmd(), newHistoryCmd())
	return cmd
}

// bootstrap loads configuration from the environment and wires the app.
func bootstrap() (*container.App, func(), error) {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if debug {
		cfg.Observability.LogLevel = "debug"
	}

	log, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app, cleanup, err := container.InitializeApp(cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, fmt.Errorf("failed to initialize: %w", err)
	}

	log.Debug("initialized",
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	return app, func() {
		cleanup()
		_ = log.Sync()
	}, nil
}
