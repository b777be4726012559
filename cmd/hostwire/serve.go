package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"example.com/hostwire/internal/config"
	"example.com/hostwire/internal/logger"
	"example.com/hostwire/internal/metrics"
	"example.com/hostwire/internal/server"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the configuration file")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runServe(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	lg, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer lg.Close()

	var m *metrics.Metrics
	if cfg.Metrics != nil && cfg.Metrics.Enabled != nil && *cfg.Metrics.Enabled {
		m = metrics.New()
	}

	serverCfg, err := server.BuildServerConfig(cfg, server.NewDefaultServiceRegistry(), lg)
	if err != nil {
		return err
	}
	srv, err := server.NewServer(cfg, lg, serverCfg, m)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		lg.Info("signal received, shutting down", logger.LogFields{"signal": sig.String()})
		timeout := 30 * time.Second
		if cfg.Server != nil && cfg.Server.GracefulShutdownTimeout != nil {
			timeout = cfg.Server.GracefulShutdownTimeout.Value()
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
