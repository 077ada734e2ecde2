package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jingkaihe/skill-engine/pkg/config"
	"github.com/jingkaihe/skill-engine/pkg/logger"
	"github.com/jingkaihe/skill-engine/pkg/presenter"
	"github.com/jingkaihe/skill-engine/pkg/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API used by the chat frontend. It routes conversations to the
feature-planning workflow or general chat, serves the skill catalog and exposes
the agent tool contract.

The server listens on http://localhost:8080 by default.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := runServeCommand(cmd.Context(), appConfig); err != nil {
			presenter.Error(err, "API server failed")
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().String("host", "localhost", "Host to bind the API server to")
	serveCmd.Flags().Int("port", 8080, "Port to bind the API server to")
	bindFlags(serveCmd.Flags(), map[string]string{
		"host": "host",
		"port": "port",
	})

	rootCmd.AddCommand(serveCmd)
}

func runServeCommand(ctx context.Context, cfg config.Config) error {
	if cfg.Port < 1024 {
		logger.G(ctx).WithField("port", cfg.Port).Warn("using privileged port (< 1024) may require elevated permissions")
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := newResources(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := res.Close(); closeErr != nil {
			logger.G(ctx).WithError(closeErr).Error("failed to close skills watcher")
		}
	}()

	if err := res.StartWatcher(ctx); err != nil {
		return err
	}

	srv, err := server.NewServer(res, &server.ServerConfig{Host: cfg.Host, Port: cfg.Port})
	if err != nil {
		return err
	}

	presenter.Success(fmt.Sprintf("API server starting on http://%s", cfg.Addr()))
	presenter.Info("Press Ctrl+C to stop the server")

	if err := srv.Start(ctx); err != nil {
		return err
	}

	presenter.Info("API server stopped")
	return nil
}
