package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"gitlab-portal/internal/app"
	"gitlab-portal/internal/logger"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			logger.Error("invalid configuration", map[string]any{
				"error": err.Error(),
			})
			return err
		}

		ctx, stop := signal.NotifyContext(
			cmd.Context(),
			os.Interrupt,
			syscall.SIGTERM,
		)
		defer stop()

		application, err := app.New(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to initialize app", map[string]any{
				"error": err.Error(),
			})
		}

		go func() {
			if err := application.Run(); err != nil {
				logger.Fatal("http server failed", map[string]any{
					"error": err.Error(),
				})
			}
		}()

		logger.Info("gitlab-portal started", map[string]any{
			"port":      cfg.Server.Port,
			"auth_mode": cfg.Auth.Mode,
		})

		<-ctx.Done() // wait for Ctrl+C

		logger.Info("shutdown signal received", nil)

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			cfg.Server.ShutdownTimeout,
		)
		defer cancel()

		if err := application.Shutdown(shutdownCtx); err != nil {
			logger.Fatal("graceful shutdown failed", map[string]any{
				"error": err.Error(),
			})
		}

		logger.Info("gitlab-portal stopped cleanly", nil)
		return nil
	},
}
