package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bootstrap-core/internal/app"
	"bootstrap-core/internal/config"
	"bootstrap-core/internal/di"
	"bootstrap-core/internal/diagnostics"
	apperrors "bootstrap-core/internal/errors"
	"bootstrap-core/internal/infrastructure/observability"
)

var shutdownTimeout time.Duration

func init() {
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Bootstrap the registry and serve diagnostics until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger, err := newLogger(settings)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	tp, err := observability.InitTracing(observability.TracingConfig{
		ServiceName: "bootstrap",
		Environment: string(settings.Environment),
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	host, err := app.Bootstrap(ctx, settings, logger)
	if err != nil {
		return apperrors.Wrap(err, "cli.serve", "bootstrapping registry")
	}

	cfg, err := host.LoadConfig(ctx)
	if err != nil {
		return apperrors.Wrap(err, "cli.serve", "loading host config")
	}
	logger.Info("Host configuration loaded",
		zap.String("service", cfg.ServiceName),
		zap.String("slot", settings.ConfigPath),
	)

	if settings.EnableWatch || cfg.Features.HotReload {
		store, err := host.ConfigStore()
		if err != nil {
			return err
		}
		watcher := config.NewWatcher(store, config.WithWatchLogger(logger.Named("config")))
		watcher.OnChange(func(c app.HostConfig) {
			logger.Info("Host configuration changed", zap.String("service", c.ServiceName))
		})
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	// an absent config slot keeps diagnostics on
	if !cfg.Features.Diagnostics && cfg.ServiceName != "" {
		logger.Info("Diagnostics disabled by host configuration")
		<-ctx.Done()
		return nil
	}

	srv, err := di.Resolve[*diagnostics.Server](host.Registry)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return apperrors.Wrap(err, "cli.serve", "starting diagnostics server")
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
