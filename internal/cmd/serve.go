package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lsk7209/0-nkey-sub001/internal/appid"
	"github.com/lsk7209/0-nkey-sub001/internal/config"
	"github.com/lsk7209/0-nkey-sub001/internal/core/store"
	errwrap "github.com/lsk7209/0-nkey-sub001/internal/errors"
	"github.com/lsk7209/0-nkey-sub001/internal/metrics"
	"github.com/lsk7209/0-nkey-sub001/internal/observability"
	"github.com/lsk7209/0-nkey-sub001/internal/server"
	"github.com/lsk7209/0-nkey-sub001/internal/server/handlers"
)

const defaultShutdownTimeout = 10 * time.Second

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.binaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.envPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case i.configName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}

// storeHealthChecker pings the state database. A nil store is unhealthy.
type storeHealthChecker struct {
	db *store.Store
}

func (s storeHealthChecker) CheckHealth(ctx context.Context) error {
	if s.db == nil {
		return errwrap.NewServiceUnavailableError("state store not available")
	}
	return s.db.CheckHealth(ctx)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server exposing health probes, Prometheus metrics and the
persisted throttle state of every pool.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (log level only; restart for other changes)`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "server host (default server.host)")
	serveCmd.Flags().IntP("port", "p", 0, "server port (default server.port)")
}

func serveOverrides(cmd *cobra.Command) map[string]any {
	overrides := map[string]any{}
	if cmd.Flags().Changed("host") {
		v, _ := cmd.Flags().GetString("host")
		overrides["server.host"] = v
	}
	if cmd.Flags().Changed("port") {
		v, _ := cmd.Flags().GetInt("port")
		overrides["server.port"] = v
	}
	return overrides
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	identity := GetAppIdentity()
	if identity == nil {
		identity = &appid.Identity{BinaryName: "nkey"}
	}
	namespace := identity.Namespace
	if namespace == "" {
		namespace = identity.BinaryName
	}

	overrides := serveOverrides(cmd)
	cfg, err := loadConfigWith(ctx, overrides)
	if err != nil {
		return err
	}

	observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, namespace)
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
		}
	}

	db, err := openStore(ctx, cfg.Store)
	if err != nil {
		logger.Warn("State store unavailable; throttle endpoints will report 503", zap.Error(err))
		db = nil
	}

	logger.Info("Initializing server",
		zap.String("service", identity.BinaryName),
		zap.String("namespace", namespace),
		zap.String("version", versionInfo.Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
		zap.Int("metrics_port", observability.GetMetricsPort()),
		zap.Bool("admin_enabled", cfg.Server.AdminToken != ""))

	hm := handlers.InitHealthManager(versionInfo.Version)
	hm.RegisterChecker("store", storeHealthChecker{db: db})
	if cfg.Metrics.Enabled {
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})
	}
	hm.RegisterChecker("app_identity", identityHealthChecker{
		binaryName: identity.BinaryName,
		envPrefix:  identity.EnvPrefix,
		configName: identity.ConfigName,
	})
	handlers.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
	handlers.SetAppIdentity(identity)

	opts := []server.Option{
		server.WithAdminToken(cfg.Server.AdminToken),
		server.WithMetricsNamespace(namespace),
	}
	if db != nil {
		opts = append(opts, server.WithStateReader(db))
	}
	srv := server.New(cfg.Server.Host, cfg.Server.Port, opts...)
	metrics.SetServerStartTime(time.Now().Unix())

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	// Handlers run LIFO: server, then store, then logger.
	signals.OnShutdown(func(ctx context.Context) error {
		if err := logger.Sync(); err != nil {
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		if db == nil {
			return nil
		}
		logger.Info("Closing state store...")
		if err := db.Close(); err != nil {
			return errwrap.WrapDatabase(ctx, err, "store close failed")
		}
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errwrap.WrapInternal(ctx, err, "server shutdown failed")
		}
		if cfg.Metrics.Enabled {
			if err := observability.StopMetrics(); err != nil {
				logger.Warn("Metrics exporter stop failed", zap.Error(err))
			}
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: attempting config reload")
		reloaded, err := config.Load(ctx, overrides)
		if err != nil {
			logger.Error("Failed to reload config", zap.Error(err))
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}
		observability.InitServerLogger(identity.BinaryName, reloaded.Logging.Level, namespace)
		logger = observability.ServerLogger
		logger.Info("Configuration reloaded",
			zap.String("log_level", reloaded.Logging.Level),
			zap.String("file", config.DefaultConfigPath()))
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 2)
	go func() {
		logger.Info("Starting HTTP server...",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go func() {
		if err := signals.Listen(ctx); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	if err := <-errChan; err != nil {
		return errwrap.WrapInternal(ctx, err, "server error")
	}
	return nil
}
