package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/lsk7209/0-nkey-sub001/internal/errors"
	"github.com/lsk7209/0-nkey-sub001/internal/observability"
)

const selfCheckTimeout = 5 * time.Second

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Verify the binary can start: version metadata, configuration, provider
credentials and the state store.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		if logger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		logger.Info("✅ Version information available", zap.String("version", versionInfo.Version))

		ctx, cancel := context.WithTimeout(cmd.Context(), selfCheckTimeout)
		defer cancel()

		cfg, err := loadConfig(ctx)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		logger.Info("✅ Configuration loaded", zap.String("config_file", cfgFile))

		if _, err := buildHarvester(cfg, nil, nil); err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Provider configuration invalid", err)
			return
		}
		logger.Info("✅ Provider configured",
			zap.String("driver", cfg.Provider.Driver),
			zap.Int("credentials", len(cfg.Provider.EnabledCredentials())))

		db, err := openStore(ctx, cfg.Store)
		if err != nil {
			ExitWithCode(logger, foundry.ExitFailure, "State store unavailable", err)
			return
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup
		if err := db.CheckHealth(ctx); err != nil {
			ExitWithCode(logger, foundry.ExitFailure, "State store unhealthy", err)
			return
		}
		logger.Info("✅ State store reachable", zap.String("driver", db.Driver()))

		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
