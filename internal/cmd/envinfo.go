package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lsk7209/0-nkey-sub001/internal/config"
	"github.com/lsk7209/0-nkey-sub001/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, throttle and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()
		identity := GetAppIdentity()

		log.Info("=== Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + identity.BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("  Env Prefix: " + identity.EnvPrefix)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		log.Info("Configuration:")
		log.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		log.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		log.Info(fmt.Sprintf("  Admin Routes:   %t", cfg.Server.AdminToken != ""))
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			log.Info("  DB URL:         (set)")
		} else {
			log.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		log.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		log.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		log.Info("")

		ctrl := cfg.Throttle.Controller
		log.Info("Throttle:")
		log.Info(fmt.Sprintf("  Concurrency:    min %d, max %d, initial %d", ctrl.Min, ctrl.Max, ctrl.Initial))
		log.Info("  Interval:       " + ctrl.AdjustmentInterval.String())
		log.Info(fmt.Sprintf("  Target Success: %.2f", ctrl.TargetSuccessRate))
		log.Info("  Target Latency: " + ctrl.TargetResponseTime.String())
		log.Info("  Cooldown:       " + cfg.Throttle.Credentials.Cooldown.String())
		log.Info("")

		p := cfg.Provider
		log.Info("Provider:")
		log.Info("  Pool:           " + p.Name)
		log.Info("  Driver:         " + p.Driver)
		log.Info(fmt.Sprintf("  Request RPS:    %.2f (margin %.2f)", p.RequestRPS, p.RateLimitMargin))
		log.Info(fmt.Sprintf("  Max Attempts:   %d", p.MaxAttempts))
		if strings.EqualFold(p.Driver, "http") {
			log.Info("  Endpoint:       " + p.HTTP.Endpoint)
		}
		for _, cred := range p.EnabledCredentials() {
			state := "(not set)"
			if strings.TrimSpace(cred.APIKey) != "" {
				state = "(set)"
			}
			log.Info(fmt.Sprintf("  credentials[%d] %s: %s", cred.Index, cred.Label, state))
		}
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
