package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lsk7209/0-nkey-sub001/internal/config"
	"github.com/lsk7209/0-nkey-sub001/internal/core/engine"
	"github.com/lsk7209/0-nkey-sub001/internal/core/store"
	"github.com/lsk7209/0-nkey-sub001/internal/metrics"
	"github.com/lsk7209/0-nkey-sub001/internal/observability"
	"github.com/lsk7209/0-nkey-sub001/internal/output"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest <file>",
	Short: "Harvest metrics for keywords listed in a file",
	Long: `Read keywords from a file (one per line, '#' starts a comment; '-' reads stdin)
and fetch metrics for each through the configured provider.

Throttle state for the pool is restored before the run and saved after every
window, so consecutive runs start from the last learned concurrency.`,
	Args: cobra.ExactArgs(1),
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)
	addHarvestFlags(harvestCmd)
}

func addHarvestFlags(cmd *cobra.Command) {
	cmd.Flags().String("pool", "", "Pool name for persisted throttle state (default provider.name)")
	cmd.Flags().String("driver", "", "Provider driver override: simulated|http")
	cmd.Flags().Int("initial", 0, "Initial concurrency when no state is stored")
	cmd.Flags().Int("max-attempts", 0, "Attempts per keyword, including the first")
	cmd.Flags().Float64("request-rps", 0, "Requests per second allowed when every credential is near its provider limit")
	cmd.Flags().Bool("no-state", false, "Do not load or save throttle state and run history")
	addOutputFlags(cmd)
}

// harvestOverrides maps explicitly set flags onto config keys.
func harvestOverrides(cmd *cobra.Command) (map[string]any, error) {
	overrides := map[string]any{}
	flags := cmd.Flags()

	if flags.Changed("pool") {
		v, _ := flags.GetString("pool")
		overrides["provider.name"] = strings.TrimSpace(v)
	}
	if flags.Changed("driver") {
		v, _ := flags.GetString("driver")
		overrides["provider.driver"] = strings.TrimSpace(v)
	}
	if flags.Changed("initial") {
		v, _ := flags.GetInt("initial")
		if v < 1 {
			return nil, errors.New("--initial must be at least 1")
		}
		overrides["throttle.controller.initial"] = v
	}
	if flags.Changed("max-attempts") {
		v, _ := flags.GetInt("max-attempts")
		if v < 1 {
			return nil, errors.New("--max-attempts must be at least 1")
		}
		overrides["provider.max_attempts"] = v
	}
	if flags.Changed("request-rps") {
		v, _ := flags.GetFloat64("request-rps")
		overrides["provider.request_rps"] = v
	}
	return overrides, nil
}

func runHarvest(cmd *cobra.Command, args []string) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	if _, _, err := resolveOutputTargets(cmd); err != nil {
		return err
	}
	overrides, err := harvestOverrides(cmd)
	if err != nil {
		return err
	}
	noState, _ := cmd.Flags().GetBool("no-state")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfigWith(ctx, overrides)
	if err != nil {
		return err
	}

	input, closeInput, err := openKeywords(cmd, args[0])
	if err != nil {
		return err
	}
	defer closeInput()

	logger := observability.Active()

	var db *store.Store
	var state engine.StateStore
	if !noState {
		db, err = openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup
		state = db
	}

	h, err := buildHarvester(cfg, state, logger)
	if err != nil {
		return err
	}

	if logger != nil {
		logger.Info("Starting harvest",
			zap.String("pool", h.Pool),
			zap.String("driver", cfg.Provider.Driver),
			zap.Int("credentials", len(h.Keys)),
			zap.Int("concurrency", h.Controller.CurrentConcurrency()),
			zap.Float64("request_rps", h.Pacer.Limit()),
			zap.Bool("persisted", state != nil))
	}

	summary, runErr := h.Run(ctx, engine.NewLineSource(input))
	if summary == nil {
		return runErr
	}

	metrics.RecordRun(*summary)
	metrics.SetConcurrency(summary.FinalConcurrency)
	if db != nil {
		if err := db.RecordRun(context.WithoutCancel(ctx), summary); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("record run: %w", err))
		}
	}
	if logger != nil {
		logger.Info("Harvest finished", observability.RunFields(*summary)...)
	}

	rendered, err := output.NewFormatter(format).FormatRun(summary)
	if err != nil {
		return err
	}
	if err := writeRendered(cmd, format, "harvest."+summary.RunID, rendered); err != nil {
		return err
	}
	return runErr
}

func loadConfigWith(ctx context.Context, overrides map[string]any) (*config.Config, error) {
	if len(overrides) == 0 {
		return loadConfig(ctx)
	}
	cfg, err := config.Load(ctx, overrides)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openKeywords(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if strings.TrimSpace(path) == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open keyword file: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
