package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lsk7209/0-nkey-sub001/internal/core/store"
	"github.com/lsk7209/0-nkey-sub001/internal/output"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded harvest runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent harvest runs, newest first",
	RunE:  runRunsList,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)

	runsListCmd.Flags().String("pool", "", "Only show runs for this pool")
	runsListCmd.Flags().Int("limit", 20, "Maximum number of runs to show")
	addOutputFlags(runsListCmd)
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	pool, _ := cmd.Flags().GetString("pool")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 1 {
		return errors.New("--limit must be at least 1")
	}

	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	db, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	runs, err := db.ListRuns(ctx, store.RunQuery{Pool: strings.TrimSpace(pool), Limit: limit})
	if err != nil {
		return err
	}

	rendered, err := output.NewFormatter(format).FormatRuns(runs)
	if err != nil {
		return err
	}
	return writeRendered(cmd, format, "runs.list", rendered)
}
