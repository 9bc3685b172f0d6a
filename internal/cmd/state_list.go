package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lsk7209/0-nkey-sub001/internal/output"
)

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted throttle state",
	Long: `List the stored controller and credential statistics for matching pools.

Without a filter every pool is listed.`,
	RunE: runStateList,
}

func init() {
	stateCmd.AddCommand(stateListCmd)
	addThrottleQueryFlags(stateListCmd)
	addOutputFlags(stateListCmd)
}

func runStateList(cmd *cobra.Command, _ []string) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}

	query := throttleQueryFromFlags(cmd)
	if query.Pool == "" && query.Prefix == "" {
		query.All = true
	}
	if err := query.Validate(); err != nil {
		return err
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

	snapshots, err := db.ListThrottleStates(ctx, query)
	if err != nil {
		return err
	}

	rendered, err := output.NewFormatter(format).FormatSnapshots(snapshots)
	if err != nil {
		return err
	}
	return writeRendered(cmd, format, "state.list", rendered)
}
