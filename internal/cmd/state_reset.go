package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lsk7209/0-nkey-sub001/internal/output"
)

var stateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete persisted throttle state",
	Long: `Delete stored controller and credential statistics for matching pools.
The next harvest for a reset pool starts from the configured initial concurrency.`,
	RunE: runStateReset,
}

func init() {
	stateCmd.AddCommand(stateResetCmd)
	addThrottleQueryFlags(stateResetCmd)
	stateResetCmd.Flags().Bool("yes", false, "Confirm destructive reset when using --all")
	stateResetCmd.Flags().Bool("dry-run", false, "Show how many pools would be deleted")
	addOutputFlags(stateResetCmd)
}

type resetResult struct {
	Matched int   `json:"matched"`
	Deleted int64 `json:"deleted"`
	DryRun  bool  `json:"dry_run"`
}

func runStateReset(cmd *cobra.Command, _ []string) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	if format == output.FormatMarkdown {
		return fmt.Errorf("unsupported output format: %s", format)
	}

	query := throttleQueryFromFlags(cmd)
	if err := query.Validate(); err != nil {
		return err
	}
	yes, _ := cmd.Flags().GetBool("yes")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if query.All && !yes && !dryRun {
		return errors.New("--all requires --yes (or use --dry-run)")
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

	matched, err := db.CountThrottleStates(ctx, query)
	if err != nil {
		return err
	}

	result := resetResult{Matched: matched, DryRun: dryRun}
	if !dryRun {
		result.Deleted, err = db.ResetThrottleStates(ctx, query)
		if err != nil {
			return err
		}
	}

	rendered, err := renderResetResult(format, result)
	if err != nil {
		return err
	}
	return writeRendered(cmd, format, "state.reset", rendered)
}

func renderResetResult(format output.Format, result resetResult) (string, error) {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return "", err
		}
		return string(payload), nil
	}
	if result.DryRun {
		return fmt.Sprintf("Would delete %d pool state entr(ies)", result.Matched), nil
	}
	return fmt.Sprintf("Deleted %d/%d pool state entr(ies)", result.Deleted, result.Matched), nil
}
