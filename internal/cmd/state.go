package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/lsk7209/0-nkey-sub001/internal/core/store"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset persisted throttle state",
}

func init() {
	rootCmd.AddCommand(stateCmd)
}

func addThrottleQueryFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("all", false, "Match every pool")
	cmd.Flags().String("pool", "", "Match one pool by exact name")
	cmd.Flags().String("prefix", "", "Match pools whose name starts with this prefix")
}

func throttleQueryFromFlags(cmd *cobra.Command) store.ThrottleQuery {
	all, _ := cmd.Flags().GetBool("all")
	pool, _ := cmd.Flags().GetString("pool")
	prefix, _ := cmd.Flags().GetString("prefix")
	return store.ThrottleQuery{
		All:    all,
		Pool:   strings.TrimSpace(pool),
		Prefix: strings.TrimSpace(prefix),
	}
}
