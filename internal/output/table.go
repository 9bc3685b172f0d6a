package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

// TableFormatter renders results as ASCII tables.
type TableFormatter struct{}

// FormatRun renders one run summary as a two-column table.
func (f *TableFormatter) FormatRun(summary *core.RunSummary) (string, error) {
	if summary == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Field", "Value"})
	for _, row := range runRows(*summary) {
		t.AppendRow(table.Row{row.key, row.value})
	}
	return t.Render(), nil
}

// FormatRuns renders run history, newest first as given.
func (f *TableFormatter) FormatRuns(runs []core.RunSummary) (string, error) {
	if len(runs) == 0 {
		return "No runs recorded.", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Started", "Pool", "Status", "Items", "OK", "Failed", "429", "Concurrency", "p95"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			formatTime(run.StartedAt),
			run.Pool,
			runStatus(run),
			run.Items,
			run.Succeeded,
			run.Failed,
			run.RateLimited,
			run.FinalConcurrency,
			formatMs(run.P95LatencyMs),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "", "Total", fmt.Sprintf("%d runs", len(runs))})
	return t.Render(), nil
}

// FormatSnapshots renders one controller row plus a credential table per pool.
func (f *TableFormatter) FormatSnapshots(snapshots []core.ThrottleSnapshot) (string, error) {
	if len(snapshots) == 0 {
		return "No throttle state stored.", nil
	}

	rendered := make([]string, 0, len(snapshots))
	for _, snap := range snapshots {
		state := snap.Concurrency

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetTitle(fmt.Sprintf("%s: concurrency %d [%d..%d], success %s, avg %s",
			snap.Pool, state.Current, state.Min, state.Max,
			formatPercent(state.SuccessRate), formatMs(state.AvgResponseTimeMs)))
		t.AppendHeader(table.Row{"Credential", "Calls", "OK", "Failed", "429", "Success", "Avg", "Last used"})
		for _, rec := range snap.Credentials {
			t.AppendRow(table.Row{
				rec.Index,
				rec.TotalCalls,
				rec.SuccessCount,
				rec.FailureCount,
				rec.RateLimitCount,
				formatPercent(rec.SuccessRate()),
				formatMs(rec.AvgResponseTimeMs),
				formatTime(rec.LastUsedAt),
			})
		}
		t.AppendFooter(table.Row{"", "", "", "", "", "", "Saved", formatTime(snap.SavedAt)})
		rendered = append(rendered, t.Render())
	}
	return strings.Join(rendered, "\n\n"), nil
}
