package output

import (
	"fmt"
	"strings"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

// MarkdownFormatter renders results as markdown tables.
type MarkdownFormatter struct{}

// FormatRun renders a run summary as Markdown.
func (f *MarkdownFormatter) FormatRun(summary *core.RunSummary) (string, error) {
	if summary == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Harvest %s\n\n", escapeMarkdownCell(summary.RunID)))
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	for _, row := range runRows(*summary) {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", row.key, escapeMarkdownCell(row.value)))
	}
	return sb.String(), nil
}

// FormatRuns renders run history as Markdown.
func (f *MarkdownFormatter) FormatRuns(runs []core.RunSummary) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Harvest runs\n\n")
	if len(runs) == 0 {
		sb.WriteString("_No runs recorded._\n")
		return sb.String(), nil
	}

	sb.WriteString("| Started | Pool | Status | Items | OK | Failed | 429 | Concurrency |\n")
	sb.WriteString("|---------|------|--------|-------|----|--------|-----|-------------|\n")
	for _, run := range runs {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %d | %d | %d | %d |\n",
			formatTime(run.StartedAt),
			escapeMarkdownCell(run.Pool),
			runStatus(run),
			run.Items, run.Succeeded, run.Failed, run.RateLimited, run.FinalConcurrency,
		))
	}
	return sb.String(), nil
}

// FormatSnapshots renders throttle snapshots as Markdown.
func (f *MarkdownFormatter) FormatSnapshots(snapshots []core.ThrottleSnapshot) (string, error) {
	var sb strings.Builder
	if len(snapshots) == 0 {
		sb.WriteString("_No throttle state stored._\n")
		return sb.String(), nil
	}

	for i, snap := range snapshots {
		if i > 0 {
			sb.WriteString("\n")
		}
		state := snap.Concurrency
		sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(snap.Pool)))
		sb.WriteString(fmt.Sprintf("**Concurrency**: %d (min %d, max %d), success %s, avg %s\n\n",
			state.Current, state.Min, state.Max, formatPercent(state.SuccessRate), formatMs(state.AvgResponseTimeMs)))
		sb.WriteString("| Credential | Calls | OK | Failed | 429 | Success | Last used |\n")
		sb.WriteString("|------------|-------|----|--------|-----|---------|-----------|\n")
		for _, rec := range snap.Credentials {
			sb.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %d | %s | %s |\n",
				rec.Index, rec.TotalCalls, rec.SuccessCount, rec.FailureCount, rec.RateLimitCount,
				formatPercent(rec.SuccessRate()), formatTime(rec.LastUsedAt)))
		}
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
