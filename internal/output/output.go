package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders harvest results and persisted throttle state.
type Formatter interface {
	FormatRun(summary *core.RunSummary) (string, error)
	FormatRuns(runs []core.RunSummary) (string, error)
	FormatSnapshots(snapshots []core.ThrottleSnapshot) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// Extension returns the file extension used by output sinks.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatMarkdown:
		return ".md"
	default:
		return ".txt"
	}
}

func formatMs(ms float64) string {
	if ms <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0fms", ms)
}

func formatPercent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

func runStatus(summary core.RunSummary) string {
	if summary.Cancelled {
		return "cancelled"
	}
	return "complete"
}

type kv struct {
	key   string
	value string
}

func runRows(summary core.RunSummary) []kv {
	return []kv{
		{"Run", summary.RunID},
		{"Pool", summary.Pool},
		{"Status", runStatus(summary)},
		{"Items", fmt.Sprintf("%d", summary.Items)},
		{"Succeeded", fmt.Sprintf("%d", summary.Succeeded)},
		{"Failed", fmt.Sprintf("%d", summary.Failed)},
		{"Rate limited", fmt.Sprintf("%d", summary.RateLimited)},
		{"Attempts", fmt.Sprintf("%d (%d retries)", summary.Attempts, summary.Retries)},
		{"Windows", fmt.Sprintf("%d", summary.Windows)},
		{"Final concurrency", fmt.Sprintf("%d", summary.FinalConcurrency)},
		{"Latency mean/p50/p95", fmt.Sprintf("%s / %s / %s",
			formatMs(summary.MeanLatencyMs), formatMs(summary.P50LatencyMs), formatMs(summary.P95LatencyMs))},
		{"Elapsed", summary.Duration().Round(time.Millisecond).String()},
	}
}
