package output

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

func sampleRun() core.RunSummary {
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return core.RunSummary{
		RunID:            "run-1",
		Pool:             "default",
		StartedAt:        started,
		FinishedAt:       started.Add(1500 * time.Millisecond),
		Items:            10,
		Succeeded:        8,
		Failed:           1,
		RateLimited:      1,
		Attempts:         11,
		Retries:          1,
		Windows:          1,
		FinalConcurrency: 11,
		MeanLatencyMs:    120,
		P50LatencyMs:     100,
		P95LatencyMs:     300,
	}
}

func sampleSnapshots() []core.ThrottleSnapshot {
	return []core.ThrottleSnapshot{{
		Pool: "a|b",
		Concurrency: core.ConcurrencyState{
			Current: 12, Min: 5, Max: 50, SuccessRate: 0.5, AvgResponseTimeMs: 200,
		},
		Credentials: []core.CredentialRecord{
			{Index: 0, TotalCalls: 4, SuccessCount: 2, FailureCount: 1, RateLimitCount: 1},
			{Index: 1},
		},
	}}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("md")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)

	require.Equal(t, ".json", FormatJSON.Extension())
	require.Equal(t, ".md", FormatMarkdown.Extension())
	require.Equal(t, ".txt", FormatTable.Extension())
}

func TestTableFormatter(t *testing.T) {
	f := NewFormatter(FormatTable)
	run := sampleRun()

	rendered, err := f.FormatRun(&run)
	require.NoError(t, err)
	require.Contains(t, rendered, "run-1")
	require.Contains(t, rendered, "11 (1 retries)")
	require.Contains(t, rendered, "120ms / 100ms / 300ms")
	require.Contains(t, rendered, "1.5s")

	rendered, err = f.FormatRun(nil)
	require.NoError(t, err)
	require.Empty(t, rendered)

	rendered, err = f.FormatRuns([]core.RunSummary{run})
	require.NoError(t, err)
	require.Contains(t, rendered, "2025-03-01T12:00:00Z")
	require.Contains(t, rendered, "300ms")

	rendered, err = f.FormatRuns(nil)
	require.NoError(t, err)
	require.Equal(t, "No runs recorded.", rendered)

	rendered, err = f.FormatSnapshots(sampleSnapshots())
	require.NoError(t, err)
	require.Contains(t, rendered, "concurrency 12 [5..50]")
	require.Contains(t, rendered, "50.0%")
	require.Contains(t, rendered, "never")
}

func TestJSONFormatter(t *testing.T) {
	f := NewFormatter(FormatJSON)
	run := sampleRun()

	rendered, err := f.FormatRun(&run)
	require.NoError(t, err)
	require.Contains(t, rendered, "\"run_id\": \"run-1\"")
	require.NotContains(t, rendered, "cancelled")

	rendered, err = f.FormatRuns(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", rendered)

	rendered, err = f.FormatSnapshots(sampleSnapshots())
	require.NoError(t, err)
	var decoded []core.ThrottleSnapshot
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Len(t, decoded, 1)
	require.Equal(t, int64(1), decoded[0].Credentials[0].RateLimitCount)
}

func TestMarkdownFormatter(t *testing.T) {
	f := NewFormatter(FormatMarkdown)
	run := sampleRun()
	run.Cancelled = true

	rendered, err := f.FormatRun(&run)
	require.NoError(t, err)
	require.Contains(t, rendered, "## Harvest run-1")
	require.Contains(t, rendered, "| Status | cancelled |")

	rendered, err = f.FormatRuns([]core.RunSummary{run})
	require.NoError(t, err)
	require.Contains(t, rendered, "| default | cancelled | 10 | 8 | 1 | 1 | 11 |")

	rendered, err = f.FormatSnapshots(sampleSnapshots())
	require.NoError(t, err)
	require.Contains(t, rendered, "## a\\|b")
	require.Contains(t, rendered, "| 0 | 4 | 2 | 1 | 1 | 50.0% | never |")

	rendered, err = f.FormatSnapshots(nil)
	require.NoError(t, err)
	require.Contains(t, rendered, "No throttle state")
}
