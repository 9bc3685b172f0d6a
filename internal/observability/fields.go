package observability

import (
	"go.uber.org/zap"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

// AdjustmentFields describes one controller decision.
func AdjustmentFields(pool string, adj core.Adjustment) []zap.Field {
	return []zap.Field{
		zap.String("pool", pool),
		zap.String("rule", string(adj.Rule)),
		zap.Int("from", adj.From),
		zap.Int("to", adj.To),
		zap.Float64("success_rate", adj.SuccessRate),
		zap.Float64("avg_response_time_ms", adj.AvgResponseTimeMs),
	}
}

// CallFields describes one attempt. API keys never reach the log.
func CallFields(result core.CallResult) []zap.Field {
	fields := []zap.Field{
		zap.String("run_id", result.RunID),
		zap.String("keyword", result.Item.Keyword),
		zap.Int("credential", result.Credential),
		zap.Int("attempt", result.Attempt),
		zap.String("outcome", string(result.Outcome)),
		zap.Duration("duration", result.Duration),
	}
	if result.Label != "" {
		fields = append(fields, zap.String("label", result.Label))
	}
	if result.Error != "" {
		fields = append(fields, zap.String("error", result.Error))
	}
	return fields
}

// RunFields summarizes a finished run.
func RunFields(summary core.RunSummary) []zap.Field {
	return []zap.Field{
		zap.String("run_id", summary.RunID),
		zap.String("pool", summary.Pool),
		zap.Int("items", summary.Items),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("rate_limited", summary.RateLimited),
		zap.Int("retries", summary.Retries),
		zap.Int("windows", summary.Windows),
		zap.Int("final_concurrency", summary.FinalConcurrency),
		zap.Float64("p95_latency_ms", summary.P95LatencyMs),
		zap.Duration("elapsed", summary.Duration()),
		zap.Bool("cancelled", summary.Cancelled),
	}
}
