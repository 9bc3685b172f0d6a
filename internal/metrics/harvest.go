package metrics

import (
	"strconv"
	"time"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
	"github.com/lsk7209/0-nkey-sub001/internal/observability"
)

// Harvest and server metric names, following Prometheus conventions.
const (
	HarvestCallsTotal        = "harvest_calls_total"
	HarvestCallDuration      = "harvest_call_duration_ms"
	HarvestConcurrency       = "harvest_concurrency_current"
	HarvestAdjustmentsTotal  = "harvest_adjustments_total"
	HarvestRunsTotal         = "harvest_runs_total"
	HarvestRunItems          = "harvest_run_items"
	HealthCheckTotal         = "app_health_check_total"
	HealthCheckDuration      = "app_health_check_duration_ms"
	ServerStartTime          = "app_server_start_time_seconds"
	credentialLabelUnlabeled = "unlabeled"
)

// RecordCall counts one attempt against the keyword API.
func RecordCall(result core.CallResult) {
	if observability.TelemetrySystem == nil {
		return
	}

	credential := result.Label
	if credential == "" {
		credential = credentialLabelUnlabeled
	}

	_ = observability.TelemetrySystem.Counter(
		HarvestCallsTotal,
		1,
		map[string]string{
			"outcome":    string(result.Outcome),
			"credential": credential,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		HarvestCallDuration,
		result.Duration,
		map[string]string{
			"outcome": string(result.Outcome),
		},
	)
}

// SetConcurrency publishes the controller's current permit count.
func SetConcurrency(current int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(HarvestConcurrency, float64(current), nil)
}

// RecordAdjustment counts a controller decision that changed concurrency.
func RecordAdjustment(adj core.Adjustment) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		HarvestAdjustmentsTotal,
		1,
		map[string]string{"rule": string(adj.Rule)},
	)
	_ = observability.TelemetrySystem.Gauge(HarvestConcurrency, float64(adj.To), nil)
}

// RecordRun counts a finished run.
func RecordRun(summary core.RunSummary) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		HarvestRunsTotal,
		1,
		map[string]string{
			"pool":      summary.Pool,
			"cancelled": strconv.FormatBool(summary.Cancelled),
		},
	)
	_ = observability.TelemetrySystem.Gauge(
		HarvestRunItems,
		float64(summary.Items),
		map[string]string{"pool": summary.Pool},
	)
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	_ = observability.TelemetrySystem.Counter(
		HealthCheckTotal,
		1,
		map[string]string{
			"check":  checkName,
			"status": status,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		HealthCheckDuration,
		duration,
		map[string]string{"check": checkName},
	)
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
}
