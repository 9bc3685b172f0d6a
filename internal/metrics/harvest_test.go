package metrics

import (
	"testing"
	"time"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
	"github.com/lsk7209/0-nkey-sub001/internal/observability"
)

// Recording without an initialized telemetry system must be a no-op.
func TestRecordersWithoutTelemetry(t *testing.T) {
	previous := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = previous })

	RecordCall(core.CallResult{Outcome: core.OutcomeSuccess, Duration: time.Millisecond})
	SetConcurrency(10)
	RecordAdjustment(core.Adjustment{Rule: core.AdjustGrow, From: 10, To: 11})
	RecordRun(core.RunSummary{Pool: "default", Items: 3})
	RecordHealthCheck("store", true, time.Millisecond)
	SetServerStartTime(time.Now().Unix())
	RecordHTTPError("/debug/throttle", "NOT_FOUND", 404)
	RecordPanic("/debug/runs")
}
