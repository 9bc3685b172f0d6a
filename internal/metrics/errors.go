package metrics

import (
	"strconv"

	"github.com/lsk7209/0-nkey-sub001/internal/observability"
)

// Error metric names.
const (
	ErrorsTotal = "app_errors_total"
	PanicsTotal = "app_panics_total"
)

// RecordHTTPError counts an error envelope written to a client. route must be
// a route pattern rather than a raw path.
func RecordHTTPError(route, code string, status int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		ErrorsTotal,
		1,
		map[string]string{
			"route":       route,
			"error_code":  code,
			"http_status": strconv.Itoa(status),
		},
	)
}

// RecordPanic counts a handler panic recovered on route.
func RecordPanic(route string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(PanicsTotal, 1, map[string]string{"route": route})
}
