package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

// SnapshotSource yields the throttle state to expose at scrape time.
type SnapshotSource func(ctx context.Context) ([]core.ThrottleSnapshot, error)

const collectTimeout = 5 * time.Second

// ThrottleCollector renders persisted or live throttle snapshots as Prometheus
// gauges. Values are read on every scrape, so nothing is cached between calls.
type ThrottleCollector struct {
	source SnapshotSource

	concurrency       *prometheus.Desc
	concurrencyBounds *prometheus.Desc
	successRate       *prometheus.Desc
	avgResponseMs     *prometheus.Desc
	requests          *prometheus.Desc
	lastAdjustment    *prometheus.Desc

	credentialCalls       *prometheus.Desc
	credentialSuccessRate *prometheus.Desc
	credentialAvgMs       *prometheus.Desc
	credentialLastUsed    *prometheus.Desc

	scrapeErrors *prometheus.Desc
}

// NewThrottleCollector builds a collector whose metric names start with
// namespace_throttle_.
func NewThrottleCollector(namespace string, source SnapshotSource) *ThrottleCollector {
	name := func(n string) string { return prometheus.BuildFQName(namespace, "throttle", n) }
	pool := []string{"pool"}
	cred := []string{"pool", "credential"}

	return &ThrottleCollector{
		source: source,

		concurrency:       prometheus.NewDesc(name("concurrency"), "Permitted in-flight calls.", pool, nil),
		concurrencyBounds: prometheus.NewDesc(name("concurrency_bound"), "Configured concurrency bounds.", []string{"pool", "bound"}, nil),
		successRate:       prometheus.NewDesc(name("success_rate"), "Controller success rate since the counters were last reset.", pool, nil),
		avgResponseMs:     prometheus.NewDesc(name("avg_response_time_ms"), "Smoothed controller latency in milliseconds.", pool, nil),
		requests:          prometheus.NewDesc(name("requests"), "Requests seen by the controller, by result.", []string{"pool", "result"}, nil),
		lastAdjustment:    prometheus.NewDesc(name("last_adjustment_timestamp_seconds"), "Time of the last controller evaluation.", pool, nil),

		credentialCalls:       prometheus.NewDesc(name("credential_calls"), "Calls attributed to a credential, by result.", []string{"pool", "credential", "result"}, nil),
		credentialSuccessRate: prometheus.NewDesc(name("credential_success_rate"), "Credential success rate.", cred, nil),
		credentialAvgMs:       prometheus.NewDesc(name("credential_avg_response_time_ms"), "Smoothed credential latency in milliseconds.", cred, nil),
		credentialLastUsed:    prometheus.NewDesc(name("credential_last_used_timestamp_seconds"), "Time the credential was last used, 0 if never.", cred, nil),

		scrapeErrors: prometheus.NewDesc(name("scrape_error"), "1 if loading snapshots failed during this scrape.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *ThrottleCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.concurrency, c.concurrencyBounds, c.successRate, c.avgResponseMs, c.requests, c.lastAdjustment,
		c.credentialCalls, c.credentialSuccessRate, c.credentialAvgMs, c.credentialLastUsed,
		c.scrapeErrors,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *ThrottleCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	var snapshots []core.ThrottleSnapshot
	var err error
	if c.source != nil {
		snapshots, err = c.source(ctx)
	}
	failed := 0.0
	if err != nil {
		failed = 1
	}
	ch <- prometheus.MustNewConstMetric(c.scrapeErrors, prometheus.GaugeValue, failed)
	if err != nil {
		return
	}

	for _, snap := range snapshots {
		c.collectSnapshot(ch, snap)
	}
}

func (c *ThrottleCollector) collectSnapshot(ch chan<- prometheus.Metric, snap core.ThrottleSnapshot) {
	gauge := prometheus.GaugeValue
	state := snap.Concurrency

	ch <- prometheus.MustNewConstMetric(c.concurrency, gauge, float64(state.Current), snap.Pool)
	ch <- prometheus.MustNewConstMetric(c.concurrencyBounds, gauge, float64(state.Min), snap.Pool, "min")
	ch <- prometheus.MustNewConstMetric(c.concurrencyBounds, gauge, float64(state.Max), snap.Pool, "max")
	ch <- prometheus.MustNewConstMetric(c.successRate, gauge, state.SuccessRate, snap.Pool)
	ch <- prometheus.MustNewConstMetric(c.avgResponseMs, gauge, state.AvgResponseTimeMs, snap.Pool)
	ch <- prometheus.MustNewConstMetric(c.requests, gauge, float64(state.SuccessCount), snap.Pool, "success")
	ch <- prometheus.MustNewConstMetric(c.requests, gauge, float64(state.FailureCount), snap.Pool, "failure")
	ch <- prometheus.MustNewConstMetric(c.lastAdjustment, gauge, unixSeconds(state.LastAdjustmentAt), snap.Pool)

	for _, rec := range snap.Credentials {
		idx := strconv.Itoa(rec.Index)
		ch <- prometheus.MustNewConstMetric(c.credentialCalls, gauge, float64(rec.SuccessCount), snap.Pool, idx, "success")
		ch <- prometheus.MustNewConstMetric(c.credentialCalls, gauge, float64(rec.FailureCount), snap.Pool, idx, "failure")
		ch <- prometheus.MustNewConstMetric(c.credentialCalls, gauge, float64(rec.RateLimitCount), snap.Pool, idx, "rate_limited")
		ch <- prometheus.MustNewConstMetric(c.credentialSuccessRate, gauge, rec.SuccessRate(), snap.Pool, idx)
		ch <- prometheus.MustNewConstMetric(c.credentialAvgMs, gauge, rec.AvgResponseTimeMs, snap.Pool, idx)
		ch <- prometheus.MustNewConstMetric(c.credentialLastUsed, gauge, unixSeconds(rec.LastUsedAt), snap.Pool, idx)
	}
}

// ThrottleHandler serves only the throttle collector from a private registry.
func ThrottleHandler(c *ThrottleCollector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}
