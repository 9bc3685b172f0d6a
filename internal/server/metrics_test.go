package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry/exporters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsk7209/0-nkey-sub001/internal/observability"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func withExporter(t *testing.T, transport roundTripFunc) {
	t.Helper()
	prevClient, prevExporter := metricsProxyClient, observability.PrometheusExporter
	t.Cleanup(func() {
		metricsProxyClient = prevClient
		observability.PrometheusExporter = prevExporter
	})
	metricsProxyClient = &http.Client{Transport: transport}
	observability.PrometheusExporter = exporters.NewPrometheusExporter("test", ":9090")
}

func errorCode(t *testing.T, body io.Reader) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp.Error.Code
}

func TestMetricsHandlerProxiesExporter(t *testing.T) {
	withExporter(t, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/metrics", req.URL.Path)
		assert.Equal(t, "application/openmetrics-text", req.Header.Get("Accept"))

		resp := &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader("nkey_harvest_calls_total{outcome=\"success\"} 3\n")),
		}
		resp.Header.Set("Connection", "close")
		resp.Header.Set("X-Exporter", "gofulmen")
		return resp, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept", "application/openmetrics-text")
	rec := httptest.NewRecorder()
	MetricsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "gofulmen", rec.Header().Get("X-Exporter"))
	assert.Empty(t, rec.Header().Get("Connection"))
	assert.Contains(t, rec.Body.String(), `nkey_harvest_calls_total{outcome="success"} 3`)
}

func TestMetricsHandlerExporterUnreachable(t *testing.T) {
	withExporter(t, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "EXTERNAL_SERVICE_ERROR", errorCode(t, rec.Body))
}

func TestMetricsHandlerWithoutExporter(t *testing.T) {
	prev := observability.PrometheusExporter
	observability.PrometheusExporter = nil
	t.Cleanup(func() { observability.PrometheusExporter = prev })

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", errorCode(t, rec.Body))
}
