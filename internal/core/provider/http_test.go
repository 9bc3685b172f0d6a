package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

func TestHTTPCallSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "running shoes", r.URL.Query().Get("hintKeywords"))
		require.Equal(t, "v2", r.URL.Query().Get("version"))
		require.Equal(t, "Bearer secret-1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"keywordList":[]}`))
	}))
	defer server.Close()

	caller, err := NewHTTP(HTTPConfig{
		Endpoint:     server.URL + "/keywordstool?version=v2",
		KeywordParam: "hintKeywords",
		Client:       server.Client(),
	})
	require.NoError(t, err)

	err = caller.Call(context.Background(), core.Credential{Index: 1, APIKey: "secret-1"}, core.WorkItem{Keyword: "running shoes"})
	require.NoError(t, err)
}

func TestHTTPCallRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret-2", r.Header.Get("X-API-Key"))
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	caller, err := NewHTTP(HTTPConfig{
		Endpoint:   server.URL,
		AuthHeader: "X-API-Key",
		AuthScheme: "none",
		Client:     server.Client(),
	})
	require.NoError(t, err)

	err = caller.Call(context.Background(), core.Credential{Index: 2, APIKey: "secret-2"}, core.WorkItem{Keyword: "shoes"})
	var limited *core.RateLimitError
	require.ErrorAs(t, err, &limited)
	require.Equal(t, 2, limited.Credential)
	require.Equal(t, 7*time.Second, limited.RetryAfter)
}

func TestHTTPCallServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	caller, err := NewHTTP(HTTPConfig{Endpoint: server.URL, Client: server.Client()})
	require.NoError(t, err)

	err = caller.Call(context.Background(), core.Credential{}, core.WorkItem{Keyword: "shoes"})
	require.Error(t, err)
	require.Equal(t, core.OutcomeFailure, core.ClassifyError(err))
	require.Contains(t, err.Error(), "502")
}

func TestNewHTTPValidatesEndpoint(t *testing.T) {
	_, err := NewHTTP(HTTPConfig{})
	require.Error(t, err)

	_, err = NewHTTP(HTTPConfig{Endpoint: "ftp://example.test"})
	require.Error(t, err)
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	resp := &http.Response{Header: http.Header{}}
	require.Zero(t, retryAfter(resp, now))

	resp.Header.Set("Retry-After", "30")
	require.Equal(t, 30*time.Second, retryAfter(resp, now))

	resp.Header.Set("Retry-After", now.Add(time.Minute).Format(http.TimeFormat))
	require.Equal(t, time.Minute, retryAfter(resp, now))

	resp.Header.Set("Retry-After", "soon")
	require.Zero(t, retryAfter(resp, now))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", now.Add(90*time.Second).Format(http.TimeFormat))
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	caller, err := NewHTTP(HTTPConfig{
		Endpoint: server.URL,
		Client:   server.Client(),
		Clock:    func() time.Time { return now },
	})
	require.NoError(t, err)

	err = caller.Call(context.Background(), core.Credential{Index: 3, APIKey: "k"}, core.WorkItem{Keyword: "boots"})
	var limited *core.RateLimitError
	require.ErrorAs(t, err, &limited)
	require.Equal(t, 3, limited.Credential)
	require.Equal(t, 90*time.Second, limited.RetryAfter)
}
