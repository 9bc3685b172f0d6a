package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

const (
	defaultKeywordParam = "keyword"
	defaultAuthHeader   = "Authorization"
	defaultAuthScheme   = "Bearer"
	defaultHTTPTimeout  = 10 * time.Second
)

// HTTPConfig describes a keyword metrics endpoint.
type HTTPConfig struct {
	Endpoint     string
	KeywordParam string
	AuthHeader   string
	// AuthScheme prefixes the key in AuthHeader; "none" sends the bare key.
	AuthScheme string
	Timeout    time.Duration
	Client     *http.Client
	// Clock overrides time.Now when resolving HTTP-date Retry-After values.
	Clock func() time.Time
}

// HTTP calls a keyword metrics endpoint once per work item.
type HTTP struct {
	endpoint     *url.URL
	keywordParam string
	authHeader   string
	authScheme   string
	client       *http.Client
	clock        func() time.Time
}

func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	raw := strings.TrimSpace(cfg.Endpoint)
	if raw == "" {
		return nil, errors.New("http provider requires an endpoint")
	}
	endpoint, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse provider endpoint: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("provider endpoint must be http(s), got %q", raw)
	}

	h := &HTTP{
		endpoint:     endpoint,
		keywordParam: firstNonEmpty(cfg.KeywordParam, defaultKeywordParam),
		authHeader:   firstNonEmpty(cfg.AuthHeader, defaultAuthHeader),
		authScheme:   firstNonEmpty(cfg.AuthScheme, defaultAuthScheme),
		client:       cfg.Client,
		clock:        cfg.Clock,
	}
	if h.client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		h.client = &http.Client{Timeout: timeout}
	}
	return h, nil
}

func (h *HTTP) Call(ctx context.Context, cred core.Credential, item core.WorkItem) error {
	target := *h.endpoint
	query := target.Query()
	query.Set(h.keywordParam, item.Keyword)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if cred.APIKey != "" {
		req.Header.Set(h.authHeader, h.authValue(cred.APIKey))
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()                // nolint:errcheck // best-effort cleanup on HTTP response body
	_, _ = io.Copy(io.Discard, resp.Body) // drain for connection reuse

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &core.RateLimitError{Credential: cred.Index, RetryAfter: retryAfter(resp, h.now())}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		return fmt.Errorf("keyword %q: unexpected status %d", item.Keyword, resp.StatusCode)
	}
}

func (h *HTTP) authValue(key string) string {
	if strings.EqualFold(h.authScheme, "none") {
		return key
	}
	return h.authScheme + " " + key
}

func (h *HTTP) now() time.Time {
	if h.clock != nil {
		return h.clock()
	}
	return time.Now()
}

// retryAfter parses Retry-After as delta seconds or an HTTP date.
func retryAfter(resp *http.Response, now time.Time) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}
	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if parsed, err := http.ParseTime(value); err == nil && parsed.After(now) {
		return parsed.Sub(now)
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
