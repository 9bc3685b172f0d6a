package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBearerAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := BearerAuth("s3cret")(ok)

	cases := map[string]struct {
		header string
		status int
	}{
		"valid":           {"Bearer s3cret", http.StatusNoContent},
		"scheme any case": {"bearer s3cret", http.StatusNoContent},
		"wrong token":     {"Bearer nope", http.StatusUnauthorized},
		"missing":         {"", http.StatusUnauthorized},
		"basic scheme":    {"Basic s3cret", http.StatusUnauthorized},
		"empty token":     {"Bearer ", http.StatusUnauthorized},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/debug/throttle", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := serve(handler, req)
			require.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestBearerAuthRejectsEverythingWithoutToken(t *testing.T) {
	handler := BearerAuth("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/debug/runs", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := serve(handler, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "UNAUTHORIZED", body.Error.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
}

func TestRecoveryWritesEnvelope(t *testing.T) {
	handler := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/debug/throttle", nil)
	req.Header.Set(RequestIDHeader, "req-panic")
	rec := serve(handler, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	require.Equal(t, "req-panic", body.Error.RequestID)
}
