package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatusFromCode(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, HTTPStatusFromCode(CodeInvalidInput))
	require.Equal(t, http.StatusUnauthorized, HTTPStatusFromCode(CodeUnauthorized))
	require.Equal(t, http.StatusTooManyRequests, HTTPStatusFromCode(CodeRateLimited))
	require.Equal(t, http.StatusInternalServerError, HTTPStatusFromCode(CodeDatabase))
	require.Equal(t, http.StatusInternalServerError, HTTPStatusFromCode("SOMETHING_ELSE"))
}

func TestWrapCarriesUnderlyingError(t *testing.T) {
	env := WrapDatabase(context.Background(), stderrors.New("disk full"), "save throttle state")
	require.Equal(t, CodeDatabase, env.Code)
	require.NotEmpty(t, env.CorrelationID)
	require.Equal(t, "disk full", ResponseDetails(env)["wrapped_error"])
}

func TestEnsureEnvelope(t *testing.T) {
	require.Equal(t, CodeInternal, EnsureEnvelope(nil).Code)
	require.Equal(t, CodeInternal, EnsureEnvelope(stderrors.New("boom")).Code)

	env := NewNotFoundError("pool not found")
	require.Same(t, env, EnsureEnvelope(env))
}

func TestRespondWithError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/throttle/missing", nil)

	RespondWithError(rec, req, NewNotFoundError("pool not found"))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, CodeNotFound, body.Error.Code)
	require.Equal(t, "pool not found", body.Error.Message)
	require.NotEmpty(t, body.Error.RequestID)
}
