package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDContextKey string

const RequestIDContextKey requestIDContextKey = "request_id"

// RequestID reuses chi's id or the caller's header and otherwise mints a
// UUID, echoing it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prefer the id chi's RequestID middleware already assigned
		requestID := middleware.GetReqID(r.Context())

		// Otherwise honor one supplied by the caller
		if requestID == "" {
			requestID = r.Header.Get(RequestIDHeader)
		}

		// Mint a fresh UUID as the last resort
		if requestID == "" {
			requestID = uuid.New().String()
		}

		// Echo on the response so callers can correlate
		w.Header().Set(RequestIDHeader, requestID)

		// Store under our own key for GetRequestID
		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the id stored by RequestID, then chi's, then "".
func GetRequestID(ctx context.Context) string {
	// Our key wins when RequestID ran
	if requestID, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return requestID
	}

	// Fall back to chi's id, empty when neither middleware ran
	return middleware.GetReqID(ctx)
}
