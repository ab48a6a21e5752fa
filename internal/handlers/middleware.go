package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"ntl-platform/pkg/logging"
)

// RequestIDMiddleware attaches a request id to every request's context so
// log entries produced while serving it can be correlated. An incoming
// X-Request-ID header is honored; otherwise a new id is generated.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := logging.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
