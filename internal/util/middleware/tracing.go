// Package middleware holds the mux.MiddlewareFunc values wrapped around
// each of the three origin surface handlers.
package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/api/key"
	"go.opentelemetry.io/otel/api/trace"

	"github.com/Comcast/sos-origin/internal/util/tracing"
)

// Trace wraps next in a span named after surface (admin, db, or cdn), the
// generalized form of the teacher's per-origin tracing middleware.
func Trace(surface string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, span := tracing.PrepareRequest(r, tracing.Name(), surface)
			defer func() {
				span.End(trace.WithEndTime(time.Now()))
			}()
			span.AddEventWithTimestamp(
				r.Context(),
				time.Now(),
				"Starting Parent Span",
				key.String("surface", surface),
			)

			next.ServeHTTP(w, r)
		})
	}
}
