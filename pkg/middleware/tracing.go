package middleware

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/vivaan01/blood-test-analyser-debug/pkg/telemetry"
)

// Tracing opens a span per request and records request count and duration.
// Instruments come from the global providers, so it is a no-op until
// telemetry export is configured.
func Tracing(scope string) func(http.Handler) http.Handler {
	tracer := telemetry.Tracer(scope)
	meter := telemetry.Meter(scope)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.url", r.URL.Path),
				),
			)
			defer span.End()

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.status_code", rec.status))

			attrs := otelmetric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
				attribute.String("http.status_code", strconv.Itoa(rec.status)),
			)
			if counter, err := meter.Int64Counter("http.server.request_count"); err == nil {
				counter.Add(ctx, 1, attrs)
			}
			if hist, err := meter.Float64Histogram("http.server.duration", otelmetric.WithUnit("ms")); err == nil {
				hist.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
			}
		})
	}
}
