package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// unmatchedRoute labels requests no route handled
const unmatchedRoute = "unmatched"

// routeInfo is what chi resolved for a served request
type routeInfo struct {
	pattern     string
	patientCode string
}

// resolveRoute reads chi's route context. Only valid after the router has
// served the request.
func resolveRoute(r *http.Request) routeInfo {
	info := routeInfo{pattern: unmatchedRoute}
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return info
	}
	if p := rctx.RoutePattern(); p != "" {
		info.pattern = p
	}
	info.patientCode = rctx.URLParam("code")
	return info
}

// Logger writes one line per request. Server errors log at error level and
// client errors at warn so rejected intakes stand out from normal traffic.
func Logger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			scope := &requestScope{}

			next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), scopeKey, scope)))

			route := resolveRoute(r)
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("route", route.pattern),
				zap.Int("status", sw.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("correlation_id", CorrelationID(r.Context())),
			}
			if scope.clientID != "" {
				fields = append(fields, zap.String("client_id", scope.clientID))
			}
			if route.patientCode != "" {
				fields = append(fields, zap.String("patient_code", route.patientCode))
			}

			switch {
			case sw.status >= http.StatusInternalServerError:
				logger.Error("http request", fields...)
			case sw.status >= http.StatusBadRequest:
				logger.Warn("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
		})
	}
}

// Tracing starts a server span per request, continuing any upstream trace.
// The span is named after the route pattern once chi has matched it.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	tracer := otel.Tracer(serviceName)
	propagator := otel.GetTextMapPropagator()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("triage.correlation_id", CorrelationID(r.Context())),
				))
			defer span.End()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))

			route := resolveRoute(r)
			span.SetName(r.Method + " " + route.pattern)
			span.SetAttributes(
				attribute.String("http.route", route.pattern),
				attribute.Int("http.status_code", sw.status),
			)
			if route.patientCode != "" {
				span.SetAttributes(attribute.String("triage.patient_code", route.patientCode))
			}
			if sw.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(sw.status))
			}
		})
	}
}

// HTTPObserver receives one observation per request
type HTTPObserver interface {
	ObserveHTTP(method, route, status string, d time.Duration)
}

// Metrics reports request counts and latency labelled by route pattern, so
// patient codes in paths do not explode label cardinality
func Metrics(obs HTTPObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			obs.ObserveHTTP(r.Method, resolveRoute(r).pattern, strconv.Itoa(sw.status), time.Since(start))
		})
	}
}

// statusWriter remembers the status code written by the handler
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
