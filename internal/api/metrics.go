package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/nerrad567/gray-logic-nuki/internal/infrastructure/logging"
)

// tracerName identifies spans created by the API.
const tracerName = "github.com/nerrad567/gray-logic-nuki/internal/api"

// httpMetrics holds the request counter and the tracer used by
// observabilityMiddleware.
type httpMetrics struct {
	requests *prometheus.CounterVec
	tracer   trace.Tracer
}

// newHTTPMetrics registers the request counter on reg. A counter already
// registered by an earlier server on the same registry is reused.
func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total requests by service, endpoint, method, and status.",
		},
		[]string{"service", "endpoint", "method", "status"},
	)
	if err := reg.Register(requests); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				requests = existing
			}
		}
	}

	return &httpMetrics{
		requests: requests,
		tracer:   otel.Tracer(tracerName),
	}
}

// observabilityMiddleware opens a server span per request, continuing any
// incoming W3C trace context, and counts the request by route pattern.
// /metrics itself is neither traced nor counted.
func (s *Server) observabilityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := s.metrics.tracer.Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
			attribute.String("service.name", logging.ServiceName),
		)
		if rid := requestIDFrom(ctx); rid != "" {
			span.SetAttributes(attribute.String("http.request_id", rid))
		}
		if sc := span.SpanContext(); sc.HasTraceID() {
			w.Header().Set("Trace-ID", sc.TraceID().String())
		}

		ww := wrapWriter(w, r)
		next.ServeHTTP(ww, r.WithContext(ctx))
		status := statusOf(ww)

		endpoint := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				endpoint = pattern
				span.SetName(r.Method + " " + pattern)
			}
		}

		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		s.metrics.requests.WithLabelValues(logging.ServiceName, endpoint, r.Method, strconv.Itoa(status)).Inc()
	})
}
