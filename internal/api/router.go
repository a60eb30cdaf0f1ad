package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-nuki/internal/bridges/nuki"
)

// healthCheckTimeout bounds each component check in /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.observabilityMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint (no auth required)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Get("/{nukiId}", s.handleGetDevice)
				r.Post("/{nukiId}", s.handleCommandDevice)
				r.Get("/{nukiId}/commands", s.handleDeviceHistory)
			})

			r.Route("/bridge", func(r chi.Router) {
				r.Get("/", s.handleGetBridge)
				r.Post("/refresh", s.handleRefreshBridge)
				r.Post("/reboot", s.handleRebootBridge)
			})

			r.Get(s.wsPath(), s.handleWebSocket)
		})
	})

	return r
}

// wsPath returns the WebSocket route below /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// ComponentHealth is the result of one component check.
type ComponentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status        string                     `json:"status"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Devices       int                        `json:"devices"`
	Bridge        nuki.BridgeInfo            `json:"bridge"`
	Dispatcher    *nuki.Stats                `json:"dispatcher,omitempty"`
	WebSocket     int                        `json:"websocket_clients"`
	Components    map[string]ComponentHealth `json:"components,omitempty"`
}

// handleHealth reports the service and component health. It responds 503
// when any component check fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Devices:       s.controller.Store().Len(),
		Bridge:        s.controller.Info(),
		WebSocket:     s.hub.ClientCount(),
	}
	if s.dispatcher != nil {
		stats := s.dispatcher.Stats()
		resp.Dispatcher = &stats
	}

	if len(s.checks) > 0 {
		resp.Components = make(map[string]ComponentHealth, len(s.checks))
		names := make([]string, 0, len(s.checks))
		for name := range s.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := s.checks[name].HealthCheck(ctx)
			cancel()

			if err != nil {
				resp.Status = "degraded"
				resp.Components[name] = ComponentHealth{Status: "error", Error: err.Error()}
				continue
			}
			resp.Components[name] = ComponentHealth{Status: "ok"}
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	respond(w, status, resp)
}
