package nuki

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/gray-logic-nuki/internal/device"
)

// Callback server constants.
const (
	// maxCallbackBody caps push notification bodies.
	maxCallbackBody = 64 << 10

	callbackReadTimeout = 10 * time.Second
)

// CallbackHandler applies decoded push notifications.
type CallbackHandler interface {
	HandleCallback(raw device.RawStatus) error
}

// CallbackServer receives push notifications from the bridge.
//
// Every POST carrying a JSON body with a nukiId is answered 200, whether or
// not the device is known. A body without a nukiId is answered 400.
type CallbackServer struct {
	addr    string
	handler CallbackHandler
	metrics *Metrics

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener

	logger Logger
}

// NewCallbackServer creates a callback server listening on addr.
func NewCallbackServer(addr string, h CallbackHandler, metrics *Metrics, logger Logger) *CallbackServer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &CallbackServer{
		addr:    addr,
		handler: h,
		metrics: metrics,
		logger:  logger,
	}
}

// Handler returns the HTTP handler of the callback endpoint.
func (s *CallbackServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/", s.handleNotification)
	return r
}

// Start binds the listener and serves in the background.
func (s *CallbackServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: callbackReadTimeout,
		ReadTimeout:       callbackReadTimeout,
	}

	srv := s.srv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("callback server stopped", "error", err)
		}
	}()

	s.logger.Info("callback server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *CallbackServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Close shuts the server down gracefully.
func (s *CallbackServer) Close(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *CallbackServer) handleNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		s.metrics.observeCallback("invalid")
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	raw, err := NormalizeCallback(body)
	if err != nil {
		s.metrics.observeCallback("invalid")
		s.logger.Debug("rejected push notification", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.handler.HandleCallback(raw); err != nil && !errors.Is(err, device.ErrDeviceNotFound) {
		s.logger.Warn("applying push notification failed", "nuki_id", raw.NukiID, "error", err)
	}
	w.WriteHeader(http.StatusOK)
}
