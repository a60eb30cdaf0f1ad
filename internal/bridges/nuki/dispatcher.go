package nuki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Dispatcher constants.
const (
	// minRecheckDelay is the shortest wait before the queue is re-examined
	// after a throttle.
	minRecheckDelay = 100 * time.Millisecond

	// maxResponseSize caps how much of a bridge response is read.
	maxResponseSize = 1 << 20

	tracerName = "github.com/nerrad567/gray-logic-nuki/internal/bridges/nuki"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Endpoint describes how to reach one bridge.
type Endpoint struct {
	Host  string
	Port  int
	Token string

	// Interval is the minimum gap between the completion of one attempt
	// and the start of the next.
	Interval time.Duration

	// MaxAttempts is the number of attempts per request, at least 1.
	MaxAttempts int

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration
}

// Validate reports ErrNotConfigured when the host or token is missing.
func (e Endpoint) Validate() error {
	if e.Host == "" || e.Token == "" {
		return ErrNotConfigured
	}
	return nil
}

// URL builds the full request URL for path, appending the token with the
// separator the path needs.
func (e Endpoint) URL(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "http://" + e.Host + ":" + strconv.Itoa(e.Port) + path + sep + "token=" + url.QueryEscape(e.Token)
}

// DispatchState is the state of the dispatcher's single worker.
type DispatchState int

// Dispatcher states.
const (
	StateIdle DispatchState = iota
	StateWaiting
	StateInFlight
)

// String returns the state name.
func (s DispatchState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateInFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

// Outcome is the final result of one request. It is delivered exactly once.
type Outcome struct {
	RequestID string
	Path      string
	OK        bool
	Body      json.RawMessage
	Err       error
	Attempts  int
}

// Request is a queued bridge call.
type Request struct {
	ID        string
	Path      string
	Submitted time.Time

	done    func(Outcome)
	retries int
}

// HTTPDoer performs HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestRecorder receives one data point per HTTP attempt.
type RequestRecorder interface {
	WriteBridgeRequest(path string, success bool, attempt int, latency time.Duration)
}

// Stats is a point-in-time view of the dispatcher.
type Stats struct {
	State         string    `json:"state"`
	QueueDepth    int       `json:"queue_depth"`
	Configured    bool      `json:"configured"`
	Succeeded     uint64    `json:"succeeded"`
	Failed        uint64    `json:"failed"`
	Retried       uint64    `json:"retried"`
	LastCompleted time.Time `json:"last_completed,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Endpoint Endpoint

	// Client performs the HTTP calls. Defaults to an *http.Client with
	// Endpoint.Timeout.
	Client HTTPDoer

	// Logger is optional structured logger.
	Logger Logger

	// Metrics is optional.
	Metrics *Metrics

	// Recorder is optional time-series output.
	Recorder RequestRecorder
}

// Dispatcher serializes all calls to one bridge.
//
// Requests run strictly in submission order, one at a time, with at least
// Endpoint.Interval between the end of one attempt and the start of the
// next. A failed attempt leaves the request at the head of the queue until
// MaxAttempts is reached.
//
// Completion callbacks run on the worker goroutine in submission order.
// They may submit further requests but must not block.
//
// Thread Safety: All methods are safe for concurrent use.
type Dispatcher struct {
	endpoint Endpoint
	client   HTTPDoer
	logger   Logger
	metrics  *Metrics
	recorder RequestRecorder
	tracer   trace.Tracer
	now      func() time.Time

	mu            sync.Mutex
	queue         []*Request
	state         DispatchState
	lastCompleted time.Time
	timer         *time.Timer
	stopped       bool
	notConfigured bool
	succeeded     uint64
	failed        uint64
	retried       uint64
	lastErr       error

	ctx       context.Context
	ctxCancel context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// NewDispatcher creates a dispatcher for one bridge endpoint.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	ep := opts.Endpoint
	if ep.MaxAttempts < 1 {
		ep.MaxAttempts = 1
	}
	if ep.Interval < 0 {
		ep.Interval = 0
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: ep.Timeout}
	}
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		endpoint:  ep,
		client:    client,
		logger:    logger,
		metrics:   opts.Metrics,
		recorder:  opts.Recorder,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
		ctx:       ctx,
		ctxCancel: cancel,
	}
}

// Submit enqueues a GET of path and returns the request ID. done is called
// exactly once with the final outcome; it may be nil.
//
// After Stop, done is called immediately with ErrDispatcherStopped.
func (d *Dispatcher) Submit(path string, done func(Outcome)) string {
	req := &Request{
		ID:        uuid.NewString(),
		Path:      path,
		Submitted: d.now(),
		done:      done,
	}

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		req.complete(Outcome{RequestID: req.ID, Path: path, Err: ErrDispatcherStopped})
		return req.ID
	}
	d.queue = append(d.queue, req)
	d.metrics.setQueueDepth(len(d.queue))
	d.logger.Debug("bridge request queued", "request_id", req.ID, "path", pathName(path), "queue_depth", len(d.queue))
	d.processLocked()
	d.mu.Unlock()

	return req.ID
}

// Do submits path and waits for its outcome or ctx cancellation. A
// cancelled wait does not remove the request from the queue.
func (d *Dispatcher) Do(ctx context.Context, path string) (Outcome, error) {
	ch := make(chan Outcome, 1)
	d.Submit(path, func(o Outcome) { ch <- o })

	select {
	case o := <-ch:
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Stop cancels the in-flight attempt, completes every pending request with
// ErrDispatcherStopped and waits for the worker to exit.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		if d.timer != nil {
			d.timer.Stop()
			d.timer = nil
		}
		var pending []*Request
		if d.state == StateInFlight && len(d.queue) > 0 {
			pending = d.queue[1:]
			d.queue = d.queue[:1]
		} else {
			pending = d.queue
			d.queue = nil
			d.state = StateIdle
		}
		d.metrics.setQueueDepth(len(d.queue))
		d.mu.Unlock()

		d.ctxCancel()
		for _, req := range pending {
			req.complete(Outcome{RequestID: req.ID, Path: req.Path, Err: ErrDispatcherStopped, Attempts: req.retries})
		}
		d.wg.Wait()
	})
}

// Stats returns a snapshot of dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Stats{
		State:         d.state.String(),
		QueueDepth:    len(d.queue),
		Configured:    d.endpoint.Validate() == nil,
		Succeeded:     d.succeeded,
		Failed:        d.failed,
		Retried:       d.retried,
		LastCompleted: d.lastCompleted,
	}
	if d.lastErr != nil {
		s.LastError = d.lastErr.Error()
	}
	return s
}

// processLocked starts the head request if the worker is idle and the
// throttle allows it. It is a no-op when a request is in flight, a recheck
// is pending or the queue is empty. Caller must hold d.mu.
func (d *Dispatcher) processLocked() {
	if d.stopped || d.state != StateIdle || len(d.queue) == 0 {
		return
	}

	if err := d.endpoint.Validate(); err != nil {
		if !d.notConfigured {
			d.notConfigured = true
			d.logger.Error("bridge requests held: endpoint not configured", "error", err, "queue_depth", len(d.queue))
		}
		return
	}

	if !d.lastCompleted.IsZero() {
		elapsed := d.now().Sub(d.lastCompleted)
		if elapsed < d.endpoint.Interval {
			wait := max(minRecheckDelay, d.endpoint.Interval-elapsed)
			d.state = StateWaiting
			d.timer = time.AfterFunc(wait, d.recheck)
			return
		}
	}

	req := d.queue[0]
	d.state = StateInFlight
	d.wg.Add(1)
	go d.execute(req)
}

func (d *Dispatcher) recheck() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateWaiting {
		d.state = StateIdle
		d.timer = nil
	}
	d.processLocked()
}

// execute performs one attempt of the head request.
func (d *Dispatcher) execute(req *Request) {
	defer d.wg.Done()

	attempt := req.retries + 1
	start := time.Now()
	body, err := d.send(req, attempt)
	latency := time.Since(start)

	name := pathName(req.Path)
	d.metrics.observeAttempt(name, err, latency)
	if d.recorder != nil {
		d.recorder.WriteBridgeRequest(name, err == nil, attempt, latency)
	}

	var outcome *Outcome

	d.mu.Lock()
	d.lastCompleted = d.now()
	switch {
	case err == nil:
		d.queue = d.queue[1:]
		d.succeeded++
		outcome = &Outcome{RequestID: req.ID, Path: req.Path, OK: true, Body: body, Attempts: attempt}
	case d.stopped:
		d.queue = d.queue[1:]
		d.failed++
		outcome = &Outcome{RequestID: req.ID, Path: req.Path, Err: fmt.Errorf("%w: %w", ErrDispatcherStopped, err), Attempts: attempt}
	default:
		req.retries++
		d.lastErr = err
		if req.retries >= d.endpoint.MaxAttempts {
			d.queue = d.queue[1:]
			d.failed++
			outcome = &Outcome{
				RequestID: req.ID,
				Path:      req.Path,
				Err:       fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, req.retries, err),
				Attempts:  req.retries,
			}
		} else {
			d.retried++
		}
	}
	d.metrics.setQueueDepth(len(d.queue))
	d.mu.Unlock()

	if outcome != nil {
		d.metrics.observeRequest(name, outcome.OK)
		if outcome.OK {
			d.logger.Debug("bridge request completed", "request_id", req.ID, "path", name, "attempts", attempt)
		} else {
			d.logger.Warn("bridge request failed", "request_id", req.ID, "path", name, "attempts", outcome.Attempts, "error", outcome.Err)
		}
		// The worker stays in flight while the callback runs so outcomes
		// are delivered in submission order.
		req.complete(*outcome)
	} else {
		d.logger.Debug("bridge request attempt failed, will retry",
			"request_id", req.ID, "path", name, "attempt", attempt, "error", err)
	}

	d.mu.Lock()
	d.state = StateIdle
	d.processLocked()
	d.mu.Unlock()
}

// send performs a single HTTP GET and validates the response.
func (d *Dispatcher) send(req *Request, attempt int) (json.RawMessage, error) {
	ctx := d.ctx
	if d.endpoint.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.endpoint.Timeout)
		defer cancel()
	}

	name := pathName(req.Path)
	ctx, span := d.tracer.Start(ctx, "nuki.bridge "+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("nuki.request_id", req.ID),
			attribute.String("nuki.path", name),
			attribute.Int("nuki.attempt", attempt),
		))
	defer span.End()

	body, err := d.roundTrip(ctx, req.Path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return body, nil
}

func (d *Dispatcher) roundTrip(ctx context.Context, path string) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint.URL(path), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return decodeBody(data)
}

// decodeBody accepts any JSON value except empty-like ones.
func decodeBody(data []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	switch string(trimmed) {
	case "", "null", "false", "0", `""`:
		return nil, ErrEmptyBody
	}
	if !json.Valid(trimmed) {
		return nil, ErrInvalidBody
	}
	return json.RawMessage(trimmed), nil
}

func (r *Request) complete(o Outcome) {
	if r.done != nil {
		r.done(o)
	}
}
