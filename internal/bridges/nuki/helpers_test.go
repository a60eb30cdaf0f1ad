package nuki

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeResponse is what the fake bridge answers for one path.
type fakeResponse struct {
	status int
	body   string
}

type recordedRequest struct {
	Path  string
	Query url.Values
	At    time.Time
}

// fakeBridge is an httptest-backed Nuki bridge.
type fakeBridge struct {
	srv *httptest.Server

	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string][]fakeResponse // consumed in order, last one repeats
	delay     time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeBridge(t *testing.T) *fakeBridge {
	t.Helper()
	f := &fakeBridge{responses: make(map[string][]fakeResponse)}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBridge) serve(w http.ResponseWriter, r *http.Request) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Path: r.URL.Path, Query: r.URL.Query(), At: time.Now()})
	resp := fakeResponse{status: http.StatusOK, body: `{"success":true}`}
	if queue := f.responses[r.URL.Path]; len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			f.responses[r.URL.Path] = queue[1:]
		}
	}
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	w.WriteHeader(resp.status)
	w.Write([]byte(resp.body)) //nolint:errcheck
}

// respond sets the answers for path. The last answer repeats.
func (f *fakeBridge) respond(path string, responses ...fakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = responses
}

func (f *fakeBridge) ok(path, body string) {
	f.respond(path, fakeResponse{status: http.StatusOK, body: body})
}

func (f *fakeBridge) setDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

func (f *fakeBridge) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *fakeBridge) count(path string) int {
	n := 0
	for _, r := range f.recorded() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// endpoint returns an endpoint pointing at the fake bridge.
func (f *fakeBridge) endpoint() Endpoint {
	u, _ := url.Parse(f.srv.URL)      //nolint:errcheck
	port, _ := strconv.Atoi(u.Port()) //nolint:errcheck
	return Endpoint{
		Host:        u.Hostname(),
		Port:        port,
		Token:       "secret",
		MaxAttempts: 1,
		Timeout:     2 * time.Second,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// recordingLogger counts log calls per level.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}
