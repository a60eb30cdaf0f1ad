package nuki

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"
)

func newTestDispatcher(t *testing.T, ep Endpoint, logger Logger) *Dispatcher {
	t.Helper()
	d := NewDispatcher(DispatcherOptions{Endpoint: ep, Logger: logger})
	t.Cleanup(d.Stop)
	return d
}

// collect submits paths and returns their outcomes in completion order.
func collect(t *testing.T, d *Dispatcher, paths ...string) []Outcome {
	t.Helper()

	var (
		mu  sync.Mutex
		out []Outcome
		wg  sync.WaitGroup
	)
	wg.Add(len(paths))
	for _, p := range paths {
		d.Submit(p, func(o Outcome) {
			mu.Lock()
			out = append(out, o)
			mu.Unlock()
			wg.Done()
		})
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcomes")
	}
	return out
}

func TestEndpoint_URL(t *testing.T) {
	ep := Endpoint{Host: "192.168.1.50", Port: 8080, Token: "abc"}

	tests := []struct {
		path string
		want string
	}{
		{"/list", "http://192.168.1.50:8080/list?token=abc"},
		{"/lockAction?nukiId=1&deviceType=0&action=2", "http://192.168.1.50:8080/lockAction?nukiId=1&deviceType=0&action=2&token=abc"},
	}
	for _, tt := range tests {
		if got := ep.URL(tt.path); got != tt.want {
			t.Errorf("URL(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestEndpoint_Validate(t *testing.T) {
	if err := (Endpoint{Host: "h"}).Validate(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("missing token: error = %v, want ErrNotConfigured", err)
	}
	if err := (Endpoint{Token: "t"}).Validate(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("missing host: error = %v, want ErrNotConfigured", err)
	}
	if err := (Endpoint{Host: "h", Token: "t"}).Validate(); err != nil {
		t.Errorf("complete endpoint: error = %v", err)
	}
}

func TestDispatcher_FIFOSingleInFlight(t *testing.T) {
	fb := newFakeBridge(t)
	fb.setDelay(20 * time.Millisecond)
	d := newTestDispatcher(t, fb.endpoint(), nil)

	paths := []string{"/a", "/b", "/c", "/d", "/e"}
	outcomes := collect(t, d, paths...)

	for i, o := range outcomes {
		if !o.OK {
			t.Fatalf("outcome %d failed: %v", i, o.Err)
		}
		if o.Path != paths[i] {
			t.Errorf("outcome %d path = %q, want %q (completion out of order)", i, o.Path, paths[i])
		}
	}

	reqs := fb.recorded()
	if len(reqs) != len(paths) {
		t.Fatalf("bridge saw %d requests, want %d", len(reqs), len(paths))
	}
	for i, r := range reqs {
		if r.Path != paths[i] {
			t.Errorf("request %d path = %q, want %q", i, r.Path, paths[i])
		}
		if r.Query.Get("token") != "secret" {
			t.Errorf("request %d token = %q", i, r.Query.Get("token"))
		}
	}
	if got := fb.maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent requests = %d, want 1", got)
	}
}

func TestDispatcher_MinimumInterval(t *testing.T) {
	fb := newFakeBridge(t)
	ep := fb.endpoint()
	ep.Interval = 150 * time.Millisecond
	d := newTestDispatcher(t, ep, nil)

	collect(t, d, "/a", "/b", "/c")

	reqs := fb.recorded()
	if len(reqs) != 3 {
		t.Fatalf("bridge saw %d requests, want 3", len(reqs))
	}
	for i := 1; i < len(reqs); i++ {
		if gap := reqs[i].At.Sub(reqs[i-1].At); gap < ep.Interval {
			t.Errorf("gap between request %d and %d = %v, want >= %v", i-1, i, gap, ep.Interval)
		}
	}
}

func TestDispatcher_RetryExhaustion(t *testing.T) {
	fb := newFakeBridge(t)
	fb.respond("/bad", fakeResponse{status: http.StatusServiceUnavailable, body: "busy"})
	fb.ok("/good", `{"ok":true}`)

	ep := fb.endpoint()
	ep.MaxAttempts = 3
	d := newTestDispatcher(t, ep, nil)

	outcomes := collect(t, d, "/bad", "/good")
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want exactly 2", len(outcomes))
	}

	bad := outcomes[0]
	if bad.OK {
		t.Fatal("failing request reported success")
	}
	if !errors.Is(bad.Err, ErrRetriesExhausted) || !errors.Is(bad.Err, ErrUnexpectedStatus) {
		t.Errorf("error = %v, want ErrRetriesExhausted wrapping ErrUnexpectedStatus", bad.Err)
	}
	if bad.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", bad.Attempts)
	}
	if got := fb.count("/bad"); got != 3 {
		t.Errorf("bridge saw /bad %d times, want 3", got)
	}

	// The queue moves on after the head gives up.
	if !outcomes[1].OK || outcomes[1].Path != "/good" {
		t.Errorf("second outcome = %+v, want /good success", outcomes[1])
	}

	stats := d.Stats()
	if stats.Failed != 1 || stats.Succeeded != 1 || stats.Retried != 2 {
		t.Errorf("Stats = %+v, want failed=1 succeeded=1 retried=2", stats)
	}
}

func TestDispatcher_RetryThenSuccess(t *testing.T) {
	fb := newFakeBridge(t)
	fb.respond("/flaky",
		fakeResponse{status: http.StatusInternalServerError},
		fakeResponse{status: http.StatusOK, body: ""},
		fakeResponse{status: http.StatusOK, body: `{"success":true}`},
	)

	ep := fb.endpoint()
	ep.MaxAttempts = 3
	d := newTestDispatcher(t, ep, nil)

	o := collect(t, d, "/flaky")[0]
	if !o.OK {
		t.Fatalf("outcome failed: %v", o.Err)
	}
	if o.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", o.Attempts)
	}
	if string(o.Body) != `{"success":true}` {
		t.Errorf("Body = %s", o.Body)
	}
}

func TestDispatcher_ResponseValidation(t *testing.T) {
	tests := []struct {
		name    string
		resp    fakeResponse
		wantOK  bool
		wantErr error
	}{
		{"json object", fakeResponse{http.StatusOK, `{"success":false}`}, true, nil},
		{"json array", fakeResponse{http.StatusOK, `[]`}, true, nil},
		{"empty body", fakeResponse{http.StatusOK, ""}, false, ErrEmptyBody},
		{"null body", fakeResponse{http.StatusOK, "null"}, false, ErrEmptyBody},
		{"not json", fakeResponse{http.StatusOK, "<html>"}, false, ErrInvalidBody},
		{"unauthorized", fakeResponse{http.StatusUnauthorized, `{"success":true}`}, false, ErrUnexpectedStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := newFakeBridge(t)
			fb.respond("/x", tt.resp)
			d := newTestDispatcher(t, fb.endpoint(), nil)

			o := collect(t, d, "/x")[0]
			if o.OK != tt.wantOK {
				t.Fatalf("OK = %v, want %v (err %v)", o.OK, tt.wantOK, o.Err)
			}
			if tt.wantErr != nil && !errors.Is(o.Err, tt.wantErr) {
				t.Errorf("error = %v, want %v", o.Err, tt.wantErr)
			}
		})
	}
}

func TestDispatcher_TransportError(t *testing.T) {
	fb := newFakeBridge(t)
	ep := fb.endpoint()
	fb.srv.Close()

	d := newTestDispatcher(t, ep, nil)
	o := collect(t, d, "/list")[0]
	if o.OK || !errors.Is(o.Err, ErrTransport) {
		t.Errorf("outcome = %+v, want ErrTransport", o)
	}
}

func TestDispatcher_NotConfiguredReportedOnce(t *testing.T) {
	fb := newFakeBridge(t)
	ep := fb.endpoint()
	ep.Token = ""
	logger := &recordingLogger{}
	d := newTestDispatcher(t, ep, logger)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_, err := d.Do(ctx, "/list")
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Do() error = %v, want deadline exceeded", err)
		}
	}

	if got := len(fb.recorded()); got != 0 {
		t.Errorf("bridge saw %d requests, want none", got)
	}
	if got := logger.errorCount(); got != 1 {
		t.Errorf("logged %d errors, want exactly 1", got)
	}
	if d.Stats().Configured {
		t.Error("Stats().Configured = true")
	}
}

func TestDispatcher_StopCompletesPending(t *testing.T) {
	fb := newFakeBridge(t)
	fb.setDelay(200 * time.Millisecond)
	d := NewDispatcher(DispatcherOptions{Endpoint: fb.endpoint()})

	var (
		mu  sync.Mutex
		out = map[string]Outcome{}
	)
	for i := 0; i < 3; i++ {
		path := fmt.Sprintf("/p%d", i)
		d.Submit(path, func(o Outcome) {
			mu.Lock()
			out[o.Path] = o
			mu.Unlock()
		})
	}
	waitFor(t, "first request in flight", func() bool { return len(fb.recorded()) == 1 })

	d.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(out) != 3 {
		t.Fatalf("got %d outcomes after Stop, want 3", len(out))
	}
	for _, p := range []string{"/p1", "/p2"} {
		if !errors.Is(out[p].Err, ErrDispatcherStopped) {
			t.Errorf("%s error = %v, want ErrDispatcherStopped", p, out[p].Err)
		}
	}

	var late Outcome
	d.Submit("/late", func(o Outcome) { late = o })
	if !errors.Is(late.Err, ErrDispatcherStopped) {
		t.Errorf("Submit after Stop error = %v, want ErrDispatcherStopped", late.Err)
	}
}

func TestDispatcher_CallbackMaySubmit(t *testing.T) {
	fb := newFakeBridge(t)
	d := newTestDispatcher(t, fb.endpoint(), nil)

	done := make(chan Outcome, 1)
	d.Submit("/first", func(Outcome) {
		d.Submit("/second", func(o Outcome) { done <- o })
	})

	select {
	case o := <-done:
		if !o.OK {
			t.Errorf("chained request failed: %v", o.Err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("chained request never completed")
	}
}

func TestDecodeBody(t *testing.T) {
	tests := []struct {
		in      string
		wantErr error
	}{
		{`{"a":1}`, nil},
		{"  [1,2] \n", nil},
		{"", ErrEmptyBody},
		{"false", ErrEmptyBody},
		{`""`, ErrEmptyBody},
		{"{", ErrInvalidBody},
	}
	for _, tt := range tests {
		_, err := decodeBody([]byte(tt.in))
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("decodeBody(%q) error = %v, want %v", tt.in, err, tt.wantErr)
		}
	}
}
