package audit

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-nuki/internal/bridges/nuki"
)

const (
	// recordTimeout bounds one command log write.
	recordTimeout = 2 * time.Second

	defaultQueueSize = 256
)

// Logger is the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder writes command results to a Repository from its own goroutine.
// It implements nuki.CommandAuditor. RecordCommand never waits on the
// database; when the queue is full the entry is dropped and logged.
type Recorder struct {
	repo   Repository
	logger Logger
	queue  chan *Entry

	mu     sync.RWMutex
	closed bool

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRecorder creates a recorder and starts its writer. logger may be nil.
// Call Close to flush queued entries.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	return newRecorder(repo, logger, defaultQueueSize)
}

func newRecorder(repo Repository, logger Logger, size int) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	r := &Recorder{repo: repo, logger: logger, queue: make(chan *Entry, size)}
	r.wg.Add(1)
	go r.run()
	return r
}

// RecordCommand queues res for writing. Write failures are logged, never
// returned, so the command result still reaches its caller.
func (r *Recorder) RecordCommand(res nuki.CommandResult) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("command log closed, dropping entry", "nuki_id", res.NukiID, "command", res.Command)
		return
	}
	select {
	case r.queue <- EntryFromResult(res):
	default:
		r.logger.Warn("command log queue full, dropping entry", "nuki_id", res.NukiID, "command", res.Command)
	}
}

// Close stops accepting entries and waits until the queued ones are
// written. Calling it more than once is safe.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
		r.wg.Wait()
	})
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for e := range r.queue {
		r.write(e)
	}
}

func (r *Recorder) write(e *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, e); err != nil {
		r.logger.Error("failed to record command", "nuki_id", e.NukiID, "command", e.Command, "error", err)
	}
}

// EntryFromResult converts a command result into a log entry. A failure
// without an explicit reason takes the error text.
func EntryFromResult(res nuki.CommandResult) *Entry {
	e := &Entry{
		NukiID:   res.NukiID,
		Command:  res.Command,
		Status:   string(res.Status),
		Reason:   res.Reason,
		Attempts: res.Attempts,
	}
	if res.Action != 0 {
		a := int(res.Action)
		e.Action = &a
	}
	if e.Reason == "" && res.Err != nil {
		e.Reason = res.Err.Error()
	}
	return e
}
