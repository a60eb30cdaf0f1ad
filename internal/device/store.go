package device

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Change describes one observable change to the store.
type Change struct {
	Snapshot Snapshot
	Events   []Event
	Removed  bool
}

// Observer is notified after a change has been committed. It runs outside
// every store lock and must not block for long. Changes to one device
// reach observers in the order they were applied. An observer may read the
// store but must not mutate the device it is being notified about.
type Observer func(Change)

// entry owns one view. Its mutex serializes reconciliation, optimistic
// updates and removal for that device.
type entry struct {
	mu       sync.Mutex
	view     *View
	behavior Behavior
	removed  bool
	issued   uint64 // last delivery ticket handed out, guarded by mu

	turnMu    sync.Mutex
	turn      *sync.Cond
	delivered uint64 // last ticket whose delivery finished, guarded by turnMu
}

func newEntry(v *View, b Behavior) *entry {
	e := &entry{view: v, behavior: b}
	e.turn = sync.NewCond(&e.turnMu)
	return e
}

// ticket reserves the next delivery slot. The caller holds e.mu, so ticket
// order is application order.
func (e *entry) ticket() uint64 {
	e.issued++
	return e.issued
}

// deliver runs fn once every earlier ticket has been delivered. It is
// called without e.mu held.
func (e *entry) deliver(t uint64, fn func()) {
	e.turnMu.Lock()
	for e.delivered != t-1 {
		e.turn.Wait()
	}
	e.turnMu.Unlock()

	defer func() {
		e.turnMu.Lock()
		e.delivered = t
		e.turn.Broadcast()
		e.turnMu.Unlock()
	}()
	fn()
}

// Store is the keyed set of device views (Nuki ID → View).
//
// There is at most one view per Nuki ID. Mutations go through Mutate, which
// holds the device's own lock, so an optimistic update and a concurrent push
// notification are applied one after the other in arrival order.
//
// All public methods are thread-safe.
type Store struct {
	mu        sync.RWMutex
	entries   map[int]*entry
	observers []Observer
	logger    Logger
	now       func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[int]*entry),
		logger:  noopLogger{},
		now:     time.Now,
	}
}

// SetLogger sets the logger for the store. Call before first use.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// OnChange registers an observer.
func (s *Store) OnChange(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Add inserts a new view. The store takes ownership of v.
// Returns ErrDeviceExists if the Nuki ID already has a view.
func (s *Store) Add(v *View) (Snapshot, error) {
	behavior, err := BehaviorFor(v.Kind)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	if _, exists := s.entries[v.NukiID]; exists {
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %d", ErrDeviceExists, v.NukiID)
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = s.now().UTC()
	}
	e := newEntry(v, behavior)
	t := e.ticket()
	s.entries[v.NukiID] = e
	snap := behavior.Describe(v)
	s.mu.Unlock()

	s.logger.Info("device added", "nuki_id", v.NukiID, "kind", v.Kind)
	e.deliver(t, func() { s.notify(Change{Snapshot: snap}) })
	return snap, nil
}

// Remove tears down a view. Later mutations of the same ID fail with
// ErrDeviceNotFound, including ones already waiting on the device lock.
func (s *Store) Remove(nukiID int) (Snapshot, error) {
	s.mu.Lock()
	e, ok := s.entries[nukiID]
	if ok {
		delete(s.entries, nukiID)
	}
	s.mu.Unlock()
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrDeviceNotFound, nukiID)
	}

	e.mu.Lock()
	e.removed = true
	snap := e.behavior.Describe(e.view)
	t := e.ticket()
	e.mu.Unlock()

	s.logger.Info("device removed", "nuki_id", nukiID)
	e.deliver(t, func() { s.notify(Change{Snapshot: snap, Removed: true}) })
	return snap, nil
}

// Mutate runs fn with exclusive access to the device's view and behavior.
// Events returned by fn are passed to observers. Observers are only notified
// when the snapshot changed or events were produced.
func (s *Store) Mutate(nukiID int, fn func(v *View, b Behavior) []Event) (Snapshot, error) {
	e, err := s.lookup(nukiID)
	if err != nil {
		return Snapshot{}, err
	}

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %d", ErrDeviceNotFound, nukiID)
	}
	before := e.behavior.Describe(e.view)
	events := fn(e.view, e.behavior)
	after := e.behavior.Describe(e.view)
	changed := !sameState(before, after)
	if changed {
		e.view.UpdatedAt = s.now().UTC()
		after.UpdatedAt = e.view.UpdatedAt
	}
	if !changed && len(events) == 0 {
		e.mu.Unlock()
		return after, nil
	}
	t := e.ticket()
	e.mu.Unlock()

	e.deliver(t, func() { s.notify(Change{Snapshot: after, Events: events}) })
	return after, nil
}

// Reconcile applies a raw status report to the matching view.
// Returns ErrDeviceNotFound for unknown devices.
func (s *Store) Reconcile(raw RawStatus) (Snapshot, []Event, error) {
	var events []Event
	snap, err := s.Mutate(raw.NukiID, func(v *View, b Behavior) []Event {
		events = b.Reconcile(v, raw)
		return events
	})
	return snap, events, err
}

// Get returns the snapshot of one device.
func (s *Store) Get(nukiID int) (Snapshot, error) {
	e, err := s.lookup(nukiID)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.behavior.Describe(e.view), nil
}

// View returns a deep copy of one device's view.
func (s *Store) View(nukiID int) (*View, error) {
	e, err := s.lookup(nukiID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view.Clone(), nil
}

// Has reports whether the Nuki ID has a view.
func (s *Store) Has(nukiID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[nukiID]
	return ok
}

// IDs returns all Nuki IDs in ascending order.
func (s *Store) IDs() []int {
	s.mu.RLock()
	ids := make([]int, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Ints(ids)
	return ids
}

// List returns snapshots of all devices ordered by Nuki ID.
func (s *Store) List() []Snapshot {
	ids := s.IDs()
	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := s.Get(id)
		if err != nil {
			continue // removed between IDs and Get
		}
		out = append(out, snap)
	}
	return out
}

// Len returns the number of views.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) lookup(nukiID int) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[nukiID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrDeviceNotFound, nukiID)
	}
	return e, nil
}

func (s *Store) notify(c Change) {
	s.mu.RLock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	for _, fn := range observers {
		fn(c)
	}
}

// sameState compares two snapshots ignoring the timestamp.
func sameState(a, b Snapshot) bool {
	a.UpdatedAt = time.Time{}
	b.UpdatedAt = time.Time{}
	return reflect.DeepEqual(a, b)
}
