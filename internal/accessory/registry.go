package accessory

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-nuki/internal/device"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Diff is the outcome of a Sync.
type Diff struct {
	Added   []Accessory
	Removed []Accessory
}

// Empty reports whether the sync changed nothing.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Registry keeps the persisted accessories in step with the device store.
// It is the accessory Binder of the Nuki bridge.
//
// Thread Safety: all methods are safe for concurrent use; they are
// serialized by one mutex.
type Registry struct {
	mu     sync.Mutex
	repo   Repository
	logger Logger
}

// NewRegistry creates a registry over repo.
func NewRegistry(repo Repository, logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Registry{repo: repo, logger: logger}
}

// Sync makes the accessories of nukiID equal to desired: missing ones are
// added, stale ones removed and renamed ones updated.
func (r *Registry) Sync(ctx context.Context, nukiID int, desired []Accessory) (Diff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.syncLocked(ctx, nukiID, desired)
}

func (r *Registry) syncLocked(ctx context.Context, nukiID int, desired []Accessory) (Diff, error) {
	existing, err := r.repo.ListByDevice(ctx, nukiID)
	if err != nil {
		return Diff{}, err
	}
	current := make(map[string]Accessory, len(existing))
	for _, a := range existing {
		current[a.ID] = a
	}

	var diff Diff
	wanted := make(map[string]bool, len(desired))
	for _, a := range desired {
		wanted[a.ID] = true
		old, ok := current[a.ID]
		if ok && old.Name == a.Name {
			continue
		}
		a := a
		if ok {
			a.CreatedAt = old.CreatedAt
		}
		if err := r.repo.Upsert(ctx, &a); err != nil {
			return diff, err
		}
		if !ok {
			diff.Added = append(diff.Added, a)
		}
	}

	for _, a := range existing {
		if wanted[a.ID] {
			continue
		}
		if err := r.repo.Delete(ctx, a.ID); err != nil {
			return diff, err
		}
		diff.Removed = append(diff.Removed, a)
	}

	if !diff.Empty() {
		r.logger.Info("accessories synced",
			"nuki_id", nukiID,
			"added", len(diff.Added),
			"removed", len(diff.Removed),
		)
	}
	return diff, nil
}

// BindDevice registers the accessories of a device.
func (r *Registry) BindDevice(ctx context.Context, v *device.View) error {
	if _, err := r.Sync(ctx, v.NukiID, ForDevice(v)); err != nil {
		return fmt.Errorf("binding device %d: %w", v.NukiID, err)
	}
	return nil
}

// BindBridge registers the reboot switch of the bridge at host.
func (r *Registry) BindBridge(ctx context.Context, host string) error {
	if _, err := r.Sync(ctx, BridgeNukiID, []Accessory{ForBridge(host)}); err != nil {
		return fmt.Errorf("binding bridge %s: %w", host, err)
	}
	return nil
}

// UnbindDevice removes every accessory of a device.
func (r *Registry) UnbindDevice(ctx context.Context, nukiID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.repo.DeleteByDevice(ctx, nukiID)
	if err != nil {
		return err
	}
	if n > 0 {
		r.logger.Info("accessories removed", "nuki_id", nukiID, "count", n)
	}
	return nil
}

// Prune removes accessories of devices not in keep. The bridge accessory is
// removed unless keepBridge is set.
func (r *Registry) Prune(ctx context.Context, keep []int, keepBridge bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.repo.List(ctx)
	if err != nil {
		return err
	}
	kept := make(map[int]bool, len(keep))
	for _, id := range keep {
		kept[id] = true
	}

	for _, a := range all {
		if a.NukiID == BridgeNukiID {
			if keepBridge {
				continue
			}
		} else if kept[a.NukiID] {
			continue
		}
		if err := r.repo.Delete(ctx, a.ID); err != nil {
			return err
		}
		r.logger.Info("stale accessory pruned", "id", a.ID, "nuki_id", a.NukiID, "kind", a.Kind)
	}
	return nil
}

// List returns every registered accessory.
func (r *Registry) List(ctx context.Context) ([]Accessory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.repo.List(ctx)
}
