package nuki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-nuki/internal/device"
)

// Bridge operation constants.
const (
	// rebootSwitchReset is how long the reboot switch stays on.
	rebootSwitchReset = 5 * time.Second

	// binderTimeout bounds accessory persistence during a refresh.
	binderTimeout = 10 * time.Second

	// callbackShutdownTimeout bounds the callback server shutdown.
	callbackShutdownTimeout = 5 * time.Second
)

// Submitter queues bridge requests. *Dispatcher satisfies it.
type Submitter interface {
	Submit(path string, done func(Outcome)) string
	Stats() Stats
}

// Binder keeps the external representations (accessories) of devices in
// step with the store.
type Binder interface {
	// BindDevice creates or updates the representations of one device.
	BindDevice(ctx context.Context, v *device.View) error

	// BindBridge creates the reboot switch representation of the bridge.
	BindBridge(ctx context.Context, host string) error

	// UnbindDevice removes every representation of one device.
	UnbindDevice(ctx context.Context, nukiID int) error

	// Prune removes representations of devices not in keep, and the
	// bridge representation unless keepBridge is set.
	Prune(ctx context.Context, keep []int, keepBridge bool) error
}

// CommandAuditor records the outcome of every device command. RecordCommand
// runs on the dispatcher worker and should return quickly.
type CommandAuditor interface {
	RecordCommand(res CommandResult)
}

// CommandStatus is the final status of a device command.
type CommandStatus string

// Command statuses.
const (
	CommandSucceeded CommandStatus = "succeeded"
	CommandIgnored   CommandStatus = "ignored"
	CommandRejected  CommandStatus = "rejected"
	CommandFailed    CommandStatus = "failed"
)

// CommandResult is the outcome of Execute.
type CommandResult struct {
	NukiID   int           `json:"nuki_id"`
	Command  string        `json:"command"`
	Status   CommandStatus `json:"status"`
	Action   device.Action `json:"action,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Attempts int           `json:"attempts,omitempty"`
	Err      error         `json:"-"`
}

// BridgeInfo describes the integration's view of the bridge.
type BridgeInfo struct {
	Host               string    `json:"host"`
	LastRefresh        time.Time `json:"last_refresh,omitempty"`
	LastRefreshOK      bool      `json:"last_refresh_ok"`
	RefreshError       string    `json:"refresh_error,omitempty"`
	CallbackURL        string    `json:"callback_url,omitempty"`
	CallbackRegistered bool      `json:"callback_registered"`
	Rebooting          bool      `json:"rebooting"`
}

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	// Dispatcher carries every bridge call. Required.
	Dispatcher Submitter

	// Store holds the device views. Required.
	Store *device.Store

	// Devices are the per-device settings. Listed devices without an
	// entry are skipped.
	Devices map[int]device.Settings

	// Binder is optional accessory persistence.
	Binder Binder

	// CallbackAddr is the listen address of the push notification server,
	// started after the first successful refresh. Empty disables it.
	CallbackAddr string

	// CallbackURL is registered with the bridge after the first successful
	// refresh. Empty disables registration.
	CallbackURL string

	// Host is the bridge host, used to identify the reboot switch.
	Host string

	// RebootSwitch exposes the bridge reboot switch.
	RebootSwitch bool

	// RefreshInterval is the period of the device listing. Zero refreshes
	// once at start.
	RefreshInterval time.Duration

	// Metrics is optional.
	Metrics *Metrics

	// Auditor is optional command history persistence.
	Auditor CommandAuditor

	// Logger is optional structured logger.
	Logger Logger
}

// Bridge orchestrates one Nuki bridge. It handles:
//   - Periodic device listing, discovery and teardown
//   - Push notifications from the bridge
//   - Translating commands into bridge actions and applying their results
//   - Callback registration and bridge reboot
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	dispatcher      Submitter
	store           *device.Store
	devices         map[int]device.Settings
	binder          Binder
	callback        *CallbackServer
	callbackURL     string
	host            string
	rebootSwitch    bool
	refreshInterval time.Duration
	metrics         *Metrics
	auditor         CommandAuditor

	refreshing atomic.Bool
	rebooting  atomic.Bool

	infoMu      sync.RWMutex
	info        BridgeInfo
	rebootTimer *time.Timer

	ready     chan struct{}
	readyOnce sync.Once

	// Shutdown coordination
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a bridge orchestrator.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Dispatcher == nil {
		return nil, errors.New("nuki: dispatcher is required")
	}
	if opts.Store == nil {
		return nil, errors.New("nuki: store is required")
	}

	devices := opts.Devices
	if devices == nil {
		devices = map[int]device.Settings{}
	}

	b := &Bridge{
		dispatcher:      opts.Dispatcher,
		store:           opts.Store,
		devices:         devices,
		binder:          opts.Binder,
		callbackURL:     opts.CallbackURL,
		host:            opts.Host,
		rebootSwitch:    opts.RebootSwitch,
		refreshInterval: opts.RefreshInterval,
		metrics:         opts.Metrics,
		auditor:         opts.Auditor,
		info:            BridgeInfo{Host: opts.Host, CallbackURL: opts.CallbackURL},
		ready:           make(chan struct{}),
		done:            make(chan struct{}),
		logger:          opts.Logger,
	}

	if opts.CallbackAddr != "" {
		var logger Logger = noopLogger{}
		if opts.Logger != nil {
			logger = opts.Logger
		}
		b.callback = NewCallbackServer(opts.CallbackAddr, b, opts.Metrics, logger)
	}
	return b, nil
}

// Start begins the refresh loop. The first refresh is queued immediately.
func (b *Bridge) Start(ctx context.Context) error {
	b.logInfo("starting nuki bridge",
		"host", b.host,
		"devices_configured", len(b.devices),
		"refresh_interval", b.refreshInterval.String(),
	)

	b.wg.Add(1)
	go b.refreshLoop(ctx)
	return nil
}

// Stop ends the refresh loop and shuts down the callback server.
// The dispatcher is owned by the caller and is not stopped.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.logInfo("stopping nuki bridge")
		close(b.done)
		b.wg.Wait()

		b.infoMu.Lock()
		if b.rebootTimer != nil {
			b.rebootTimer.Stop()
		}
		b.infoMu.Unlock()

		if b.callback != nil {
			ctx, cancel := context.WithTimeout(context.Background(), callbackShutdownTimeout)
			defer cancel()
			if err := b.callback.Close(ctx); err != nil {
				b.logError("callback server shutdown failed", err)
			}
		}
		b.logInfo("nuki bridge stopped")
	})
}

// Ready is closed after the first successful refresh.
func (b *Bridge) Ready() <-chan struct{} {
	return b.ready
}

// Info returns the current bridge information.
func (b *Bridge) Info() BridgeInfo {
	b.infoMu.RLock()
	info := b.info
	b.infoMu.RUnlock()
	info.Rebooting = b.rebooting.Load()
	return info
}

// CallbackServer returns the push notification server, nil if disabled.
func (b *Bridge) CallbackServer() *CallbackServer {
	return b.callback
}

// Store returns the device store.
func (b *Bridge) Store() *device.Store {
	return b.store
}

func (b *Bridge) refreshLoop(ctx context.Context) {
	defer b.wg.Done()

	b.TriggerRefresh()
	if b.refreshInterval <= 0 {
		return
	}

	ticker := time.NewTicker(b.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.TriggerRefresh()
		}
	}
}

// TriggerRefresh queues a device listing unless one is already pending.
// Returns false when a listing was already pending.
func (b *Bridge) TriggerRefresh() bool {
	if !b.refreshing.CompareAndSwap(false, true) {
		b.logDebug("refresh already pending")
		return false
	}
	b.dispatcher.Submit(ListPath(), func(o Outcome) {
		defer b.refreshing.Store(false)
		b.applyListing(o) //nolint:errcheck // logged and recorded in info
	})
	return true
}

// Refresh queues a device listing and waits for it to be applied.
func (b *Bridge) Refresh(ctx context.Context) error {
	ch := make(chan error, 1)
	b.dispatcher.Submit(ListPath(), func(o Outcome) {
		ch <- b.applyListing(o)
	})

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// applyListing reconciles the store with a /list outcome: new configured
// devices are added, listed devices are reconciled and devices no longer
// listed are torn down. A failed listing changes nothing.
func (b *Bridge) applyListing(o Outcome) error {
	if !o.OK {
		b.recordRefresh(o.Err)
		b.logWarn("device listing failed, keeping current devices", "error", o.Err, "attempts", o.Attempts)
		return o.Err
	}

	listed, err := NormalizeListing(o.Body)
	if err != nil {
		b.recordRefresh(err)
		b.logError("device listing unreadable", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), binderTimeout)
	defer cancel()

	seen := make(map[int]bool, len(listed))
	for _, ld := range listed {
		kind, ok := ld.Kind()
		if !ok {
			b.logDebug("skipping unsupported device", "nuki_id", ld.NukiID, "device_type", ld.DeviceType)
			continue
		}
		settings, ok := b.devices[ld.NukiID]
		if !ok {
			b.logDebug("skipping unconfigured device", "nuki_id", ld.NukiID, "name", ld.Name)
			continue
		}
		seen[ld.NukiID] = true

		b.ensureDevice(ctx, ld, kind, settings)

		if raw, ok := ld.Raw(); ok {
			if _, _, err := b.store.Reconcile(raw); err != nil {
				b.logError("reconciling listed device failed", err)
			}
		}
	}

	for _, id := range b.store.IDs() {
		if seen[id] {
			continue
		}
		if _, err := b.store.Remove(id); err != nil {
			continue
		}
		b.logInfo("device no longer listed, removed", "nuki_id", id)
		if b.binder != nil {
			if err := b.binder.UnbindDevice(ctx, id); err != nil {
				b.logError("removing accessories failed", err)
			}
		}
	}

	if b.binder != nil {
		keep := b.store.IDs()
		if err := b.binder.Prune(ctx, keep, b.rebootSwitch); err != nil {
			b.logError("pruning accessories failed", err)
		}
		if b.rebootSwitch {
			if err := b.binder.BindBridge(ctx, b.host); err != nil {
				b.logError("binding bridge accessory failed", err)
			}
		}
	}

	b.metrics.setDevices(b.store.Len())
	b.recordRefresh(nil)
	b.logDebug("device listing applied", "listed", len(listed), "tracked", b.store.Len())

	b.readyOnce.Do(func() {
		close(b.ready)
		b.onFirstRefresh()
	})
	return nil
}

// ensureDevice adds a view for a newly listed device. A device whose kind
// changed is replaced.
func (b *Bridge) ensureDevice(ctx context.Context, ld ListedDevice, kind device.Kind, settings device.Settings) {
	if snap, err := b.store.Get(ld.NukiID); err == nil {
		if snap.Kind == kind {
			return
		}
		b.logInfo("device kind changed, replacing", "nuki_id", ld.NukiID, "old", snap.Kind, "new", kind)
		b.store.Remove(ld.NukiID) //nolint:errcheck
	}

	v := device.NewView(ld.NukiID, kind, ld.Name, settings)
	v.Firmware = ld.FirmwareVersion
	if _, err := b.store.Add(v.Clone()); err != nil {
		b.logError("adding device failed", err)
		return
	}
	b.logInfo("device discovered", "nuki_id", ld.NukiID, "kind", kind, "name", ld.Name)

	if b.binder != nil {
		if err := b.binder.BindDevice(ctx, v); err != nil {
			b.logError("binding accessories failed", err)
		}
	}
}

func (b *Bridge) recordRefresh(err error) {
	b.infoMu.Lock()
	defer b.infoMu.Unlock()
	b.info.LastRefresh = time.Now().UTC()
	b.info.LastRefreshOK = err == nil
	b.info.RefreshError = ""
	if err != nil {
		b.info.RefreshError = err.Error()
	}
}

// onFirstRefresh starts the push path once devices are known.
func (b *Bridge) onFirstRefresh() {
	if b.callback != nil {
		if err := b.callback.Start(); err != nil {
			b.logError("callback server failed to start", err)
			return
		}
	}
	b.RegisterCallback()
}

// RegisterCallback makes sure the bridge pushes notifications to the
// configured callback URL. It lists the registered callbacks and adds the
// URL only when absent.
func (b *Bridge) RegisterCallback() {
	if b.callbackURL == "" {
		return
	}

	b.dispatcher.Submit(CallbackListPath(), func(o Outcome) {
		if !o.OK {
			b.logError("listing bridge callbacks failed", o.Err)
			return
		}
		var list CallbackList
		if err := json.Unmarshal(o.Body, &list); err != nil {
			b.logError("bridge callback list unreadable", err)
			return
		}
		for _, cb := range list.Callbacks {
			if cb.URL == b.callbackURL {
				b.setCallbackRegistered()
				b.logInfo("callback already registered", "url", b.callbackURL, "id", cb.ID)
				return
			}
		}

		b.dispatcher.Submit(CallbackAddPath(b.callbackURL), func(o Outcome) {
			if !o.OK {
				b.logError("registering callback failed", o.Err)
				return
			}
			var res ActionResult
			if err := json.Unmarshal(o.Body, &res); err != nil || !res.Success {
				b.logWarn("bridge refused callback registration", "url", b.callbackURL, "message", res.Message)
				return
			}
			b.setCallbackRegistered()
			b.logInfo("callback registered", "url", b.callbackURL)
		})
	})
}

func (b *Bridge) setCallbackRegistered() {
	b.infoMu.Lock()
	b.info.CallbackRegistered = true
	b.infoMu.Unlock()
}

// HandleCallback applies a push notification. Notifications for unknown or
// removed devices return device.ErrDeviceNotFound and change nothing.
func (b *Bridge) HandleCallback(raw device.RawStatus) error {
	if _, _, err := b.store.Reconcile(raw); err != nil {
		b.metrics.observeCallback("unknown")
		b.logDebug("push notification for unknown device", "nuki_id", raw.NukiID)
		return err
	}
	b.metrics.observeCallback("applied")
	return nil
}

// Execute translates cmd for one device and, if needed, queues the bridge
// action. done, if not nil, receives the result exactly once.
//
// Returns an error without calling done when the device is unknown or the
// bridge endpoint is not configured.
func (b *Bridge) Execute(nukiID int, cmd device.Command, done func(CommandResult)) error {
	if !b.dispatcher.Stats().Configured {
		return ErrNotConfigured
	}

	var (
		plan device.Plan
		kind device.Kind
	)
	_, err := b.store.Mutate(nukiID, func(v *device.View, beh device.Behavior) []device.Event {
		kind = v.Kind
		plan = beh.Translate(v, cmd)
		if !plan.Sends() && plan.Before != nil {
			plan.Before(v)
		}
		return nil
	})
	if err != nil {
		return err
	}

	finish := func(res CommandResult) {
		b.metrics.observeCommand(string(cmd.Type), res.Status)
		if b.auditor != nil {
			b.auditor.RecordCommand(res)
		}
		if done != nil {
			done(res)
		}
	}

	if !plan.Sends() {
		b.logDebug("command needs no bridge request", "nuki_id", nukiID, "command", cmd.String(), "reason", plan.Reason)
		finish(CommandResult{NukiID: nukiID, Command: cmd.String(), Status: CommandIgnored, Reason: plan.Reason})
		return nil
	}

	b.logInfo("sending device command", "nuki_id", nukiID, "command", cmd.String(), "action", plan.Name)
	b.dispatcher.Submit(LockActionPath(nukiID, kind, plan.Action), func(o Outcome) {
		finish(b.completeCommand(nukiID, cmd, plan, o))
	})
	return nil
}

// ExecuteAndWait runs Execute and waits for the result or ctx cancellation.
func (b *Bridge) ExecuteAndWait(ctx context.Context, nukiID int, cmd device.Command) (CommandResult, error) {
	ch := make(chan CommandResult, 1)
	if err := b.Execute(nukiID, cmd, func(res CommandResult) { ch <- res }); err != nil {
		return CommandResult{}, err
	}

	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}
}

// completeCommand applies the optimistic update only after the bridge
// explicitly reported success.
func (b *Bridge) completeCommand(nukiID int, cmd device.Command, plan device.Plan, o Outcome) CommandResult {
	res := CommandResult{
		NukiID:   nukiID,
		Command:  cmd.String(),
		Action:   plan.Action,
		Attempts: o.Attempts,
	}

	if !o.OK {
		res.Status = CommandFailed
		res.Err = o.Err
		b.logWarn("device command failed", "nuki_id", nukiID, "action", plan.Name, "error", o.Err)
		return res
	}

	var ar ActionResult
	if err := json.Unmarshal(o.Body, &ar); err != nil || !ar.Success {
		res.Status = CommandRejected
		res.Err = fmt.Errorf("%w: %s", ErrCommandRejected, plan.Name)
		b.logWarn("device command rejected", "nuki_id", nukiID, "action", plan.Name)
		return res
	}

	if plan.OnSuccess != nil {
		_, err := b.store.Mutate(nukiID, func(v *device.View, _ device.Behavior) []device.Event {
			plan.OnSuccess(v)
			return nil
		})
		if err != nil {
			b.logDebug("device removed before command completed", "nuki_id", nukiID)
		}
	}

	res.Status = CommandSucceeded
	b.logInfo("device command succeeded", "nuki_id", nukiID, "action", plan.Name)
	return res
}

// Reboot queues a bridge reboot. The reboot switch reads on for five
// seconds, whatever the outcome.
func (b *Bridge) Reboot() error {
	if !b.rebooting.CompareAndSwap(false, true) {
		return ErrRebootInProgress
	}

	b.logInfo("rebooting bridge", "host", b.host)
	b.dispatcher.Submit(RebootPath(), func(o Outcome) {
		if !o.OK {
			b.logError("bridge reboot failed", o.Err)
			return
		}
		b.logInfo("bridge reboot accepted")
	})

	b.infoMu.Lock()
	b.rebootTimer = time.AfterFunc(rebootSwitchReset, func() {
		b.rebooting.Store(false)
	})
	b.infoMu.Unlock()
	return nil
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
