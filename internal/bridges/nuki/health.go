package nuki

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const defaultHealthInterval = 30 * time.Second

// HealthPublisher is the subset of the MQTT client the reporter needs.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporterConfig configures a HealthReporter.
type HealthReporterConfig struct {
	Version string

	// Interval between retained health messages. Default 30s.
	Interval time.Duration

	// Publisher may be nil, in which case nothing is published but
	// Evaluate and Message still work.
	Publisher HealthPublisher

	Dispatcher Submitter
	Bridge     *Bridge
}

// HealthReporter publishes a retained status message on HealthTopic at a
// fixed interval, plus "starting" and "stopping" at the edges of the
// process lifetime. Its offline message doubles as the MQTT Last Will.
type HealthReporter struct {
	cfg     HealthReporterConfig
	started time.Time

	mu     sync.RWMutex
	logger Logger

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthReporter creates a reporter. Nothing is published until
// PublishStarting or Start.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultHealthInterval
	}
	return &HealthReporter{cfg: cfg, started: time.Now(), logger: noopLogger{}}
}

// SetLogger replaces the logger. Nil restores the silent default.
func (h *HealthReporter) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	h.mu.Lock()
	h.logger = logger
	h.mu.Unlock()
}

// SetPublisher attaches the MQTT client. The client is usually built
// after the reporter because its Last Will comes from LWTTopic and
// LWTPayload. Call it before Start.
func (h *HealthReporter) SetPublisher(p HealthPublisher) {
	h.cfg.Publisher = p
}

// LWTTopic is where the broker publishes the Last Will.
func (h *HealthReporter) LWTTopic() string { return HealthTopic() }

// LWTPayload is the offline message the broker publishes for us when the
// connection drops.
func (h *HealthReporter) LWTPayload() ([]byte, error) {
	return json.Marshal(HealthMessage{
		Bridge:    Protocol,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Version:   h.cfg.Version,
		Reason:    "connection lost",
	})
}

// Start publishes the current status and then repeats every interval
// until ctx ends or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.tick("failed to publish initial health")

		ticker := time.NewTicker(h.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.tick("failed to publish health")
			}
		}
	}()
}

// Stop ends the loop and publishes "stopping". Only the first call has
// an effect.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		if h.cancel != nil {
			h.cancel()
		}
		h.wg.Wait()
		if err := h.publish(HealthStopping, ""); err != nil {
			h.log().Warn("failed to publish stopping health", "error", err)
		}
	})
}

// PublishStarting publishes "starting" ahead of the first device listing.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(HealthStarting, "bridge starting")
}

// PublishNow publishes the evaluated status.
func (h *HealthReporter) PublishNow() error {
	return h.publish(h.Evaluate())
}

// Evaluate derives the status. The first failing condition wins, in
// order: endpoint configured, bridge not rebooting, a successful device
// listing, MQTT connected.
func (h *HealthReporter) Evaluate() (HealthStatus, string) {
	if d := h.cfg.Dispatcher; d != nil && !d.Stats().Configured {
		return HealthUnhealthy, "bridge endpoint not configured"
	}
	if b := h.cfg.Bridge; b != nil {
		info := b.Info()
		if info.Rebooting {
			return HealthDegraded, "bridge rebooting"
		}
		if info.LastRefresh.IsZero() {
			return HealthStarting, "waiting for first device listing"
		}
		if !info.LastRefreshOK {
			return HealthDegraded, "device listing failed: " + info.RefreshError
		}
	}
	if p := h.cfg.Publisher; p != nil && !p.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	return HealthHealthy, ""
}

// Message assembles a health message with dispatcher and bridge detail.
func (h *HealthReporter) Message(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Bridge:        Protocol,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.cfg.Version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Reason:        reason,
	}
	if d := h.cfg.Dispatcher; d != nil {
		stats := d.Stats()
		msg.Dispatcher = &stats
	}
	if b := h.cfg.Bridge; b != nil {
		info := b.Info()
		msg.Integration = &info
		msg.Devices = b.Store().Len()
	}
	return msg
}

func (h *HealthReporter) tick(failure string) {
	if err := h.PublishNow(); err != nil {
		h.log().Error(failure, "error", err)
	}
}

// publish sends a retained QoS 1 message.
func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	p := h.cfg.Publisher
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(h.Message(status, reason))
	if err != nil {
		return err
	}
	return p.Publish(HealthTopic(), payload, 1, true)
}

func (h *HealthReporter) log() Logger {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.logger
}
