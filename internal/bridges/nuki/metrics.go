package nuki

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the bridge integration.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	attempts   *prometheus.CounterVec
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	queueDepth prometheus.Gauge
	commands   *prometheus.CounterVec
	callbacks  *prometheus.CounterVec
	devices    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// It panics if registration fails, like prometheus.MustRegister.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nuki",
				Name:      "bridge_attempts_total",
				Help:      "Bridge HTTP attempts by path and result.",
			},
			[]string{"path", "result"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nuki",
				Name:      "bridge_requests_total",
				Help:      "Completed bridge requests by path and outcome.",
			},
			[]string{"path", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "nuki",
				Name:      "bridge_attempt_duration_seconds",
				Help:      "Latency of single bridge HTTP attempts.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"path"},
		),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nuki",
			Name:      "dispatcher_queue_depth",
			Help:      "Requests waiting in the dispatcher queue, including the one in flight.",
		}),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nuki",
				Name:      "commands_total",
				Help:      "Device commands by type and status.",
			},
			[]string{"command", "status"},
		),
		callbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nuki",
				Name:      "callbacks_total",
				Help:      "Push notifications received from the bridge by result.",
			},
			[]string{"result"},
		),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nuki",
			Name:      "devices",
			Help:      "Devices currently tracked.",
		}),
	}

	reg.MustRegister(m.attempts, m.requests, m.latency, m.queueDepth, m.commands, m.callbacks, m.devices)
	return m
}

func (m *Metrics) observeAttempt(path string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.attempts.WithLabelValues(path, result).Inc()
	m.latency.WithLabelValues(path).Observe(d.Seconds())
}

func (m *Metrics) observeRequest(path string, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.requests.WithLabelValues(path, outcome).Inc()
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) observeCommand(cmd string, status CommandStatus) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(cmd, string(status)).Inc()
}

func (m *Metrics) observeCallback(result string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(result).Inc()
}

func (m *Metrics) setDevices(n int) {
	if m == nil {
		return
	}
	m.devices.Set(float64(n))
}
