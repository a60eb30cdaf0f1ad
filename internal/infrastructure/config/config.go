package config

import (
	"fmt"
	"time"
)

// Config is the root of config.yaml.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Callback  CallbackConfig  `yaml:"callback"`
	Devices   []DeviceConfig  `yaml:"devices"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BridgeConfig describes the Nuki bridge HTTP endpoint and how it is paced.
type BridgeConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`

	// RequestInterval is the minimum gap between two consecutive requests.
	// The bridge drops or errors requests that arrive in bursts.
	RequestInterval time.Duration `yaml:"request_interval"`

	// RetryCount bounds the attempts made for a single request.
	RetryCount int `yaml:"retry_count"`

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration `yaml:"timeout"`

	// RefreshInterval is how often the device listing is re-fetched.
	// Zero disables periodic refresh (startup and manual refresh only).
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// RebootSwitch exposes a momentary switch that reboots the bridge.
	RebootSwitch bool `yaml:"reboot_switch"`
}

// CallbackConfig describes the webhook the bridge pushes state changes to.
type CallbackConfig struct {
	Enabled bool `yaml:"enabled"`

	// Host is the address the bridge should use to reach this service.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Register adds the callback URL to the bridge if it is not present.
	Register bool `yaml:"register"`
}

// URL returns the callback URL registered with the bridge.
func (c CallbackConfig) URL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// DeviceConfig holds per-device policy and display flags. Devices reported
// by the bridge without a matching entry are ignored.
type DeviceConfig struct {
	NukiID int `yaml:"nuki_id"`

	// Smart lock flags.
	UnlatchFromLockedToUnlocked       bool   `yaml:"unlatch_from_locked_to_unlocked"`
	UnlatchFromUnlockedToUnlocked     bool   `yaml:"unlatch_from_unlocked_to_unlocked"`
	LockFromLockedToLocked            bool   `yaml:"lock_from_locked_to_locked"`
	UnlatchLock                       bool   `yaml:"unlatch_lock"`
	UnlatchLockPreventUnlatchIfLocked bool   `yaml:"unlatch_lock_prevent_unlatch_if_locked"`
	DoorSensorEnabled                 bool   `yaml:"door_sensor_enabled"`
	LockName                          string `yaml:"lock_name"`
	LatchName                         string `yaml:"latch_name"`

	// Opener flags.
	LeaveOpen             bool `yaml:"leave_open"`
	RingToOpenEnabled     bool `yaml:"ring_to_open_enabled"`
	ContinuousModeEnabled bool `yaml:"continuous_mode_enabled"`
	DoorbellEnabled       bool `yaml:"doorbell_enabled"`

	// SingleAccessoryMode folds sensors and switches into the lock accessory.
	SingleAccessoryMode bool `yaml:"single_accessory_mode"`
}

// DatabaseConfig locates the SQLite file. BusyTimeout is in seconds.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// HealthInterval is how often bridge health is published.
	HealthInterval time.Duration `yaml:"health_interval"`
}

// MQTTBrokerConfig locates the broker.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig is optional username/password auth.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains control-plane HTTP API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Token    string           `yaml:"token"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig holds HTTP server timeouts in whole seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// ReadTimeout also bounds reading request headers.
func (t APITimeoutConfig) ReadTimeout() time.Duration { return seconds(t.Read) }

func (t APITimeoutConfig) WriteTimeout() time.Duration { return seconds(t.Write) }

func (t APITimeoutConfig) IdleTimeout() time.Duration { return seconds(t.Idle) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig tunes the event socket. Intervals are in seconds.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// TracingConfig contains OpenTelemetry trace export settings.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// LoggingConfig selects level (debug, info, warn, error), format (json,
// text) and output (stdout, stderr).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Device returns the entry for nukiID, if configured.
func (c *Config) Device(nukiID int) (DeviceConfig, bool) {
	for _, d := range c.Devices {
		if d.NukiID == nukiID {
			return d, true
		}
	}
	return DeviceConfig{}, false
}
