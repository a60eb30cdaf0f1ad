package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path over the built-in defaults, applies
// GRAYLOGIC_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			Port:            8080,
			RequestInterval: 3 * time.Second,
			RetryCount:      3,
			Timeout:         10 * time.Second,
			RefreshInterval: 5 * time.Minute,
		},
		Callback: CallbackConfig{Enabled: true, Port: 40506, Register: true},
		Database: DatabaseConfig{Path: "./data/nuki.db", WALMode: true, BusyTimeout: 5},
		MQTT: MQTTConfig{
			Enabled:        true,
			Broker:         MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "graylogic-nuki"},
			QoS:            1,
			Reconnect:      MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
			HealthInterval: 30 * time.Second,
		},
		API: APIConfig{
			Host:     "0.0.0.0",
			Port:     40011,
			Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
		},
		WebSocket: WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logging:   LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

// envOverrides maps each GRAYLOGIC_* variable to the field it replaces.
// Secrets and deployment addresses are the only overridable values.
func (c *Config) envOverrides() map[string]*string {
	return map[string]*string{
		"GRAYLOGIC_BRIDGE_HOST":      &c.Bridge.Host,
		"GRAYLOGIC_BRIDGE_TOKEN":     &c.Bridge.Token,
		"GRAYLOGIC_CALLBACK_HOST":    &c.Callback.Host,
		"GRAYLOGIC_API_TOKEN":        &c.API.Token,
		"GRAYLOGIC_DATABASE_PATH":    &c.Database.Path,
		"GRAYLOGIC_MQTT_HOST":        &c.MQTT.Broker.Host,
		"GRAYLOGIC_MQTT_USERNAME":    &c.MQTT.Auth.Username,
		"GRAYLOGIC_MQTT_PASSWORD":    &c.MQTT.Auth.Password,
		"GRAYLOGIC_INFLUXDB_TOKEN":   &c.InfluxDB.Token,
		"GRAYLOGIC_TRACING_ENDPOINT": &c.Tracing.Endpoint,
	}
}

// applyEnv replaces fields whose variable is set and non-empty.
func (c *Config) applyEnv(getenv func(string) string) {
	for name, field := range c.envOverrides() {
		if v := getenv(name); v != "" {
			*field = v
		}
	}
}
