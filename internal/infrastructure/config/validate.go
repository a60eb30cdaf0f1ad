package config

import (
	"fmt"
	"strings"
)

// minAPITokenLength applies because the API can open a physical lock.
const minAPITokenLength = 16

// problems collects validation failures so they are reported together.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p *problems) port(field string, v int) {
	if v < 1 || v > 65535 {
		p.addf("%s must be between 1 and 65535", field)
	}
}

// Validate reports every configuration error at once.
//
// A missing bridge host or token is accepted: the dispatcher reports it
// when the first request is due.
func (c *Config) Validate() error {
	var p problems

	p.port("bridge.port", c.Bridge.Port)
	if c.Bridge.RetryCount < 1 {
		p.addf("bridge.retry_count must be at least 1")
	}
	if c.Bridge.RequestInterval < 0 {
		p.addf("bridge.request_interval must not be negative")
	}
	if c.Bridge.RefreshInterval < 0 {
		p.addf("bridge.refresh_interval must not be negative")
	}
	if c.Bridge.Timeout <= 0 {
		p.addf("bridge.timeout must be positive")
	}

	if c.Callback.Enabled {
		p.port("callback.port", c.Callback.Port)
		if c.Callback.Register && c.Callback.Host == "" {
			p.addf("callback.host is required when callback.register is set (set GRAYLOGIC_CALLBACK_HOST)")
		}
	}

	seen := make(map[int]bool, len(c.Devices))
	for i, d := range c.Devices {
		switch {
		case d.NukiID <= 0:
			p.addf("devices[%d].nuki_id must be positive", i)
		case seen[d.NukiID]:
			p.addf("devices[%d].nuki_id %d is duplicated", i, d.NukiID)
		}
		seen[d.NukiID] = true
	}

	if c.Database.Path == "" {
		p.addf("database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		p.addf("mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled {
		p.port("api.port", c.API.Port)
		switch {
		case c.API.Token == "":
			p.addf("api.token is required when api.enabled is set (set GRAYLOGIC_API_TOKEN)")
		case len(c.API.Token) < minAPITokenLength:
			p.addf("api.token must be at least %d characters", minAPITokenLength)
		}
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		p.addf("tracing.endpoint is required when tracing.enabled is set")
	}

	if len(p) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(p, "; "))
	}
	return nil
}
