package influxdb

import (
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-nuki/internal/infrastructure/config"
)

func pointTags(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, tag := range p.TagList() {
		out[tag.Key] = tag.Value
	}
	return out
}

func pointFields(p *write.Point) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func TestNewRequestPoint(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	p := newRequestPoint("/lockAction", false, 2, 1500*time.Microsecond, ts)

	if p.Name() != MeasurementRequests {
		t.Errorf("Name() = %q, want %q", p.Name(), MeasurementRequests)
	}
	tags := pointTags(p)
	if tags["path"] != "/lockAction" || tags["result"] != "error" {
		t.Errorf("tags = %v", tags)
	}
	fields := pointFields(p)
	if fields["latency_ms"] != 1.5 {
		t.Errorf("latency_ms = %v, want 1.5", fields["latency_ms"])
	}
	if _, ok := fields["attempt"]; !ok {
		t.Error("attempt field missing")
	}
	if !p.Time().Equal(ts) {
		t.Errorf("Time() = %v, want %v", p.Time(), ts)
	}
}

func TestNewBatteryPoint(t *testing.T) {
	ts := time.Now()
	charging := true
	level := 64

	t.Run("all fields", func(t *testing.T) {
		p := newBatteryPoint(7, "smartlock", true, &charging, &level, ts)
		tags := pointTags(p)
		if tags["nuki_id"] != "7" || tags["kind"] != "smartlock" {
			t.Errorf("tags = %v", tags)
		}
		fields := pointFields(p)
		if fields["critical"] != true || fields["charging"] != true {
			t.Errorf("fields = %v", fields)
		}
		if _, ok := fields["level"]; !ok {
			t.Error("level field missing")
		}
	})

	t.Run("optional fields omitted", func(t *testing.T) {
		fields := pointFields(newBatteryPoint(8, "opener", false, nil, nil, ts))
		if len(fields) != 1 {
			t.Errorf("fields = %v, want only critical", fields)
		}
	})
}

func TestWriteOptions(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.InfluxDBConfig
		wantBatch uint
		wantFlush uint
	}{
		{"configured", config.InfluxDBConfig{BatchSize: 500, FlushInterval: 2}, 500, 2000},
		{"zero falls back", config.InfluxDBConfig{}, fallbackBatchSize, 10000},
		{"negative falls back", config.InfluxDBConfig{BatchSize: -1, FlushInterval: -5}, fallbackBatchSize, 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := writeOptions(tt.cfg)
			if got := opts.BatchSize(); got != tt.wantBatch {
				t.Errorf("BatchSize() = %d, want %d", got, tt.wantBatch)
			}
			if got := opts.FlushInterval(); got != tt.wantFlush {
				t.Errorf("FlushInterval() = %d, want %d", got, tt.wantFlush)
			}
		})
	}
}
