package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	// MeasurementRequests records one point per bridge HTTP attempt.
	MeasurementRequests = "nuki_requests"

	// MeasurementBattery records the battery state of a device after
	// every state change.
	MeasurementBattery = "nuki_battery"
)

// WriteBridgeRequest records one bridge HTTP attempt.
//
// The write is non-blocking; points are batched and sent asynchronously.
//
// Parameters:
//   - path: Bridge endpoint without query (e.g., "/lockAction")
//   - success: Whether the attempt returned a usable body
//   - attempt: 1-based attempt number within its request
//   - latency: Round-trip time of the attempt
func (c *Client) WriteBridgeRequest(path string, success bool, attempt int, latency time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newRequestPoint(path, success, attempt, latency, time.Now()))
}

// WriteDeviceBattery records the battery state of one device.
//
// charging and level are optional; nil values are left out of the point.
func (c *Client) WriteDeviceBattery(nukiID int, kind string, low bool, charging *bool, level *int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newBatteryPoint(nukiID, kind, low, charging, level, time.Now()))
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Example:
//
//	client.WritePoint("nuki_bridge",
//	    map[string]string{"host": "bridge.local"},
//	    map[string]interface{}{"devices": 3})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func newRequestPoint(path string, success bool, attempt int, latency time.Duration, ts time.Time) *write.Point {
	result := "ok"
	if !success {
		result = "error"
	}
	return write.NewPoint(
		MeasurementRequests,
		map[string]string{
			"path":   path,
			"result": result,
		},
		map[string]interface{}{
			"attempt":    attempt,
			"latency_ms": float64(latency) / float64(time.Millisecond),
		},
		ts,
	)
}

func newBatteryPoint(nukiID int, kind string, low bool, charging *bool, level *int, ts time.Time) *write.Point {
	fields := map[string]interface{}{
		"critical": low,
	}
	if charging != nil {
		fields["charging"] = *charging
	}
	if level != nil {
		fields["level"] = *level
	}
	return write.NewPoint(
		MeasurementBattery,
		map[string]string{
			"nuki_id": strconv.Itoa(nukiID),
			"kind":    kind,
		},
		fields,
		ts,
	)
}
