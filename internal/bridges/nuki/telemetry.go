package nuki

import "github.com/nerrad567/gray-logic-nuki/internal/device"

// TelemetryWriter receives device measurements for time-series storage.
type TelemetryWriter interface {
	WriteDeviceBattery(nukiID int, kind string, low bool, charging *bool, level *int)
}

// TelemetryObserver returns a store observer writing a battery point for
// every committed state change. Removals are skipped.
func TelemetryObserver(w TelemetryWriter) device.Observer {
	return func(c device.Change) {
		if c.Removed {
			return
		}
		b := c.Snapshot.Battery
		w.WriteDeviceBattery(c.Snapshot.NukiID, string(c.Snapshot.Kind), b.Low, b.Charging, b.Level)
	}
}
