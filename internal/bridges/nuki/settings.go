package nuki

import (
	"github.com/nerrad567/gray-logic-nuki/internal/device"
	"github.com/nerrad567/gray-logic-nuki/internal/infrastructure/config"
)

// SettingsFromConfig converts the configured device entries into per-device
// settings keyed by Nuki ID. Devices absent from the result are not exposed.
func SettingsFromConfig(devices []config.DeviceConfig) map[int]device.Settings {
	out := make(map[int]device.Settings, len(devices))
	for _, d := range devices {
		out[d.NukiID] = device.Settings{
			LatchEnabled:                  d.UnlatchLock,
			DoorSensorEnabled:             d.DoorSensorEnabled,
			UnlatchFromLockedToUnlocked:   d.UnlatchFromLockedToUnlocked,
			UnlatchFromUnlockedToUnlocked: d.UnlatchFromUnlockedToUnlocked,
			LockFromLockedToLocked:        d.LockFromLockedToLocked,
			PreventUnlatchIfLocked:        d.UnlatchLockPreventUnlatchIfLocked,
			LockName:                      d.LockName,
			LatchName:                     d.LatchName,
			LeaveOpen:                     d.LeaveOpen,
			RingToOpenEnabled:             d.RingToOpenEnabled,
			ContinuousModeEnabled:         d.ContinuousModeEnabled,
			DoorbellEnabled:               d.DoorbellEnabled,
			SingleAccessoryMode:           d.SingleAccessoryMode,
		}
	}
	return out
}

// EndpointFromConfig builds the dispatcher endpoint from the bridge section.
func EndpointFromConfig(c config.BridgeConfig) Endpoint {
	return Endpoint{
		Host:        c.Host,
		Port:        c.Port,
		Token:       c.Token,
		Interval:    c.RequestInterval,
		MaxAttempts: c.RetryCount,
		Timeout:     c.Timeout,
	}
}
