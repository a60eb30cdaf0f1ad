package accessory

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-nuki/internal/device"
)

// Kind is the type of an accessory exposed to the host.
type Kind string

const (
	KindLock          Kind = "lock"
	KindContactSensor Kind = "contact_sensor"
	KindSwitch        Kind = "switch"
	KindBridgeSwitch  Kind = "bridge_switch"
)

// Subtypes distinguish accessories of the same kind on one device.
const (
	SubtypeDoor           = "door"
	SubtypeRingToOpen     = "ring_to_open"
	SubtypeContinuousMode = "continuous_mode"
)

// BridgeNukiID is the Nuki ID recorded for bridge-level accessories.
const BridgeNukiID = 0

// namespace seeds the deterministic accessory IDs.
var namespace = uuid.MustParse("6f1c3a52-8d0e-4b7a-9c35-2e4d5f6a7b80")

// Accessory is one host-visible representation of a device or the bridge.
type Accessory struct {
	ID        string    `json:"id"`
	NukiID    int       `json:"nuki_id"`
	Kind      Kind      `json:"kind"`
	Subtype   string    `json:"subtype,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ID returns the stable identifier of an accessory. The same inputs always
// yield the same ID, so accessories survive restarts.
func ID(nukiID int, kind Kind, subtype string) string {
	return uuid.NewSHA1(namespace, []byte(fmt.Sprintf("%d%s%s", nukiID, kind, subtype))).String()
}

func newAccessory(nukiID int, kind Kind, subtype, name string) Accessory {
	return Accessory{
		ID:      ID(nukiID, kind, subtype),
		NukiID:  nukiID,
		Kind:    kind,
		Subtype: subtype,
		Name:    name,
	}
}

// ForDevice returns the accessories a device should have given its kind and
// settings. In single accessory mode the door sensor and switches are
// services of the lock accessory and get no accessory of their own.
func ForDevice(v *device.View) []Accessory {
	out := []Accessory{newAccessory(v.NukiID, KindLock, "", v.Name)}
	if v.Settings.SingleAccessoryMode {
		return out
	}

	switch v.Kind {
	case device.KindSmartLock:
		if v.Settings.DoorSensorEnabled {
			out = append(out, newAccessory(v.NukiID, KindContactSensor, SubtypeDoor, v.Name+" Door"))
		}
	case device.KindOpener:
		if v.Settings.RingToOpenEnabled {
			out = append(out, newAccessory(v.NukiID, KindSwitch, SubtypeRingToOpen, v.Name+" Ring to Open"))
		}
		if v.Settings.ContinuousModeEnabled {
			out = append(out, newAccessory(v.NukiID, KindSwitch, SubtypeContinuousMode, v.Name+" Continuous Mode"))
		}
	}
	return out
}

// ForBridge returns the reboot switch accessory of the bridge at host.
func ForBridge(host string) Accessory {
	return newAccessory(BridgeNukiID, KindBridgeSwitch, host, "Nuki Bridge "+host)
}
