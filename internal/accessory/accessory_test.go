package accessory

import (
	"testing"

	"github.com/nerrad567/gray-logic-nuki/internal/device"
)

func TestID_Deterministic(t *testing.T) {
	if ID(42, KindLock, "") != ID(42, KindLock, "") {
		t.Error("ID() not stable for identical inputs")
	}
	if ID(42, KindLock, "") == ID(43, KindLock, "") {
		t.Error("ID() collides across Nuki IDs")
	}
	if ID(42, KindSwitch, SubtypeRingToOpen) == ID(42, KindSwitch, SubtypeContinuousMode) {
		t.Error("ID() collides across subtypes")
	}
}

func kindsOf(list []Accessory) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, string(a.Kind)+"/"+a.Subtype)
	}
	return out
}

func TestForDevice(t *testing.T) {
	tests := []struct {
		name     string
		kind     device.Kind
		settings device.Settings
		want     []string
	}{
		{"plain lock", device.KindSmartLock, device.Settings{}, []string{"lock/"}},
		{"lock with door sensor", device.KindSmartLock, device.Settings{DoorSensorEnabled: true}, []string{"lock/", "contact_sensor/door"}},
		{"single accessory lock", device.KindSmartLock, device.Settings{DoorSensorEnabled: true, SingleAccessoryMode: true}, []string{"lock/"}},
		{
			"opener with switches",
			device.KindOpener,
			device.Settings{RingToOpenEnabled: true, ContinuousModeEnabled: true},
			[]string{"lock/", "switch/ring_to_open", "switch/continuous_mode"},
		},
		{"single accessory opener", device.KindOpener, device.Settings{RingToOpenEnabled: true, SingleAccessoryMode: true}, []string{"lock/"}},
		{"door sensor ignored on opener", device.KindOpener, device.Settings{DoorSensorEnabled: true}, []string{"lock/"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kindsOf(ForDevice(device.NewView(7, tt.kind, "Front", tt.settings)))
			if len(got) != len(tt.want) {
				t.Fatalf("ForDevice() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ForDevice()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestForBridge(t *testing.T) {
	a := ForBridge("bridge.local")
	if a.NukiID != BridgeNukiID || a.Kind != KindBridgeSwitch {
		t.Errorf("ForBridge() = %+v", a)
	}
	if a.ID != ID(BridgeNukiID, KindBridgeSwitch, "bridge.local") {
		t.Error("ForBridge() ID not derived from host")
	}
}
