package device

import "time"

// Kind identifies the family of a physical device. Each kind carries its own
// status-code semantics and command rules (see Behavior).
type Kind string

// Supported device kinds.
const (
	KindSmartLock Kind = "smartlock"
	KindOpener    Kind = "opener"
)

// Bridge device type discriminants as reported by /list.
const (
	deviceTypeSmartLock = 0
	deviceTypeOpener    = 2
)

// KindFromDeviceType maps the bridge's numeric deviceType onto a Kind.
// The second return value is false for unsupported device types.
func KindFromDeviceType(deviceType int) (Kind, bool) {
	switch deviceType {
	case deviceTypeSmartLock:
		return KindSmartLock, true
	case deviceTypeOpener:
		return KindOpener, true
	default:
		return "", false
	}
}

// DeviceType returns the bridge's numeric discriminant for the kind.
func (k Kind) DeviceType() int {
	if k == KindOpener {
		return deviceTypeOpener
	}
	return deviceTypeSmartLock
}

// LockState is an externally visible lock mechanism state.
// Targets only ever hold LockSecured or LockUnsecured.
type LockState string

// Lock states.
const (
	LockUnknown   LockState = "unknown"
	LockSecured   LockState = "secured"
	LockUnsecured LockState = "unsecured"
	LockJammed    LockState = "jammed"
)

// ParseTarget validates a requested target state.
func ParseTarget(s string) (LockState, error) {
	switch LockState(s) {
	case LockSecured, LockUnsecured:
		return LockState(s), nil
	default:
		return "", ErrInvalidTarget
	}
}

// Pair is a current/target lock state pair.
type Pair struct {
	Current LockState `json:"current"`
	Target  LockState `json:"target"`
}

func (p *Pair) set(current, target LockState) {
	p.Current = current
	p.Target = target
}

// DoorContact is the door sensor sub-state.
type DoorContact struct {
	Open  bool `json:"open"`
	Fault bool `json:"fault"`
}

// RawStatus is one status report for one device, normalized from either a
// listing entry or a push notification. Nil pointers mean "not reported".
type RawStatus struct {
	NukiID             int
	State              int
	Mode               *int
	DoorSensorState    *int
	BatteryCritical    bool
	BatteryCharging    *bool
	BatteryChargeState *int
	RingActionState    *bool
}

// Settings are the per-device policy and display flags.
type Settings struct {
	// Smart lock
	LatchEnabled                  bool
	DoorSensorEnabled             bool
	UnlatchFromLockedToUnlocked   bool
	UnlatchFromUnlockedToUnlocked bool
	LockFromLockedToLocked        bool
	PreventUnlatchIfLocked        bool
	LockName                      string
	LatchName                     string

	// Opener
	LeaveOpen             bool
	RingToOpenEnabled     bool
	ContinuousModeEnabled bool
	DoorbellEnabled       bool

	SingleAccessoryMode bool
}

// View is the derived, externally visible state of one device. Optional
// sub-states are nil when the device's settings do not enable them.
type View struct {
	NukiID   int
	Kind     Kind
	Name     string
	Firmware string
	Settings Settings

	Lock           Pair
	Latch          *Pair
	Door           *DoorContact
	RingToOpen     *bool
	ContinuousMode *bool

	BatteryLow      bool
	BatteryCharging *bool
	BatteryLevel    *int

	UpdatedAt time.Time
}

// NewView creates the initial view for a newly discovered device. Sub-states
// are allocated according to the kind and settings.
func NewView(nukiID int, kind Kind, name string, s Settings) *View {
	v := &View{
		NukiID:   nukiID,
		Kind:     kind,
		Name:     name,
		Settings: s,
		Lock:     Pair{Current: LockUnknown, Target: LockSecured},
	}

	switch kind {
	case KindSmartLock:
		if s.LatchEnabled {
			v.Latch = &Pair{Current: LockUnknown, Target: LockSecured}
		}
		if s.DoorSensorEnabled {
			v.Door = &DoorContact{}
		}
	case KindOpener:
		if s.RingToOpenEnabled {
			v.RingToOpen = new(bool)
		}
		if s.ContinuousModeEnabled {
			v.ContinuousMode = new(bool)
		}
	}

	return v
}

// Clone returns a deep copy of the view.
func (v *View) Clone() *View {
	if v == nil {
		return nil
	}
	cpy := *v
	if v.Latch != nil {
		latch := *v.Latch
		cpy.Latch = &latch
	}
	if v.Door != nil {
		door := *v.Door
		cpy.Door = &door
	}
	cpy.RingToOpen = cloneBool(v.RingToOpen)
	cpy.ContinuousMode = cloneBool(v.ContinuousMode)
	cpy.BatteryCharging = cloneBool(v.BatteryCharging)
	if v.BatteryLevel != nil {
		level := *v.BatteryLevel
		cpy.BatteryLevel = &level
	}
	return &cpy
}

// Battery is the battery part of a Snapshot.
type Battery struct {
	Low      bool  `json:"low"`
	Charging *bool `json:"charging,omitempty"`
	Level    *int  `json:"level,omitempty"`
}

// Snapshot is the immutable, externally visible description of a View.
// It is what the MQTT, WebSocket and REST surfaces publish.
type Snapshot struct {
	NukiID         int          `json:"nuki_id"`
	Kind           Kind         `json:"kind"`
	Name           string       `json:"name"`
	LockName       string       `json:"lock_name"`
	LatchName      string       `json:"latch_name,omitempty"`
	Lock           Pair         `json:"lock"`
	Latch          *Pair        `json:"latch,omitempty"`
	Door           *DoorContact `json:"door,omitempty"`
	RingToOpen     *bool        `json:"ring_to_open,omitempty"`
	ContinuousMode *bool        `json:"continuous_mode,omitempty"`
	Battery        Battery      `json:"battery"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// EventType names a momentary device event.
type EventType string

// Momentary events produced by reconciliation.
const (
	EventDoorbellRing EventType = "doorbell_ring"
)

// Event is a momentary occurrence that is published but never stored.
type Event struct {
	Type   EventType `json:"type"`
	NukiID int       `json:"nuki_id"`
	At     time.Time `json:"at"`
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func boolPtr(b bool) *bool {
	return &b
}
