package device

import (
	"reflect"
	"testing"
)

func newOpenerView(s Settings) *View {
	return NewView(200, KindOpener, "Gate", s)
}

func TestOpenerReconcile_LockState(t *testing.T) {
	tests := []struct {
		name      string
		leaveOpen bool
		prior     Pair
		state     int
		want      Pair
	}{
		{"online secures", false, Pair{LockUnsecured, LockUnsecured}, 1, Pair{LockSecured, LockSecured}},
		{"rto active secures", false, Pair{LockUnsecured, LockUnsecured}, 3, Pair{LockSecured, LockSecured}},
		{"leave open suppresses secure", true, Pair{LockUnsecured, LockUnsecured}, 1, Pair{LockUnsecured, LockUnsecured}},
		{"leave open keeps unknown", true, Pair{LockUnknown, LockSecured}, 3, Pair{LockUnknown, LockSecured}},
		{"open", false, Pair{LockSecured, LockSecured}, 5, Pair{LockUnsecured, LockUnsecured}},
		{"opening sets target only", false, Pair{LockSecured, LockSecured}, 7, Pair{LockSecured, LockUnsecured}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newOpenerView(Settings{LeaveOpen: tt.leaveOpen})
			v.Lock = tt.prior
			openerBehavior{}.Reconcile(v, RawStatus{State: tt.state})
			if v.Lock != tt.want {
				t.Errorf("Lock = %+v, want %+v", v.Lock, tt.want)
			}
		})
	}
}

func TestOpenerReconcile_RingToOpenOnlyOnStableStates(t *testing.T) {
	v := newOpenerView(Settings{RingToOpenEnabled: true})

	openerBehavior{}.Reconcile(v, RawStatus{State: 3})
	if !*v.RingToOpen {
		t.Fatal("RingToOpen = false after state 3, want true")
	}

	// Transitional states must not flip the switch.
	for _, state := range []int{5, 7} {
		openerBehavior{}.Reconcile(v, RawStatus{State: state})
		if !*v.RingToOpen {
			t.Errorf("RingToOpen flipped by transitional state %d", state)
		}
	}

	openerBehavior{}.Reconcile(v, RawStatus{State: 1})
	if *v.RingToOpen {
		t.Error("RingToOpen = true after state 1, want false")
	}
}

func TestOpenerReconcile_ContinuousMode(t *testing.T) {
	tests := []struct {
		name string
		mode *int
		want bool
	}{
		{"continuous", intPtr(3), true},
		{"door mode", intPtr(2), false},
		{"absent mode", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newOpenerView(Settings{ContinuousModeEnabled: true})
			*v.ContinuousMode = !tt.want
			openerBehavior{}.Reconcile(v, RawStatus{State: 5, Mode: tt.mode})
			if *v.ContinuousMode != tt.want {
				t.Errorf("ContinuousMode = %v, want %v", *v.ContinuousMode, tt.want)
			}
		})
	}
}

func TestOpenerReconcile_Doorbell(t *testing.T) {
	ring := true

	v := newOpenerView(Settings{DoorbellEnabled: true})
	events := openerBehavior{}.Reconcile(v, RawStatus{State: 1, RingActionState: &ring})
	if len(events) != 1 || events[0].Type != EventDoorbellRing || events[0].NukiID != 200 {
		t.Fatalf("events = %+v, want one doorbell ring for 200", events)
	}

	disabled := newOpenerView(Settings{})
	if events := (openerBehavior{}).Reconcile(disabled, RawStatus{State: 1, RingActionState: &ring}); len(events) != 0 {
		t.Errorf("events = %+v, want none when doorbell disabled", events)
	}

	notRinging := false
	if events := (openerBehavior{}).Reconcile(v, RawStatus{State: 1, RingActionState: &notRinging}); len(events) != 0 {
		t.Errorf("events = %+v, want none when ring flag false", events)
	}
}

func TestOpenerReconcile_Idempotent(t *testing.T) {
	settings := Settings{RingToOpenEnabled: true, ContinuousModeEnabled: true}
	for _, raw := range []RawStatus{{State: 1}, {State: 3, Mode: intPtr(3)}, {State: 5}, {State: 7, BatteryCritical: true}} {
		once := newOpenerView(settings)
		openerBehavior{}.Reconcile(once, raw)
		twice := newOpenerView(settings)
		openerBehavior{}.Reconcile(twice, raw)
		openerBehavior{}.Reconcile(twice, raw)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("state %d not idempotent", raw.State)
		}
	}
}

func TestOpenerTranslate(t *testing.T) {
	tests := []struct {
		name       string
		settings   Settings
		cmd        Command
		wantAction Action
	}{
		{"open", Settings{}, TargetLock(LockUnsecured), ActionOpen},
		{"secure is ignored", Settings{}, TargetLock(LockSecured), 0},
		{"rto on", Settings{RingToOpenEnabled: true}, SetRingToOpen(true), ActionActivateRingToOpen},
		{"rto off", Settings{RingToOpenEnabled: true}, SetRingToOpen(false), ActionDeactivateRingToOpen},
		{"rto disabled", Settings{}, SetRingToOpen(true), 0},
		{"continuous on", Settings{ContinuousModeEnabled: true}, SetContinuousMode(true), ActionActivateContinuousMode},
		{"continuous off", Settings{ContinuousModeEnabled: true}, SetContinuousMode(false), ActionDeactivateContinuous},
		{"latch not supported", Settings{}, TargetLatch(LockUnsecured), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newOpenerView(tt.settings)
			if plan := (openerBehavior{}).Translate(v, tt.cmd); plan.Action != tt.wantAction {
				t.Errorf("Action = %d, want %d", plan.Action, tt.wantAction)
			}
		})
	}
}

func TestOpenerTranslate_OpenOptimisticUpdate(t *testing.T) {
	v := newOpenerView(Settings{})
	v.Lock = Pair{LockSecured, LockSecured}

	plan := openerBehavior{}.Translate(v, TargetLock(LockUnsecured))
	if plan.Before != nil {
		t.Error("open plan should not touch the view before dispatch")
	}
	plan.OnSuccess(v)
	if v.Lock != (Pair{LockUnsecured, LockUnsecured}) {
		t.Errorf("Lock = %+v, want unsecured/unsecured", v.Lock)
	}
}

func TestBehaviorFor(t *testing.T) {
	for _, k := range []Kind{KindSmartLock, KindOpener} {
		b, err := BehaviorFor(k)
		if err != nil {
			t.Fatalf("BehaviorFor(%q) error = %v", k, err)
		}
		if b.Kind() != k {
			t.Errorf("BehaviorFor(%q).Kind() = %q", k, b.Kind())
		}
	}
	if _, err := BehaviorFor("bridge"); err == nil {
		t.Error("BehaviorFor(bridge) error = nil, want ErrUnsupportedKind")
	}
}

func TestKindFromDeviceType(t *testing.T) {
	tests := []struct {
		deviceType int
		want       Kind
		ok         bool
	}{
		{0, KindSmartLock, true},
		{2, KindOpener, true},
		{3, "", false},
		{4, "", false},
	}
	for _, tt := range tests {
		got, ok := KindFromDeviceType(tt.deviceType)
		if got != tt.want || ok != tt.ok {
			t.Errorf("KindFromDeviceType(%d) = %q, %v, want %q, %v", tt.deviceType, got, ok, tt.want, tt.ok)
		}
		if ok && got.DeviceType() != tt.deviceType {
			t.Errorf("%q.DeviceType() = %d, want %d", got, got.DeviceType(), tt.deviceType)
		}
	}
}
