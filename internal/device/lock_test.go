package device

import (
	"reflect"
	"testing"
)

func intPtr(i int) *int { return &i }

func newLockView(s Settings) *View {
	return NewView(100, KindSmartLock, "Front Door", s)
}

func TestLockReconcile_StateTable(t *testing.T) {
	tests := []struct {
		name      string
		prior     Pair
		state     int
		wantLock  Pair
		wantLatch Pair
	}{
		{
			name:      "locked",
			prior:     Pair{LockUnsecured, LockUnsecured},
			state:     1,
			wantLock:  Pair{LockSecured, LockSecured},
			wantLatch: Pair{LockSecured, LockSecured},
		},
		{
			name:      "unlocked keeps latch secured",
			prior:     Pair{LockSecured, LockSecured},
			state:     3,
			wantLock:  Pair{LockUnsecured, LockUnsecured},
			wantLatch: Pair{LockSecured, LockSecured},
		},
		{
			name:      "unlatched",
			prior:     Pair{LockSecured, LockSecured},
			state:     5,
			wantLock:  Pair{LockUnsecured, LockUnsecured},
			wantLatch: Pair{LockUnsecured, LockUnsecured},
		},
		{
			name:      "jammed keeps targets",
			prior:     Pair{LockSecured, LockUnsecured},
			state:     254,
			wantLock:  Pair{LockJammed, LockUnsecured},
			wantLatch: Pair{LockJammed, LockUnsecured},
		},
		{
			name:      "transitional state leaves lock alone",
			prior:     Pair{LockSecured, LockSecured},
			state:     2,
			wantLock:  Pair{LockSecured, LockSecured},
			wantLatch: Pair{LockSecured, LockUnsecured},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newLockView(Settings{LatchEnabled: true})
			v.Lock = tt.prior
			// Distinct latch prior so "unchanged" is observable.
			*v.Latch = Pair{tt.prior.Current, LockUnsecured}
			if tt.state == 2 {
				*v.Latch = Pair{LockSecured, LockUnsecured}
			}

			lockBehavior{}.Reconcile(v, RawStatus{NukiID: 100, State: tt.state})

			if v.Lock != tt.wantLock {
				t.Errorf("Lock = %+v, want %+v", v.Lock, tt.wantLock)
			}
			if *v.Latch != tt.wantLatch {
				t.Errorf("Latch = %+v, want %+v", *v.Latch, tt.wantLatch)
			}
		})
	}
}

func TestLockReconcile_NoLatchWhenDisabled(t *testing.T) {
	v := newLockView(Settings{})
	lockBehavior{}.Reconcile(v, RawStatus{State: 1})
	if v.Latch != nil {
		t.Errorf("Latch = %+v, want nil when latch disabled", v.Latch)
	}
	if v.Lock != (Pair{LockSecured, LockSecured}) {
		t.Errorf("Lock = %+v, want secured/secured", v.Lock)
	}
}

func TestLockReconcile_DoorSensor(t *testing.T) {
	tests := []struct {
		name      string
		prior     DoorContact
		code      *int
		wantState DoorContact
	}{
		{"open", DoorContact{}, intPtr(3), DoorContact{Open: true}},
		{"closed clears fault", DoorContact{Open: true, Fault: true}, intPtr(2), DoorContact{}},
		{"unknown code sets fault and keeps open", DoorContact{Open: true}, intPtr(4), DoorContact{Open: true, Fault: true}},
		{"absent code sets fault", DoorContact{}, nil, DoorContact{Fault: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newLockView(Settings{DoorSensorEnabled: true})
			*v.Door = tt.prior
			lockBehavior{}.Reconcile(v, RawStatus{State: 1, DoorSensorState: tt.code})
			if *v.Door != tt.wantState {
				t.Errorf("Door = %+v, want %+v", *v.Door, tt.wantState)
			}
		})
	}
}

func TestLockReconcile_Battery(t *testing.T) {
	v := newLockView(Settings{})
	charging := true

	lockBehavior{}.Reconcile(v, RawStatus{State: 1, BatteryCritical: true, BatteryCharging: &charging, BatteryChargeState: intPtr(42)})
	if !v.BatteryLow {
		t.Error("BatteryLow = false, want true")
	}
	if v.BatteryCharging == nil || !*v.BatteryCharging {
		t.Errorf("BatteryCharging = %v, want true", v.BatteryCharging)
	}
	if v.BatteryLevel == nil || *v.BatteryLevel != 42 {
		t.Errorf("BatteryLevel = %v, want 42", v.BatteryLevel)
	}

	// Absent charging flag and a zero level leave the previous values.
	lockBehavior{}.Reconcile(v, RawStatus{State: 1, BatteryChargeState: intPtr(0)})
	if v.BatteryLow {
		t.Error("BatteryLow = true, want false")
	}
	if v.BatteryCharging == nil || !*v.BatteryCharging {
		t.Errorf("BatteryCharging = %v, want unchanged true", v.BatteryCharging)
	}
	if *v.BatteryLevel != 42 {
		t.Errorf("BatteryLevel = %d, want unchanged 42", *v.BatteryLevel)
	}
}

func TestLockReconcile_Idempotent(t *testing.T) {
	charging := false
	raws := []RawStatus{
		{State: 1},
		{State: 3, DoorSensorState: intPtr(3), BatteryCharging: &charging},
		{State: 5, BatteryCritical: true, BatteryChargeState: intPtr(17)},
		{State: 254, DoorSensorState: intPtr(9)},
	}
	settings := Settings{LatchEnabled: true, DoorSensorEnabled: true}

	for _, raw := range raws {
		once := newLockView(settings)
		lockBehavior{}.Reconcile(once, raw)

		twice := newLockView(settings)
		lockBehavior{}.Reconcile(twice, raw)
		lockBehavior{}.Reconcile(twice, raw)

		if !reflect.DeepEqual(once, twice) {
			t.Errorf("state %d: applying twice = %+v, once = %+v", raw.State, twice, once)
		}
	}
}

func TestLockTranslate(t *testing.T) {
	tests := []struct {
		name       string
		settings   Settings
		current    LockState
		cmd        Command
		wantAction Action
	}{
		{"unlock from locked", Settings{}, LockSecured, TargetLock(LockUnsecured), ActionUnlock},
		{"unlatch from locked by policy", Settings{UnlatchFromLockedToUnlocked: true}, LockSecured, TargetLock(LockUnsecured), ActionUnlatch},
		{"unlock while unlocked is a no-op", Settings{}, LockUnsecured, TargetLock(LockUnsecured), 0},
		{"unlatch while unlocked by policy", Settings{UnlatchFromUnlockedToUnlocked: true}, LockUnsecured, TargetLock(LockUnsecured), ActionUnlatch},
		{"unlock from jammed", Settings{}, LockJammed, TargetLock(LockUnsecured), ActionUnlock},
		{"lock from unlocked", Settings{}, LockUnsecured, TargetLock(LockSecured), ActionLock},
		{"lock while locked is a no-op", Settings{}, LockSecured, TargetLock(LockSecured), 0},
		{"relock by policy", Settings{LockFromLockedToLocked: true}, LockSecured, TargetLock(LockSecured), ActionLock},
		{"opener command ignored", Settings{}, LockSecured, SetRingToOpen(true), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newLockView(tt.settings)
			v.Lock = Pair{tt.current, tt.current}

			plan := lockBehavior{}.Translate(v, tt.cmd)
			if plan.Action != tt.wantAction {
				t.Errorf("Action = %d, want %d", plan.Action, tt.wantAction)
			}
			if !plan.Sends() && plan.Reason == "" {
				t.Error("no-op plan has no reason")
			}
		})
	}
}

func TestLockTranslate_OptimisticUpdates(t *testing.T) {
	v := newLockView(Settings{LatchEnabled: true, UnlatchFromLockedToUnlocked: true})
	v.Lock = Pair{LockSecured, LockSecured}
	*v.Latch = Pair{LockSecured, LockSecured}

	plan := lockBehavior{}.Translate(v, TargetLock(LockUnsecured))
	if v.Latch.Target != LockSecured {
		t.Fatal("Translate mutated the view")
	}

	if plan.Before != nil {
		t.Fatal("unlatch through the lock has a Before step")
	}

	plan.OnSuccess(v)
	if v.Lock != (Pair{LockUnsecured, LockUnsecured}) {
		t.Errorf("Lock = %+v after success, want unsecured/unsecured", v.Lock)
	}
	if v.Latch.Target != LockUnsecured {
		t.Errorf("Latch.Target = %s after success, want unsecured", v.Latch.Target)
	}
}

func TestLockTranslate_NoTargetChangeBeforeSuccess(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		cmd      Command
	}{
		{"unlatch via lock", Settings{LatchEnabled: true, UnlatchFromLockedToUnlocked: true}, TargetLock(LockUnsecured)},
		{"unlatch via latch", Settings{LatchEnabled: true}, TargetLatch(LockUnsecured)},
		{"unlock", Settings{LatchEnabled: true}, TargetLock(LockUnsecured)},
		{"lock again", Settings{LatchEnabled: true, LockFromLockedToLocked: true}, TargetLock(LockSecured)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newLockView(tt.settings)
			v.Lock = Pair{LockSecured, LockSecured}
			*v.Latch = Pair{LockSecured, LockSecured}

			plan := lockBehavior{}.Translate(v, tt.cmd)
			if !plan.Sends() {
				t.Fatalf("plan sends nothing: %s", plan.Reason)
			}
			if plan.Before != nil {
				plan.Before(v)
			}
			if v.Lock != (Pair{LockSecured, LockSecured}) || *v.Latch != (Pair{LockSecured, LockSecured}) {
				t.Errorf("view changed before success: lock=%+v latch=%+v", v.Lock, *v.Latch)
			}
		})
	}
}

func TestLockTranslate_Latch(t *testing.T) {
	t.Run("safety no-op while locked", func(t *testing.T) {
		v := newLockView(Settings{LatchEnabled: true, PreventUnlatchIfLocked: true})
		v.Lock = Pair{LockSecured, LockSecured}
		*v.Latch = Pair{LockSecured, LockUnsecured}

		plan := lockBehavior{}.Translate(v, TargetLatch(LockUnsecured))
		if plan.Sends() {
			t.Fatalf("Action = %d, want no request", plan.Action)
		}
		plan.Before(v)
		if *v.Latch != (Pair{LockSecured, LockSecured}) {
			t.Errorf("Latch = %+v, want forced secured/secured", *v.Latch)
		}
	})

	t.Run("unlatch while unlocked", func(t *testing.T) {
		v := newLockView(Settings{LatchEnabled: true, PreventUnlatchIfLocked: true})
		v.Lock = Pair{LockUnsecured, LockUnsecured}

		plan := lockBehavior{}.Translate(v, TargetLatch(LockUnsecured))
		if plan.Action != ActionUnlatch {
			t.Fatalf("Action = %d, want %d", plan.Action, ActionUnlatch)
		}
		plan.OnSuccess(v)
		if v.Lock.Target != LockUnsecured {
			t.Errorf("Lock.Target = %s, want unsecured", v.Lock.Target)
		}
		if *v.Latch != (Pair{LockUnsecured, LockUnsecured}) {
			t.Errorf("Latch = %+v, want unsecured/unsecured", *v.Latch)
		}
	})

	t.Run("unlatch while locked without safety flag", func(t *testing.T) {
		v := newLockView(Settings{LatchEnabled: true})
		v.Lock = Pair{LockSecured, LockSecured}
		if plan := (lockBehavior{}).Translate(v, TargetLatch(LockUnsecured)); plan.Action != ActionUnlatch {
			t.Errorf("Action = %d, want %d", plan.Action, ActionUnlatch)
		}
	})

	t.Run("securing the latch is ignored", func(t *testing.T) {
		v := newLockView(Settings{LatchEnabled: true})
		if plan := (lockBehavior{}).Translate(v, TargetLatch(LockSecured)); plan.Sends() {
			t.Errorf("Action = %d, want no request", plan.Action)
		}
	})

	t.Run("latch disabled", func(t *testing.T) {
		v := newLockView(Settings{})
		if plan := (lockBehavior{}).Translate(v, TargetLatch(LockUnsecured)); plan.Sends() {
			t.Errorf("Action = %d, want no request", plan.Action)
		}
	})
}

func TestLockDescribe(t *testing.T) {
	v := newLockView(Settings{LatchEnabled: true, LatchName: "Door Latch"})
	v.BatteryLevel = intPtr(80)

	snap := lockBehavior{}.Describe(v)
	if snap.LockName != "Lock" {
		t.Errorf("LockName = %q, want default %q", snap.LockName, "Lock")
	}
	if snap.LatchName != "Door Latch" {
		t.Errorf("LatchName = %q, want %q", snap.LatchName, "Door Latch")
	}

	// Snapshot must not alias the view.
	*v.BatteryLevel = 10
	v.Latch.Current = LockJammed
	if *snap.Battery.Level != 80 || snap.Latch.Current == LockJammed {
		t.Error("snapshot aliases view state")
	}
}
