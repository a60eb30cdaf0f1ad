package device

// Smart lock raw state codes.
const (
	lockStateLocked    = 1
	lockStateUnlocked  = 3
	lockStateUnlatched = 5
	lockStateJammed    = 254
)

// Door sensor codes.
const (
	doorSensorClosed = 2
	doorSensorOpen   = 3
)

const (
	defaultLockName  = "Lock"
	defaultLatchName = "Latch"
)

// lockBehavior implements the smart lock kind.
//
// The latch sub-state answers "is the door physically held shut", not
// "is the cylinder locked": an unlocked (3) lock still has a secured latch.
type lockBehavior struct{}

func (lockBehavior) Kind() Kind { return KindSmartLock }

func (lockBehavior) Reconcile(v *View, raw RawStatus) []Event {
	switch raw.State {
	case lockStateLocked:
		v.Lock.set(LockSecured, LockSecured)
		if v.Latch != nil {
			v.Latch.set(LockSecured, LockSecured)
		}
	case lockStateUnlocked:
		v.Lock.set(LockUnsecured, LockUnsecured)
		if v.Latch != nil {
			v.Latch.set(LockSecured, LockSecured)
		}
	case lockStateUnlatched:
		v.Lock.set(LockUnsecured, LockUnsecured)
		if v.Latch != nil {
			v.Latch.set(LockUnsecured, LockUnsecured)
		}
	case lockStateJammed:
		v.Lock.Current = LockJammed
		if v.Latch != nil {
			v.Latch.Current = LockJammed
		}
	}

	v.BatteryLow = raw.BatteryCritical
	if raw.BatteryCharging != nil {
		v.BatteryCharging = boolPtr(*raw.BatteryCharging)
	}
	if raw.BatteryChargeState != nil && *raw.BatteryChargeState != 0 {
		level := *raw.BatteryChargeState
		v.BatteryLevel = &level
	}

	if v.Door != nil {
		switch {
		case raw.DoorSensorState != nil && *raw.DoorSensorState == doorSensorOpen:
			v.Door.Open = true
			v.Door.Fault = false
		case raw.DoorSensorState != nil && *raw.DoorSensorState == doorSensorClosed:
			v.Door.Open = false
			v.Door.Fault = false
		default:
			v.Door.Fault = true
		}
	}

	return nil
}

func (lockBehavior) Describe(v *View) Snapshot {
	s := describe(v)
	s.LockName = nameOr(v.Settings.LockName, defaultLockName)
	if v.Latch != nil {
		s.LatchName = nameOr(v.Settings.LatchName, defaultLatchName)
	}
	s.Battery.Charging = cloneBool(v.BatteryCharging)
	if v.BatteryLevel != nil {
		level := *v.BatteryLevel
		s.Battery.Level = &level
	}
	return s
}

func (b lockBehavior) Translate(v *View, cmd Command) Plan {
	switch cmd.Type {
	case CommandLockTarget:
		return b.translateLock(v, cmd.Target)
	case CommandLatchTarget:
		return b.translateLatch(v, cmd.Target)
	default:
		return noop("command not supported by smart lock")
	}
}

func (lockBehavior) translateLock(v *View, target LockState) Plan {
	settings := v.Settings

	switch target {
	case LockUnsecured:
		switch v.Lock.Current {
		case LockSecured:
			if settings.UnlatchFromLockedToUnlocked {
				return unlatchFromLock()
			}
			return unlock()
		case LockUnsecured:
			if settings.UnlatchFromUnlockedToUnlocked {
				return unlatchFromLock()
			}
			return noop("already unlocked")
		default:
			return unlock()
		}

	case LockSecured:
		if v.Lock.Current == LockSecured && !settings.LockFromLockedToLocked {
			return noop("already locked")
		}
		name := "lock"
		if v.Lock.Current == LockSecured {
			name = "lock again"
		}
		return Plan{
			Action: ActionLock,
			Name:   name,
			OnSuccess: func(v *View) {
				v.Lock.set(LockSecured, LockSecured)
			},
		}

	default:
		return noop("invalid target state")
	}
}

func (lockBehavior) translateLatch(v *View, target LockState) Plan {
	if v.Latch == nil {
		return noop("latch not enabled")
	}
	// The latch cannot be secured; releasing it is the only action.
	if target != LockUnsecured {
		return noop("latch cannot be secured")
	}

	if v.Lock.Current == LockSecured && v.Settings.PreventUnlatchIfLocked {
		return Plan{
			Reason: "unlatch prevented while locked",
			Before: func(v *View) {
				v.Latch.set(LockSecured, LockSecured)
			},
		}
	}

	return Plan{
		Action: ActionUnlatch,
		Name:   "unlatch",
		OnSuccess: func(v *View) {
			v.Lock.Target = LockUnsecured
			if v.Latch != nil {
				v.Latch.set(LockUnsecured, LockUnsecured)
			}
		},
	}
}

// unlatchFromLock opens the door through the lock target. Once the bridge
// confirms, the latch target mirrors it so both sub-states show the door
// opening.
func unlatchFromLock() Plan {
	return Plan{
		Action: ActionUnlatch,
		Name:   "unlatch",
		OnSuccess: func(v *View) {
			v.Lock.set(LockUnsecured, LockUnsecured)
			if v.Latch != nil {
				v.Latch.Target = LockUnsecured
			}
		},
	}
}

func unlock() Plan {
	return Plan{
		Action: ActionUnlock,
		Name:   "unlock",
		OnSuccess: func(v *View) {
			v.Lock.set(LockUnsecured, LockUnsecured)
		},
	}
}

// describe fills the kind-independent part of a snapshot.
func describe(v *View) Snapshot {
	s := Snapshot{
		NukiID:         v.NukiID,
		Kind:           v.Kind,
		Name:           v.Name,
		Lock:           v.Lock,
		RingToOpen:     cloneBool(v.RingToOpen),
		ContinuousMode: cloneBool(v.ContinuousMode),
		Battery:        Battery{Low: v.BatteryLow},
		UpdatedAt:      v.UpdatedAt,
	}
	if v.Latch != nil {
		latch := *v.Latch
		s.Latch = &latch
	}
	if v.Door != nil {
		door := *v.Door
		s.Door = &door
	}
	return s
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
