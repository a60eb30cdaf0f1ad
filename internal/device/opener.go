package device

import "time"

// Opener raw state codes.
const (
	openerStateOnline     = 1
	openerStateRingToOpen = 3
	openerStateOpen       = 5
	openerStateOpening    = 7
)

const (
	openerModeContinuous  = 3
	defaultOpenerLockName = "Opener"
)

// openerBehavior implements the opener kind.
//
// States 1 and 3 both display as secured. The ring-to-open switch is only
// re-evaluated on those two states so a transitional 5 or 7 does not flip it.
type openerBehavior struct{}

func (openerBehavior) Kind() Kind { return KindOpener }

func (openerBehavior) Reconcile(v *View, raw RawStatus) []Event {
	var events []Event

	switch raw.State {
	case openerStateOnline, openerStateRingToOpen:
		if !v.Settings.LeaveOpen {
			v.Lock.set(LockSecured, LockSecured)
		}
	case openerStateOpen:
		v.Lock.set(LockUnsecured, LockUnsecured)
	case openerStateOpening:
		// Commanded open; the opener cannot confirm it physically is.
		v.Lock.Target = LockUnsecured
	}

	if v.Settings.DoorbellEnabled && raw.RingActionState != nil && *raw.RingActionState {
		events = append(events, Event{Type: EventDoorbellRing, NukiID: v.NukiID, At: time.Now().UTC()})
	}

	if v.ContinuousMode != nil {
		*v.ContinuousMode = raw.Mode != nil && *raw.Mode == openerModeContinuous
	}

	if v.RingToOpen != nil && (raw.State == openerStateOnline || raw.State == openerStateRingToOpen) {
		*v.RingToOpen = raw.State == openerStateRingToOpen
	}

	v.BatteryLow = raw.BatteryCritical

	return events
}

func (openerBehavior) Describe(v *View) Snapshot {
	s := describe(v)
	s.LockName = nameOr(v.Settings.LockName, defaultOpenerLockName)
	return s
}

func (openerBehavior) Translate(v *View, cmd Command) Plan {
	switch cmd.Type {
	case CommandLockTarget:
		if cmd.Target != LockUnsecured {
			// The opener has no secure action; accepted and ignored.
			return noop("opener cannot be secured")
		}
		return Plan{
			Action: ActionOpen,
			Name:   "open",
			OnSuccess: func(v *View) {
				v.Lock.set(LockUnsecured, LockUnsecured)
			},
		}

	case CommandRingToOpen:
		if v.RingToOpen == nil {
			return noop("ring to open not enabled")
		}
		if cmd.On {
			return Plan{Action: ActionActivateRingToOpen, Name: "ring to open on"}
		}
		return Plan{Action: ActionDeactivateRingToOpen, Name: "ring to open off"}

	case CommandContinuousMode:
		if v.ContinuousMode == nil {
			return noop("continuous mode not enabled")
		}
		if cmd.On {
			return Plan{Action: ActionActivateContinuousMode, Name: "continuous mode on"}
		}
		return Plan{Action: ActionDeactivateContinuous, Name: "continuous mode off"}

	default:
		return noop("command not supported by opener")
	}
}
