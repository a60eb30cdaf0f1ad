package device

import "fmt"

// Behavior is the kind-specific half of the state model. Implementations are
// stateless; all state lives in the View passed in.
type Behavior interface {
	// Kind returns the device kind handled by this behavior.
	Kind() Kind

	// Reconcile applies a raw status report to the view in place and
	// returns any momentary events it triggered. Applying the same report
	// twice leaves the view as applying it once.
	Reconcile(v *View, raw RawStatus) []Event

	// Describe returns the externally visible snapshot of the view.
	Describe(v *View) Snapshot

	// Translate turns a user intent into a Plan. It never mutates the view;
	// the caller applies Plan.Before and Plan.OnSuccess.
	Translate(v *View, cmd Command) Plan
}

// BehaviorFor returns the behavior for a kind.
func BehaviorFor(k Kind) (Behavior, error) {
	switch k {
	case KindSmartLock:
		return lockBehavior{}, nil
	case KindOpener:
		return openerBehavior{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, k)
	}
}

// Action is a bridge lockAction code. Codes are kind-specific: the same
// number means different things for a smart lock and an opener.
type Action int

// Smart lock actions.
const (
	ActionUnlock  Action = 1
	ActionLock    Action = 2
	ActionUnlatch Action = 3
)

// Opener actions.
const (
	ActionActivateRingToOpen     Action = 1
	ActionDeactivateRingToOpen   Action = 2
	ActionOpen                   Action = 3
	ActionActivateContinuousMode Action = 4
	ActionDeactivateContinuous   Action = 5
)

// CommandType identifies the user intent carried by a Command.
type CommandType string

// Command types.
const (
	CommandLockTarget     CommandType = "lock_target"
	CommandLatchTarget    CommandType = "latch_target"
	CommandRingToOpen     CommandType = "ring_to_open"
	CommandContinuousMode CommandType = "continuous_mode"
)

// Command is a user intent against one device.
type Command struct {
	Type   CommandType
	Target LockState
	On     bool
}

// TargetLock requests a new lock target state.
func TargetLock(target LockState) Command {
	return Command{Type: CommandLockTarget, Target: target}
}

// TargetLatch requests a new latch target state.
func TargetLatch(target LockState) Command {
	return Command{Type: CommandLatchTarget, Target: target}
}

// SetRingToOpen switches an opener's ring-to-open mode.
func SetRingToOpen(on bool) Command {
	return Command{Type: CommandRingToOpen, On: on}
}

// SetContinuousMode switches an opener's continuous mode.
func SetContinuousMode(on bool) Command {
	return Command{Type: CommandContinuousMode, On: on}
}

func (c Command) String() string {
	switch c.Type {
	case CommandLockTarget, CommandLatchTarget:
		return fmt.Sprintf("%s=%s", c.Type, c.Target)
	default:
		return fmt.Sprintf("%s=%t", c.Type, c.On)
	}
}

// Plan is the translation of a Command.
//
// Before runs under the device lock when nothing is sent; the safety no-op
// uses it to force the latch display back. Targets only move in OnSuccess,
// which runs under the device lock after the bridge explicitly reports
// success, so a failed command leaves the view untouched. Action is zero when no request must be sent; Reason then
// says why.
type Plan struct {
	Action    Action
	Name      string
	Before    func(*View)
	OnSuccess func(*View)
	Reason    string
}

// Sends reports whether the plan issues a bridge request.
func (p Plan) Sends() bool {
	return p.Action != 0
}

func noop(reason string) Plan {
	return Plan{Reason: reason}
}
