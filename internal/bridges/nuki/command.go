package nuki

import (
	"fmt"

	"github.com/nerrad567/gray-logic-nuki/internal/device"
)

// Command names accepted over MQTT.
const (
	CommandLock           = "lock"
	CommandUnlock         = "unlock"
	CommandOpen           = "open"
	CommandUnlatch        = "unlatch"
	CommandSetTarget      = "set_target"
	CommandRingToOpen     = "ring_to_open"
	CommandContinuousMode = "continuous_mode"
)

// ParseCommand converts a named command and its parameters into a device
// command.
//
//	lock / unlock / open      lock target secured / unsecured / unsecured
//	unlatch                   latch target unsecured
//	set_target                {"target": "secured"|"unsecured"}
//	ring_to_open              {"on": bool}
//	continuous_mode           {"on": bool}
func ParseCommand(name string, params map[string]any) (device.Command, error) {
	switch name {
	case CommandLock:
		return device.TargetLock(device.LockSecured), nil
	case CommandUnlock, CommandOpen:
		return device.TargetLock(device.LockUnsecured), nil
	case CommandUnlatch:
		return device.TargetLatch(device.LockUnsecured), nil
	case CommandSetTarget:
		s, ok := params["target"].(string)
		if !ok {
			return device.Command{}, fmt.Errorf("%w: %s requires a string target", ErrInvalidCommand, name)
		}
		target, err := device.ParseTarget(s)
		if err != nil {
			return device.Command{}, err
		}
		return device.TargetLock(target), nil
	case CommandRingToOpen, CommandContinuousMode:
		on, ok := params["on"].(bool)
		if !ok {
			return device.Command{}, fmt.Errorf("%w: %s requires a boolean on", ErrInvalidCommand, name)
		}
		if name == CommandRingToOpen {
			return device.SetRingToOpen(on), nil
		}
		return device.SetContinuousMode(on), nil
	default:
		return device.Command{}, fmt.Errorf("%w: %q", ErrInvalidCommand, name)
	}
}
