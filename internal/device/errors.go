package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // unknown or torn-down device
//	}
var (
	// ErrDeviceNotFound is returned when a Nuki ID has no view, including
	// after the view has been torn down.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when adding a second view for a Nuki ID.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrUnsupportedKind is returned for a kind without a Behavior.
	ErrUnsupportedKind = errors.New("device: unsupported kind")

	// ErrInvalidTarget is returned when a target state is not secured or unsecured.
	ErrInvalidTarget = errors.New("device: invalid target state")
)
