package nuki

import (
	"errors"

	"github.com/nerrad567/gray-logic-nuki/internal/device"
)

// Domain errors for the Nuki bridge package.
var (
	// ErrNotConfigured is returned when the bridge host or token is missing.
	// It is a configuration error: nothing is sent and nothing is retried.
	ErrNotConfigured = errors.New("nuki: bridge endpoint not configured")

	// ErrTransport is returned when the HTTP round trip fails or times out.
	ErrTransport = errors.New("nuki: transport error")

	// ErrUnexpectedStatus is returned for any HTTP status other than 200.
	ErrUnexpectedStatus = errors.New("nuki: unexpected HTTP status")

	// ErrEmptyBody is returned when a 200 response carries no usable body.
	ErrEmptyBody = errors.New("nuki: empty response body")

	// ErrInvalidBody is returned when a 200 response is not JSON.
	ErrInvalidBody = errors.New("nuki: response body is not JSON")

	// ErrRetriesExhausted is returned when a request failed on every attempt.
	// It does not distinguish an unreachable bridge from a rejected call.
	ErrRetriesExhausted = errors.New("nuki: retries exhausted")

	// ErrDispatcherStopped is returned for requests pending at shutdown.
	ErrDispatcherStopped = errors.New("nuki: dispatcher stopped")

	// ErrMissingDeviceID is returned when a push notification has no nukiId.
	ErrMissingDeviceID = errors.New("nuki: missing device id")

	// ErrCommandRejected is returned when the bridge answered but reported
	// success=false for a lock action.
	ErrCommandRejected = errors.New("nuki: command rejected by bridge")

	// ErrRebootInProgress is returned when a reboot was requested less than
	// a reset period ago.
	ErrRebootInProgress = errors.New("nuki: bridge reboot in progress")

	// ErrInvalidCommand is returned for unknown command names or
	// malformed command parameters.
	ErrInvalidCommand = errors.New("nuki: invalid command")
)

// errorCode maps an error onto an MQTT acknowledgment code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return ErrCodeNotConfigured
	case errors.Is(err, ErrCommandRejected):
		return ErrCodeRejected
	case errors.Is(err, device.ErrDeviceNotFound):
		return ErrCodeDeviceUnknown
	case errors.Is(err, device.ErrInvalidTarget):
		return ErrCodeInvalidParameters
	case errors.Is(err, ErrInvalidCommand):
		return ErrCodeInvalidCommand
	default:
		return ErrCodeBridgeUnreachable
	}
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
