package nuki

import (
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-nuki/internal/device"
	"github.com/nerrad567/gray-logic-nuki/internal/infrastructure/mqtt"
)

// Protocol is the protocol identifier used in MQTT topics and messages.
const Protocol = "nuki"

// Bridge HTTP API payloads.

// ListedDevice is one entry of the /list response.
type ListedDevice struct {
	NukiID          int           `json:"nukiId"`
	DeviceType      int           `json:"deviceType"`
	Name            string        `json:"name"`
	FirmwareVersion string        `json:"firmwareVersion,omitempty"`
	LastKnownState  *StatePayload `json:"lastKnownState,omitempty"`
}

// StatePayload is the status object shared by /list entries and push
// notifications. Push notifications also carry nukiId and deviceType.
type StatePayload struct {
	NukiID             *int   `json:"nukiId,omitempty"`
	DeviceType         *int   `json:"deviceType,omitempty"`
	Mode               *int   `json:"mode,omitempty"`
	State              int    `json:"state"`
	StateName          string `json:"stateName,omitempty"`
	BatteryCritical    bool   `json:"batteryCritical"`
	BatteryCharging    *bool  `json:"batteryCharging,omitempty"`
	BatteryChargeState *int   `json:"batteryChargeState,omitempty"`
	DoorsensorState    *int   `json:"doorsensorState,omitempty"`
	RingactionState    *bool  `json:"ringactionState,omitempty"`
	Timestamp          string `json:"timestamp,omitempty"`
}

// Raw converts the payload into a RawStatus for nukiID.
func (p StatePayload) Raw(nukiID int) device.RawStatus {
	return device.RawStatus{
		NukiID:             nukiID,
		State:              p.State,
		Mode:               p.Mode,
		DoorSensorState:    p.DoorsensorState,
		BatteryCritical:    p.BatteryCritical,
		BatteryCharging:    p.BatteryCharging,
		BatteryChargeState: p.BatteryChargeState,
		RingActionState:    p.RingactionState,
	}
}

// CallbackList is the /callback/list response.
type CallbackList struct {
	Callbacks []CallbackEntry `json:"callbacks"`
}

// CallbackEntry is one registered push callback.
type CallbackEntry struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

// ActionResult is the response of /lockAction, /callback/add and /reboot.
type ActionResult struct {
	Success         bool   `json:"success"`
	BatteryCritical bool   `json:"batteryCritical,omitempty"`
	Message         string `json:"message,omitempty"`
}

// MQTT message types.

// CommandMessage is sent to the bridge to operate one device.
// Topic: graylogic/command/nuki/{nuki_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`

	// Command is one of "lock", "unlock", "open", "unlatch", "ring_to_open",
	// "continuous_mode".
	Command string `json:"command"`

	// Parameters contains command-specific values, e.g. {"on": true}.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	Source string `json:"source,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the bridge executed the action.
	AckAccepted AckStatus = "accepted"

	// AckIgnored indicates the command needed no bridge request.
	AckIgnored AckStatus = "ignored"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage acknowledges a command once its outcome is known.
// Topic: graylogic/ack/nuki/{nuki_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	NukiID    int       `json:"nuki_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Action    int       `json:"action,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Attempts int    `json:"attempts,omitempty"`
}

// Error codes for command failures.
const (
	ErrCodeDeviceUnknown     = "DEVICE_UNKNOWN"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeBridgeUnreachable = "BRIDGE_UNREACHABLE"
	ErrCodeRejected          = "REJECTED"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
)

// StateMessage carries the snapshot of one device.
// Topic: graylogic/state/nuki/{nuki_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	NukiID    int             `json:"nuki_id"`
	Timestamp time.Time       `json:"timestamp"`
	State     device.Snapshot `json:"state"`
	Protocol  string          `json:"protocol"`
}

// EventMessage carries a momentary device event.
// Topic: graylogic/event/nuki/{nuki_id}
type EventMessage struct {
	NukiID    int              `json:"nuki_id"`
	Timestamp time.Time        `json:"timestamp"`
	Event     device.EventType `json:"event"`
	Protocol  string           `json:"protocol"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthOffline   HealthStatus = "offline"
	HealthStarting  HealthStatus = "starting"
	HealthStopping  HealthStatus = "stopping"
)

// HealthMessage reports operational status.
// Topic: graylogic/health/nuki
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Devices       int          `json:"devices_managed"`
	Dispatcher    *Stats       `json:"dispatcher,omitempty"`
	Integration   *BridgeInfo  `json:"integration,omitempty"`
	Reason        string       `json:"reason,omitempty"`
}

// RequestMessage asks the bridge for an operation.
// Topic: graylogic/request/nuki/{request_id}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	// Action is one of "refresh", "reboot", "list", "read_state".
	Action string `json:"action"`

	NukiID int `json:"nuki_id,omitempty"`
}

// ResponseMessage answers a RequestMessage.
// Topic: graylogic/response/nuki/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *AckError      `json:"error,omitempty"`
}

// NewStateMessage creates a state message for a snapshot.
func NewStateMessage(snap device.Snapshot) StateMessage {
	return StateMessage{
		NukiID:    snap.NukiID,
		Timestamp: time.Now().UTC(),
		State:     snap,
		Protocol:  Protocol,
	}
}

// NewAckMessage creates an acknowledgment from a command result.
func NewAckMessage(cmd CommandMessage, nukiID int, res CommandResult) AckMessage {
	ack := AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		NukiID:    nukiID,
		Protocol:  Protocol,
		Action:    int(res.Action),
		Reason:    res.Reason,
	}
	switch res.Status {
	case CommandSucceeded:
		ack.Status = AckAccepted
	case CommandIgnored:
		ack.Status = AckIgnored
	default:
		ack.Status = AckFailed
		ack.Error = &AckError{Code: errorCode(res.Err), Message: errorMessage(res.Err), Attempts: res.Attempts}
	}
	return ack
}

// NewAckError creates a failed acknowledgment for a command that never
// reached the dispatcher.
func NewAckError(cmd CommandMessage, nukiID int, code, message string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		NukiID:    nukiID,
		Status:    AckFailed,
		Protocol:  Protocol,
		Error:     &AckError{Code: code, Message: message},
	}
}

// Topic helpers.

var topics = mqtt.Topics{}

// StateTopic returns the retained state topic of one device.
func StateTopic(nukiID int) string {
	return topics.BridgeState(Protocol, strconv.Itoa(nukiID))
}

// CommandTopic returns the command topic of one device.
func CommandTopic(nukiID int) string {
	return topics.BridgeCommand(Protocol, strconv.Itoa(nukiID))
}

// AckTopic returns the acknowledgment topic of one device.
func AckTopic(nukiID int) string {
	return topics.BridgeAck(Protocol, strconv.Itoa(nukiID))
}

// EventTopic returns the event topic of one device.
func EventTopic(nukiID int) string {
	return topics.BridgeEvent(Protocol, strconv.Itoa(nukiID))
}

// HealthTopic returns the bridge health topic.
func HealthTopic() string {
	return topics.BridgeHealth(Protocol)
}

// ResponseTopic returns the response topic for a request.
func ResponseTopic(requestID string) string {
	return topics.BridgeResponse(Protocol, requestID)
}

// CommandSubscribeTopic returns the wildcard for all device commands.
func CommandSubscribeTopic() string {
	return topics.BridgeCommand(Protocol, "+")
}

// RequestSubscribeTopic returns the wildcard for all requests.
func RequestSubscribeTopic() string {
	return topics.BridgeRequest(Protocol, "+")
}
