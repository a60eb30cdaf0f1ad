package mqtt

import "fmt"

// TopicPrefix is the root of every topic this service publishes or
// subscribes to. Bridge topics use the flat scheme
// graylogic/{category}/{protocol}/{id}.
const TopicPrefix = "graylogic"

// Topic categories.
const (
	CategoryState    = "state"
	CategoryCommand  = "command"
	CategoryAck      = "ack"
	CategoryEvent    = "event"
	CategoryRequest  = "request"
	CategoryResponse = "response"
	CategoryHealth   = "health"
)

// Topics provides builders for bridge MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.BridgeState("nuki", "42")
//	// Returns: "graylogic/state/nuki/42"
type Topics struct{}

func (Topics) bridge(category, protocol, id string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefix, category, protocol, id)
}

// BridgeState returns the topic for device state updates.
//
// Example: graylogic/state/nuki/42
func (t Topics) BridgeState(protocol, id string) string {
	return t.bridge(CategoryState, protocol, id)
}

// BridgeCommand returns the topic for commands to a device.
//
// Example: graylogic/command/nuki/42
func (t Topics) BridgeCommand(protocol, id string) string {
	return t.bridge(CategoryCommand, protocol, id)
}

// BridgeAck returns the topic for command acknowledgements.
//
// Example: graylogic/ack/nuki/42
func (t Topics) BridgeAck(protocol, id string) string {
	return t.bridge(CategoryAck, protocol, id)
}

// BridgeEvent returns the topic for momentary device events such as a
// doorbell ring. Events are never retained.
//
// Example: graylogic/event/nuki/42
func (t Topics) BridgeEvent(protocol, id string) string {
	return t.bridge(CategoryEvent, protocol, id)
}

// BridgeRequest returns the topic for requests to a bridge.
//
// Example: graylogic/request/nuki/req-abc123
func (t Topics) BridgeRequest(protocol, requestID string) string {
	return t.bridge(CategoryRequest, protocol, requestID)
}

// BridgeResponse returns the topic for request responses.
//
// Example: graylogic/response/nuki/req-abc123
func (t Topics) BridgeResponse(protocol, requestID string) string {
	return t.bridge(CategoryResponse, protocol, requestID)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: graylogic/health/nuki
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefix, CategoryHealth, protocol)
}

// AllBridge returns a wildcard matching one category for every protocol
// and id, e.g. graylogic/state/+/+.
func (Topics) AllBridge(category string) string {
	return fmt.Sprintf("%s/%s/+/+", TopicPrefix, category)
}

// AllTopics returns a wildcard matching everything under the prefix.
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
