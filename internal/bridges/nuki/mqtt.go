package nuki

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-nuki/internal/device"
)

// topicParts is the number of segments in graylogic/{category}/nuki/{id}.
const topicParts = 4

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// MQTTBinding publishes device state and events to MQTT and executes the
// commands and requests it receives.
//
// State is published retained on every committed change; a removed device
// has its retained state cleared. Events are published once, not retained.
type MQTTBinding struct {
	client MQTTClient
	bridge *Bridge
	qos    byte
	logger Logger
}

// NewMQTTBinding creates the binding and registers it as a store observer.
func NewMQTTBinding(client MQTTClient, bridge *Bridge, qos byte, logger Logger) *MQTTBinding {
	if logger == nil {
		logger = noopLogger{}
	}
	m := &MQTTBinding{
		client: client,
		bridge: bridge,
		qos:    qos,
		logger: logger,
	}
	bridge.Store().OnChange(m.HandleChange)
	return m
}

// Start subscribes to the command and request topics and publishes the
// current state of every device.
func (m *MQTTBinding) Start() error {
	if err := m.client.Subscribe(CommandSubscribeTopic(), m.qos, m.handleCommand); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	if err := m.client.Subscribe(RequestSubscribeTopic(), m.qos, m.handleRequest); err != nil {
		return fmt.Errorf("subscribing to requests: %w", err)
	}

	for _, snap := range m.bridge.Store().List() {
		m.publishState(snap)
	}
	return nil
}

// Stop unsubscribes from the command and request topics. State changes are
// still published until the client is closed.
func (m *MQTTBinding) Stop() {
	for _, topic := range []string{CommandSubscribeTopic(), RequestSubscribeTopic()} {
		if err := m.client.Unsubscribe(topic); err != nil {
			m.logger.Warn("failed to unsubscribe", "topic", topic, "error", err)
		}
	}
}

// HandleChange publishes one store change.
func (m *MQTTBinding) HandleChange(c device.Change) {
	if c.Removed {
		// An empty retained payload clears the topic.
		if err := m.client.Publish(StateTopic(c.Snapshot.NukiID), nil, m.qos, true); err != nil {
			m.logger.Warn("clearing device state failed", "nuki_id", c.Snapshot.NukiID, "error", err)
		}
		return
	}

	m.publishState(c.Snapshot)
	for _, ev := range c.Events {
		m.publish(EventTopic(ev.NukiID), EventMessage{
			NukiID:    ev.NukiID,
			Timestamp: ev.At.UTC(),
			Event:     ev.Type,
			Protocol:  Protocol,
		}, false)
	}
}

func (m *MQTTBinding) publishState(snap device.Snapshot) {
	m.publish(StateTopic(snap.NukiID), NewStateMessage(snap), true)
}

func (m *MQTTBinding) publish(topic string, msg any, retained bool) {
	payload, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error("failed to marshal message", "topic", topic, "error", err)
		return
	}
	if err := m.client.Publish(topic, payload, m.qos, retained); err != nil {
		m.logger.Warn("publish failed", "topic", topic, "error", err)
	}
}

// handleCommand processes graylogic/command/nuki/{nuki_id}.
func (m *MQTTBinding) handleCommand(topic string, payload []byte) error {
	nukiID, err := topicID(topic)
	if err != nil {
		return err
	}

	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("parsing command: %w", err)
	}

	m.logger.Info("received command", "command_id", msg.ID, "nuki_id", nukiID, "command", msg.Command, "source", msg.Source)

	cmd, err := ParseCommand(msg.Command, msg.Parameters)
	if err != nil {
		m.publish(AckTopic(nukiID), NewAckError(msg, nukiID, errorCode(err), err.Error()), false)
		return nil
	}

	err = m.bridge.Execute(nukiID, cmd, func(res CommandResult) {
		m.publish(AckTopic(nukiID), NewAckMessage(msg, nukiID, res), false)
	})
	if err != nil {
		m.publish(AckTopic(nukiID), NewAckError(msg, nukiID, errorCode(err), err.Error()), false)
	}
	return nil
}

// handleRequest processes graylogic/request/nuki/{request_id}.
func (m *MQTTBinding) handleRequest(_ string, payload []byte) error {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("parsing request: %w", err)
	}

	m.logger.Info("received request", "request_id", req.RequestID, "action", req.Action)

	resp := ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
	}

	switch req.Action {
	case "refresh":
		resp.Data = map[string]any{"queued": m.bridge.TriggerRefresh()}
	case "reboot":
		if err := m.bridge.Reboot(); err != nil {
			resp = failedResponse(req, ErrCodeRejected, err)
		}
	case "list":
		resp.Data = map[string]any{"devices": m.bridge.Store().List()}
	case "read_state":
		snap, err := m.bridge.Store().Get(req.NukiID)
		if err != nil {
			resp = failedResponse(req, errorCode(err), err)
			break
		}
		resp.Data = map[string]any{"state": snap}
	default:
		resp = failedResponse(req, ErrCodeInvalidCommand, fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, req.Action))
	}

	m.publish(ResponseTopic(req.RequestID), resp, false)
	return nil
}

func failedResponse(req RequestMessage, code string, err error) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error:     &AckError{Code: code, Message: err.Error()},
	}
}

// topicID extracts the Nuki ID from graylogic/{category}/nuki/{id}.
func topicID(topic string) (int, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != topicParts || parts[2] != Protocol {
		return 0, fmt.Errorf("invalid topic format: %s", topic)
	}
	id, err := strconv.Atoi(parts[3])
	if err != nil || id <= 0 {
		return 0, errors.New("invalid nuki id in topic: " + topic)
	}
	return id, nil
}
