package esphome

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hjdhjd/ratgdo-core/internal/infrastructure/mqtt"
)

// MQTT message types for communication between the core and its
// consumers. Commands arrive as JSON, telemetry and health leave as
// JSON; the binary device protocol never crosses the broker.

// CommandMessage is received to execute an entity command.
// Topic: ratgdo/command/esphome/{entity_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with
	// acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// EntityID is the stable entity identifier ("cover-door").
	EntityID string `json:"entity_id"`

	// Command is the command name. Supported values depend on the
	// entity type:
	//   cover:  "open", "close", "stop", "set_position"
	//   switch: "on", "off"
	//   light:  "on", "off", "set_brightness"
	//   lock:   "lock", "unlock"
	//   button: "press"
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"position": 0.5} for set_position
	//   {"brightness": 0.8} for set_brightness
	//   {"code": "1234"} for lock/unlock
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	Source string `json:"source,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was received and sent to the device.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage acknowledges a command.
// Topic: ratgdo/ack/esphome/{entity_id}
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// EntityID is the stable entity identifier.
	EntityID string `json:"entity_id"`

	// Status indicates the acknowledgment status.
	Status AckStatus `json:"status"`

	// Protocol is the protocol identifier ("esphome").
	Protocol string `json:"protocol"`

	// Error contains details if status is "failed".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "UNKNOWN_ENTITY", "INVALID_COMMAND").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeUnknownEntity     = "UNKNOWN_ENTITY"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage reports an entity state change.
// Topic: ratgdo/state/esphome/{entity_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	// EntityID is the stable entity identifier.
	EntityID string `json:"entity_id"`

	// EntityType is the entity kind ("cover", "light", ...).
	EntityType string `json:"entity_type"`

	// Timestamp is when the state was observed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// State is the human-readable state label.
	State string `json:"state"`

	// Value is the raw decoded telemetry value, if any.
	Value any `json:"value,omitempty"`

	// Position is the cover position, if the update carried one.
	Position *float64 `json:"position,omitempty"`

	// Protocol is the protocol identifier ("esphome").
	Protocol string `json:"protocol"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is operating with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the bridge is not connected (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports bridge operational status.
// Topic: ratgdo/health/esphome
// QoS: 1, Retained: Yes
type HealthMessage struct {
	// Bridge is the bridge identifier ("esphome").
	Bridge string `json:"bridge"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status HealthStatus `json:"status"`

	// Version is the bridge software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Connection contains device connection details.
	Connection *ConnectionStatus `json:"connection,omitempty"`

	// Statistics contains session metrics.
	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// EntityCount is the number of entities in the current session.
	EntityCount int `json:"entity_count"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// ConnectionStatus describes the device connection state.
type ConnectionStatus struct {
	// Status is the connection status ("connected", "disconnected").
	Status string `json:"status"`

	// Address is the device address ("garage.local:6053").
	Address string `json:"address"`

	// SessionState is the handshake state name.
	SessionState string `json:"session_state,omitempty"`
}

// BridgeStatistics contains session metrics.
type BridgeStatistics struct {
	// FramesReceived is the total number of frames decoded.
	FramesReceived uint64 `json:"frames_received"`

	// FramesSent is the total number of frames written.
	FramesSent uint64 `json:"frames_sent"`

	// FramingErrors is the number of stream resync events.
	FramingErrors uint64 `json:"framing_errors"`

	// Errors is the total number of errors encountered.
	Errors uint64 `json:"errors"`

	// Reconnects is the number of sessions re-established.
	Reconnects uint64 `json:"reconnects"`
}

// DiscoveryMessage announces the entities found during enumeration.
// Topic: ratgdo/discovery/esphome
// QoS: 1, Retained: Yes
type DiscoveryMessage struct {
	// Timestamp is when enumeration completed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Bridge is the bridge identifier.
	Bridge string `json:"bridge"`

	// Device names the connected device.
	Device string `json:"device,omitempty"`

	// Entities groups entity ids by entity type.
	Entities map[string][]string `json:"entities"`
}

// UnmarshalJSON unmarshals a CommandMessage, tolerating a missing or
// malformed timestamp (it defaults to zero).
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// NewAckMessage creates an acknowledgment for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		EntityID:  cmd.EntityID,
		Status:    status,
		Protocol:  "esphome",
	}
}

// NewAckError creates a failed acknowledgment with error details.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		EntityID:  cmd.EntityID,
		Status:    AckFailed,
		Protocol:  "esphome",
		Error: &AckError{
			Code:    code,
			Message: message,
		},
	}
}

// NewStateMessage creates a state message for an entity update.
func NewStateMessage(update StateUpdate) StateMessage {
	return StateMessage{
		EntityID:   update.EntityID,
		EntityType: update.EntityType,
		Timestamp:  time.Now().UTC(),
		State:      update.State,
		Value:      update.Value,
		Position:   update.Position,
		Protocol:   "esphome",
	}
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(version string, status HealthStatus, stats ClientStats, reconnects uint64, entityCount int, startTime time.Time) HealthMessage {
	msg := HealthMessage{
		Bridge:        "esphome",
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		EntityCount:   entityCount,
	}

	connStatus := "disconnected"
	if stats.Connected {
		connStatus = "connected"
	}
	msg.Connection = &ConnectionStatus{
		Status:       connStatus,
		SessionState: stats.State.String(),
	}

	msg.Statistics = &BridgeStatistics{
		FramesReceived: stats.FramesRx,
		FramesSent:     stats.FramesTx,
		FramingErrors:  stats.FramingErrors,
		Errors:         stats.ErrorsTotal,
		Reconnects:     reconnects,
	}

	return msg
}

// NewLWTMessage creates a Last Will and Testament message for MQTT.
// The broker publishes it if the bridge disconnects unexpectedly.
func NewLWTMessage() HealthMessage {
	return HealthMessage{
		Bridge:    "esphome",
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// Topic helpers
//
// All topics come from the shared mqtt builders so the bridge, the API
// server, and the broker configuration agree on naming.

// BridgeProtocol is the protocol segment this bridge uses in its topics.
const BridgeProtocol = "esphome"

// CommandTopic returns the MQTT topic for commands to an entity.
// Example: ratgdo/command/esphome/cover-door
func CommandTopic(entityID string) string {
	return mqtt.Topics{}.BridgeCommand(BridgeProtocol, entityID)
}

// CommandSubscribeTopic returns the subscription pattern for all commands.
// Example: ratgdo/command/esphome/+
func CommandSubscribeTopic() string {
	return mqtt.Topics{}.BridgeCommandWildcard(BridgeProtocol)
}

// AckTopic returns the MQTT topic for command acknowledgments.
// Example: ratgdo/ack/esphome/cover-door
func AckTopic(entityID string) string {
	return mqtt.Topics{}.BridgeAck(BridgeProtocol, entityID)
}

// StateTopic returns the MQTT topic for entity state updates.
// Example: ratgdo/state/esphome/cover-door
func StateTopic(entityID string) string {
	return mqtt.Topics{}.BridgeState(BridgeProtocol, entityID)
}

// HealthTopic returns the MQTT topic for bridge health status.
// Example: ratgdo/health/esphome
func HealthTopic() string {
	return mqtt.Topics{}.BridgeHealth(BridgeProtocol)
}

// DiscoveryTopic returns the MQTT topic for entity discovery.
// Example: ratgdo/discovery/esphome
func DiscoveryTopic() string {
	return mqtt.Topics{}.BridgeDiscovery(BridgeProtocol)
}
