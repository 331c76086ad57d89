package esphome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hjdhjd/ratgdo-core/internal/infrastructure/config"
)

// Bridge operation constants.
const (
	// minTopicParts is the minimum number of parts in a valid command topic.
	minTopicParts = 4

	// recordTimeout bounds history and telemetry writes per update.
	recordTimeout = 5 * time.Second

	// initialReconnectDelay is the first backoff step after a session drop.
	initialReconnectDelay = 5 * time.Second

	// maxReconnectDelay caps the reconnect backoff.
	maxReconnectDelay = 2 * time.Minute

	// backoffFactor grows the reconnect delay after each failure.
	backoffFactor = 1.5
)

// Bridge orchestrates bidirectional translation between the device's
// native protocol and MQTT. It handles:
//   - Receiving JSON commands via MQTT and translating to device frames
//   - Receiving device telemetry and publishing state updates to MQTT
//   - Session supervision: a fresh client per attempt, with backoff
//   - Health reporting and graceful shutdown
//
// The protocol client deliberately has no retry of its own; the bridge
// owns reconnection policy and discards the dead client each cycle.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg  config.DeviceConfig
	mqtt MQTTClient

	health    *HealthReporter
	events    EventRecorder     // Optional event history persistence
	telemetry TelemetryRecorder // Optional time-series recording

	// Current session. Replaced wholesale on reconnect.
	session   *Client
	sessionMu sync.RWMutex

	// Latest state per entity, for introspection consumers.
	states   map[string]StateMessage
	statesMu sync.RWMutex

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	// Statistics
	reconnects atomic.Uint64

	// Logger
	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// EventRecorder persists entity state transitions.
// Optional - if nil, the bridge operates without event history.
type EventRecorder interface {
	RecordEvent(ctx context.Context, entityID, entityType, state string, position *float64, source string) error
}

// TelemetryRecorder streams entity updates to a time-series store.
// Optional - if nil, the bridge operates without telemetry recording.
type TelemetryRecorder interface {
	WriteEntityState(entityID, entityType string, value any, timestamp time.Time) error
	WriteDoorState(entityID, state string, position float64, timestamp time.Time) error
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Device is the device connection configuration.
	Device config.DeviceConfig

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Version is the bridge software version for health messages.
	Version string

	// Logger is optional structured logger.
	Logger Logger

	// Events is optional event history persistence.
	Events EventRecorder

	// Telemetry is optional time-series recording.
	Telemetry TelemetryRecorder
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Device.Host == "" {
		return nil, fmt.Errorf("device host is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:       opts.Device,
		mqtt:      opts.MQTTClient,
		events:    opts.Events,    // May be nil (optional)
		telemetry: opts.Telemetry, // May be nil (optional)
		states:    make(map[string]StateMessage),
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		Version:   opts.Version,
		Publisher: opts.MQTTClient,
		Bridge:    b,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start begins bridge operation.
// This subscribes to the command topic, starts the session supervisor,
// the ping scheduler, and health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	if err := b.mqtt.Subscribe(CommandSubscribeTopic(), 1, b.handleCommandMessage); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}

	b.wg.Add(1)
	go b.superviseSession()

	b.wg.Add(1)
	go b.pingLoop()

	b.health.Start(ctx)

	b.logInfo("bridge started",
		"device", b.DeviceAddress(),
		"ping_interval", b.cfg.PingInterval)
	return nil
}

// Stop gracefully shuts the bridge down.
// Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()

		b.sessionMu.Lock()
		session := b.session
		b.session = nil
		b.sessionMu.Unlock()

		if session != nil {
			_ = session.Close() //nolint:errcheck // Best-effort during shutdown
		}

		b.wg.Wait()
		b.health.Stop()

		b.logInfo("bridge stopped")
	})
}

// superviseSession owns the reconnect policy: each attempt builds a
// fresh client, runs the session to completion, then backs off
// exponentially before the next attempt. Session keys never outlive
// the client that learned them.
func (b *Bridge) superviseSession() {
	defer b.wg.Done()

	delay := initialReconnectDelay
	first := true

	for {
		select {
		case <-b.done:
			return
		default:
		}

		sessionEnded, err := b.runSession()
		if err != nil {
			b.logError("session attempt failed", err)
		} else {
			if !first {
				b.reconnects.Add(1)
			}
			first = false
			delay = initialReconnectDelay

			select {
			case <-b.done:
				return
			case <-sessionEnded:
			}
		}

		select {
		case <-b.done:
			return
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * backoffFactor)
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runSession builds, wires, and connects one client instance.
//
// Returns:
//   - <-chan struct{}: Closed when the session ends (nil on error)
//   - error: If the connection could not be established
func (b *Bridge) runSession() (<-chan struct{}, error) {
	client := NewClient(ClientConfig{
		Host:     b.cfg.Host,
		Port:     b.cfg.Port,
		ClientID: b.cfg.ClientID,
		Password: b.cfg.Password,
	})
	client.SetLogger(b.getLogger())

	sessionEnded := make(chan struct{})

	client.SetOnConnect(b.handleDeviceConnect)
	client.SetOnEntities(b.handleEntities)
	client.SetOnState(b.handleStateUpdate)
	client.SetOnDisconnect(func(reason error) {
		if reason != nil {
			b.logWarn("device session lost", "reason", reason.Error())
		}
		b.clearStates()
		close(sessionEnded)
	})

	if err := client.Connect(b.ctx); err != nil {
		return nil, err
	}

	b.sessionMu.Lock()
	b.session = client
	b.sessionMu.Unlock()

	return sessionEnded, nil
}

// pingLoop keeps the session alive with periodic pings.
func (b *Bridge) pingLoop() {
	defer b.wg.Done()

	interval := time.Duration(b.cfg.PingInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			session := b.currentSession()
			if session == nil || !session.IsConnected() {
				continue
			}
			if err := session.SendPing(); err != nil {
				b.logWarn("ping failed", "error", err.Error())
			}
		}
	}
}

// handleDeviceConnect reacts to a completed handshake.
func (b *Bridge) handleDeviceConnect(info DeviceInfo) {
	b.logInfo("device connected",
		"name", info.Name,
		"model", info.Model,
		"project", info.ProjectName,
		"version", info.ProjectVersion)

	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish health after connect", err)
	}
}

// handleEntities publishes the discovery announcement after entity
// enumeration completes.
func (b *Bridge) handleEntities(entities []Entity) {
	session := b.currentSession()

	msg := DiscoveryMessage{
		Timestamp: time.Now().UTC(),
		Bridge:    "esphome",
		Entities:  make(map[string][]string),
	}
	if session != nil {
		msg.Entities = session.AvailableEntityIDs()
		if info, ok := session.DeviceInfo(); ok {
			msg.Device = info.Name
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal discovery message", err)
		return
	}

	if err := b.mqtt.Publish(DiscoveryTopic(), payload, 1, true); err != nil {
		b.logError("failed to publish discovery", err)
	}

	b.logInfo("entities discovered", "count", len(entities))
}

// handleStateUpdate publishes one translated telemetry event to MQTT
// and fans it out to the optional recorders.
func (b *Bridge) handleStateUpdate(update StateUpdate) {
	msg := NewStateMessage(update)

	b.statesMu.Lock()
	b.states[update.EntityID] = msg
	b.statesMu.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state message", err)
		return
	}

	if err := b.mqtt.Publish(StateTopic(update.EntityID), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
	}

	b.recordUpdate(update)
}

// recordUpdate persists a state update to history and telemetry.
func (b *Bridge) recordUpdate(update StateUpdate) {
	if update.State == "" {
		return
	}

	if b.events != nil {
		ctx, cancel := context.WithTimeout(b.ctx, recordTimeout)
		err := b.events.RecordEvent(ctx, update.EntityID, update.EntityType,
			update.State, update.Position, "device")
		cancel()
		if err != nil {
			b.logError("failed to record event", err)
		}
	}

	if b.telemetry != nil {
		now := time.Now()
		if update.EntityType == "cover" {
			position := -1.0
			if update.Position != nil {
				position = *update.Position
			}
			if err := b.telemetry.WriteDoorState(update.EntityID, update.State, position, now); err != nil {
				b.logError("failed to record door telemetry", err)
			}
		} else if update.Value != nil {
			if err := b.telemetry.WriteEntityState(update.EntityID, update.EntityType, update.Value, now); err != nil {
				b.logError("failed to record telemetry", err)
			}
		}
	}
}

// handleCommandMessage translates one MQTT command into a device frame.
// Malformed JSON drops the individual message; it never disturbs the
// session or later commands.
func (b *Bridge) handleCommandMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		b.logWarn("command on malformed topic", "topic", topic)
		return
	}
	entityID := parts[len(parts)-1]

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logWarn("dropping malformed command payload",
			"topic", topic, "error", err.Error())
		return
	}
	if cmd.EntityID == "" {
		cmd.EntityID = entityID
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	session := b.currentSession()
	if session == nil || !session.IsConnected() {
		b.publishAck(NewAckError(cmd, ErrCodeDeviceUnreachable, "device session is down"))
		return
	}

	if err := b.dispatchCommand(session, cmd); err != nil {
		b.publishAck(NewAckError(cmd, ackCodeForError(err), err.Error()))
		return
	}

	b.publishAck(NewAckMessage(cmd, AckAccepted))
}

// dispatchCommand routes a command to the encoder for its entity type.
func (b *Bridge) dispatchCommand(session *Client, cmd CommandMessage) error {
	entityType, _, found := strings.Cut(cmd.EntityID, "-")
	if !found {
		return fmt.Errorf("%w: entity id %q has no type prefix", ErrInvalidCommand, cmd.EntityID)
	}

	switch entityType {
	case "switch":
		return b.dispatchSwitch(session, cmd)
	case "button":
		if cmd.Command != "press" {
			return fmt.Errorf("%w: unsupported button command %q", ErrInvalidCommand, cmd.Command)
		}
		return session.SendButtonCommand(cmd.EntityID)
	case "cover":
		return b.dispatchCover(session, cmd)
	case "light":
		return b.dispatchLight(session, cmd)
	case "lock":
		return b.dispatchLock(session, cmd)
	default:
		return fmt.Errorf("%w: entity type %q accepts no commands", ErrInvalidCommand, entityType)
	}
}

func (b *Bridge) dispatchSwitch(session *Client, cmd CommandMessage) error {
	switch cmd.Command {
	case "on":
		return session.SendSwitchCommand(cmd.EntityID, true)
	case "off":
		return session.SendSwitchCommand(cmd.EntityID, false)
	default:
		return fmt.Errorf("%w: unsupported switch command %q", ErrInvalidCommand, cmd.Command)
	}
}

func (b *Bridge) dispatchCover(session *Client, cmd CommandMessage) error {
	var cover CoverCommand

	switch cmd.Command {
	case "open":
		v := uint64(CoverCommandOpen)
		cover.Command = &v
	case "close":
		v := uint64(CoverCommandClose)
		cover.Command = &v
	case "stop":
		v := uint64(CoverCommandStop)
		cover.Command = &v
	case "set_position":
		position, err := floatParameter(cmd.Parameters, "position")
		if err != nil {
			return err
		}
		cover.Position = &position
	default:
		return fmt.Errorf("%w: unsupported cover command %q", ErrInvalidCommand, cmd.Command)
	}

	return session.SendCoverCommand(cmd.EntityID, cover)
}

func (b *Bridge) dispatchLight(session *Client, cmd CommandMessage) error {
	var light LightCommand

	switch cmd.Command {
	case "on":
		v := true
		light.State = &v
	case "off":
		v := false
		light.State = &v
	case "set_brightness":
		brightness, err := floatParameter(cmd.Parameters, "brightness")
		if err != nil {
			return err
		}
		on := true
		light.State = &on
		light.Brightness = &brightness
	default:
		return fmt.Errorf("%w: unsupported light command %q", ErrInvalidCommand, cmd.Command)
	}

	return session.SendLightCommand(cmd.EntityID, light)
}

func (b *Bridge) dispatchLock(session *Client, cmd CommandMessage) error {
	code, _ := cmd.Parameters["code"].(string)

	switch cmd.Command {
	case "lock":
		return session.SendLockCommand(cmd.EntityID, LockCommandLock, code)
	case "unlock":
		return session.SendLockCommand(cmd.EntityID, LockCommandUnlock, code)
	default:
		return fmt.Errorf("%w: unsupported lock command %q", ErrInvalidCommand, cmd.Command)
	}
}

// floatParameter extracts a float32 parameter, accepting JSON numbers
// and numeric strings.
func floatParameter(params map[string]any, name string) (float32, error) {
	raw, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing parameter %q", ErrInvalidCommand, name)
	}

	switch v := raw.(type) {
	case float64:
		return float32(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: parameter %q: %v", ErrInvalidCommand, name, err)
		}
		return float32(f), nil
	default:
		return 0, fmt.Errorf("%w: parameter %q must be a number", ErrInvalidCommand, name)
	}
}

// ackCodeForError maps a command failure onto an ack error code.
func ackCodeForError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownEntity):
		return ErrCodeUnknownEntity
	case errors.Is(err, ErrInvalidCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrNotConnected):
		return ErrCodeDeviceUnreachable
	default:
		return ErrCodeBridgeError
	}
}

// publishAck publishes a command acknowledgment.
func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}

	if err := b.mqtt.Publish(AckTopic(ack.EntityID), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// clearStates drops the cached entity states when a session ends.
// Entity ids may not survive a firmware change across reconnects.
func (b *Bridge) clearStates() {
	b.statesMu.Lock()
	b.states = make(map[string]StateMessage)
	b.statesMu.Unlock()
}

// currentSession returns the active client, nil between sessions.
func (b *Bridge) currentSession() *Client {
	b.sessionMu.RLock()
	defer b.sessionMu.RUnlock()
	return b.session
}

// DeviceConnected reports whether the device session is established.
func (b *Bridge) DeviceConnected() bool {
	session := b.currentSession()
	return session != nil && session.IsConnected()
}

// DeviceAddress returns the configured device address.
func (b *Bridge) DeviceAddress() string {
	port := b.cfg.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", b.cfg.Host, port)
}

// DeviceInfo returns the connected device's description.
func (b *Bridge) DeviceInfo() (DeviceInfo, bool) {
	session := b.currentSession()
	if session == nil {
		return DeviceInfo{}, false
	}
	return session.DeviceInfo()
}

// SessionStats returns statistics for the current session.
func (b *Bridge) SessionStats() ClientStats {
	session := b.currentSession()
	if session == nil {
		return ClientStats{State: StateDisconnected}
	}
	return session.Stats()
}

// Reconnects returns the number of sessions re-established since start.
func (b *Bridge) Reconnects() uint64 {
	return b.reconnects.Load()
}

// EntityCount returns the number of entities in the current session.
func (b *Bridge) EntityCount() int {
	session := b.currentSession()
	if session == nil {
		return 0
	}
	return len(session.Entities())
}

// Entities returns the current session's catalogued entities.
func (b *Bridge) Entities() []Entity {
	session := b.currentSession()
	if session == nil {
		return nil
	}
	return session.Entities()
}

// States returns the latest state message per entity.
func (b *Bridge) States() []StateMessage {
	b.statesMu.RLock()
	defer b.statesMu.RUnlock()

	states := make([]StateMessage, 0, len(b.states))
	for _, msg := range b.states {
		states = append(states, msg)
	}
	return states
}

// HealthReporter returns the bridge's health reporter, for LWT wiring.
func (b *Bridge) HealthReporter() *HealthReporter {
	return b.health
}

// getLogger returns the current logger, may be nil.
func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// SetLogger sets the logger for this bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning message if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}
