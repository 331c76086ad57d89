package esphome

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Default timeouts and intervals for device communication.
const (
	// defaultPort is the device's native API port.
	defaultPort = 6053

	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultReadTimeout is the timeout for individual read operations.
	defaultReadTimeout = 90 * time.Second

	// defaultWriteTimeout is the timeout for write operations.
	defaultWriteTimeout = 5 * time.Second

	// readBufferSize is the size of the socket read buffer.
	readBufferSize = 4096

	// eventQueueSize is the buffer size for the event dispatch queue.
	eventQueueSize = 100
)

// ConnectionState tracks the session handshake progress.
type ConnectionState int32

// Session states, in handshake order.
const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateAwaitingHelloResponse
	StateAwaitingConnectResponse
	StateEnumeratingEntities
	StateSubscribed
)

// String returns the state name for logging.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingHelloResponse:
		return "awaiting_hello_response"
	case StateAwaitingConnectResponse:
		return "awaiting_connect_response"
	case StateEnumeratingEntities:
		return "enumerating_entities"
	case StateSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// ClientConfig holds device connection configuration.
type ClientConfig struct {
	// Host is the device hostname or IP address.
	Host string

	// Port is the device's native API port. Default: 6053.
	Port int

	// ClientID identifies this client in the hello handshake.
	ClientID string

	// Password authenticates the session. Empty is valid for
	// unprotected devices.
	Password string

	// ConnectTimeout is the maximum time to wait for connection.
	// Default: 10 seconds.
	ConnectTimeout time.Duration

	// ReadTimeout is the timeout for read operations. The device pings
	// periodically, so a healthy session never approaches it.
	// Default: 90 seconds.
	ReadTimeout time.Duration
}

// ClientStats holds operational statistics for one session.
type ClientStats struct {
	FramesRx      uint64
	FramesTx      uint64
	FramingErrors uint64 // Resync events on the receive stream
	EventsDropped uint64 // Events dropped due to full dispatch queue
	ErrorsTotal   uint64
	LastActivity  time.Time
	State         ConnectionState
	Connected     bool
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Events delivered to collaborators. All callbacks run on a single
// dispatch goroutine, preserving the order updates arrived in.
type events struct {
	onConnect    func(DeviceInfo)
	onDisconnect func(error)
	onEntities   func([]Entity)
	onState      func(StateUpdate)
	onHeartbeat  func()
	onTime       func(uint32)
	onMessage    func(msgType uint64, payload []byte)
}

// Client is a single-session connection to the device's native API.
//
// A Client owns exactly one TCP connection, one receive buffer, and one
// entity catalog. It offers no automatic reconnection: when the session
// drops, the owner discards this instance and connects a fresh one.
// Session keys and device info die with the instance.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Event callbacks are invoked sequentially on a dedicated goroutine.
type Client struct {
	cfg  ClientConfig
	conn net.Conn

	// Connection state
	connMu    sync.RWMutex
	connected bool
	state     atomic.Int32

	// Session-scoped data
	catalog    *Catalog
	deviceInfo DeviceInfo
	hasInfo    bool
	infoMu     sync.RWMutex

	// Event callbacks
	events     events
	callbackMu sync.RWMutex

	// Event dispatch queue (bounded, drop on overflow)
	eventQueue  chan func()
	dispatching atomic.Bool

	// Shutdown coordination (closeOnce prevents double-close panics)
	done *closeOnce
	wg   sync.WaitGroup

	// disconnectOnce guards teardown so the disconnect event fires
	// exactly once per session.
	disconnectOnce sync.Once

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex

	// Statistics (atomic for performance)
	framesRx      atomic.Uint64
	framesTx      atomic.Uint64
	framingErrors atomic.Uint64
	eventsDropped atomic.Uint64
	errorsTotal   atomic.Uint64
	lastActivity  atomic.Int64 // Unix timestamp
}

// NewClient creates a client for one session. Call Connect to open it.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}

	return &Client{
		cfg:        cfg,
		catalog:    NewCatalog(),
		done:       newCloseOnce(),
		eventQueue: make(chan func(), eventQueueSize),
	}
}

// Connect dials the device and starts the session handshake.
//
// The method returns once the TCP connection is up and the hello has
// been sent; handshake completion is signalled through the connect and
// entities events. The context bounds only the dial.
//
// Parameters:
//   - ctx: Context for cancellation of the initial connection
//
// Returns:
//   - error: If the dial or the initial hello write fails
func (c *Client) Connect(ctx context.Context) error {
	if c.isClosed() {
		return ErrSessionClosed
	}

	c.setState(StateConnecting)

	if ctx == nil {
		ctx = context.Background()
	}
	connectCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	address := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(connectCtx, "tcp", address)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, address, err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connected = true
	c.connMu.Unlock()
	c.lastActivity.Store(time.Now().Unix())

	if err := c.writeFrame(encodeHelloRequest(c.cfg.ClientID)); err != nil {
		conn.Close()
		c.connMu.Lock()
		c.connected = false
		c.connMu.Unlock()
		c.setState(StateDisconnected)
		return fmt.Errorf("%w: hello: %w", ErrHandshakeFailed, err)
	}
	c.setState(StateAwaitingHelloResponse)

	c.dispatching.Store(true)
	c.wg.Add(1)
	go c.dispatchLoop()

	c.wg.Add(1)
	go c.receiveLoop()

	return nil
}

// receiveLoop reads the socket and feeds the frame decoder until the
// session ends. All protocol handling happens here, in arrival order.
func (c *Client) receiveLoop() {
	defer c.wg.Done()

	decoder := &FrameDecoder{}
	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-c.done.Done():
			return
		default:
		}

		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()
		if conn == nil {
			return
		}

		if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			c.teardown(fmt.Errorf("set read deadline: %w", err))
			return
		}

		n, err := conn.Read(buf)
		if err != nil {
			if c.isClosed() {
				return
			}
			c.errorsTotal.Add(1)
			c.teardown(categorizeSocketError(err))
			return
		}

		decoder.Append(buf[:n])
		c.lastActivity.Store(time.Now().Unix())

		if !c.drainFrames(decoder) {
			return
		}
	}
}

// drainFrames extracts every complete frame currently buffered.
// Returns false when frame handling tore the session down.
func (c *Client) drainFrames(decoder *FrameDecoder) bool {
	for {
		frame, err := decoder.Next()
		if err != nil {
			if errors.Is(err, ErrIncompleteData) {
				return true
			}
			// Framing error: bytes were discarded, stream continues.
			c.framingErrors.Add(1)
			c.errorsTotal.Add(1)
			c.logWarn("framing error, resynchronized", "error", err)
			continue
		}

		c.framesRx.Add(1)
		if !c.handleFrame(frame) {
			return false
		}
	}
}

// handleFrame routes one decoded frame through the session state
// machine. Returns false when the frame ended the session.
func (c *Client) handleFrame(frame *Frame) bool {
	c.emitMessage(frame.Type, frame.Payload)

	switch frame.Type {
	case MsgHelloResponse:
		return c.handleHelloResponse()

	case MsgConnectResponse:
		return c.handleConnectResponse(frame.Payload)

	case MsgDeviceInfoResponse:
		c.handleDeviceInfo(frame.Payload)

	case MsgListEntitiesDone:
		return c.handleListEntitiesDone()

	case MsgPingRequest:
		if err := c.writeFrame(encodeEmptyMessage(MsgPingResponse)); err != nil {
			c.teardown(fmt.Errorf("ping response: %w", err))
			return false
		}
		c.emitHeartbeat()

	case MsgPingResponse:
		c.emitHeartbeat()

	case MsgGetTimeRequest:
		if err := c.writeFrame(encodeGetTimeResponse(time.Now())); err != nil {
			c.teardown(fmt.Errorf("get time response: %w", err))
			return false
		}

	case MsgGetTimeResponse:
		c.handleGetTime(frame.Payload)

	case MsgDisconnectRequest:
		// Acknowledge, then drop the session. A deep-sleep device
		// does this routinely before sleeping.
		if err := c.writeFrame(encodeEmptyMessage(MsgDisconnectResponse)); err != nil {
			c.logWarn("disconnect response write failed", "error", err)
		}
		c.teardown(nil)
		return false

	case MsgDisconnectResponse:
		c.teardown(nil)
		return false

	default:
		if _, ok := listEntityTypes[frame.Type]; ok {
			c.handleListEntity(frame.Type, frame.Payload)
			return true
		}
		if _, ok := stateResponseTypes[frame.Type]; ok {
			c.handleStateUpdate(frame.Type, frame.Payload)
			return true
		}
		c.logWarn("unhandled message type",
			"type", frame.Type,
			"payload", hex.EncodeToString(frame.Payload))
	}

	return true
}

// handleHelloResponse advances the handshake to authentication.
func (c *Client) handleHelloResponse() bool {
	if c.State() != StateAwaitingHelloResponse {
		c.logWarn("unexpected hello response", "state", c.State().String())
		return true
	}

	if err := c.writeFrame(encodeConnectRequest(c.cfg.Password)); err != nil {
		c.teardown(fmt.Errorf("%w: connect request: %w", ErrHandshakeFailed, err))
		return false
	}
	c.setState(StateAwaitingConnectResponse)
	return true
}

// handleConnectResponse checks authentication and starts enumeration.
//
// Fields: 1 invalid password (bool).
func (c *Client) handleConnectResponse(payload []byte) bool {
	if c.State() != StateAwaitingConnectResponse {
		c.logWarn("unexpected connect response", "state", c.State().String())
		return true
	}

	fields, err := DecodeFields(payload)
	if err != nil {
		c.logWarn("connect response decode", "error", err)
	}
	if fields.Bool(1) {
		c.teardown(fmt.Errorf("%w: device rejected password", ErrHandshakeFailed))
		return false
	}

	if err := c.writeFrame(encodeEmptyMessage(MsgDeviceInfoRequest)); err != nil {
		c.teardown(fmt.Errorf("%w: device info request: %w", ErrHandshakeFailed, err))
		return false
	}
	if err := c.writeFrame(encodeEmptyMessage(MsgListEntitiesRequest)); err != nil {
		c.teardown(fmt.Errorf("%w: list entities request: %w", ErrHandshakeFailed, err))
		return false
	}
	c.setState(StateEnumeratingEntities)
	return true
}

// handleDeviceInfo stores the device description and emits the connect
// event. The device may resend this at any point in the session.
func (c *Client) handleDeviceInfo(payload []byte) {
	fields, err := DecodeFields(payload)
	if err != nil && fields == nil {
		c.logWarn("device info decode", "error", err)
		return
	}

	info := decodeDeviceInfo(fields)

	c.infoMu.Lock()
	c.deviceInfo = info
	c.hasInfo = true
	c.infoMu.Unlock()

	c.logInfo("device identified",
		"name", info.Name,
		"model", info.Model,
		"firmware", info.FirmwareVersion,
		"mac", info.MACAddress)

	c.enqueueEvent(func() {
		c.callbackMu.RLock()
		callback := c.events.onConnect
		c.callbackMu.RUnlock()
		if callback != nil {
			callback(info)
		}
	})
}

// handleListEntity registers one announced entity.
//
// Fields: 1 object id (string), 2 key (fixed32), 3 name (string).
func (c *Client) handleListEntity(msgType uint64, payload []byte) {
	entityType := listEntityTypes[msgType]

	fields, err := DecodeFields(payload)
	if err != nil && fields == nil {
		c.logWarn("entity listing decode failed, skipping",
			"entity_type", entityType, "error", err)
		return
	}

	keyField, hasKey := fields.Get(2)
	nameField, hasName := fields.Get(3)
	if !hasKey || keyField.Wire != WireFixed32 || !hasName || nameField.Wire != WireLengthDelimited {
		c.logWarn("entity listing missing key or name, skipping",
			"entity_type", entityType)
		return
	}

	entity := c.catalog.Add(entityType, nameField.String(), keyField.Fixed32Bits())
	c.logDebug("entity registered",
		"id", entity.ID, "key", entity.Key, "type", entity.Type)
}

// handleListEntitiesDone emits the discovered entities and subscribes
// to state updates.
func (c *Client) handleListEntitiesDone() bool {
	entities := c.catalog.Entities()
	c.logInfo("entity enumeration complete", "count", len(entities))

	c.enqueueEvent(func() {
		c.callbackMu.RLock()
		callback := c.events.onEntities
		c.callbackMu.RUnlock()
		if callback != nil {
			callback(entities)
		}
	})

	if err := c.writeFrame(encodeEmptyMessage(MsgSubscribeStatesRequest)); err != nil {
		c.teardown(fmt.Errorf("subscribe states: %w", err))
		return false
	}
	c.setState(StateSubscribed)
	return true
}

// handleStateUpdate translates a telemetry message and emits it.
// State updates are honoured in any session phase.
func (c *Client) handleStateUpdate(msgType uint64, payload []byte) {
	fields, err := DecodeFields(payload)
	if err != nil {
		c.logWarn("state update decode", "type", msgType, "error", err)
		if fields == nil {
			return
		}
	}

	update := translateState(msgType, fields, c.catalog)

	c.enqueueEvent(func() {
		c.callbackMu.RLock()
		callback := c.events.onState
		c.callbackMu.RUnlock()
		if callback != nil {
			callback(update)
		}
	})
}

// handleGetTime decodes a device time report.
//
// Fields: 1 epoch seconds (fixed32).
func (c *Client) handleGetTime(payload []byte) {
	fields, err := DecodeFields(payload)
	if err != nil && fields == nil {
		c.logWarn("get time decode", "error", err)
		return
	}

	epoch := fields.Fixed32Bits(1)
	c.enqueueEvent(func() {
		c.callbackMu.RLock()
		callback := c.events.onTime
		c.callbackMu.RUnlock()
		if callback != nil {
			callback(epoch)
		}
	})
}

// emitHeartbeat queues the heartbeat event.
func (c *Client) emitHeartbeat() {
	c.enqueueEvent(func() {
		c.callbackMu.RLock()
		callback := c.events.onHeartbeat
		c.callbackMu.RUnlock()
		if callback != nil {
			callback()
		}
	})
}

// emitMessage queues the raw message event for wire-level observers.
func (c *Client) emitMessage(msgType uint64, payload []byte) {
	c.callbackMu.RLock()
	hasCallback := c.events.onMessage != nil
	c.callbackMu.RUnlock()
	if !hasCallback {
		return
	}

	c.enqueueEvent(func() {
		c.callbackMu.RLock()
		callback := c.events.onMessage
		c.callbackMu.RUnlock()
		if callback != nil {
			callback(msgType, payload)
		}
	})
}

// enqueueEvent queues an event for the dispatch goroutine, dropping it
// when the queue is full to keep the receive loop from blocking.
func (c *Client) enqueueEvent(fn func()) {
	select {
	case c.eventQueue <- fn:
	default:
		c.eventsDropped.Add(1)
		c.errorsTotal.Add(1)
		c.logWarn("event queue full, dropping event")
	}
}

// dispatchLoop runs queued events in order. A single worker keeps
// delivery ordered the way frames arrived.
func (c *Client) dispatchLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done.Done():
			c.flushEventQueue()
			return
		case fn := <-c.eventQueue:
			c.runEvent(fn)
		}
	}
}

// runEvent invokes one event callback, recovering panics.
func (c *Client) runEvent(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logError("event callback panic", fmt.Errorf("%v", r))
		}
	}()
	fn()
}

// flushEventQueue delivers events still queued at shutdown. State
// updates that arrived before the session ended reach their callbacks
// ahead of the disconnect event, which teardown enqueues last.
func (c *Client) flushEventQueue() {
	for {
		select {
		case fn := <-c.eventQueue:
			c.runEvent(fn)
		default:
			return
		}
	}
}

// teardown ends the session: socket closed, catalog and device info
// dropped, disconnect event emitted once.
func (c *Client) teardown(reason error) {
	c.disconnectOnce.Do(func() {
		if reason != nil {
			c.logError("session ended", reason)
		} else {
			c.logInfo("session ended")
		}

		c.connMu.Lock()
		c.connected = false
		if c.conn != nil {
			c.conn.Close()
		}
		c.connMu.Unlock()

		c.infoMu.Lock()
		c.hasInfo = false
		c.deviceInfo = DeviceInfo{}
		c.infoMu.Unlock()

		c.setState(StateDisconnected)

		c.callbackMu.RLock()
		callback := c.events.onDisconnect
		c.callbackMu.RUnlock()
		if callback != nil {
			// The disconnect event rides the dispatch queue so every
			// state event queued before the session ended is observed
			// first. Inline delivery is the fallback when the queue is
			// full or the dispatch goroutine never started; the event
			// must not be dropped.
			fn := func() { callback(reason) }
			delivered := false
			if c.dispatching.Load() {
				select {
				case c.eventQueue <- fn:
					delivered = true
				default:
				}
			}
			if !delivered {
				c.runEvent(fn)
			}
		}

		c.done.Close()
	})
}

// categorizeSocketError maps transport errors onto readable causes.
func categorizeSocketError(err error) error {
	switch {
	case errors.Is(err, syscall.ECONNRESET):
		return fmt.Errorf("connection reset by device: %w", err)
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return fmt.Errorf("device unreachable: %w", err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connection refused by device: %w", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("device read timed out: %w", err)
	}

	return fmt.Errorf("socket error: %w", err)
}

// isClosed returns true if the session has ended.
func (c *Client) isClosed() bool {
	select {
	case <-c.done.Done():
		return true
	default:
		return false
	}
}

// Close disconnects from the device.
//
// It sends a disconnect request on a best-effort basis, tears the
// session down, and waits for the worker goroutines to finish. Safe to
// call multiple times.
func (c *Client) Close() error {
	if c.IsConnected() {
		if err := c.writeFrame(encodeEmptyMessage(MsgDisconnectRequest)); err != nil {
			c.logDebug("disconnect request write failed", "error", err)
		}
	}

	c.teardown(nil)
	c.wg.Wait()
	return nil
}

// writeFrame writes an encoded frame to the socket with a deadline.
func (c *Client) writeFrame(frame []byte) error {
	c.connMu.RLock()
	conn := c.conn
	connected := c.connected
	c.connMu.RUnlock()

	if conn == nil || !connected {
		return ErrNotConnected
	}

	if err := conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}

	if _, err := conn.Write(frame); err != nil {
		c.errorsTotal.Add(1)
		return fmt.Errorf("write: %w", err)
	}

	c.framesTx.Add(1)
	c.lastActivity.Store(time.Now().Unix())
	return nil
}

// sendEntityCommand resolves an entity id and writes a command frame.
// An unknown id is a warned no-op so a stale collaborator cannot kill
// the session.
func (c *Client) sendEntityCommand(entityID, wantType string, msgType uint64, encode func(key uint32) ([]byte, error)) error {
	entity, ok := c.catalog.LookupID(entityID)
	if !ok || entity.Type != wantType {
		c.logWarn("command for unknown entity, ignoring",
			"entity_id", entityID, "entity_type", wantType)
		return ErrUnknownEntity
	}

	payload, err := encode(entity.Key)
	if err != nil {
		c.logWarn("command rejected", "entity_id", entityID, "error", err)
		return err
	}

	return c.writeFrame(EncodeFrame(msgType, payload))
}

// SendSwitchCommand turns a switch entity on or off.
func (c *Client) SendSwitchCommand(entityID string, on bool) error {
	return c.sendEntityCommand(entityID, "switch", MsgSwitchCommandRequest,
		func(key uint32) ([]byte, error) { return encodeSwitchCommand(key, on), nil })
}

// SendButtonCommand presses a button entity.
func (c *Client) SendButtonCommand(entityID string) error {
	return c.sendEntityCommand(entityID, "button", MsgButtonCommandRequest,
		func(key uint32) ([]byte, error) { return encodeButtonCommand(key), nil })
}

// SendCoverCommand moves a cover entity. At least one of the command,
// position, or tilt parts must be set.
func (c *Client) SendCoverCommand(entityID string, cmd CoverCommand) error {
	return c.sendEntityCommand(entityID, "cover", MsgCoverCommandRequest,
		func(key uint32) ([]byte, error) { return encodeCoverCommand(key, cmd) })
}

// SendLightCommand switches or dims a light entity.
func (c *Client) SendLightCommand(entityID string, cmd LightCommand) error {
	return c.sendEntityCommand(entityID, "light", MsgLightCommandRequest,
		func(key uint32) ([]byte, error) { return encodeLightCommand(key, cmd) })
}

// SendLockCommand locks or unlocks a lock entity. The code is optional.
func (c *Client) SendLockCommand(entityID string, command uint64, code string) error {
	return c.sendEntityCommand(entityID, "lock", MsgLockCommandRequest,
		func(key uint32) ([]byte, error) { return encodeLockCommand(key, command, code) })
}

// SendPing sends a ping request. The device's pong arrives as a
// heartbeat event.
func (c *Client) SendPing() error {
	return c.writeFrame(encodeEmptyMessage(MsgPingRequest))
}

// DeviceInfo returns the device description from this session.
//
// Returns:
//   - DeviceInfo: The decoded description
//   - bool: False before the handshake delivered it
func (c *Client) DeviceInfo() (DeviceInfo, bool) {
	c.infoMu.RLock()
	defer c.infoMu.RUnlock()
	return c.deviceInfo, c.hasInfo
}

// HasEntity reports whether an entity id was announced this session.
func (c *Client) HasEntity(entityID string) bool {
	_, ok := c.catalog.LookupID(entityID)
	return ok
}

// EntityByID returns the catalog entry for a stable entity id.
func (c *Client) EntityByID(entityID string) (Entity, bool) {
	return c.catalog.LookupID(entityID)
}

// AvailableEntityIDs returns all known entity ids grouped by type.
func (c *Client) AvailableEntityIDs() map[string][]string {
	return c.catalog.AvailableEntityIDs()
}

// Entities returns all catalogued entities.
func (c *Client) Entities() []Entity {
	return c.catalog.Entities()
}

// SetOnConnect sets the callback for session establishment. It fires
// once the device info arrives.
func (c *Client) SetOnConnect(callback func(DeviceInfo)) {
	c.callbackMu.Lock()
	c.events.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets the callback for session end. The error is nil
// for a locally requested disconnect.
func (c *Client) SetOnDisconnect(callback func(error)) {
	c.callbackMu.Lock()
	c.events.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetOnEntities sets the callback for enumeration completion.
func (c *Client) SetOnEntities(callback func([]Entity)) {
	c.callbackMu.Lock()
	c.events.onEntities = callback
	c.callbackMu.Unlock()
}

// SetOnState sets the callback for translated telemetry updates.
func (c *Client) SetOnState(callback func(StateUpdate)) {
	c.callbackMu.Lock()
	c.events.onState = callback
	c.callbackMu.Unlock()
}

// SetOnHeartbeat sets the callback for ping traffic in either direction.
func (c *Client) SetOnHeartbeat(callback func()) {
	c.callbackMu.Lock()
	c.events.onHeartbeat = callback
	c.callbackMu.Unlock()
}

// SetOnTime sets the callback for device time reports.
func (c *Client) SetOnTime(callback func(epochSeconds uint32)) {
	c.callbackMu.Lock()
	c.events.onTime = callback
	c.callbackMu.Unlock()
}

// SetOnMessage sets a raw message observer invoked for every decoded
// frame, before protocol handling.
func (c *Client) SetOnMessage(callback func(msgType uint64, payload []byte)) {
	c.callbackMu.Lock()
	c.events.onMessage = callback
	c.callbackMu.Unlock()
}

// SetLogger sets the logger for this client.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// IsConnected returns true while the TCP session is up.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// State returns the current handshake state.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *Client) setState(s ConnectionState) {
	c.state.Store(int32(s))
}

// Stats returns current operational statistics.
func (c *Client) Stats() ClientStats {
	return ClientStats{
		FramesRx:      c.framesRx.Load(),
		FramesTx:      c.framesTx.Load(),
		FramingErrors: c.framingErrors.Load(),
		EventsDropped: c.eventsDropped.Load(),
		ErrorsTotal:   c.errorsTotal.Load(),
		LastActivity:  time.Unix(c.lastActivity.Load(), 0),
		State:         c.State(),
		Connected:     c.IsConnected(),
	}
}

// logDebug logs a debug message if logger is set.
func (c *Client) logDebug(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if logger is set.
func (c *Client) logInfo(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning message if logger is set.
func (c *Client) logWarn(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (c *Client) logError(msg string, err error) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
