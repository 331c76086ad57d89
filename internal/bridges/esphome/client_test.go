package esphome

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

// mockDevice simulates the controller's native API endpoint.
type mockDevice struct {
	listener net.Listener
	conn     net.Conn
	frames   []*Frame
	mu       sync.Mutex
	done     chan struct{}
}

func newMockDevice(t *testing.T) *mockDevice {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("creating listener: %v", err)
	}

	device := &mockDevice{
		listener: listener,
		done:     make(chan struct{}),
	}

	go device.serve(t)
	return device
}

// serve accepts one client and plays the device side of the handshake:
// hello, connect, device info, a cover and a switch listing, done, and
// an acknowledged state subscription.
func (d *mockDevice) serve(t *testing.T) {
	conn, err := d.listener.Accept()
	if err != nil {
		select {
		case <-d.done:
		default:
			t.Logf("accept error: %v", err)
		}
		return
	}

	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()

	decoder := &FrameDecoder{}
	buf := make([]byte, 1024)

	for {
		select {
		case <-d.done:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, err := conn.Read(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return
		}

		decoder.Append(buf[:n])
		for {
			frame, err := decoder.Next()
			if err != nil {
				break
			}

			d.mu.Lock()
			d.frames = append(d.frames, frame)
			d.mu.Unlock()

			d.respond(conn, frame)
		}
	}
}

func (d *mockDevice) respond(conn net.Conn, frame *Frame) {
	switch frame.Type {
	case MsgHelloRequest:
		conn.Write(EncodeFrame(MsgHelloResponse, nil))

	case MsgConnectRequest:
		conn.Write(EncodeFrame(MsgConnectResponse, nil))

	case MsgDeviceInfoRequest:
		var payload []byte
		payload = AppendStringField(payload, 2, "Garage")
		payload = AppendStringField(payload, 3, "AA:BB:CC:DD:EE:FF")
		conn.Write(EncodeFrame(MsgDeviceInfoResponse, payload))

	case MsgListEntitiesRequest:
		var cover []byte
		cover = AppendStringField(cover, 1, "door")
		cover = AppendFixed32Field(cover, 2, 100)
		cover = AppendStringField(cover, 3, "Door")
		conn.Write(EncodeFrame(MsgListEntitiesCover, cover))

		var sw []byte
		sw = AppendStringField(sw, 1, "learn")
		sw = AppendFixed32Field(sw, 2, 200)
		sw = AppendStringField(sw, 3, "Learn")
		conn.Write(EncodeFrame(MsgListEntitiesSwitch, sw))

		conn.Write(EncodeFrame(MsgListEntitiesDone, nil))

	case MsgSubscribeStatesRequest:
		var state []byte
		state = AppendFixed32Field(state, 1, 100)
		state = AppendVarintField(state, 2, coverStateOpen)
		state = AppendFloat32Field(state, 3, 0.5)
		state = AppendVarintField(state, 5, coverOperationIdle)
		conn.Write(EncodeFrame(MsgCoverStateResponse, state))
	}
}

func (d *mockDevice) address() (host string, port int) {
	addr := d.listener.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func (d *mockDevice) close() {
	close(d.done)
	d.mu.Lock()
	if d.conn != nil {
		d.conn.Close()
	}
	d.mu.Unlock()
	d.listener.Close()
}

func (d *mockDevice) receivedTypes() []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	types := make([]uint64, len(d.frames))
	for i, frame := range d.frames {
		types[i] = frame.Type
	}
	return types
}

func connectTestClient(t *testing.T, device *mockDevice) *Client {
	t.Helper()

	host, port := device.address()
	client := NewClient(ClientConfig{
		Host:           host,
		Port:           port,
		ClientID:       "test-client",
		ConnectTimeout: 2 * time.Second,
		ReadTimeout:    2 * time.Second,
	})

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return client
}

func TestClientHandshake(t *testing.T) {
	device := newMockDevice(t)
	defer device.close()

	client := NewClient(ClientConfig{ClientID: "test-client", ConnectTimeout: 2 * time.Second, ReadTimeout: 2 * time.Second})
	host, port := device.address()
	client.cfg.Host = host
	client.cfg.Port = port

	connected := make(chan DeviceInfo, 1)
	entities := make(chan []Entity, 1)
	states := make(chan StateUpdate, 4)

	client.SetOnConnect(func(info DeviceInfo) { connected <- info })
	client.SetOnEntities(func(e []Entity) { entities <- e })
	client.SetOnState(func(u StateUpdate) { states <- u })

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer client.Close()

	select {
	case info := <-connected:
		if info.Name != "Garage" {
			t.Errorf("device name = %q, want Garage", info.Name)
		}
		if info.MACAddress != "AA:BB:CC:DD:EE:FF" {
			t.Errorf("mac = %q", info.MACAddress)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for connect event")
	}

	select {
	case list := <-entities:
		if len(list) != 2 {
			t.Fatalf("entities = %d, want 2", len(list))
		}
		if !client.HasEntity("cover-door") {
			t.Error("HasEntity(cover-door) = false")
		}
		if !client.HasEntity("switch-learn") {
			t.Error("HasEntity(switch-learn) = false")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for entities event")
	}

	select {
	case update := <-states:
		if update.EntityID != "cover-door" {
			t.Errorf("state entity = %q", update.EntityID)
		}
		if update.State != "stopped" {
			t.Errorf("state = %q, want stopped (idle at half travel)", update.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for state event")
	}

	if got := client.State(); got != StateSubscribed {
		t.Errorf("State() = %v, want subscribed", got)
	}
}

func TestClientUnknownEntityCommandIsNoOp(t *testing.T) {
	device := newMockDevice(t)
	defer device.close()

	client := connectTestClient(t, device)

	// Wait for the handshake to settle.
	deadline := time.Now().Add(2 * time.Second)
	for client.State() != StateSubscribed && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	framesBefore := client.Stats().FramesTx

	err := client.SendSwitchCommand("switch-nonexistent", true)
	if !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("error = %v, want ErrUnknownEntity", err)
	}

	if framesAfter := client.Stats().FramesTx; framesAfter != framesBefore {
		t.Errorf("frames sent changed %d -> %d; unknown entity must not write", framesBefore, framesAfter)
	}
}

func TestClientSwitchCommandWrites(t *testing.T) {
	device := newMockDevice(t)
	defer device.close()

	client := connectTestClient(t, device)

	deadline := time.Now().Add(2 * time.Second)
	for client.State() != StateSubscribed && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if err := client.SendSwitchCommand("switch-learn", true); err != nil {
		t.Fatalf("SendSwitchCommand error: %v", err)
	}

	// The device should observe the command frame.
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, msgType := range device.receivedTypes() {
			if msgType == MsgSwitchCommandRequest {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("device never received switch command frame")
}

func TestClientCloseClearsSession(t *testing.T) {
	device := newMockDevice(t)
	defer device.close()

	client := connectTestClient(t, device)

	deadline := time.Now().Add(2 * time.Second)
	for client.State() != StateSubscribed && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	disconnected := make(chan error, 1)
	client.SetOnDisconnect(func(err error) { disconnected <- err })

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	select {
	case reason := <-disconnected:
		if reason != nil {
			t.Errorf("disconnect reason = %v, want nil for local close", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for disconnect event")
	}

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if client.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", client.State())
	}
	if _, ok := client.DeviceInfo(); ok {
		t.Error("DeviceInfo still present after Close")
	}
}

func TestClientDisconnectOrderedAfterQueuedStates(t *testing.T) {
	client := NewClient(ClientConfig{Host: "127.0.0.1", ClientID: "test-client"})
	client.catalog.Add("cover", "Door", 100)

	var mu sync.Mutex
	var order []string

	client.SetOnState(func(u StateUpdate) {
		mu.Lock()
		order = append(order, "state:"+u.State)
		mu.Unlock()
	})
	client.SetOnDisconnect(func(error) {
		mu.Lock()
		order = append(order, "disconnect")
		mu.Unlock()
	})

	// Start the dispatcher and pin it on a gate so the state events are
	// still queued when the session tears down.
	client.dispatching.Store(true)
	client.wg.Add(1)
	go client.dispatchLoop()

	gate := make(chan struct{})
	client.enqueueEvent(func() { <-gate })

	var open []byte
	open = AppendFixed32Field(open, 1, 100)
	open = AppendVarintField(open, 2, coverStateOpen)
	client.handleStateUpdate(MsgCoverStateResponse, open)

	var shut []byte
	shut = AppendFixed32Field(shut, 1, 100)
	shut = AppendVarintField(shut, 2, coverStateClosed)
	client.handleStateUpdate(MsgCoverStateResponse, shut)

	client.teardown(nil)
	close(gate)
	client.wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	want := []string{"state:open", "state:closed", "disconnect"}
	if len(order) != len(want) {
		t.Fatalf("delivered %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("delivered %v, want %v", order, want)
		}
	}
}

func TestClientConnectRefused(t *testing.T) {
	// Grab a port that nothing listens on.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	client := NewClient(ClientConfig{
		Host:           "127.0.0.1",
		Port:           port,
		ClientID:       "test-client",
		ConnectTimeout: 1 * time.Second,
	})

	err = client.Connect(context.Background())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if client.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", client.State())
	}
}

func TestConnectionStateString(t *testing.T) {
	states := map[ConnectionState]string{
		StateDisconnected:            "disconnected",
		StateConnecting:              "connecting",
		StateAwaitingHelloResponse:   "awaiting_hello_response",
		StateAwaitingConnectResponse: "awaiting_connect_response",
		StateEnumeratingEntities:     "enumerating_entities",
		StateSubscribed:              "subscribed",
	}

	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}

	if got := ConnectionState(42).String(); got != "unknown" {
		t.Errorf("invalid state String() = %q, want unknown", got)
	}
}
