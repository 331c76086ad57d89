package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hjdhjd/ratgdo-core/internal/bridges/esphome"
	"github.com/hjdhjd/ratgdo-core/internal/history"
	"github.com/hjdhjd/ratgdo-core/internal/infrastructure/config"
	"github.com/hjdhjd/ratgdo-core/internal/infrastructure/logging"
)

// stubMQTT satisfies the bridge's MQTT dependency without a broker.
type stubMQTT struct{}

func (*stubMQTT) Publish(string, []byte, byte, bool) error { return nil }
func (*stubMQTT) Subscribe(string, byte, func(topic string, payload []byte)) error {
	return nil
}
func (*stubMQTT) IsConnected() bool { return false }

func newTestServer(t *testing.T, store *history.Store) *Server {
	t.Helper()

	bridge, err := esphome.NewBridge(esphome.BridgeOptions{
		Device:     config.DeviceConfig{Host: "garage.local"},
		MQTTClient: &stubMQTT{},
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}

	logger := logging.New(config.LoggingConfig{Level: "error", Output: "stderr"}, "test")

	srv, err := New(Deps{
		Config:  config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:      config.WebSocketConfig{MaxMessageSize: 4096, PingInterval: 30, PongTimeout: 10},
		Logger:  logger,
		Bridge:  bridge,
		History: store,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresDependencies(t *testing.T) {
	logger := logging.New(config.LoggingConfig{Level: "error"}, "test")

	if _, err := New(Deps{Logger: logger}); err == nil {
		t.Error("expected error without bridge")
	}
	if _, err := New(Deps{}); err == nil {
		t.Error("expected error without logger")
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["device_connected"] != false {
		t.Errorf("device_connected = %v", body["device_connected"])
	}
	if body["device_address"] != "garage.local:6053" {
		t.Errorf("device_address = %v", body["device_address"])
	}
}

func TestHandleGetDeviceNotConnected(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/device")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleGetStatsDisconnected(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Connected {
		t.Error("connected = true, want false")
	}
	if body.SessionState != "disconnected" {
		t.Errorf("session state = %q", body.SessionState)
	}
}

func TestHandleListEntitiesEmpty(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/entities")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Count != 0 {
		t.Errorf("count = %d, want 0", body.Count)
	}
}

func TestHandleGetEntityNotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/entities/cover-door")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleHistoryDisabled(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/history")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleHistory(t *testing.T) {
	store, err := history.Open(config.HistoryConfig{
		Path:        filepath.Join(t.TempDir(), "events.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	pos := 0.5
	if err := store.RecordEvent(context.Background(), "cover-door", "cover", "stopped", &pos, history.SourceDevice); err != nil {
		t.Fatalf("record event: %v", err)
	}
	if err := store.RecordEvent(context.Background(), "light-light", "light", "on", nil, history.SourceCommand); err != nil {
		t.Fatalf("record event: %v", err)
	}

	srv := newTestServer(t, store)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Count  int                  `json:"count"`
		Events []history.EventEntry `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}

	// Entity-scoped history only returns that entity's events.
	rec = doRequest(t, srv, http.MethodGet, "/api/v1/entities/cover-door/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("entity history status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Count != 1 {
		t.Errorf("entity history count = %d, want 1", body.Count)
	}
	if len(body.Events) == 1 && body.Events[0].EntityID != "cover-door" {
		t.Errorf("entity id = %q", body.Events[0].EntityID)
	}
}

func TestHandleHistoryBadLimit(t *testing.T) {
	store, err := history.Open(config.HistoryConfig{
		Path:        filepath.Join(t.TempDir(), "events.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := newTestServer(t, store)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/history?limit=banana")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
