package esphome

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTopicHelpers(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{CommandTopic("cover-door"), "ratgdo/command/esphome/cover-door"},
		{CommandSubscribeTopic(), "ratgdo/command/esphome/+"},
		{AckTopic("cover-door"), "ratgdo/ack/esphome/cover-door"},
		{StateTopic("light-light"), "ratgdo/state/esphome/light-light"},
		{HealthTopic(), "ratgdo/health/esphome"},
		{DiscoveryTopic(), "ratgdo/discovery/esphome"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestCommandMessageUnmarshal(t *testing.T) {
	payload := []byte(`{
		"id": "cmd-9",
		"timestamp": "2026-08-30T12:00:00Z",
		"entity_id": "cover-door",
		"command": "set_position",
		"parameters": {"position": 0.75}
	}`)

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if cmd.ID != "cmd-9" {
		t.Errorf("id = %q", cmd.ID)
	}
	if cmd.EntityID != "cover-door" {
		t.Errorf("entity id = %q", cmd.EntityID)
	}
	if cmd.Command != "set_position" {
		t.Errorf("command = %q", cmd.Command)
	}
	if got := cmd.Parameters["position"]; got != 0.75 {
		t.Errorf("position parameter = %v", got)
	}
	want := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if !cmd.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", cmd.Timestamp, want)
	}
}

func TestCommandMessageUnmarshalMissingTimestamp(t *testing.T) {
	var cmd CommandMessage
	if err := json.Unmarshal([]byte(`{"id":"x","command":"open"}`), &cmd); err != nil {
		t.Fatalf("unmarshal without timestamp: %v", err)
	}
	if !cmd.Timestamp.IsZero() {
		t.Errorf("timestamp = %v, want zero", cmd.Timestamp)
	}
}

func TestNewAckError(t *testing.T) {
	cmd := CommandMessage{ID: "cmd-1", EntityID: "switch-learn"}
	ack := NewAckError(cmd, ErrCodeUnknownEntity, "no such entity")

	if ack.Status != AckFailed {
		t.Errorf("status = %q, want failed", ack.Status)
	}
	if ack.CommandID != "cmd-1" {
		t.Errorf("command id = %q", ack.CommandID)
	}
	if ack.Error == nil || ack.Error.Code != ErrCodeUnknownEntity {
		t.Errorf("error = %+v", ack.Error)
	}
	if ack.Protocol != "esphome" {
		t.Errorf("protocol = %q", ack.Protocol)
	}
}

func TestNewLWTMessage(t *testing.T) {
	msg := NewLWTMessage()

	if msg.Status != HealthOffline {
		t.Errorf("status = %q, want offline", msg.Status)
	}
	if msg.Reason != "unexpected_disconnect" {
		t.Errorf("reason = %q", msg.Reason)
	}
	if msg.Bridge != "esphome" {
		t.Errorf("bridge = %q", msg.Bridge)
	}
}

func TestNewHealthMessageStatistics(t *testing.T) {
	stats := ClientStats{
		FramesRx:      10,
		FramesTx:      5,
		FramingErrors: 1,
		ErrorsTotal:   2,
		Connected:     true,
		State:         StateSubscribed,
	}

	msg := NewHealthMessage("1.0.0", HealthHealthy, stats, 3, 4, time.Now().Add(-time.Minute))

	if msg.Statistics == nil {
		t.Fatal("statistics missing")
	}
	if msg.Statistics.FramesReceived != 10 || msg.Statistics.FramesSent != 5 {
		t.Errorf("frame counts = %+v", msg.Statistics)
	}
	if msg.Statistics.Reconnects != 3 {
		t.Errorf("reconnects = %d, want 3", msg.Statistics.Reconnects)
	}
	if msg.Connection == nil || msg.Connection.Status != "connected" {
		t.Errorf("connection = %+v", msg.Connection)
	}
	if msg.Connection.SessionState != "subscribed" {
		t.Errorf("session state = %q", msg.Connection.SessionState)
	}
	if msg.EntityCount != 4 {
		t.Errorf("entity count = %d", msg.EntityCount)
	}
	if msg.UptimeSeconds < 59 {
		t.Errorf("uptime = %d, want about 60", msg.UptimeSeconds)
	}
}
