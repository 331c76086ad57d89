package mqtt

import (
	"errors"
	"testing"
)

// Tests here avoid a live broker: they cover argument validation, state
// handling on a disconnected client, and the topic builders. Connection
// behaviour against a real broker is exercised in deployment smoke tests.

func TestCloseNil(t *testing.T) {
	client := &Client{}
	err := client.Close()
	if err != nil {
		t.Errorf("Close() on uninitialised client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestPublishValidation(t *testing.T) {
	client := &Client{}

	if err := client.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish() empty topic error = %v, want ErrInvalidTopic", err)
	}

	if err := client.Publish("test/topic", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish() QoS 3 error = %v, want ErrInvalidQoS", err)
	}

	oversized := make([]byte, maxPayloadSize+1)
	if err := client.Publish("test/topic", oversized, 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() oversized payload error = %v, want ErrPublishFailed", err)
	}

	if err := client.Publish("test/topic", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{}
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe() empty topic error = %v, want ErrInvalidTopic", err)
	}

	if err := client.Subscribe("test/topic", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe() QoS 3 error = %v, want ErrInvalidQoS", err)
	}

	if err := client.Subscribe("test/topic", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe() nil handler error = %v, want ErrSubscribeFailed", err)
	}

	if err := client.Subscribe("test/topic", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	client := &Client{}

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe() empty topic error = %v, want ErrInvalidTopic", err)
	}

	if err := client.Unsubscribe("test/topic"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestSubscriptionCount_Empty(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		builder  func() string
		expected string
	}{
		{
			name: "BridgeState",
			builder: func() string {
				return Topics{}.BridgeState("esphome", "cover-garage_door")
			},
			expected: "ratgdo/state/esphome/cover-garage_door",
		},
		{
			name: "BridgeCommand",
			builder: func() string {
				return Topics{}.BridgeCommand("esphome", "cover-garage_door")
			},
			expected: "ratgdo/command/esphome/cover-garage_door",
		},
		{
			name: "BridgeCommandWildcard",
			builder: func() string {
				return Topics{}.BridgeCommandWildcard("esphome")
			},
			expected: "ratgdo/command/esphome/+",
		},
		{
			name: "BridgeAck",
			builder: func() string {
				return Topics{}.BridgeAck("esphome", "cover-garage_door")
			},
			expected: "ratgdo/ack/esphome/cover-garage_door",
		},
		{
			name: "BridgeHealth",
			builder: func() string {
				return Topics{}.BridgeHealth("esphome")
			},
			expected: "ratgdo/health/esphome",
		},
		{
			name: "BridgeDiscovery",
			builder: func() string {
				return Topics{}.BridgeDiscovery("esphome")
			},
			expected: "ratgdo/discovery/esphome",
		},
		{
			name: "SystemStatus",
			builder: func() string {
				return Topics{}.SystemStatus()
			},
			expected: "ratgdo/system/status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.builder()
			if result != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, result, tt.expected)
			}
		})
	}
}
