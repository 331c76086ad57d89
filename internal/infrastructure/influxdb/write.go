package influxdb

import (
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// WriteEntityState records an entity telemetry update.
//
// The write is non-blocking: the point is added to an internal batch
// buffer and flushed according to the configured batch size and flush
// interval. Async write errors are delivered via the SetOnError callback.
//
// Parameters:
//   - entityID: Stable entity identifier (e.g. "cover-door")
//   - entityType: Entity kind (e.g. "cover", "light", "sensor")
//   - value: Decoded telemetry value (numeric or string)
//   - timestamp: When the update was received
//
// Returns:
//   - error: If not connected or the value type is unsupported
func (c *Client) WriteEntityState(entityID, entityType string, value any, timestamp time.Time) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	fields := map[string]any{}

	switch v := value.(type) {
	case float32:
		fields["value"] = float64(v)
	case float64:
		fields["value"] = v
	case int:
		fields["value"] = float64(v)
	case bool:
		fields["value"] = boolToFloat(v)
		fields["state"] = v
	case string:
		fields["state_text"] = v
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}

	point := influxdb2.NewPoint(
		"entity_state",
		map[string]string{
			"entity_id":   entityID,
			"entity_type": entityType,
		},
		fields,
		timestamp,
	)

	c.writeAPI.WritePoint(point)

	return nil
}

// WriteDoorState records a garage door state transition with position.
//
// Door states are written as both a text field and, when a position is
// available, a numeric position field so dashboards can graph travel.
//
// Parameters:
//   - entityID: Cover entity identifier
//   - state: Translated door state ("open", "closed", "opening", "closing", "stopped")
//   - position: Door position 0.0 (closed) to 1.0 (open), NaN if unknown
//   - timestamp: When the update was received
func (c *Client) WriteDoorState(entityID, state string, position float64, timestamp time.Time) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	fields := map[string]any{
		"state_text": state,
	}
	if position == position && position >= 0 && position <= 1 { // NaN check
		fields["position"] = position
	}

	point := influxdb2.NewPoint(
		"door_state",
		map[string]string{
			"entity_id": entityID,
		},
		fields,
		timestamp,
	)

	c.writeAPI.WritePoint(point)

	return nil
}

// WriteBridgeHealth records bridge connectivity metrics.
//
// Parameters:
//   - deviceConnected: Whether the device session is established
//   - framesReceived: Total frames decoded this session
//   - framingErrors: Total resync events this session
func (c *Client) WriteBridgeHealth(deviceConnected bool, framesReceived, framingErrors uint64) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	point := influxdb2.NewPoint(
		"bridge_health",
		map[string]string{
			"bridge": "esphome",
		},
		map[string]any{
			"device_connected": boolToFloat(deviceConnected),
			"frames_received":  float64(framesReceived),
			"framing_errors":   float64(framingErrors),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)

	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
