package esphome

import "fmt"

// Cover operation enum values reported in cover state updates.
const (
	coverOperationIdle    = 0
	coverOperationOpening = 1
	coverOperationClosing = 2
)

// Cover legacy state enum values.
const (
	coverStateOpen   = 0
	coverStateClosed = 1
)

// StateUpdate is one translated telemetry event.
type StateUpdate struct {
	// EntityID is the stable entity identifier, or "unknown(<key>)"
	// when the key was never catalogued this session.
	EntityID string

	// EntityName is the display name from the catalog, empty if unknown.
	EntityName string

	// EntityType is the entity kind derived from the message type.
	EntityType string

	// Key is the session-scoped numeric key the update addressed.
	Key uint32

	// Value is the decoded generic value: float32 for fixed32 fields,
	// bool for varint fields, string for text payloads. Nil when the
	// update carried no value field.
	Value any

	// State is the human-readable state label. For covers this applies
	// the travel inference; for other kinds it is a rendering of Value.
	State string

	// Position is the cover position 0.0 (closed) to 1.0 (open).
	// Only set for cover updates that carried a position field.
	Position *float64
}

// translateState decodes a state update payload into a StateUpdate.
//
// The entity key lives in field 1 (fixed32). Unknown keys still produce
// an update so late subscribers see traffic from entities announced
// before they attached; the id falls back to "unknown(<key>)".
func translateState(msgType uint64, fields FieldMap, catalog *Catalog) StateUpdate {
	entityType := stateResponseTypes[msgType]
	key := fields.Fixed32Bits(1)

	update := StateUpdate{
		EntityID:   fmt.Sprintf("unknown(%d)", key),
		EntityType: entityType,
		Key:        key,
	}

	if entity, ok := catalog.LookupKey(key); ok {
		update.EntityID = entity.ID
		update.EntityName = entity.Name
		update.EntityType = entity.Type
	}

	if msgType == MsgCoverStateResponse {
		translateCoverState(fields, &update)
		return update
	}

	translateGenericState(fields, &update)
	return update
}

// translateGenericState extracts the value from field 2 of a non-cover
// state update. A fixed32 field is a float; a varint is a boolean; a
// length-delimited field is UTF-8 text.
func translateGenericState(fields FieldMap, update *StateUpdate) {
	value, ok := fields.Get(2)
	if !ok {
		return
	}

	switch value.Wire {
	case WireFixed32:
		f := value.Float32()
		update.Value = f
		update.State = fmt.Sprintf("%g", f)
	case WireVarint:
		b := value.Bool()
		update.Value = b
		if b {
			update.State = "on"
		} else {
			update.State = "off"
		}
	case WireLengthDelimited:
		s := value.String()
		update.Value = s
		update.State = s
	}
}

// translateCoverState decodes the multi-field cover update and derives
// the door-state label.
//
// Fields: 2 legacy state enum, 3 position float, 4 tilt float,
// 5 current operation enum, 6 device id.
func translateCoverState(fields FieldMap, update *StateUpdate) {
	legacyState := fields.Uint(2)
	operation := fields.Uint(5)

	var position float64
	hasPosition := fields.Has(3)
	if hasPosition {
		position = float64(fields.Float32(3))
		update.Position = &position
		update.Value = float32(position)
	}

	update.State = inferCoverState(legacyState, operation, position, hasPosition)
}

// inferCoverState derives the human door-state label.
//
// The device never signals "stopped" directly. An idle door whose
// reported state is open but whose position is strictly between the
// endpoints did not finish its travel, so it is labelled stopped.
// Active operations take priority over the position heuristic.
func inferCoverState(legacyState, operation uint64, position float64, hasPosition bool) string {
	switch operation {
	case coverOperationOpening:
		return "opening"
	case coverOperationClosing:
		return "closing"
	}

	if legacyState == coverStateOpen {
		if hasPosition && position > 0 && position < 1 {
			return "stopped"
		}
		return "open"
	}

	return "closed"
}
