package esphome

// Cover command enum values.
const (
	CoverCommandOpen  = 0
	CoverCommandClose = 1
	CoverCommandStop  = 2
)

// Lock command enum values.
const (
	LockCommandUnlock = 0
	LockCommandLock   = 1
)

// CoverCommand holds the optional parts of a cover command. At least
// one of Command, Position, or Tilt must be set.
type CoverCommand struct {
	// Command is a directional command enum (open, close, stop).
	Command *uint64

	// Position is an absolute target position, 0.0 closed to 1.0 open.
	Position *float32

	// Tilt is an absolute tilt target, 0.0 to 1.0.
	Tilt *float32
}

// LightCommand holds the optional parts of a light command.
type LightCommand struct {
	// State switches the light on or off.
	State *bool

	// Brightness is an absolute brightness, 0.0 to 1.0.
	Brightness *float32
}

// Command payload builders. Each takes the session key resolved from
// the catalog; key resolution and the unknown-entity no-op live in the
// client's send path.

// encodeSwitchCommand builds a switch command payload.
//
// Fields: 1 key (fixed32), 2 state (varint bool).
func encodeSwitchCommand(key uint32, on bool) []byte {
	var payload []byte
	payload = AppendFixed32Field(payload, 1, key)
	payload = AppendBoolField(payload, 2, on)
	return payload
}

// encodeButtonCommand builds a button press payload. A momentary press
// carries only the key.
//
// Fields: 1 key (fixed32).
func encodeButtonCommand(key uint32) []byte {
	return AppendFixed32Field(nil, 1, key)
}

// encodeCoverCommand builds a cover command payload. Absent parts are
// omitted entirely; their has_* flags are only written alongside a value.
//
// Fields: 1 key (fixed32), 2 has_legacy_command, 3 legacy command enum,
// 4 has_position, 5 position (fixed32 float), 6 has_tilt, 7 tilt.
func encodeCoverCommand(key uint32, cmd CoverCommand) ([]byte, error) {
	if cmd.Command == nil && cmd.Position == nil && cmd.Tilt == nil {
		return nil, ErrInvalidCommand
	}
	if cmd.Command != nil && *cmd.Command > CoverCommandStop {
		return nil, ErrInvalidCommand
	}

	var payload []byte
	payload = AppendFixed32Field(payload, 1, key)
	if cmd.Command != nil {
		payload = AppendBoolField(payload, 2, true)
		payload = AppendVarintField(payload, 3, *cmd.Command)
	}
	if cmd.Position != nil {
		payload = AppendBoolField(payload, 4, true)
		payload = AppendFloat32Field(payload, 5, *cmd.Position)
	}
	if cmd.Tilt != nil {
		payload = AppendBoolField(payload, 6, true)
		payload = AppendFloat32Field(payload, 7, *cmd.Tilt)
	}

	return payload, nil
}

// encodeLightCommand builds a light command payload.
//
// Fields: 1 key (fixed32), 2 has_state, 3 state, 4 has_brightness,
// 5 brightness (fixed32 float).
func encodeLightCommand(key uint32, cmd LightCommand) ([]byte, error) {
	if cmd.State == nil && cmd.Brightness == nil {
		return nil, ErrInvalidCommand
	}

	var payload []byte
	payload = AppendFixed32Field(payload, 1, key)
	if cmd.State != nil {
		payload = AppendBoolField(payload, 2, true)
		payload = AppendBoolField(payload, 3, *cmd.State)
	}
	if cmd.Brightness != nil {
		payload = AppendBoolField(payload, 4, true)
		payload = AppendFloat32Field(payload, 5, *cmd.Brightness)
	}

	return payload, nil
}

// encodeLockCommand builds a lock command payload.
//
// Fields: 1 key (fixed32), 2 command enum, 4 has_code, 5 code (string).
func encodeLockCommand(key uint32, command uint64, code string) ([]byte, error) {
	if command > LockCommandLock {
		return nil, ErrInvalidCommand
	}

	var payload []byte
	payload = AppendFixed32Field(payload, 1, key)
	payload = AppendVarintField(payload, 2, command)
	if code != "" {
		payload = AppendBoolField(payload, 4, true)
		payload = AppendStringField(payload, 5, code)
	}

	return payload, nil
}
