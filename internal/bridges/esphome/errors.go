package esphome

import "errors"

// Domain errors for the ESPHome bridge package.
var (
	// ErrNotConnected is returned when an operation requires an established
	// session but the client is not connected.
	ErrNotConnected = errors.New("esphome: not connected to device")

	// ErrConnectionFailed is returned when the TCP connection to the device fails.
	ErrConnectionFailed = errors.New("esphome: connection to device failed")

	// ErrHandshakeFailed is returned when the hello/connect sequence is
	// rejected or produces an unexpected response.
	ErrHandshakeFailed = errors.New("esphome: handshake failed")

	// ErrIncompleteData signals that a decoder needs more bytes before it
	// can produce a value. It is a wait condition, not a failure.
	ErrIncompleteData = errors.New("esphome: incomplete data")

	// ErrFraming is returned when the byte stream violates frame structure.
	// The decoder discards bytes up to the next frame sentinel and the
	// session continues.
	ErrFraming = errors.New("esphome: framing error")

	// ErrVarintOverflow is returned when a varint exceeds 64 bits.
	ErrVarintOverflow = errors.New("esphome: varint overflows 64 bits")

	// ErrUnsupportedWireType is returned when a field carries a wire type
	// the decoder does not implement. The containing message is skipped.
	ErrUnsupportedWireType = errors.New("esphome: unsupported wire type")

	// ErrUnknownEntity is returned when a command targets an entity id
	// that was not announced during enumeration.
	ErrUnknownEntity = errors.New("esphome: unknown entity")

	// ErrInvalidCommand is returned when a command has no effect to encode
	// or carries malformed parameters.
	ErrInvalidCommand = errors.New("esphome: invalid command")

	// ErrSessionClosed is returned when an operation races with shutdown.
	ErrSessionClosed = errors.New("esphome: session closed")
)
