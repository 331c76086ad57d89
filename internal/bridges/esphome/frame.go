package esphome

import (
	"bytes"
	"fmt"
)

// Frame layout on the wire:
//
//	0x00 sentinel | varint(payload length) | varint(message type) | payload
//
// The sentinel doubles as the plaintext indicator: an encrypted session
// would start frames with a different byte, which this client rejects.

const (
	// frameSentinel marks the start of every plaintext frame.
	frameSentinel = 0x00

	// maxFramePayload caps the declared payload length. Anything larger
	// is treated as stream corruption rather than a legitimate frame.
	maxFramePayload = 1 << 20
)

// Frame is a single decoded protocol frame.
type Frame struct {
	// Type is the message type identifier.
	Type uint64

	// Payload is the message body. The slice is owned by the caller
	// after Next returns it.
	Payload []byte
}

// EncodeFrame builds the wire encoding of a frame.
//
// Parameters:
//   - msgType: Message type identifier
//   - payload: Encoded message body (may be empty)
//
// Returns:
//   - []byte: Complete frame ready to write to the socket
func EncodeFrame(msgType uint64, payload []byte) []byte {
	buf := make([]byte, 0, 1+2*maxVarintLen+len(payload))
	buf = append(buf, frameSentinel)
	buf = AppendVarint(buf, uint64(len(payload)))
	buf = AppendVarint(buf, msgType)
	return append(buf, payload...)
}

// FrameDecoder extracts frames from a TCP byte stream.
//
// The stream offers no alignment guarantees: a single Append may carry
// a partial frame, exactly one frame, or several frames plus a partial
// tail. The decoder buffers across calls and yields complete frames.
//
// On malformed input it discards bytes up to the next sentinel and
// reports ErrFraming; the session survives and decoding resumes at the
// next plausible frame boundary.
//
// Not safe for concurrent use. The receive loop is the only caller.
type FrameDecoder struct {
	buf []byte
}

// Append adds received bytes to the decode buffer.
func (d *FrameDecoder) Append(data []byte) {
	d.buf = append(d.buf, data...)
}

// Buffered returns the number of bytes waiting to be decoded.
func (d *FrameDecoder) Buffered() int {
	return len(d.buf)
}

// Next attempts to extract one complete frame from the buffer.
//
// Returns:
//   - *Frame: The decoded frame, nil on error
//   - error: ErrIncompleteData when more bytes are needed (wait, not a
//     failure), or an ErrFraming-wrapped error when bytes were discarded
//     to resynchronize (call Next again)
func (d *FrameDecoder) Next() (*Frame, error) {
	if len(d.buf) == 0 {
		return nil, ErrIncompleteData
	}

	// Resynchronize: scan forward to the next sentinel.
	if d.buf[0] != frameSentinel {
		idx := bytes.IndexByte(d.buf, frameSentinel)
		if idx < 0 {
			discarded := len(d.buf)
			d.buf = d.buf[:0]
			return nil, fmt.Errorf("%w: discarded %d bytes, no sentinel found", ErrFraming, discarded)
		}
		d.buf = d.buf[idx:]
		return nil, fmt.Errorf("%w: discarded %d bytes before sentinel", ErrFraming, idx)
	}

	pos := 1

	payloadLen, n, err := DecodeVarint(d.buf[pos:])
	if err != nil {
		return nil, d.varintErr(err, "payload length")
	}
	pos += n

	if payloadLen > maxFramePayload {
		// Corrupt length. Skip this sentinel and hunt for the next one.
		d.buf = d.buf[1:]
		return nil, fmt.Errorf("%w: declared payload length %d exceeds limit", ErrFraming, payloadLen)
	}

	msgType, n, err := DecodeVarint(d.buf[pos:])
	if err != nil {
		return nil, d.varintErr(err, "message type")
	}
	pos += n

	end := pos + int(payloadLen)
	if len(d.buf) < end {
		return nil, ErrIncompleteData
	}

	payload := make([]byte, payloadLen)
	copy(payload, d.buf[pos:end])

	// Keep the tail; the backing array is reused by Append.
	d.buf = append(d.buf[:0], d.buf[end:]...)

	return &Frame{Type: msgType, Payload: payload}, nil
}

// varintErr maps a header varint decode failure onto the frame error
// model: truncation means wait, overflow means resync.
func (d *FrameDecoder) varintErr(err error, field string) error {
	if err == ErrIncompleteData {
		return ErrIncompleteData
	}
	d.buf = d.buf[1:]
	return fmt.Errorf("%w: %s: %v", ErrFraming, field, err)
}
