package esphome

// Base-128 varint encoding as used by the device protocol.
//
// Each byte carries seven value bits, least significant group first.
// The high bit is the continuation flag: set on every byte except the
// last. Values are unsigned; the widest encoding is ten bytes.

// maxVarintLen is the maximum encoded length of a 64-bit varint.
const maxVarintLen = 10

// AppendVarint appends the varint encoding of v to buf and returns the
// extended slice. The encoding is minimal width: no trailing zero groups.
func AppendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// EncodeVarint returns the minimal varint encoding of v.
func EncodeVarint(v uint64) []byte {
	return AppendVarint(make([]byte, 0, maxVarintLen), v)
}

// DecodeVarint decodes a varint from the start of buf.
//
// Returns the decoded value and the number of bytes consumed.
// If buf ends mid-varint (a continuation bit set on the final available
// byte), it returns ErrIncompleteData: the caller should wait for more
// bytes rather than treat the stream as corrupt.
//
// Returns:
//   - uint64: Decoded value
//   - int: Bytes consumed (0 on error)
//   - error: ErrIncompleteData or ErrVarintOverflow
func DecodeVarint(buf []byte) (uint64, int, error) {
	var value uint64
	var shift uint

	for i, b := range buf {
		if i >= maxVarintLen {
			return 0, 0, ErrVarintOverflow
		}

		value |= uint64(b&0x7F) << shift

		if b&0x80 == 0 {
			// Tenth byte may only contribute the low bit.
			if i == maxVarintLen-1 && b > 0x01 {
				return 0, 0, ErrVarintOverflow
			}
			return value, i + 1, nil
		}

		shift += 7
	}

	return 0, 0, ErrIncompleteData
}
