package esphome

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Wire types for message payload fields. Each field is a tag varint
// (field number shifted left three bits, wire type in the low three)
// followed by a wire-type-specific value encoding.
const (
	// WireVarint is a base-128 varint value.
	WireVarint = 0

	// WireFixed64 is eight little-endian bytes, decoded as a 64-bit float.
	WireFixed64 = 1

	// WireLengthDelimited is a varint byte count followed by that many bytes.
	WireLengthDelimited = 2

	// WireFixed32 is four little-endian bytes, kept raw until the schema
	// for the field decides between float and integer interpretation.
	WireFixed32 = 5
)

// FieldValue is a decoded payload field. Exactly one representation is
// populated, selected by Wire.
type FieldValue struct {
	// Wire is the wire type the field arrived with.
	Wire int

	varint  uint64
	fixed64 float64
	bytes   []byte
	fixed32 [4]byte
}

// Uint returns the varint value, or 0 if the field is not a varint.
func (f FieldValue) Uint() uint64 {
	if f.Wire != WireVarint {
		return 0
	}
	return f.varint
}

// Bool interprets a varint field as a boolean (nonzero is true).
func (f FieldValue) Bool() bool {
	return f.Wire == WireVarint && f.varint != 0
}

// Float64 returns the fixed64 value, or 0 if the field is not fixed64.
func (f FieldValue) Float64() float64 {
	if f.Wire != WireFixed64 {
		return 0
	}
	return f.fixed64
}

// Bytes returns the raw bytes of a length-delimited field, nil otherwise.
// The slice is a defensive copy safe to retain.
func (f FieldValue) Bytes() []byte {
	if f.Wire != WireLengthDelimited {
		return nil
	}
	out := make([]byte, len(f.bytes))
	copy(out, f.bytes)
	return out
}

// String interprets a length-delimited field as UTF-8 text.
func (f FieldValue) String() string {
	if f.Wire != WireLengthDelimited {
		return ""
	}
	return string(f.bytes)
}

// Float32 interprets a fixed32 field as an IEEE 754 float.
func (f FieldValue) Float32() float32 {
	if f.Wire != WireFixed32 {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(f.fixed32[:]))
}

// Fixed32Bits returns the raw little-endian fixed32 value.
func (f FieldValue) Fixed32Bits() uint32 {
	if f.Wire != WireFixed32 {
		return 0
	}
	return binary.LittleEndian.Uint32(f.fixed32[:])
}

// FieldMap holds the decoded fields of one message payload, keyed by
// field number. Each field keeps every occurrence in payload order, so
// repeated fields survive decoding intact.
type FieldMap map[uint64][]FieldValue

// Get returns the last occurrence of a field.
//
// The device encodes scalar fields once; when a field does repeat, the
// final occurrence wins, matching standard tag-value merge semantics.
//
// Returns:
//   - FieldValue: The decoded value (zero value when absent)
//   - bool: False if the field number was not present
func (m FieldMap) Get(num uint64) (FieldValue, bool) {
	values := m[num]
	if len(values) == 0 {
		return FieldValue{}, false
	}
	return values[len(values)-1], true
}

// Values returns every occurrence of a field in payload order.
// The returned slice is owned by the map; callers must not modify it.
func (m FieldMap) Values(num uint64) []FieldValue {
	return m[num]
}

// Uint returns the varint value of a field, or the zero value when the
// field is absent or has a different wire type.
func (m FieldMap) Uint(num uint64) uint64 {
	v, _ := m.Get(num)
	return v.Uint()
}

// Bool returns the boolean value of a varint field.
func (m FieldMap) Bool(num uint64) bool {
	v, _ := m.Get(num)
	return v.Bool()
}

// String returns the text value of a length-delimited field.
func (m FieldMap) String(num uint64) string {
	v, _ := m.Get(num)
	return v.String()
}

// Float32 returns the float value of a fixed32 field.
func (m FieldMap) Float32(num uint64) float32 {
	v, _ := m.Get(num)
	return v.Float32()
}

// Fixed32Bits returns the raw little-endian value of a fixed32 field.
func (m FieldMap) Fixed32Bits(num uint64) uint32 {
	v, _ := m.Get(num)
	return v.Fixed32Bits()
}

// Has reports whether a field number was present in the payload.
func (m FieldMap) Has(num uint64) bool {
	return len(m[num]) > 0
}

// DecodeFields parses a message payload into its fields.
//
// The payload must be complete: truncation mid-field is an error here,
// not a wait condition, because framing already delimited the message.
//
// Parameters:
//   - payload: Complete message body from a decoded frame
//
// Returns:
//   - FieldMap: Decoded fields keyed by field number
//   - error: ErrUnsupportedWireType for unimplemented wire types, or a
//     wrapped ErrFraming for truncated field data
func DecodeFields(payload []byte) (FieldMap, error) {
	fields := make(FieldMap)
	pos := 0

	for pos < len(payload) {
		tag, n, err := DecodeVarint(payload[pos:])
		if err != nil {
			return nil, fmt.Errorf("%w: field tag at offset %d: %v", ErrFraming, pos, err)
		}
		pos += n

		fieldNum := tag >> 3
		wireType := int(tag & 0x7)

		value := FieldValue{Wire: wireType}

		switch wireType {
		case WireVarint:
			v, n, err := DecodeVarint(payload[pos:])
			if err != nil {
				return nil, fmt.Errorf("%w: varint field %d: %v", ErrFraming, fieldNum, err)
			}
			value.varint = v
			pos += n

		case WireFixed64:
			if len(payload)-pos < 8 {
				return nil, fmt.Errorf("%w: fixed64 field %d truncated", ErrFraming, fieldNum)
			}
			value.fixed64 = math.Float64frombits(binary.LittleEndian.Uint64(payload[pos:]))
			pos += 8

		case WireLengthDelimited:
			length, n, err := DecodeVarint(payload[pos:])
			if err != nil {
				return nil, fmt.Errorf("%w: field %d length: %v", ErrFraming, fieldNum, err)
			}
			pos += n
			if uint64(len(payload)-pos) < length {
				return nil, fmt.Errorf("%w: field %d data truncated", ErrFraming, fieldNum)
			}
			value.bytes = payload[pos : pos+int(length)]
			pos += int(length)

		case WireFixed32:
			if len(payload)-pos < 4 {
				return nil, fmt.Errorf("%w: fixed32 field %d truncated", ErrFraming, fieldNum)
			}
			copy(value.fixed32[:], payload[pos:pos+4])
			pos += 4

		default:
			// Without a known value width the rest of the payload
			// cannot be walked. Hand back what decoded cleanly and
			// abandon this message only.
			return fields, fmt.Errorf("%w: wire type %d on field %d", ErrUnsupportedWireType, wireType, fieldNum)
		}

		fields[fieldNum] = append(fields[fieldNum], value)
	}

	return fields, nil
}

// Field encoding helpers. Messages are built by appending fields in
// field-number order to a fresh buffer.

// appendTag appends the tag varint for a field.
func appendTag(buf []byte, fieldNum uint64, wireType int) []byte {
	return AppendVarint(buf, fieldNum<<3|uint64(wireType))
}

// AppendVarintField appends a varint field.
func AppendVarintField(buf []byte, fieldNum, value uint64) []byte {
	buf = appendTag(buf, fieldNum, WireVarint)
	return AppendVarint(buf, value)
}

// AppendBoolField appends a varint field holding 0 or 1.
func AppendBoolField(buf []byte, fieldNum uint64, value bool) []byte {
	var v uint64
	if value {
		v = 1
	}
	return AppendVarintField(buf, fieldNum, v)
}

// AppendFixed32Field appends a fixed32 field holding a raw 32-bit value,
// written little-endian.
func AppendFixed32Field(buf []byte, fieldNum uint64, bits uint32) []byte {
	buf = appendTag(buf, fieldNum, WireFixed32)
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], bits)
	return append(buf, raw[:]...)
}

// AppendFloat32Field appends a fixed32 field holding an IEEE 754 float.
func AppendFloat32Field(buf []byte, fieldNum uint64, value float32) []byte {
	return AppendFixed32Field(buf, fieldNum, math.Float32bits(value))
}

// AppendStringField appends a length-delimited field holding UTF-8 text.
func AppendStringField(buf []byte, fieldNum uint64, value string) []byte {
	buf = appendTag(buf, fieldNum, WireLengthDelimited)
	buf = AppendVarint(buf, uint64(len(value)))
	return append(buf, value...)
}
