package esphome

import (
	"bytes"
	"errors"
	"testing"
)

func TestVarintRoundTrip(t *testing.T) {
	tests := []struct {
		value   uint64
		wantLen int
	}{
		{0, 1},
		{1, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{2097151, 3},
		{2147483647, 5},
	}

	for _, tt := range tests {
		encoded := EncodeVarint(tt.value)

		if len(encoded) != tt.wantLen {
			t.Errorf("EncodeVarint(%d) length = %d, want %d", tt.value, len(encoded), tt.wantLen)
		}

		// Continuation bit set on every byte except the last.
		for i, b := range encoded {
			isLast := i == len(encoded)-1
			hasCont := b&0x80 != 0
			if isLast && hasCont {
				t.Errorf("EncodeVarint(%d): continuation bit set on final byte", tt.value)
			}
			if !isLast && !hasCont {
				t.Errorf("EncodeVarint(%d): continuation bit clear on byte %d", tt.value, i)
			}
		}

		decoded, n, err := DecodeVarint(encoded)
		if err != nil {
			t.Errorf("DecodeVarint(encode(%d)) error: %v", tt.value, err)
			continue
		}
		if decoded != tt.value {
			t.Errorf("DecodeVarint(encode(%d)) = %d", tt.value, decoded)
		}
		if n != len(encoded) {
			t.Errorf("DecodeVarint(encode(%d)) consumed %d bytes, want %d", tt.value, n, len(encoded))
		}
	}
}

func TestDecodeVarintIncomplete(t *testing.T) {
	// A continuation bit with no following byte is a wait condition.
	tests := [][]byte{
		nil,
		{0x80},
		{0xFF, 0xFF},
	}

	for _, buf := range tests {
		_, _, err := DecodeVarint(buf)
		if !errors.Is(err, ErrIncompleteData) {
			t.Errorf("DecodeVarint(%x) error = %v, want ErrIncompleteData", buf, err)
		}
	}
}

func TestDecodeVarintOverflow(t *testing.T) {
	// Eleven continuation bytes cannot fit in 64 bits.
	buf := bytes.Repeat([]byte{0xFF}, 11)
	if _, _, err := DecodeVarint(buf); !errors.Is(err, ErrVarintOverflow) {
		t.Errorf("DecodeVarint(overlong) error = %v, want ErrVarintOverflow", err)
	}
}

func TestDecodeVarintTrailingBytes(t *testing.T) {
	buf := append(EncodeVarint(300), 0xAA, 0xBB)
	value, n, err := DecodeVarint(buf)
	if err != nil {
		t.Fatalf("DecodeVarint error: %v", err)
	}
	if value != 300 {
		t.Errorf("value = %d, want 300", value)
	}
	if n != 2 {
		t.Errorf("consumed %d bytes, want 2", n)
	}
}
