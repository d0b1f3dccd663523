package encoder

import (
	"math"
	"testing"
)

func TestEncodeDirectSingleByte(t *testing.T) {
	// Scenario 1: ldc 0x0A -> opcode nibble 0x40, single byte 0x4A.
	got := EncodeDirect(0x40, 0x0A)
	want := []byte{0x4A}
	if !bytesEqual(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

func TestEncodeDirectMultiBytePositive(t *testing.T) {
	// Scenario 2: ldc 0x1234abcd.
	got := EncodeDirect(0x40, 0x1234abcd)
	want := []byte{0x21, 0x22, 0x23, 0x24, 0x2A, 0x2B, 0x2C, 0x4D}
	if !bytesEqual(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

func TestEncodeDirectCallOneByte(t *testing.T) {
	// Scenario 5: call offset 0xF fits in a single byte 0x9F.
	got := EncodeDirect(0x90, 0x0F)
	want := []byte{0x9F}
	if !bytesEqual(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

func TestEncodeDirectNegativeMinimumTwoBytes(t *testing.T) {
	got := EncodeDirect(0x40, -1)
	if len(got) != 2 {
		t.Fatalf("expected negative values to need at least 2 bytes, got %d: % X", len(got), got)
	}
}

func TestEncodeDirectRoundTrip(t *testing.T) {
	args := []int32{
		0, 1, 15, 16, 17, 255, 256, 4095, 4096,
		math.MaxInt32, math.MinInt32,
		-1, -2, -15, -16, -17, -256, -4096,
		0x1234abcd, -0x1234abcd,
	}
	for _, arg := range args {
		bytes := EncodeDirect(0x40, arg)
		if len(bytes) > MaxEncodedLen {
			t.Fatalf("arg %d: encoded length %d exceeds MaxEncodedLen", arg, len(bytes))
		}
		oreg, finalOp, err := DecodeOreg(bytes)
		if err != nil {
			t.Fatalf("arg %d: decode error: %v", arg, err)
		}
		if oreg != arg {
			t.Fatalf("arg %d: round-trip produced %d (bytes % X)", arg, oreg, bytes)
		}
		if finalOp != 0x40 {
			t.Fatalf("arg %d: final opcode nibble = 0x%X, want 0x40", arg, finalOp)
		}
	}
}

func TestEncodeDirectLengthMonotoneInMagnitude(t *testing.T) {
	prevLen := 0
	for mag := int64(0); mag <= 1<<20; mag = nextMag(mag) {
		l := len(EncodeDirect(0x40, int32(mag)))
		if l < prevLen {
			t.Fatalf("length decreased at magnitude %d: %d < %d", mag, l, prevLen)
		}
		prevLen = l
	}
}

func nextMag(m int64) int64 {
	if m == 0 {
		return 1
	}
	return m * 3
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
