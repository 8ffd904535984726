// © 2025 opening-explorer authors. MIT License.

package varint

import (
	"math"
	"testing"
	"testing/quick"
)

// Every varint round-trips.
func TestUintRoundTrip(t *testing.T) {
	f := func(n uint64) bool {
		buf := AppendUint(nil, n)
		got, consumed, err := Uint(buf)
		return err == nil && got == n && consumed == len(buf)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestUintRoundTripEdgeValues(t *testing.T) {
	for _, n := range []uint64{0, 1, 127, 128, 255, 16384, math.MaxUint32, math.MaxUint64} {
		buf := AppendUint(nil, n)
		got, consumed, err := Uint(buf)
		if err != nil || got != n || consumed != len(buf) {
			t.Fatalf("roundtrip(%d) = %d, %d, %v", n, got, consumed, err)
		}
	}
}

func TestUintTruncated(t *testing.T) {
	buf := []byte{0x80, 0x80}
	if _, _, err := Uint(buf); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestSkip(t *testing.T) {
	buf := AppendUint(nil, 300)
	buf = append(buf, 0xAA) // trailing byte that Skip must not consume
	n, err := Skip(buf)
	if err != nil {
		t.Fatal(err)
	}
	if buf[n] != 0xAA {
		t.Fatalf("Skip consumed too much: n=%d", n)
	}
}
