// © 2025 opening-explorer authors. MIT License.

package varint

import "testing"

// Every representable move round-trips through Pack/Unpack and through
// the byte encoding.
func TestMoveRoundTrip(t *testing.T) {
	moves := []Move{
		{IsNull: true},
		{From: 0, To: 63},
		{From: 8, To: 0, Role: RoleQueen},
		{To: 0, Role: RoleKnight, IsDrop: true},
		{From: 12, To: 28},
	}

	for _, m := range moves {
		p := Pack(m)
		got := p.Unpack()
		if got != m {
			t.Fatalf("Pack/Unpack(%+v) = %+v", m, got)
		}

		buf := AppendPackedMove(nil, p)
		p2, err := ReadPackedMove(buf)
		if err != nil {
			t.Fatal(err)
		}
		if p2 != p {
			t.Fatalf("byte roundtrip mismatch: %v != %v", p2, p)
		}
	}
}

func TestMoveAllSquaresRoundTrip(t *testing.T) {
	for from := Square(0); from < 64; from++ {
		for to := Square(0); to < 64; to += 7 {
			m := Move{From: from, To: to}
			if from == to {
				continue // ambiguous with null/drop, covered separately
			}
			if got := Pack(m).Unpack(); got != m {
				t.Fatalf("Pack/Unpack(%+v) = %+v", m, got)
			}
		}
	}
}
