// © 2025 opening-explorer authors. MIT License.

package stats

import (
	"testing"
	"testing/quick"
)

// Every encodable Stats value round-trips through Encode/Decode.
func TestStatsRoundTrip(t *testing.T) {
	f := func(ratingSum, white, draws, black uint8) bool {
		s := Stats{
			RatingSum: uint64(ratingSum),
			White:     uint64(white),
			Draws:     uint64(draws),
			Black:     uint64(black),
		}
		buf := s.Encode(nil)
		got, n, err := Decode(buf)
		return err == nil && got == s && n == len(buf)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestNewSingle(t *testing.T) {
	cases := []struct {
		outcome Outcome
		want    Stats
	}{
		{OutcomeWhite, Stats{RatingSum: 2500, White: 1}},
		{OutcomeDraw, Stats{RatingSum: 2500, Draws: 1}},
		{OutcomeBlack, Stats{RatingSum: 2500, Black: 1}},
	}
	for _, c := range cases {
		if got := NewSingle(c.outcome, 2500); got != c.want {
			t.Fatalf("NewSingle(%v) = %+v, want %+v", c.outcome, got, c.want)
		}
	}
}

// Stats.Add is associative and commutative.
func TestAddAssociativeCommutative(t *testing.T) {
	f := func(a, b, c Stats) bool {
		ab_c := a.Add(b).Add(c)
		a_bc := a.Add(b.Add(c))
		ba := b.Add(a)
		return ab_c == a_bc && ab_c.Add(ba) == ba.Add(ab_c)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestSingletonEncodingIsCompact(t *testing.T) {
	// Singleton outcomes must use the 1-byte tail, keeping
	// single-position writes minimal.
	s := NewSingle(OutcomeWhite, 1500)
	buf := s.Encode(nil)
	// varint(1500) is 2 bytes, tail is 1 byte => 3 bytes total.
	if len(buf) != 3 {
		t.Fatalf("expected compact 3-byte encoding, got %d bytes", len(buf))
	}
}
