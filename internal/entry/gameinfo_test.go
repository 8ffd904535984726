// © 2025 opening-explorer authors. MIT License.

package entry

import (
	"testing"

	"github.com/opnexpl/openingexplorer/internal/stats"
)

func TestGameInfoRoundTrip(t *testing.T) {
	g := GameInfo{
		Outcome: stats.OutcomeWhite,
		Speed:   Blitz,
		Mode:    Rated,
		White:   Player{Name: "X", Rating: 2500},
		Black:   Player{Name: "Y", Rating: 2480},
		Month:   888,
		Flags:   IndexedFromWhite,
	}
	buf, err := g.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeGameInfo(buf)
	if err != nil {
		t.Fatalf("DecodeGameInfo: %v", err)
	}
	if got != g {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, g)
	}
}

func TestGameInfoNameTooLongRejected(t *testing.T) {
	g := GameInfo{White: Player{Name: string(make([]byte, MaxPlayerNameLen+1))}}
	if _, err := g.Encode(); err == nil {
		t.Fatalf("expected error for over-long name")
	}
}

// Re-indexing from the other color must OR the flag in without clobbering
// the one set by the first index: once an indexed-from-color flag is set,
// it remains set.
func TestMergeGameInfoOrsFlags(t *testing.T) {
	first := GameInfo{White: Player{Name: "X"}, Black: Player{Name: "Y"}, Flags: IndexedFromWhite}
	firstBuf, _ := first.Encode()

	second := GameInfo{White: Player{Name: "X"}, Black: Player{Name: "Y"}, Flags: IndexedFromBlack}
	secondBuf, _ := second.Encode()

	merged, err := MergeGameInfo(firstBuf, [][]byte{secondBuf})
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeGameInfo(merged)
	if err != nil {
		t.Fatal(err)
	}
	if got.Flags&IndexedFromWhite == 0 || got.Flags&IndexedFromBlack == 0 {
		t.Fatalf("expected both flags set, got %b", got.Flags)
	}
}
