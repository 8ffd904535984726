// © 2025 opening-explorer authors. MIT License.

package entry

import (
	"testing"

	"github.com/opnexpl/openingexplorer/internal/stats"
	"github.com/opnexpl/openingexplorer/internal/varint"
)

func TestPlayerSingleRoundTrip(t *testing.T) {
	m := varint.Move{From: 52, To: 36} // e.g. a pawn push
	e := NewPlayerSingle(m, Rapid, Rated, gid("aaaaaaaa"), stats.OutcomeWhite, 1800)
	buf := e.Encode()

	got, err := DecodePlayer(buf)
	if err != nil {
		t.Fatalf("DecodePlayer: %v", err)
	}
	g := got.Group(varint.Pack(m), Rapid, Rated)
	if g == nil || g.Stats.White != 1 {
		t.Fatalf("unexpected group: %+v", g)
	}
}

func TestPlayerReservoirCapsAtEight(t *testing.T) {
	m := varint.Move{From: 52, To: 36}
	var operands [][]byte
	for i := 0; i < 15; i++ {
		operands = append(operands, NewPlayerSingle(m, Rapid, Rated,
			gid(sequentialGameID(i)), stats.OutcomeWhite, 1800).Encode())
	}
	merged, err := MergePlayer(nil, operands)
	if err != nil {
		t.Fatal(err)
	}
	e, err := DecodePlayer(merged)
	if err != nil {
		t.Fatal(err)
	}
	g := e.Group(varint.Pack(m), Rapid, Rated)
	if len(g.Games) > PlayerReservoirSize {
		t.Fatalf("expected at most %d games, got %d", PlayerReservoirSize, len(g.Games))
	}
	if g.Stats.Total() != 15 {
		t.Fatalf("expected stats total 15, got %d", g.Stats.Total())
	}
}

func TestPlayerModeDistinguishesGroups(t *testing.T) {
	m := varint.Move{From: 52, To: 36}
	rated := NewPlayerSingle(m, Rapid, Rated, gid("aaaaaaaa"), stats.OutcomeWhite, 1800).Encode()
	casual := NewPlayerSingle(m, Rapid, Casual, gid("bbbbbbbb"), stats.OutcomeBlack, 1800).Encode()

	merged, err := MergePlayer(nil, [][]byte{rated, casual})
	if err != nil {
		t.Fatal(err)
	}
	e, err := DecodePlayer(merged)
	if err != nil {
		t.Fatal(err)
	}
	if e.Group(varint.Pack(m), Rapid, Rated).Stats.White != 1 {
		t.Fatalf("expected rated group to hold the white win")
	}
	if e.Group(varint.Pack(m), Rapid, Casual).Stats.Black != 1 {
		t.Fatalf("expected casual group to hold the black win")
	}
}
