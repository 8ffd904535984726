// © 2025 opening-explorer authors. MIT License.

package entry

import (
	"testing"

	"github.com/opnexpl/openingexplorer/internal/stats"
	"github.com/opnexpl/openingexplorer/internal/varint"
)

func TestLichessSingleRoundTrip(t *testing.T) {
	m := varint.Move{From: 12, To: 28}
	e := NewLichessSingle(m, Blitz, gid("aaaaaaaa"), stats.OutcomeDraw, 2000, 2200)
	buf := e.Encode()

	got, err := DecodeLichess(buf)
	if err != nil {
		t.Fatalf("DecodeLichess: %v", err)
	}
	rg := SelectRatingGroup(2000, 2200)
	g := got.Group(varint.Pack(m), Blitz, rg)
	if g == nil {
		t.Fatalf("expected group for (move, blitz, %v)", rg)
	}
	if g.Stats.Draws != 1 {
		t.Fatalf("expected a draw: %+v", g.Stats)
	}
}

// Merge associativity, and commutativity up to the 15-game
// recency cap (two merge orders of the SAME three single-game operands
// must agree on stats and on which games survive the reservoir, since no
// eviction occurs below the cap).
func TestLichessMergeAssociativeAndCommutative(t *testing.T) {
	m := varint.Move{From: 12, To: 28}
	a := NewLichessSingle(m, Blitz, gid("aaaaaaaa"), stats.OutcomeWhite, 2000, 2000).Encode()
	b := NewLichessSingle(m, Blitz, gid("bbbbbbbb"), stats.OutcomeBlack, 2000, 2000).Encode()
	c := NewLichessSingle(m, Blitz, gid("cccccccc"), stats.OutcomeDraw, 2000, 2000).Encode()

	order1, err := MergeLichess(nil, [][]byte{a, b, c})
	if err != nil {
		t.Fatal(err)
	}
	order2, err := MergeLichess(nil, [][]byte{c, b, a})
	if err != nil {
		t.Fatal(err)
	}

	e1, _ := DecodeLichess(order1)
	e2, _ := DecodeLichess(order2)
	rg := SelectRatingGroup(2000, 2000)
	g1 := e1.Group(varint.Pack(m), Blitz, rg)
	g2 := e2.Group(varint.Pack(m), Blitz, rg)

	if g1.Stats != g2.Stats {
		t.Fatalf("expected identical stats regardless of merge order: %+v vs %+v", g1.Stats, g2.Stats)
	}
	if len(g1.Games) != len(g2.Games) || len(g1.Games) != 3 {
		t.Fatalf("expected all 3 games retained below the cap: %d vs %d", len(g1.Games), len(g2.Games))
	}
}

func TestLichessReservoirKeepsMostRecent(t *testing.T) {
	m := varint.Move{From: 12, To: 28}
	var operands [][]byte
	for i := 0; i < 20; i++ {
		operands = append(operands, NewLichessSingle(m, Blitz,
			gid(sequentialGameID(i)), stats.OutcomeWhite, 2000, 2000).Encode())
	}

	merged, err := MergeLichess(nil, operands)
	if err != nil {
		t.Fatal(err)
	}
	e, err := DecodeLichess(merged)
	if err != nil {
		t.Fatal(err)
	}
	rg := SelectRatingGroup(2000, 2000)
	g := e.Group(varint.Pack(m), Blitz, rg)
	if len(g.Games) > LichessReservoirSize {
		t.Fatalf("expected at most %d games, got %d", LichessReservoirSize, len(g.Games))
	}
	if g.Stats.Total() != 20 {
		t.Fatalf("expected stats to count every game, got %d", g.Stats.Total())
	}
	// the most recent game must have survived the cap.
	lastID := gid(sequentialGameID(19))
	found := false
	for _, ref := range g.Games {
		if ref.Game == lastID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the most recent game to survive eviction")
	}
}

func sequentialGameID(i int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz"
	return string([]byte{
		alphabet[i%26], alphabet[(i/26)%26], 'x', 'x', 'x', 'x', 'x', 'x',
	})
}
