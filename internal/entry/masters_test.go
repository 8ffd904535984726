// © 2025 opening-explorer authors. MIT License.

package entry

import (
	"testing"

	"github.com/opnexpl/openingexplorer/internal/key"
	"github.com/opnexpl/openingexplorer/internal/stats"
	"github.com/opnexpl/openingexplorer/internal/varint"
)

func gid(s string) key.GameID {
	id, err := key.ParseGameID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func TestMastersSingleRoundTrip(t *testing.T) {
	m := varint.Move{From: 12, To: 28}
	e := NewMastersSingle(m, gid("aaaaaaaa"), stats.OutcomeWhite, 2500, 2500)
	buf := e.Encode()

	got, err := DecodeMasters(buf)
	if err != nil {
		t.Fatalf("DecodeMasters: %v", err)
	}
	g := got.Group(varint.Pack(m))
	if g == nil {
		t.Fatalf("expected group for move")
	}
	if g.Stats.Total() != 1 || g.Stats.White != 1 {
		t.Fatalf("unexpected stats: %+v", g.Stats)
	}
	if len(g.Games) != 1 || g.Games[0].Game != gid("aaaaaaaa") {
		t.Fatalf("unexpected games: %+v", g.Games)
	}
}

// Merge is associative.
func TestMastersMergeAssociative(t *testing.T) {
	m := varint.Move{From: 12, To: 28}
	a := NewMastersSingle(m, gid("aaaaaaaa"), stats.OutcomeWhite, 2500, 2500).Encode()
	b := NewMastersSingle(m, gid("bbbbbbbb"), stats.OutcomeBlack, 2400, 2600).Encode()
	c := NewMastersSingle(m, gid("cccccccc"), stats.OutcomeDraw, 2200, 2200).Encode()

	left, err := MergeMasters(nil, [][]byte{a, b})
	if err != nil {
		t.Fatal(err)
	}
	left, err = MergeMasters(left, [][]byte{c})
	if err != nil {
		t.Fatal(err)
	}

	right, err := MergeMasters(nil, [][]byte{b, c})
	if err != nil {
		t.Fatal(err)
	}
	right, err = MergeMasters(a, [][]byte{right})
	if err != nil {
		t.Fatal(err)
	}

	leftEntry, _ := DecodeMasters(left)
	rightEntry, _ := DecodeMasters(right)
	if leftEntry.Group(varint.Pack(m)).Stats != rightEntry.Group(varint.Pack(m)).Stats {
		t.Fatalf("merge is not associative: %+v vs %+v",
			leftEntry.Group(varint.Pack(m)).Stats, rightEntry.Group(varint.Pack(m)).Stats)
	}
}

// Loop suppression is handled by the importer (distinct-position dedup
// before NewMastersSingle), not by the entry itself; verify that two
// distinct single-game contributions for the same move simply add.
func TestMastersTwoGamesAccumulate(t *testing.T) {
	m := varint.Move{From: 12, To: 28}
	a := NewMastersSingle(m, gid("aaaaaaaa"), stats.OutcomeWhite, 2500, 2500).Encode()
	b := NewMastersSingle(m, gid("bbbbbbbb"), stats.OutcomeWhite, 2500, 2500).Encode()

	merged, err := MergeMasters(nil, [][]byte{a, b})
	if err != nil {
		t.Fatal(err)
	}
	e, err := DecodeMasters(merged)
	if err != nil {
		t.Fatal(err)
	}
	if e.Group(varint.Pack(m)).Stats.Total() != 2 {
		t.Fatalf("expected total 2, got %d", e.Group(varint.Pack(m)).Stats.Total())
	}
}

func TestMastersReservoirCapsAtFifteen(t *testing.T) {
	m := varint.Move{From: 12, To: 28}
	var operands [][]byte
	names := []string{
		"aaaaaaaa", "bbbbbbbb", "cccccccc", "dddddddd", "eeeeeeee",
		"ffffffff", "gggggggg", "hhhhhhhh", "iiiiiiii", "jjjjjjjj",
		"kkkkkkkk", "llllllll", "mmmmmmmm", "nnnnnnnn", "oooooooo",
		"pppppppp", "qqqqqqqq",
	}
	for i, name := range names {
		rating := uint16(2200 + i*10)
		operands = append(operands, NewMastersSingle(m, gid(name), stats.OutcomeWhite, rating, rating).Encode())
	}

	merged, err := MergeMasters(nil, operands)
	if err != nil {
		t.Fatal(err)
	}
	e, err := DecodeMasters(merged)
	if err != nil {
		t.Fatal(err)
	}
	g := e.Group(varint.Pack(m))
	if len(g.Games) > MastersReservoirSize {
		t.Fatalf("expected at most %d games, got %d", MastersReservoirSize, len(g.Games))
	}
	if g.Stats.Total() != uint64(len(names)) {
		t.Fatalf("expected stats total to count every game even if its sample was evicted, got %d", g.Stats.Total())
	}
}
