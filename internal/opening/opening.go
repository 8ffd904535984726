// Package opening implements a read-mostly ECO opening-classification
// table, keyed by the zobrist hash of the position reached after playing
// out each entry's UCI mainline.
//
// A flat TSV table (ECO code, name, space-separated UCI mainline) is
// loaded once at startup and replayed against internal/chess to build a
// hash->Opening map. The map lives behind an atomic.Pointer so a
// periodic reload (every ~167 min) never blocks concurrent
// classification lookups from query handlers.
//
// © 2025 opening-explorer authors. MIT License.
package opening

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/opnexpl/openingexplorer/internal/api"
	"github.com/opnexpl/openingexplorer/internal/chess"
)

// RefreshInterval is the openings-table reload cadence.
const RefreshInterval = 167 * 60 // seconds, kept as a const for callers wiring their own ticker

// table is one immutable snapshot of the classification data.
type table struct {
	byHash map[chess.Zobrist]api.OpeningRef
}

// Table is the shared, cheap-to-read opening classifier. The zero value is
// usable and classifies nothing until Load is called.
type Table struct {
	current atomic.Pointer[table]
}

// New returns an empty Table.
func New() *Table {
	t := &Table{}
	t.current.Store(&table{byHash: map[chess.Zobrist]api.OpeningRef{}})
	return t
}

// Len reports how many openings the current snapshot carries.
func (t *Table) Len() int {
	return len(t.current.Load().byHash)
}

// Load replays every TSV record's mainline from the standard starting
// position and atomically swaps in the resulting classification table.
// Each TSV record has three tab-separated fields: eco, name, uci (a
// space-separated list of UCI tokens).
//
// The source format the loader feeds this table is this module's own
// choice to make. A from-scratch loader would read PGN/SAN mainlines,
// which needs a full legal-move generator (check detection,
// disambiguation, capture notation) to resolve — exactly the per-variant
// legality work internal/chess deliberately leaves out. UCI mainlines
// need none of that: internal/chess.PlayUCI already trusts the caller,
// so the loader can reuse it directly. A duplicate zobrist hash across
// records is rejected as an error.
func (t *Table) Load(r io.Reader) error {
	next := &table{byHash: make(map[chess.Zobrist]api.OpeningRef, 4096)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "eco\t") {
			continue // header or blank line
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			return fmt.Errorf("opening: line %d: want 3 tab-separated fields, got %d", lineNo, len(fields))
		}
		eco, name, uci := fields[0], fields[1], fields[2]

		pos := chess.NewGame()
		for _, token := range strings.Fields(uci) {
			mv, err := chess.ParseUCI(token)
			if err != nil {
				return fmt.Errorf("opening: line %d: uci %q: %w", lineNo, token, err)
			}
			if err := pos.PlayUCI(mv); err != nil {
				return fmt.Errorf("opening: line %d: play %q: %w", lineNo, token, err)
			}
		}

		z := pos.Zobrist()
		if _, dup := next.byHash[z]; dup {
			return fmt.Errorf("opening: line %d: duplicate opening position", lineNo)
		}
		next.byHash[z] = api.OpeningRef{ECO: eco, Name: name}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	t.current.Store(next)
	return nil
}

// sensibleVariants are the variants classification makes sense for;
// castling/drops in the others make ECO mainlines ambiguous or
// meaningless.
var sensibleVariants = map[chess.Variant]bool{
	chess.Standard:      true,
	chess.Crazyhouse:    true,
	chess.ThreeCheck:    true,
	chess.KingOfTheHill: true,
}

// Classify looks up pos's exact zobrist hash, or nil if pos's variant
// isn't ECO-sensible or no entry matches.
func (t *Table) Classify(variant chess.Variant, pos *chess.Position) *api.OpeningRef {
	if !sensibleVariants[variant] {
		return nil
	}
	cur := t.current.Load()
	if ref, ok := cur.byHash[pos.Zobrist()]; ok {
		out := ref
		return &out
	}
	return nil
}

// ClassifyAlongPlay replays moves from root, returning the most specific
// (deepest) opening matched anywhere along the way: each ply's
// classification overrides the previous one only when a match is found,
// so a mainline that goes "out of book" keeps reporting the last known
// opening instead of losing it. root is left untouched; the replay runs
// on a copy.
func (t *Table) ClassifyAlongPlay(variant chess.Variant, root *chess.Position, moves []string) (*api.OpeningRef, error) {
	opening := t.Classify(variant, root)
	walk := *root
	pos := &walk
	for _, uciStr := range moves {
		mv, err := chess.ParseUCI(uciStr)
		if err != nil {
			return nil, err
		}
		if err := pos.PlayUCI(mv); err != nil {
			return nil, err
		}
		if ref := t.Classify(variant, pos); ref != nil {
			opening = ref
		}
	}
	return opening, nil
}
