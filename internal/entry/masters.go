// © 2025 opening-explorer authors. MIT License.

package entry

// masters.go implements the masters-scope aggregated entry: one group per
// move, a single global top-15 sample-game reservoir ranked by the
// combined rating of both players.

import (
	"sort"

	"github.com/opnexpl/openingexplorer/internal/key"
	"github.com/opnexpl/openingexplorer/internal/stats"
	"github.com/opnexpl/openingexplorer/internal/varint"
)

// MastersReservoirSize is the global sample-game cap for a masters entry.
const MastersReservoirSize = 15

// MastersGameRef is one sample game retained by a masters group.
type MastersGameRef struct {
	SortKey uint16 // combined (mover + opponent) rating, saturating
	Game    key.GameID
}

// MastersGroup is the (stats, reservoir) pair for one move.
type MastersGroup struct {
	Stats stats.Stats
	Games []MastersGameRef
}

// MastersEntry aggregates all groups reached from one position, keyed by
// the move played from it.
type MastersEntry struct {
	groups map[varint.PackedMove]*MastersGroup
}

// NewMastersEntry returns an empty entry, ready to extend from encoded
// operands.
func NewMastersEntry() *MastersEntry {
	return &MastersEntry{groups: make(map[varint.PackedMove]*MastersGroup)}
}

// NewMastersSingle builds the singleton entry contributed by one game
// reaching this position and playing move m.
func NewMastersSingle(m varint.Move, id key.GameID, outcome stats.Outcome, moverRating, opponentRating uint16) *MastersEntry {
	e := NewMastersEntry()
	sortKey := saturatingAddU16(moverRating, opponentRating)
	e.groups[varint.Pack(m)] = &MastersGroup{
		Stats: stats.NewSingle(outcome, uint64(moverRating)+uint64(opponentRating)),
		Games: []MastersGameRef{{SortKey: sortKey, Game: id}},
	}
	return e
}

func saturatingAddU16(a, b uint16) uint16 {
	sum := uint32(a) + uint32(b)
	if sum > 0xffff {
		return 0xffff
	}
	return uint16(sum)
}

// Moves returns the packed moves present in the entry, for iteration by
// callers that need a stable view (e.g. Prepare).
func (e *MastersEntry) Moves() []varint.PackedMove {
	moves := make([]varint.PackedMove, 0, len(e.groups))
	for m := range e.groups {
		moves = append(moves, m)
	}
	return moves
}

// Group returns the group for move m, or nil if absent.
func (e *MastersEntry) Group(m varint.PackedMove) *MastersGroup {
	return e.groups[m]
}

// ExtendFrom folds the groups encoded in buf into e, in place. Used both
// to decode a single operand and, repeated across operands, to
// implement Merge.
func (e *MastersEntry) ExtendFrom(buf []byte) error {
	for len(buf) > 0 {
		pm, err := varint.ReadPackedMove(buf)
		if err != nil {
			return err
		}
		buf = buf[2:]

		s, n, err := stats.Decode(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]

		if len(buf) < 1 {
			return varint.ErrTruncated
		}
		numGames := int(buf[0])
		buf = buf[1:]

		games := make([]MastersGameRef, 0, numGames)
		for i := 0; i < numGames; i++ {
			if len(buf) < 2+len(key.GameID{}) {
				return varint.ErrTruncated
			}
			sortKey := uint16(buf[0]) | uint16(buf[1])<<8
			buf = buf[2:]
			var id key.GameID
			copy(id[:], buf[:len(id)])
			buf = buf[len(id):]
			games = append(games, MastersGameRef{SortKey: sortKey, Game: id})
		}

		group, ok := e.groups[pm]
		if !ok {
			group = &MastersGroup{}
			e.groups[pm] = group
		}
		group.Stats = group.Stats.Add(s)
		group.Games = append(group.Games, games...)
	}
	return nil
}

// DecodeMasters decodes a single masters block into a fresh entry.
func DecodeMasters(buf []byte) (*MastersEntry, error) {
	e := NewMastersEntry()
	if err := e.ExtendFrom(buf); err != nil {
		return nil, err
	}
	return e, nil
}

// Encode writes e's binary form: per move, packed_move || stats ||
// num_games(u8) || games[], keeping only the globally top-15 games by
// sort key (plus any group with exactly one game, the single-entry
// optimization that keeps a brand-new position's write minimal).
func (e *MastersEntry) Encode() []byte {
	threshold, only := e.globalThreshold()

	moves := e.Moves()
	sort.Slice(moves, func(i, j int) bool { return moves[i] < moves[j] })

	var buf []byte
	for _, m := range moves {
		g := e.groups[m]
		buf = varint.AppendPackedMove(buf, m)
		buf = g.Stats.Encode(buf)

		kept := g.Games
		if !only && len(g.Games) > 1 {
			kept = make([]MastersGameRef, 0, len(g.Games))
			for _, ref := range g.Games {
				if ref.SortKey >= threshold {
					kept = append(kept, ref)
				}
			}
		}
		if len(kept) > 255 {
			kept = kept[:255]
		}
		buf = append(buf, byte(len(kept)))
		for _, ref := range kept {
			buf = append(buf, byte(ref.SortKey), byte(ref.SortKey>>8))
			buf = append(buf, ref.Game[:]...)
		}
	}
	return buf
}

// globalThreshold finds the MastersReservoirSize-th highest sort key
// across every group's games. only reports whether the total number of
// games across the whole entry is already at or below the reservoir cap
// (in which case every game is kept regardless of its key).
func (e *MastersEntry) globalThreshold() (threshold uint16, only bool) {
	var all []uint16
	for _, g := range e.groups {
		for _, ref := range g.Games {
			all = append(all, ref.SortKey)
		}
	}
	if len(all) <= MastersReservoirSize {
		return 0, true
	}
	sort.Slice(all, func(i, j int) bool { return all[i] > all[j] })
	return all[MastersReservoirSize-1], false
}

// MergeMasters is the masters column family's merge operator: fold
// existing (which may be empty, for a first write) with every operand, in
// any order, then re-encode.
func MergeMasters(existing []byte, operands [][]byte) ([]byte, error) {
	e := NewMastersEntry()
	if len(existing) > 0 {
		if err := e.ExtendFrom(existing); err != nil {
			return nil, err
		}
	}
	for _, op := range operands {
		if err := e.ExtendFrom(op); err != nil {
			return nil, err
		}
	}
	return e.Encode(), nil
}
