// © 2025 opening-explorer authors. MIT License.

package entry

// lichess.go implements the lichess-scope aggregated entry: per move,
// groups indexed by (speed, rating band), whose sample games are trimmed to
// one entry-wide 15-game recency window (plus up to 4 "top" games drawn from the two highest
// rating bands, selected by the query path's Prepare step, not here).
//
// Game recency is tracked with a per-entry monotonic insertion counter.
// MergeLichess rebases each operand's local counters onto the running
// aggregate before encoding, which keeps the encode/decode pair for a
// single buffer a plain absolute-value round trip while preserving
// relative recency order across merges.

import (
	"sort"

	"github.com/opnexpl/openingexplorer/internal/key"
	"github.com/opnexpl/openingexplorer/internal/stats"
	"github.com/opnexpl/openingexplorer/internal/varint"
)

// LichessReservoirSize is the width of the entry-wide recency window: a
// group keeps only games among the entry's LichessReservoirSize most recent
// insertions.
const LichessReservoirSize = 15

const groupHeaderEnd = 0

// LichessGameRef is one sample game plus its insertion index, used for
// recency ordering and reservoir eviction.
type LichessGameRef struct {
	Idx  uint64
	Game key.GameID
}

// LichessGroup is the (stats, reservoir) pair for one (speed, rating
// group) slice of a single move.
type LichessGroup struct {
	Stats stats.Stats
	Games []LichessGameRef
}

func (g *LichessGroup) isEmpty() bool {
	return g.Stats.Total() == 0 && len(g.Games) == 0
}

type lichessSubKey struct {
	Speed       Speed
	RatingGroup RatingGroup
}

// LichessEntry aggregates every (move, speed, rating-group) group reached
// from one position.
type LichessEntry struct {
	groups     map[varint.PackedMove]map[lichessSubKey]*LichessGroup
	maxGameIdx uint64
}

// NewLichessEntry returns an empty entry.
func NewLichessEntry() *LichessEntry {
	return &LichessEntry{groups: make(map[varint.PackedMove]map[lichessSubKey]*LichessGroup)}
}

// NewLichessSingle builds the singleton entry contributed by one game.
// Its one game carries local insertion index 0; MergeLichess rebases it.
func NewLichessSingle(m varint.Move, speed Speed, id key.GameID, outcome stats.Outcome, moverRating, opponentRating uint16) *LichessEntry {
	e := NewLichessEntry()
	rg := SelectRatingGroup(moverRating, opponentRating)
	sub := lichessSubKey{Speed: speed, RatingGroup: rg}
	e.groups[varint.Pack(m)] = map[lichessSubKey]*LichessGroup{
		sub: {
			Stats: stats.NewSingle(outcome, uint64(moverRating)),
			Games: []LichessGameRef{{Idx: 0, Game: id}},
		},
	}
	return e
}

// Moves returns the packed moves present in the entry.
func (e *LichessEntry) Moves() []varint.PackedMove {
	moves := make([]varint.PackedMove, 0, len(e.groups))
	for m := range e.groups {
		moves = append(moves, m)
	}
	return moves
}

// Group returns the (speed, ratingGroup) slice for move m, or nil.
func (e *LichessEntry) Group(m varint.PackedMove, speed Speed, rg RatingGroup) *LichessGroup {
	sub, ok := e.groups[m]
	if !ok {
		return nil
	}
	return sub[lichessSubKey{Speed: speed, RatingGroup: rg}]
}

func (e *LichessEntry) subEntry(m varint.PackedMove) map[lichessSubKey]*LichessGroup {
	sub, ok := e.groups[m]
	if !ok {
		sub = make(map[lichessSubKey]*LichessGroup)
		e.groups[m] = sub
	}
	return sub
}

func encodeGroupHeader(speed Speed, rg RatingGroup, numGames int) byte {
	small := numGames
	if small > 3 {
		small = 3
	}
	return byte(speed+1) | byte(rg)<<3 | byte(small)<<6
}

func decodeGroupHeader(b byte) (speed Speed, rg RatingGroup, end bool) {
	if b&0x7 == groupHeaderEnd {
		return 0, 0, true
	}
	return Speed((b & 0x7) - 1), RatingGroup((b >> 3) & 0x7), false
}

// ExtendFrom folds the groups encoded in buf into e.
func (e *LichessEntry) ExtendFrom(buf []byte) error {
	for len(buf) > 0 {
		pm, err := varint.ReadPackedMove(buf)
		if err != nil {
			return err
		}
		buf = buf[2:]

		sub := e.subEntry(pm)
		for {
			if len(buf) < 1 {
				return varint.ErrTruncated
			}
			header := buf[0]
			buf = buf[1:]
			speed, rg, end := decodeGroupHeader(header)
			if end {
				break
			}
			numSmall := int((header >> 6) & 0x3)
			numGames := numSmall
			if numSmall == 3 {
				n, k, err := varint.Uint(buf)
				if err != nil {
					return err
				}
				buf = buf[k:]
				numGames = int(n)
			}

			s, n, err := stats.Decode(buf)
			if err != nil {
				return err
			}
			buf = buf[n:]

			games := make([]LichessGameRef, 0, numGames)
			for i := 0; i < numGames; i++ {
				idx, k, err := varint.Uint(buf)
				if err != nil {
					return err
				}
				buf = buf[k:]
				if len(buf) < len(key.GameID{}) {
					return varint.ErrTruncated
				}
				var id key.GameID
				copy(id[:], buf[:len(id)])
				buf = buf[len(id):]
				games = append(games, LichessGameRef{Idx: idx, Game: id})
				if idx > e.maxGameIdx {
					e.maxGameIdx = idx
				}
			}

			subKey := lichessSubKey{Speed: speed, RatingGroup: rg}
			group, ok := sub[subKey]
			if !ok {
				group = &LichessGroup{}
				sub[subKey] = group
			}
			group.Stats = group.Stats.Add(s)
			group.Games = append(group.Games, games...)
		}
	}
	return nil
}

// DecodeLichess decodes a single lichess block into a fresh entry.
func DecodeLichess(buf []byte) (*LichessEntry, error) {
	e := NewLichessEntry()
	if err := e.ExtendFrom(buf); err != nil {
		return nil, err
	}
	return e, nil
}

// Encode writes e's binary form, keeping in each group only the games
// among the entry's LichessReservoirSize most recent insertions (unless
// the group holds exactly one game, the single-entry optimization).
func (e *LichessEntry) Encode() []byte {
	discard := uint64(0)
	if e.maxGameIdx > LichessReservoirSize {
		discard = e.maxGameIdx - LichessReservoirSize
	}

	moves := e.Moves()
	sort.Slice(moves, func(i, j int) bool { return moves[i] < moves[j] })

	var buf []byte
	for _, m := range moves {
		buf = varint.AppendPackedMove(buf, m)
		sub := e.groups[m]

		subKeys := make([]lichessSubKey, 0, len(sub))
		for k := range sub {
			subKeys = append(subKeys, k)
		}
		sort.Slice(subKeys, func(i, j int) bool {
			if subKeys[i].Speed != subKeys[j].Speed {
				return subKeys[i].Speed < subKeys[j].Speed
			}
			return subKeys[i].RatingGroup < subKeys[j].RatingGroup
		})

		for _, sk := range subKeys {
			g := sub[sk]
			if g.isEmpty() {
				continue
			}
			kept := g.Games
			if len(g.Games) != 1 {
				kept = make([]LichessGameRef, 0, len(g.Games))
				for _, ref := range g.Games {
					if ref.Idx > discard {
						kept = append(kept, ref)
					}
				}
			}
			if len(kept) == 0 && g.Stats.Total() == 0 {
				continue
			}
			buf = append(buf, encodeGroupHeader(sk.Speed, sk.RatingGroup, len(kept)))
			if len(kept) >= 3 {
				buf = varint.AppendUint(buf, uint64(len(kept)))
			}
			buf = g.Stats.Encode(buf)
			for _, ref := range kept {
				buf = varint.AppendUint(buf, ref.Idx)
				buf = append(buf, ref.Game[:]...)
			}
		}
		buf = append(buf, groupHeaderEnd)
	}
	return buf
}

// MergeLichess is the lichess column family's merge operator.
func MergeLichess(existing []byte, operands [][]byte) ([]byte, error) {
	agg := NewLichessEntry()
	if len(existing) > 0 {
		if err := agg.ExtendFrom(existing); err != nil {
			return nil, err
		}
	}
	for _, op := range operands {
		tmp := NewLichessEntry()
		if err := tmp.ExtendFrom(op); err != nil {
			return nil, err
		}
		base := agg.maxGameIdx
		for m, sub := range tmp.groups {
			aggSub := agg.subEntry(m)
			for sk, g := range sub {
				aggGroup, ok := aggSub[sk]
				if !ok {
					aggGroup = &LichessGroup{}
					aggSub[sk] = aggGroup
				}
				aggGroup.Stats = aggGroup.Stats.Add(g.Stats)
				for _, ref := range g.Games {
					newIdx := base + 1 + ref.Idx
					aggGroup.Games = append(aggGroup.Games, LichessGameRef{Idx: newIdx, Game: ref.Game})
					if newIdx > agg.maxGameIdx {
						agg.maxGameIdx = newIdx
					}
				}
			}
		}
	}
	return agg.Encode(), nil
}
