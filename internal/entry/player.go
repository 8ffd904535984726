// © 2025 opening-explorer authors. MIT License.

package entry

// player.go implements the player-scope aggregated entry: like lichess,
// but groups are keyed only by (speed, mode) and the reservoir is 8
// games, sharing the lichess block shape with a narrower group key and
// cap.

import (
	"sort"

	"github.com/opnexpl/openingexplorer/internal/key"
	"github.com/opnexpl/openingexplorer/internal/stats"
	"github.com/opnexpl/openingexplorer/internal/varint"
)

// PlayerReservoirSize is the width of the entry-wide recency window: a
// group keeps only games among the entry's PlayerReservoirSize most recent
// insertions.
const PlayerReservoirSize = 8

type playerSubKey struct {
	Speed Speed
	Mode  Mode
}

// PlayerGameRef mirrors LichessGameRef for the player pipeline's own
// reservoir.
type PlayerGameRef struct {
	Idx  uint64
	Game key.GameID
}

// PlayerGroup is the (stats, reservoir) pair for one (speed, mode) slice.
type PlayerGroup struct {
	Stats stats.Stats
	Games []PlayerGameRef
}

func (g *PlayerGroup) isEmpty() bool {
	return g.Stats.Total() == 0 && len(g.Games) == 0
}

// PlayerEntry aggregates every (move, speed, mode) group reached from one
// position in a single user's index.
type PlayerEntry struct {
	groups     map[varint.PackedMove]map[playerSubKey]*PlayerGroup
	maxGameIdx uint64
}

// NewPlayerEntry returns an empty entry.
func NewPlayerEntry() *PlayerEntry {
	return &PlayerEntry{groups: make(map[varint.PackedMove]map[playerSubKey]*PlayerGroup)}
}

// NewPlayerSingle builds the singleton entry contributed by one game.
// opponentRating, not the subject's own rating, is what the group's Stats
// tracks: the subject already knows their own rating from their profile,
// but wants to know the strength of the opposition this move has faced,
// which also lets Prepare reconstruct a performance rating.
func NewPlayerSingle(m varint.Move, speed Speed, mode Mode, id key.GameID, outcome stats.Outcome, opponentRating uint16) *PlayerEntry {
	e := NewPlayerEntry()
	sub := playerSubKey{Speed: speed, Mode: mode}
	e.groups[varint.Pack(m)] = map[playerSubKey]*PlayerGroup{
		sub: {
			Stats: stats.NewSingle(outcome, uint64(opponentRating)),
			Games: []PlayerGameRef{{Idx: 0, Game: id}},
		},
	}
	return e
}

// Moves returns the packed moves present in the entry.
func (e *PlayerEntry) Moves() []varint.PackedMove {
	moves := make([]varint.PackedMove, 0, len(e.groups))
	for m := range e.groups {
		moves = append(moves, m)
	}
	return moves
}

// Group returns the (speed, mode) slice for move m, or nil.
func (e *PlayerEntry) Group(m varint.PackedMove, speed Speed, mode Mode) *PlayerGroup {
	sub, ok := e.groups[m]
	if !ok {
		return nil
	}
	return sub[playerSubKey{Speed: speed, Mode: mode}]
}

func (e *PlayerEntry) subEntry(m varint.PackedMove) map[playerSubKey]*PlayerGroup {
	sub, ok := e.groups[m]
	if !ok {
		sub = make(map[playerSubKey]*PlayerGroup)
		e.groups[m] = sub
	}
	return sub
}

func encodePlayerHeader(speed Speed, mode Mode, numGames int) byte {
	small := numGames
	if small > 3 {
		small = 3
	}
	modeBit := byte(0)
	if mode == Casual {
		modeBit = 1
	}
	return byte(speed+1) | modeBit<<3 | byte(small)<<6
}

func decodePlayerHeader(b byte) (speed Speed, mode Mode, end bool) {
	if b&0x7 == 0 {
		return 0, 0, true
	}
	speed = Speed((b & 0x7) - 1)
	mode = Rated
	if (b>>3)&1 == 1 {
		mode = Casual
	}
	return speed, mode, false
}

// ExtendFrom folds the groups encoded in buf into e.
func (e *PlayerEntry) ExtendFrom(buf []byte) error {
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
			speed, mode, end := decodePlayerHeader(header)
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

			games := make([]PlayerGameRef, 0, numGames)
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
				games = append(games, PlayerGameRef{Idx: idx, Game: id})
				if idx > e.maxGameIdx {
					e.maxGameIdx = idx
				}
			}

			subKey := playerSubKey{Speed: speed, Mode: mode}
			group, ok := sub[subKey]
			if !ok {
				group = &PlayerGroup{}
				sub[subKey] = group
			}
			group.Stats = group.Stats.Add(s)
			group.Games = append(group.Games, games...)
		}
	}
	return nil
}

// DecodePlayer decodes a single player block into a fresh entry.
func DecodePlayer(buf []byte) (*PlayerEntry, error) {
	e := NewPlayerEntry()
	if err := e.ExtendFrom(buf); err != nil {
		return nil, err
	}
	return e, nil
}

// Encode writes e's binary form, keeping in each group only the games
// among the entry's PlayerReservoirSize most recent insertions (unless the
// group holds exactly one game).
func (e *PlayerEntry) Encode() []byte {
	discard := uint64(0)
	if e.maxGameIdx > PlayerReservoirSize {
		discard = e.maxGameIdx - PlayerReservoirSize
	}

	moves := e.Moves()
	sort.Slice(moves, func(i, j int) bool { return moves[i] < moves[j] })

	var buf []byte
	for _, m := range moves {
		buf = varint.AppendPackedMove(buf, m)
		sub := e.groups[m]

		subKeys := make([]playerSubKey, 0, len(sub))
		for k := range sub {
			subKeys = append(subKeys, k)
		}
		sort.Slice(subKeys, func(i, j int) bool {
			if subKeys[i].Speed != subKeys[j].Speed {
				return subKeys[i].Speed < subKeys[j].Speed
			}
			return subKeys[i].Mode < subKeys[j].Mode
		})

		for _, sk := range subKeys {
			g := sub[sk]
			if g.isEmpty() {
				continue
			}
			kept := g.Games
			if len(g.Games) != 1 {
				kept = make([]PlayerGameRef, 0, len(g.Games))
				for _, ref := range g.Games {
					if ref.Idx > discard {
						kept = append(kept, ref)
					}
				}
			}
			buf = append(buf, encodePlayerHeader(sk.Speed, sk.Mode, len(kept)))
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

// MergePlayer is the player column family's merge operator.
func MergePlayer(existing []byte, operands [][]byte) ([]byte, error) {
	agg := NewPlayerEntry()
	if len(existing) > 0 {
		if err := agg.ExtendFrom(existing); err != nil {
			return nil, err
		}
	}
	for _, op := range operands {
		tmp := NewPlayerEntry()
		if err := tmp.ExtendFrom(op); err != nil {
			return nil, err
		}
		base := agg.maxGameIdx
		for m, sub := range tmp.groups {
			aggSub := agg.subEntry(m)
			for sk, g := range sub {
				aggGroup, ok := aggSub[sk]
				if !ok {
					aggGroup = &PlayerGroup{}
					aggSub[sk] = aggGroup
				}
				aggGroup.Stats = aggGroup.Stats.Add(g.Stats)
				for _, ref := range g.Games {
					newIdx := base + 1 + ref.Idx
					aggGroup.Games = append(aggGroup.Games, PlayerGameRef{Idx: newIdx, Game: ref.Game})
					if newIdx > agg.maxGameIdx {
						agg.maxGameIdx = newIdx
					}
				}
			}
		}
	}
	return agg.Encode(), nil
}
