// © 2025 opening-explorer authors. MIT License.

package entry

// gameinfo.go implements the per-game metadata record stored in the
// *_game column families: outcome, speed, mode, both players, month
// bucket, and index-status flags.

import (
	"errors"

	"github.com/opnexpl/openingexplorer/internal/stats"
	"github.com/opnexpl/openingexplorer/internal/varint"
)

// MaxPlayerNameLen bounds a player's name field.
const MaxPlayerNameLen = 30

// IndexFlags are OR-merged across operands so a re-index from the other
// color, or from the lichess batch pipeline, never clobbers a flag a prior
// write already set.
type IndexFlags uint8

const (
	IndexedFromWhite IndexFlags = 1 << iota
	IndexedFromBlack
	IndexedLichess
)

// Player is one side's name and rating at game time.
type Player struct {
	Name   string
	Rating uint16
}

// GameInfo is the fixed-shape per-game metadata record.
type GameInfo struct {
	Outcome stats.Outcome
	Speed   Speed
	Mode    Mode
	White   Player
	Black   Player
	Month   uint16 // months since 1952-01, same scale as key.MonthBucket
	Flags   IndexFlags
}

var errNameTooLong = errors.New("entry: player name exceeds MaxPlayerNameLen")

func encodePlayer(dst []byte, p Player) ([]byte, error) {
	name := p.Name
	if len(name) > MaxPlayerNameLen {
		return nil, errNameTooLong
	}
	dst = varint.AppendUint(dst, uint64(len(name)))
	dst = append(dst, name...)
	dst = append(dst, byte(p.Rating), byte(p.Rating>>8))
	return dst, nil
}

func decodePlayer(buf []byte) (Player, int, error) {
	nameLen, n1, err := varint.Uint(buf)
	if err != nil {
		return Player{}, 0, err
	}
	buf = buf[n1:]
	if uint64(len(buf)) < nameLen+2 {
		return Player{}, 0, varint.ErrTruncated
	}
	name := string(buf[:nameLen])
	buf = buf[nameLen:]
	rating := uint16(buf[0]) | uint16(buf[1])<<8
	return Player{Name: name, Rating: rating}, n1 + int(nameLen) + 2, nil
}

// The leading byte packs speed (bits 0-2), outcome (bits 3-4, black=0
// white=1 draw=2), rated (bit 5), indexed_from_white (bit 6) and
// indexed_from_black (bit 7); indexed_lichess rides as the trailing byte
// after the month.

func encodeOutcomeBits(o stats.Outcome) byte {
	switch o {
	case stats.OutcomeBlack:
		return 0
	case stats.OutcomeWhite:
		return 1
	default:
		return 2
	}
}

func decodeOutcomeBits(b byte) (stats.Outcome, error) {
	switch b {
	case 0:
		return stats.OutcomeBlack, nil
	case 1:
		return stats.OutcomeWhite, nil
	case 2:
		return stats.OutcomeDraw, nil
	default:
		return 0, errors.New("entry: bad outcome bits in game info")
	}
}

// Encode writes g's fixed-shape binary form.
func (g GameInfo) Encode() ([]byte, error) {
	head := byte(g.Speed) | encodeOutcomeBits(g.Outcome)<<3
	if g.Mode == Rated {
		head |= 1 << 5
	}
	if g.Flags&IndexedFromWhite != 0 {
		head |= 1 << 6
	}
	if g.Flags&IndexedFromBlack != 0 {
		head |= 1 << 7
	}
	buf := []byte{head}
	var err error
	buf, err = encodePlayer(buf, g.White)
	if err != nil {
		return nil, err
	}
	buf, err = encodePlayer(buf, g.Black)
	if err != nil {
		return nil, err
	}
	buf = append(buf, byte(g.Month), byte(g.Month>>8))
	indexedLichess := byte(0)
	if g.Flags&IndexedLichess != 0 {
		indexedLichess = 1
	}
	buf = append(buf, indexedLichess)
	return buf, nil
}

// DecodeGameInfo decodes a GameInfo record.
func DecodeGameInfo(buf []byte) (GameInfo, error) {
	if len(buf) < 1 {
		return GameInfo{}, varint.ErrTruncated
	}
	head := buf[0]
	buf = buf[1:]

	var g GameInfo
	g.Speed = Speed(head & 0x7)
	if g.Speed > Correspondence {
		return GameInfo{}, errors.New("entry: bad speed bits in game info")
	}
	outcome, err := decodeOutcomeBits((head >> 3) & 0x3)
	if err != nil {
		return GameInfo{}, err
	}
	g.Outcome = outcome
	g.Mode = Casual
	if (head>>5)&1 == 1 {
		g.Mode = Rated
	}
	if (head>>6)&1 == 1 {
		g.Flags |= IndexedFromWhite
	}
	if (head>>7)&1 == 1 {
		g.Flags |= IndexedFromBlack
	}

	white, n, err := decodePlayer(buf)
	if err != nil {
		return GameInfo{}, err
	}
	buf = buf[n:]
	g.White = white

	black, n, err := decodePlayer(buf)
	if err != nil {
		return GameInfo{}, err
	}
	buf = buf[n:]
	g.Black = black

	if len(buf) < 3 {
		return GameInfo{}, varint.ErrTruncated
	}
	g.Month = uint16(buf[0]) | uint16(buf[1])<<8
	if buf[2] != 0 {
		g.Flags |= IndexedLichess
	}
	return g, nil
}

// MergeGameInfo takes the most recent payload (the last operand, or
// existing if there are no operands) but OR-merges IndexFlags across
// every operand so a re-index from the other color can't erase a flag a
// prior write already set.
func MergeGameInfo(existing []byte, operands [][]byte) ([]byte, error) {
	var latest GameInfo
	var flags IndexFlags
	haveLatest := false

	if len(existing) > 0 {
		g, err := DecodeGameInfo(existing)
		if err != nil {
			return nil, err
		}
		latest = g
		flags |= g.Flags
		haveLatest = true
	}
	for _, op := range operands {
		g, err := DecodeGameInfo(op)
		if err != nil {
			return nil, err
		}
		latest = g
		flags |= g.Flags
		haveLatest = true
	}
	if !haveLatest {
		return nil, errors.New("entry: MergeGameInfo called with no data")
	}
	latest.Flags = flags
	return latest.Encode()
}
