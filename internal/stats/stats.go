// Package stats implements the Stats record: per-position outcome counts
// plus a rating sum, and its compact binary encoding.
//
// Stats is a monoid under component-wise addition: Add must be
// associative and commutative so the storage engine's merge operator
// can fold operands in any order.
//
// © 2025 opening-explorer authors. MIT License.
package stats

import "github.com/opnexpl/openingexplorer/internal/varint"

// Outcome is the result of a game by color: which side won the game, or a
// draw, regardless of which side is to move at the position.
type Outcome uint8

const (
	OutcomeWhite Outcome = iota
	OutcomeDraw
	OutcomeBlack
)

// Stats is a monoid under component-wise addition.
type Stats struct {
	RatingSum uint64
	White     uint64
	Draws     uint64
	Black     uint64
}

// NewSingle builds the singleton Stats contributed by one game: one count
// in the winner's slot (or draws), rating_sum set to the supplied value
// (the paired rating for masters, the mover's rating for lichess, or the
// opponent's rating for player).
func NewSingle(outcome Outcome, rating uint64) Stats {
	s := Stats{RatingSum: rating}
	switch outcome {
	case OutcomeWhite:
		s.White = 1
	case OutcomeBlack:
		s.Black = 1
	default:
		s.Draws = 1
	}
	return s
}

// Add returns the component-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		RatingSum: s.RatingSum + o.RatingSum,
		White:     s.White + o.White,
		Draws:     s.Draws + o.Draws,
		Black:     s.Black + o.Black,
	}
}

// Total returns the number of games contributing to s.
func (s Stats) Total() uint64 {
	return s.White + s.Draws + s.Black
}

// AverageRating returns RatingSum/Total, or 0 if Total is 0.
func (s Stats) AverageRating() uint64 {
	if s.Total() == 0 {
		return 0
	}
	return s.RatingSum / s.Total()
}

// Encode appends the compact binary form of s to dst:
// varint(rating_sum) || tail, where tail compresses the common singleton
// cases (0 = (1,0,0), 1 = (0,0,1), 2 = (0,1,0)); any other value v >= 3
// encodes white = v-3 followed by varint(draws) || varint(black).
func (s Stats) Encode(dst []byte) []byte {
	dst = varint.AppendUint(dst, s.RatingSum)

	switch {
	case s.White == 1 && s.Draws == 0 && s.Black == 0:
		return varint.AppendUint(dst, 0)
	case s.White == 0 && s.Draws == 0 && s.Black == 1:
		return varint.AppendUint(dst, 1)
	case s.White == 0 && s.Draws == 1 && s.Black == 0:
		return varint.AppendUint(dst, 2)
	default:
		dst = varint.AppendUint(dst, s.White+3)
		dst = varint.AppendUint(dst, s.Draws)
		dst = varint.AppendUint(dst, s.Black)
		return dst
	}
}

// Decode reads a Stats record from the start of buf, returning the value
// and the number of bytes consumed.
func Decode(buf []byte) (Stats, int, error) {
	ratingSum, n1, err := varint.Uint(buf)
	if err != nil {
		return Stats{}, 0, err
	}
	buf = buf[n1:]

	tail, n2, err := varint.Uint(buf)
	if err != nil {
		return Stats{}, 0, err
	}
	buf = buf[n2:]
	consumed := n1 + n2

	switch tail {
	case 0:
		return Stats{RatingSum: ratingSum, White: 1}, consumed, nil
	case 1:
		return Stats{RatingSum: ratingSum, Black: 1}, consumed, nil
	case 2:
		return Stats{RatingSum: ratingSum, Draws: 1}, consumed, nil
	default:
		white := tail - 3
		draws, n3, err := varint.Uint(buf)
		if err != nil {
			return Stats{}, 0, err
		}
		buf = buf[n3:]
		black, n4, err := varint.Uint(buf)
		if err != nil {
			return Stats{}, 0, err
		}
		consumed += n3 + n4
		return Stats{RatingSum: ratingSum, White: white, Draws: draws, Black: black}, consumed, nil
	}
}
