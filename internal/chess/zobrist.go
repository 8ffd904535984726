// © 2025 opening-explorer authors. MIT License.

package chess

import (
	"math/rand"

	"github.com/opnexpl/openingexplorer/internal/varint"
)

// Zobrist is a 128-bit position hash, split into two halves so callers can
// feed it directly into the key package's 128-bit XOR arithmetic without a
// byte-slice round trip.
type Zobrist struct {
	Hi, Lo uint64
}

// XOR returns the component-wise XOR of z and o.
func (z Zobrist) XOR(o Zobrist) Zobrist {
	return Zobrist{Hi: z.Hi ^ o.Hi, Lo: z.Lo ^ o.Lo}
}

// zobristSeed is fixed so the hash table (and therefore every derived
// position hash) is stable across processes and builds.
const zobristSeed = 0x4f70656e696e6745 // "OpeningE"

// zobristTables groups every hash table so package-level initialization
// order is a single var dependency rather than a chain of init funcs.
type zobristTables struct {
	pieces    [64][2][7]Zobrist // square, color, role (RoleNone unused)
	sideBlack Zobrist
	castling  [4]Zobrist // WK, WQ, BK, BQ
	enPassant [8]Zobrist // by file
}

var ztab = buildZobristTables()

func buildZobristTables() zobristTables {
	var t zobristTables
	rng := rand.New(rand.NewSource(zobristSeed))
	next := func() Zobrist {
		return Zobrist{Hi: rng.Uint64(), Lo: rng.Uint64()}
	}
	for sq := 0; sq < 64; sq++ {
		for c := 0; c < 2; c++ {
			for r := 1; r <= 6; r++ {
				t.pieces[sq][c][r] = next()
			}
		}
	}
	t.sideBlack = next()
	for i := range t.castling {
		t.castling[i] = next()
	}
	for i := range t.enPassant {
		t.enPassant[i] = next()
	}
	return t
}

func pieceZobrist(sq varint.Square, p Piece) Zobrist {
	if p.IsEmpty() {
		return Zobrist{}
	}
	return ztab.pieces[sq][p.Color][p.Role]
}
