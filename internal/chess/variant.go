// © 2025 opening-explorer authors. MIT License.

package chess

import "fmt"

// Variant identifies a chess rule-set. Every scope (masters/lichess/player)
// is partitioned by variant in addition to position, so each variant is
// assigned a fixed 128-bit constant that gets folded into the storage key
// alongside the position's zobrist hash (see internal/key.BuildPrefix).
type Variant uint8

const (
	Standard Variant = iota
	Chess960
	Crazyhouse
	Antichess
	Atomic
	Horde
	KingOfTheHill
	RacingKings
	ThreeCheck
)

var variantNames = map[Variant]string{
	Standard:      "standard",
	Chess960:      "chess960",
	Crazyhouse:    "crazyhouse",
	Antichess:     "antichess",
	Atomic:        "atomic",
	Horde:         "horde",
	KingOfTheHill: "kingOfTheHill",
	RacingKings:   "racingKings",
	ThreeCheck:    "threeCheck",
}

// String renders the variant's lichess-style identifier.
func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("variant(%d)", uint8(v))
}

// ParseVariant maps a lichess-style variant identifier back to a Variant.
func ParseVariant(s string) (Variant, error) {
	for v, name := range variantNames {
		if name == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("chess: unknown variant %q", s)
}

// numVariants bounds the constant table; keep in sync with the enum above.
const numVariants = int(ThreeCheck) + 1

// variantConstants holds each variant's fixed 128-bit salt, generated once
// from the same deterministic seed as the zobrist piece tables so the
// constants are reproducible without being checked in as a literal table.
// The var initializer (not an init func) ties its ordering to ztab's.
var variantConstants = buildVariantConstants()

func buildVariantConstants() [numVariants][16]byte {
	var out [numVariants][16]byte
	for v := Variant(0); int(v) < numVariants; v++ {
		if v == Standard {
			continue // standard chess keys carry no variant salt
		}
		z := zobristForVariant(v)
		putUint64(out[v][0:8], z.Hi)
		putUint64(out[v][8:16], z.Lo)
	}
	return out
}

func zobristForVariant(v Variant) Zobrist {
	// Reuse a slice of the piece table, offset by variant, as a cheap
	// deterministic per-variant constant; collisions across variants would
	// require two variants to pick the exact same (square, color, role)
	// triple, which they never do here.
	return ztab.pieces[int(v)%64][int(v)%2][(int(v)%6)+1]
}

func putUint64(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[i] = byte(v >> (56 - 8*i))
	}
}

// Constant returns v's fixed 128-bit storage salt.
func (v Variant) Constant() [16]byte {
	return variantConstants[v]
}
