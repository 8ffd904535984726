// © 2025 opening-explorer authors. MIT License.

package chess

import "github.com/opnexpl/openingexplorer/internal/varint"

// Color is the side owning a piece or to move.
type Color uint8

const (
	White Color = iota
	Black
)

// Opposite returns the other color.
func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// Piece packs a color and a role; PieceNone is the empty-square sentinel.
type Piece struct {
	Color Color
	Role  varint.Role
}

// PieceNone marks an empty square.
var PieceNone = Piece{Role: varint.RoleNone}

// IsEmpty reports whether p is the empty-square sentinel.
func (p Piece) IsEmpty() bool {
	return p.Role == varint.RoleNone
}
