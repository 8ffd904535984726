// © 2025 opening-explorer authors. MIT License.

package chess

// uci.go parses the three UCI move shapes the importer and indexer replay
// from stored game records: a normal/promotion move ("e2e4", "e7e8q"), a
// drop ("P@e4"), and the null move ("0000"). Parsing is permissive;
// the indexer/importer feed tokens straight into varint.Move via Pack
// for storage.
import (
	"fmt"

	"github.com/opnexpl/openingexplorer/internal/varint"
)

var uciPromoRole = map[byte]varint.Role{
	'n': varint.RoleKnight,
	'b': varint.RoleBishop,
	'r': varint.RoleRook,
	'q': varint.RoleQueen,
	'k': varint.RoleKing, // king promotion, which only antichess allows
}

// ParseUCI parses a UCI move string into a varint.Move, ready for
// Position.PlayUCI and varint.Pack.
func ParseUCI(s string) (varint.Move, error) {
	if s == "0000" {
		return varint.Move{IsNull: true}, nil
	}

	if len(s) >= 4 && s[1] == '@' {
		role, ok := fenPieceRole[lowerByte(s[0])]
		if !ok {
			return varint.Move{}, fmt.Errorf("chess: bad drop role %q", s)
		}
		to, err := parseSquareName(s[2:4])
		if err != nil {
			return varint.Move{}, err
		}
		return varint.Move{To: to, Role: role, IsDrop: true}, nil
	}

	if len(s) != 4 && len(s) != 5 {
		return varint.Move{}, fmt.Errorf("chess: bad uci move %q", s)
	}
	from, err := parseSquareName(s[0:2])
	if err != nil {
		return varint.Move{}, err
	}
	to, err := parseSquareName(s[2:4])
	if err != nil {
		return varint.Move{}, err
	}
	role := varint.RoleNone
	if len(s) == 5 {
		r, ok := uciPromoRole[lowerByte(s[4])]
		if !ok {
			return varint.Move{}, fmt.Errorf("chess: bad promotion role %q", s)
		}
		role = r
	}
	return varint.Move{From: from, To: to, Role: role}, nil
}

func lowerByte(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + 32
	}
	return b
}

var uciRoleLetter = map[varint.Role]byte{
	varint.RolePawn:   'p',
	varint.RoleKnight: 'n',
	varint.RoleBishop: 'b',
	varint.RoleRook:   'r',
	varint.RoleQueen:  'q',
	varint.RoleKing:   'k',
}

// FormatUCI renders m back to its UCI string form, the inverse of
// ParseUCI, used by the query path to label each prepared move.
func FormatUCI(m varint.Move) string {
	if m.IsNull {
		return "0000"
	}
	if m.IsDrop {
		letter := uciRoleLetter[m.Role]
		return string([]byte{letter - 32, '@'}) + squareName(m.To)
	}
	s := squareName(m.From) + squareName(m.To)
	if m.Role != varint.RoleNone {
		s += string(uciRoleLetter[m.Role])
	}
	return s
}

func squareName(sq varint.Square) string {
	file := byte('a' + int(sq)%8)
	rank := byte('1' + int(sq)/8)
	return string([]byte{file, rank})
}
