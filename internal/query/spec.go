// Package query implements the explorer's read path: resolving a
// PlaySpec to a position, scanning the appropriate storage scope within
// a bucket range, folding records in memory, reconstructing history by
// differencing, and assembling the final response.
//
// © 2025 opening-explorer authors. MIT License.
package query

import (
	"github.com/opnexpl/openingexplorer/internal/api"
	"github.com/opnexpl/openingexplorer/internal/chess"
	"github.com/opnexpl/openingexplorer/internal/key"
)

// Resolved is the position a query resolves to.
type Resolved struct {
	Position *chess.Position
	// Root is the position before spec.UCIMoves were replayed (the
	// starting FEN or the variant's standard start), kept so callers can
	// re-walk the mainline (e.g. opening.Table.ClassifyAlongPlay) without
	// replaying moves onto an already-advanced position.
	Root    *chess.Position
	Variant chess.Variant
	Ply     uint32
}

// Resolve replays spec's moves from its starting position (or the
// variant's standard start) and returns the resulting position, ready to
// build a scan prefix from.
func Resolve(spec api.PlaySpec) (Resolved, error) {
	variant, err := chess.ParseVariant(spec.Variant)
	if err != nil {
		return Resolved{}, api.ErrValidation{Reason: err.Error()}
	}

	var pos *chess.Position
	if spec.FEN != "" {
		pos, err = chess.ParseFEN(spec.FEN)
	} else {
		pos = chess.NewGame()
	}
	if err != nil {
		return Resolved{}, api.ErrValidation{Reason: err.Error()}
	}
	rootCopy := *pos
	root := &rootCopy

	for _, uciStr := range spec.UCIMoves {
		mv, err := chess.ParseUCI(uciStr)
		if err != nil {
			return Resolved{}, api.ErrValidation{Reason: err.Error()}
		}
		if err := pos.PlayUCI(mv); err != nil {
			return Resolved{}, api.ErrValidation{Reason: err.Error()}
		}
	}

	return Resolved{Position: pos, Root: root, Variant: variant, Ply: uint32(len(spec.UCIMoves))}, nil
}

// MastersPrefix/LichessPrefix build the scan prefix for the shared,
// unsalted scopes.
func (r Resolved) MastersPrefix() key.PositionPrefix {
	return key.BuildPrefix(key.Base128{}, r.Position.Zobrist(), r.Variant.Constant())
}

func (r Resolved) LichessPrefix() key.PositionPrefix {
	return key.BuildPrefix(key.Base128{}, r.Position.Zobrist(), r.Variant.Constant())
}

// PlayerPrefix builds the scan prefix for one user's salted scope.
func (r Resolved) PlayerPrefix(userID string, color key.Color) key.PositionPrefix {
	base := key.PlayerBase(userID, color)
	return key.BuildPrefix(base, r.Position.Zobrist(), r.Variant.Constant())
}

