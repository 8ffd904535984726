// Package api defines the shape of the service's six wire operations
// (QueryMasters, QueryLichess, QueryPlayer, ImportMasters,
// ImportLichessBatch, GetMastersPGN), plus the typed rejection and
// validation errors each can return. The HTTP/RPC glue that would carry
// these over the wire lives outside this module; this package only
// defines the Go-level contract internal/importer, internal/indexer and
// internal/query implement against.
//
// © 2025 opening-explorer authors. MIT License.
package api

import (
	"fmt"

	"github.com/opnexpl/openingexplorer/internal/key"
)

// ErrDuplicateGame is returned when a game id (or, for masters, its final
// position) has already been imported.
type ErrDuplicateGame struct {
	ID key.GameID
}

func (e ErrDuplicateGame) Error() string { return fmt.Sprintf("duplicate game %s", e.ID) }

// ErrRejectedRating is returned when a masters submission's midpoint
// rating falls below the 2200 floor.
type ErrRejectedRating struct {
	ID     key.GameID
	Rating uint16
}

func (e ErrRejectedRating) Error() string {
	return fmt.Sprintf("rejected game %s: rating %d below masters floor", e.ID, e.Rating)
}

// ErrRejectedDate is returned when a submission's date fails validation:
// for masters, a declared date strictly after tomorrow (UTC); for
// lichess, an unparsable or pre-1952 month.
type ErrRejectedDate struct {
	ID   key.GameID
	Date string
}

func (e ErrRejectedDate) Error() string {
	return fmt.Sprintf("rejected game %s: invalid date %q", e.ID, e.Date)
}

// ErrQueueFull is the back-pressure signal for a saturated indexer
// queue, reported to the caller immediately rather than queued behind.
type ErrQueueFull struct {
	UserID string
}

func (e ErrQueueFull) Error() string { return fmt.Sprintf("indexer queue full for %s", e.UserID) }

// ErrValidation wraps malformed input (bad FEN, illegal UCI, unknown
// variant) that is never a domain rejection, just invalid.
type ErrValidation struct {
	Reason string
}

func (e ErrValidation) Error() string { return "validation: " + e.Reason }
