// © 2025 opening-explorer authors. MIT License.

package api

import (
	"github.com/opnexpl/openingexplorer/internal/entry"
	"github.com/opnexpl/openingexplorer/internal/key"
	"github.com/opnexpl/openingexplorer/internal/stats"
	"github.com/opnexpl/openingexplorer/internal/varint"
)

// PlaySpec identifies the position being queried: a variant, an optional
// starting FEN, and the UCI move sequence played from it.
type PlaySpec struct {
	Variant  string
	FEN      string // empty means the variant's standard starting position
	UCIMoves []string
}

// Filter narrows a lichess/player query by speed, rating band and date
// range.
type Filter struct {
	Speeds       []entry.Speed
	RatingGroups []entry.RatingGroup
	Since, Until key.Bucket // month buckets; Until == 0 means unbounded
	HasSince     bool
	HasUntil     bool
}

// Limits bounds how much of a prepared entry is returned. A history-only
// query zeroes all three; history is requested through its own flag
// rather than by overloading zero limits, while still honoring the
// legacy zeroing behavior when a caller asks for it explicitly.
type Limits struct {
	Moves       int
	RecentGames int
	TopGames    int
}

// DefaultLimits matches the values a caller gets when it does not specify
// limits explicitly.
func DefaultLimits() Limits {
	return Limits{Moves: 12, RecentGames: 8, TopGames: 4}
}

// HistorySegment is one month's worth of stats, reconstructed by
// differencing the cumulative sums observed during the range scan.
type HistorySegment struct {
	Month key.Bucket
	Stats stats.Stats
}

// ExplorerGame is the sample-game row embedded in a response.
type ExplorerGame struct {
	ID      key.GameID
	Winner  *bool // true = white, false = black, nil = draw
	Speed   *entry.Speed
	Mode    *entry.Mode
	White   entry.Player
	Black   entry.Player
	Month   uint16
}

// ExplorerGameWithUCI pairs a sample game with the move that reached it.
type ExplorerGameWithUCI struct {
	UCI  string
	Game ExplorerGame
}

// ExplorerMove is one prepared per-move row of a response.
type ExplorerMove struct {
	UCI                   string
	Move                  varint.Move
	Stats                 stats.Stats
	AverageRating         *uint16
	AverageOpponentRating *uint16
	Performance           *int32
	Game                  *ExplorerGame
}

// ExplorerResponse is the shape returned by QueryMasters, QueryLichess,
// and each item of the QueryPlayer NDJSON stream.
type ExplorerResponse struct {
	Total        stats.Stats
	Moves        []ExplorerMove
	RecentGames  []ExplorerGameWithUCI
	TopGames     []ExplorerGameWithUCI
	Opening      *OpeningRef
	QueuePosition *uint64
	History      []HistorySegment
}

// OpeningRef names the ECO opening a query's mainline passes through,
// attached by internal/opening's classification table.
type OpeningRef struct {
	ECO  string
	Name string
}
