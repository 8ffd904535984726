// © 2025 opening-explorer authors. MIT License.

package query

// history.go reconstructs a month-by-month time series from the running
// cumulative totals read.go records per scanned bucket, by differencing
// consecutive totals and filling any gap bucket (no record at all) with
// a zero segment, so that segment sums match the aggregate total.

import (
	"github.com/opnexpl/openingexplorer/internal/api"
	"github.com/opnexpl/openingexplorer/internal/key"
	"github.com/opnexpl/openingexplorer/internal/stats"
)

// BuildHistory differences totals (the running cumulative filtered total
// observed after each scanned bucket) into one HistorySegment per bucket
// in [since, until), zero-filling any bucket no record touched. With no
// explicit since, segments start at the first bucket a record actually
// touched rather than zero-filling back to the epoch. If hasUntil is
// false, the trailing segment is dropped: it represents a partial
// current month.
func BuildHistory(totals []BucketTotal, since key.Bucket, hasSince bool, until key.Bucket, hasUntil bool) []api.HistorySegment {
	if len(totals) == 0 {
		return nil
	}

	if !hasSince {
		since = totals[0].Bucket
	}
	end := until
	if !hasUntil {
		end = totals[len(totals)-1].Bucket + 1
	}

	segments := make([]api.HistorySegment, 0, int(end-since))
	var running, last stats.Stats
	cursor := 0
	for b := since; b < end; b++ {
		if cursor < len(totals) && totals[cursor].Bucket == b {
			running = totals[cursor].Total
			cursor++
		}
		segments = append(segments, api.HistorySegment{Month: b, Stats: subtract(running, last)})
		last = running
	}

	if !hasUntil && len(segments) > 0 {
		segments = segments[:len(segments)-1]
	}
	return segments
}

func subtract(a, b stats.Stats) stats.Stats {
	return stats.Stats{
		RatingSum: a.RatingSum - b.RatingSum,
		White:     a.White - b.White,
		Draws:     a.Draws - b.Draws,
		Black:     a.Black - b.Black,
	}
}
