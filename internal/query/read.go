// © 2025 opening-explorer authors. MIT License.

package query

// read.go implements the bounded range scan and in-memory fold for each
// of the three storage scopes: build the
// position prefix, scan [since, until), extend a running aggregate from
// each visited record, and record the running filtered total after each
// bucket for history.go to difference.

import (
	"context"

	"github.com/opnexpl/openingexplorer/internal/api"
	"github.com/opnexpl/openingexplorer/internal/entry"
	"github.com/opnexpl/openingexplorer/internal/key"
	"github.com/opnexpl/openingexplorer/internal/stats"
	"github.com/opnexpl/openingexplorer/internal/storage"
)

// BucketTotal is one scanned bucket's running cumulative filtered total,
// observed immediately after that bucket's record was folded in.
type BucketTotal struct {
	Bucket key.Bucket
	Total  stats.Stats
}

// ReadMasters folds every masters record within prefix's [since, until)
// range into one entry, recording the running total after each bucket.
func ReadMasters(ctx context.Context, eng *storage.Engine, prefix key.PositionPrefix, since, until key.Bucket, ply uint32) (*entry.MastersEntry, []BucketTotal, error) {
	agg := entry.NewMastersEntry()
	var totals []BucketTotal
	hint := storage.CacheHintFromPly(ply)
	err := eng.Scan(ctx, storage.CFMasters, prefix[:], uint16(since), uint16(until), hint, func(bucket uint16, value []byte) error {
		if err := agg.ExtendFrom(value); err != nil {
			return err
		}
		totals = append(totals, BucketTotal{Bucket: key.Bucket(bucket), Total: mastersTotal(agg)})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return agg, totals, nil
}

// ReadLichess folds every lichess record within range into one entry,
// applying filter to the running total recorded per bucket.
func ReadLichess(ctx context.Context, eng *storage.Engine, prefix key.PositionPrefix, since, until key.Bucket, ply uint32, filter api.Filter) (*entry.LichessEntry, []BucketTotal, error) {
	agg := entry.NewLichessEntry()
	var totals []BucketTotal
	hint := storage.CacheHintFromPly(ply)
	err := eng.Scan(ctx, storage.CFLichess, prefix[:], uint16(since), uint16(until), hint, func(bucket uint16, value []byte) error {
		if err := agg.ExtendFrom(value); err != nil {
			return err
		}
		totals = append(totals, BucketTotal{Bucket: key.Bucket(bucket), Total: lichessTotal(agg, filter)})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return agg, totals, nil
}

// ReadPlayer folds every player record within range into one entry,
// applying filter to the running total recorded per bucket.
func ReadPlayer(ctx context.Context, eng *storage.Engine, prefix key.PositionPrefix, since, until key.Bucket, ply uint32, filter api.Filter) (*entry.PlayerEntry, []BucketTotal, error) {
	agg := entry.NewPlayerEntry()
	var totals []BucketTotal
	hint := storage.CacheHintFromPly(ply)
	err := eng.Scan(ctx, storage.CFPlayer, prefix[:], uint16(since), uint16(until), hint, func(bucket uint16, value []byte) error {
		if err := agg.ExtendFrom(value); err != nil {
			return err
		}
		totals = append(totals, BucketTotal{Bucket: key.Bucket(bucket), Total: playerTotal(agg, filter)})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return agg, totals, nil
}

func mastersTotal(e *entry.MastersEntry) stats.Stats {
	var total stats.Stats
	for _, m := range e.Moves() {
		total = total.Add(e.Group(m).Stats)
	}
	return total
}

func lichessTotal(e *entry.LichessEntry, filter api.Filter) stats.Stats {
	var total stats.Stats
	for _, m := range e.Moves() {
		for _, speed := range speedsToCheck(filter) {
			for _, rg := range ratingGroupsToCheck(filter) {
				if g := e.Group(m, speed, rg); g != nil {
					total = total.Add(g.Stats)
				}
			}
		}
	}
	return total
}

func playerTotal(e *entry.PlayerEntry, filter api.Filter) stats.Stats {
	var total stats.Stats
	for _, m := range e.Moves() {
		for _, speed := range speedsToCheck(filter) {
			for _, mode := range []entry.Mode{entry.Rated, entry.Casual} {
				if g := e.Group(m, speed, mode); g != nil {
					total = total.Add(g.Stats)
				}
			}
		}
	}
	return total
}

func speedsToCheck(filter api.Filter) []entry.Speed {
	if len(filter.Speeds) > 0 {
		return filter.Speeds
	}
	return entry.AllSpeeds[:]
}

func ratingGroupsToCheck(filter api.Filter) []entry.RatingGroup {
	if len(filter.RatingGroups) > 0 {
		return filter.RatingGroups
	}
	return entry.AllRatingGroups[:]
}
