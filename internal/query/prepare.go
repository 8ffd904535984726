// © 2025 opening-explorer authors. MIT License.

package query

// prepare.go assembles the final ExplorerResponse from a folded entry:
// per-move stats, a representative sample game for singleton moves,
// recent/top game reservoirs, average ratings, and the Elo-style
// performance figure for player queries.

import (
	"context"
	"math"
	"sort"

	"github.com/opnexpl/openingexplorer/internal/api"
	"github.com/opnexpl/openingexplorer/internal/blacklist"
	"github.com/opnexpl/openingexplorer/internal/chess"
	"github.com/opnexpl/openingexplorer/internal/entry"
	"github.com/opnexpl/openingexplorer/internal/importer"
	"github.com/opnexpl/openingexplorer/internal/key"
	"github.com/opnexpl/openingexplorer/internal/stats"
	"github.com/opnexpl/openingexplorer/internal/storage"
	"github.com/opnexpl/openingexplorer/internal/varint"
)

// performance computes the standard Elo performance-rating approximation
// used elsewhere on lichess, clamped to [0, 4000]. It requires an
// opponent rating average, which only the player scope's Stats carries;
// callers pass ok=false when it is unavailable and performance is left
// nil.
func performance(avgOpponentRating uint64, s stats.Stats) (int32, bool) {
	total := s.Total()
	if total == 0 {
		return 0, false
	}
	wins, losses := float64(s.White), float64(s.Black)
	raw := float64(avgOpponentRating) + 400*(wins-losses)/float64(total)
	clamped := math.Max(0, math.Min(4000, raw))
	return int32(clamped), true
}

// PrepareMasters builds the per-move rows and top-game reservoir for a
// masters query. Masters has no recency dimension, only a global
// top-rated reservoir.
func PrepareMasters(ctx context.Context, eng *storage.Engine, bl *blacklist.Set, e *entry.MastersEntry, limits api.Limits) ([]api.ExplorerMove, []api.ExplorerGameWithUCI, stats.Stats) {
	var total stats.Stats
	var moves []api.ExplorerMove
	var allGames []entry.MastersGameRef
	gameUCI := make(map[key.GameID]string)

	for _, pm := range e.Moves() {
		g := e.Group(pm)
		if g == nil {
			continue
		}
		total = total.Add(g.Stats)
		uci := moveUCI(pm)

		row := api.ExplorerMove{
			UCI:   uci,
			Move:  pm.Unpack(),
			Stats: g.Stats,
		}
		if g.Stats.Total() > 0 {
			v := uint16(g.Stats.AverageRating())
			row.AverageRating = &v
		}
		if g.Stats.Total() == 1 && len(g.Games) == 1 {
			if game, ok := hydrateMastersGame(ctx, eng, bl, g.Games[0].Game); ok {
				row.Game = &game
			}
		}
		moves = append(moves, row)

		for _, ref := range g.Games {
			allGames = append(allGames, ref)
			gameUCI[ref.Game] = uci
		}
	}

	sort.Slice(moves, func(i, j int) bool { return moves[i].Stats.Total() > moves[j].Stats.Total() })
	if limits.Moves > 0 && len(moves) > limits.Moves {
		moves = moves[:limits.Moves]
	}

	sort.Slice(allGames, func(i, j int) bool { return allGames[i].SortKey > allGames[j].SortKey })
	if limits.TopGames > 0 && len(allGames) > limits.TopGames {
		allGames = allGames[:limits.TopGames]
	}
	topGames := make([]api.ExplorerGameWithUCI, 0, len(allGames))
	for _, ref := range allGames {
		if game, ok := hydrateMastersGame(ctx, eng, bl, ref.Game); ok {
			topGames = append(topGames, api.ExplorerGameWithUCI{UCI: gameUCI[ref.Game], Game: game})
		}
	}

	return moves, topGames, total
}

// PrepareLichess builds the per-move rows, recency reservoir, and top
// (highest rating band) reservoir for a lichess query.
func PrepareLichess(ctx context.Context, eng *storage.Engine, bl *blacklist.Set, e *entry.LichessEntry, filter api.Filter, limits api.Limits) ([]api.ExplorerMove, []api.ExplorerGameWithUCI, []api.ExplorerGameWithUCI, stats.Stats) {
	var total stats.Stats
	var moves []api.ExplorerMove
	type recentRef struct {
		idx  uint64
		uci  string
		game key.GameID
	}
	var recent []recentRef
	var top []api.ExplorerGameWithUCI

	speeds := speedsToCheck(filter)
	groups := ratingGroupsToCheck(filter)
	topBands := entry.AllRatingGroups[:2] // the two highest bands

	for _, pm := range e.Moves() {
		uci := moveUCI(pm)
		var moveStats stats.Stats
		var singleGame *key.GameID

		for _, speed := range speeds {
			for _, rg := range groups {
				g := e.Group(pm, speed, rg)
				if g == nil {
					continue
				}
				moveStats = moveStats.Add(g.Stats)
				for _, ref := range g.Games {
					recent = append(recent, recentRef{idx: ref.Idx, uci: uci, game: ref.Game})
					if g.Stats.Total() == 1 {
						gg := ref.Game
						singleGame = &gg
					}
				}
				for _, band := range topBands {
					if rg == band {
						for _, ref := range g.Games {
							if game, ok := hydrateLichessGame(ctx, eng, bl, ref.Game); ok {
								top = append(top, api.ExplorerGameWithUCI{UCI: uci, Game: game})
							}
						}
					}
				}
			}
		}
		if moveStats.Total() == 0 {
			continue
		}
		total = total.Add(moveStats)

		row := api.ExplorerMove{UCI: uci, Move: pm.Unpack(), Stats: moveStats}
		if avg := moveStats.AverageRating(); avg > 0 {
			v := uint16(avg)
			row.AverageRating = &v
		}
		if singleGame != nil && moveStats.Total() == 1 {
			if game, ok := hydrateLichessGame(ctx, eng, bl, *singleGame); ok {
				row.Game = &game
			}
		}
		moves = append(moves, row)
	}

	sort.Slice(moves, func(i, j int) bool { return moves[i].Stats.Total() > moves[j].Stats.Total() })
	if limits.Moves > 0 && len(moves) > limits.Moves {
		moves = moves[:limits.Moves]
	}

	sort.Slice(recent, func(i, j int) bool { return recent[i].idx > recent[j].idx })
	if limits.RecentGames > 0 && len(recent) > limits.RecentGames {
		recent = recent[:limits.RecentGames]
	}
	recentGames := make([]api.ExplorerGameWithUCI, 0, len(recent))
	for _, r := range recent {
		if game, ok := hydrateLichessGame(ctx, eng, bl, r.game); ok {
			recentGames = append(recentGames, api.ExplorerGameWithUCI{UCI: r.uci, Game: game})
		}
	}

	if limits.TopGames > 0 && len(top) > limits.TopGames {
		top = top[:limits.TopGames]
	}

	return moves, recentGames, top, total
}

// PreparePlayer builds the per-move rows and recency reservoir for a
// player query, including the performance figure computed from the
// stored opponent-rating average.
func PreparePlayer(ctx context.Context, eng *storage.Engine, bl *blacklist.Set, e *entry.PlayerEntry, filter api.Filter, limits api.Limits) ([]api.ExplorerMove, []api.ExplorerGameWithUCI, stats.Stats) {
	var total stats.Stats
	var moves []api.ExplorerMove
	type recentRef struct {
		idx  uint64
		uci  string
		game key.GameID
	}
	var recent []recentRef

	speeds := speedsToCheck(filter)

	for _, pm := range e.Moves() {
		uci := moveUCI(pm)
		var moveStats stats.Stats
		var singleGame *key.GameID

		for _, speed := range speeds {
			for _, mode := range []entry.Mode{entry.Rated, entry.Casual} {
				g := e.Group(pm, speed, mode)
				if g == nil {
					continue
				}
				moveStats = moveStats.Add(g.Stats)
				for _, ref := range g.Games {
					recent = append(recent, recentRef{idx: ref.Idx, uci: uci, game: ref.Game})
					if g.Stats.Total() == 1 {
						gg := ref.Game
						singleGame = &gg
					}
				}
			}
		}
		if moveStats.Total() == 0 {
			continue
		}
		total = total.Add(moveStats)

		row := api.ExplorerMove{UCI: uci, Move: pm.Unpack(), Stats: moveStats}
		if avg := moveStats.AverageRating(); avg > 0 {
			v := uint16(avg)
			row.AverageOpponentRating = &v
			if perf, ok := performance(avg, moveStats); ok {
				row.Performance = &perf
			}
		}
		if singleGame != nil && moveStats.Total() == 1 {
			if game, ok := hydrateLichessGame(ctx, eng, bl, *singleGame); ok {
				row.Game = &game
			}
		}
		moves = append(moves, row)
	}

	sort.Slice(moves, func(i, j int) bool { return moves[i].Stats.Total() > moves[j].Stats.Total() })
	if limits.Moves > 0 && len(moves) > limits.Moves {
		moves = moves[:limits.Moves]
	}

	sort.Slice(recent, func(i, j int) bool { return recent[i].idx > recent[j].idx })
	if limits.RecentGames > 0 && len(recent) > limits.RecentGames {
		recent = recent[:limits.RecentGames]
	}
	recentGames := make([]api.ExplorerGameWithUCI, 0, len(recent))
	for _, r := range recent {
		if game, ok := hydrateLichessGame(ctx, eng, bl, r.game); ok {
			recentGames = append(recentGames, api.ExplorerGameWithUCI{UCI: r.uci, Game: game})
		}
	}

	return moves, recentGames, total
}

func moveUCI(pm varint.PackedMove) string {
	return chess.FormatUCI(pm.Unpack())
}

func hydrateMastersGame(ctx context.Context, eng *storage.Engine, bl *blacklist.Set, id key.GameID) (api.ExplorerGame, bool) {
	buf, err := eng.Get(ctx, storage.CFMastersGame, id[:])
	if err != nil {
		return api.ExplorerGame{}, false
	}
	rec, err := importer.DecodeMastersGameRecord(buf)
	if err != nil {
		return api.ExplorerGame{}, false
	}
	if bl != nil && bl.AnyBlacklisted(rec.White.Name, rec.Black.Name) {
		return api.ExplorerGame{}, false
	}
	var winner *bool
	switch rec.Outcome {
	case stats.OutcomeWhite:
		v := true
		winner = &v
	case stats.OutcomeBlack:
		v := false
		winner = &v
	}
	return api.ExplorerGame{
		ID:     id,
		Winner: winner,
		White:  rec.White,
		Black:  rec.Black,
		Month:  uint16(key.MonthBucket(int(rec.Year), int(rec.Month))),
	}, true
}

func hydrateLichessGame(ctx context.Context, eng *storage.Engine, bl *blacklist.Set, id key.GameID) (api.ExplorerGame, bool) {
	buf, err := eng.Get(ctx, storage.CFLichessGame, id[:])
	if err != nil {
		return api.ExplorerGame{}, false
	}
	info, err := entry.DecodeGameInfo(buf)
	if err != nil {
		return api.ExplorerGame{}, false
	}
	if bl != nil && bl.AnyBlacklisted(info.White.Name, info.Black.Name) {
		return api.ExplorerGame{}, false
	}
	var winner *bool
	switch info.Outcome {
	case stats.OutcomeWhite:
		v := true
		winner = &v
	case stats.OutcomeBlack:
		v := false
		winner = &v
	}
	speed := info.Speed
	mode := info.Mode
	return api.ExplorerGame{
		ID:     id,
		Winner: winner,
		Speed:  &speed,
		Mode:   &mode,
		White:  info.White,
		Black:  info.Black,
		Month:  info.Month,
	}, true
}
