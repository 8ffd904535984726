// © 2025 opening-explorer authors. MIT License.

package indexer

// player.go implements the per-user indexing run: decide whether to
// run, stream the user's games from upstream, replay each to
// position-keyed player entries with loop suppression, and persist
// progress.

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opnexpl/openingexplorer/internal/chess"
	"github.com/opnexpl/openingexplorer/internal/entry"
	"github.com/opnexpl/openingexplorer/internal/key"
	"github.com/opnexpl/openingexplorer/internal/metrics"
	"github.com/opnexpl/openingexplorer/internal/stats"
	"github.com/opnexpl/openingexplorer/internal/storage"
	"github.com/opnexpl/openingexplorer/internal/upstream"
	"github.com/opnexpl/openingexplorer/internal/varint"
)

// MaxPlies bounds how many half-moves of a user's game are replayed.
const MaxPlies = 50

// statusPersistInterval is how often, in games processed, the running
// PlayerStatus is checkpointed mid-stream.
const statusPersistInterval = 1024

// backoffOnUpstreamError is the delay before a caller may retry after a
// non-404 upstream failure.
const backoffOnUpstreamError = 5 * time.Second

var errAnonymousOrAbsent = errors.New("indexer: subject color absent from game")

// Runner executes per-user indexing runs against one storage engine and
// one upstream client.
type Runner struct {
	eng      *storage.Engine
	upstream *upstream.Client
	logger   *zap.Logger
	now      func() time.Time
	metrics  *metrics.Metrics
}

// NewRunner builds a Runner.
func NewRunner(eng *storage.Engine, up *upstream.Client, logger *zap.Logger, met *metrics.Metrics) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{eng: eng, upstream: up, logger: logger, now: time.Now, metrics: met}
}

// IndexPlayer crawls and indexes one user's games to completion or until
// the stream stalls/errors. Errors loading or saving the user's status
// record are routed through storage.FatalHandler rather than returned; an
// error indexing a single game is logged and that game is skipped.
func (r *Runner) IndexPlayer(ctx context.Context, userID string) {
	nowUnix := r.now().Unix()

	status, err := loadStatus(ctx, r.eng, userID)
	if err != nil {
		storage.FatalHandler(err)
		return
	}

	since, ok := decideRun(status, nowUnix)
	if !ok {
		r.logger.Debug("skipping index run, within cooldown", zap.String("user", userID))
		r.metrics.RecordIndexerRun("skipped")
		return
	}

	isRevisit := status.RevisitOngoingCreatedAt != 0 && since == status.RevisitOngoingCreatedAt-1

	gamesSeen := 0
	var lowestOngoing int64
	lowerUser := strings.ToLower(userID)

	for game, gerr := range r.upstream.UserGames(ctx, userID, since*1000) {
		if gerr != nil {
			var notFound upstream.ErrNotFound
			if errors.As(gerr, &notFound) {
				r.logger.Warn("upstream user not found, dropping run", zap.String("user", userID))
				r.metrics.RecordIndexerRun("upstream_error")
				return
			}
			// Status is deliberately not advanced: the next eligible
			// window retries from the same point.
			r.logger.Error("upstream error, dropping run", zap.String("user", userID), zap.Error(gerr))
			r.metrics.RecordIndexerRun("upstream_error")
			time.Sleep(backoffOnUpstreamError)
			return
		}

		if game.CreatedAt/1000 > status.LatestCreatedAt {
			status.LatestCreatedAt = game.CreatedAt / 1000
		}

		if game.Status.IsOngoing() {
			if lowestOngoing == 0 || game.CreatedAt/1000 < lowestOngoing {
				lowestOngoing = game.CreatedAt / 1000
			}
			continue
		}
		if game.Status.IsUnindexable() {
			continue
		}

		if err := r.indexOneGame(ctx, userID, lowerUser, game); err != nil {
			r.logger.Error("skipping game", zap.String("user", userID), zap.String("game", game.ID), zap.Error(err))
		}

		gamesSeen++
		if gamesSeen%statusPersistInterval == 0 {
			if err := saveStatus(ctx, r.eng, userID, status); err != nil {
				storage.FatalHandler(err)
				return
			}
		}
	}

	status.IndexedAt = r.now().Unix()
	if lowestOngoing != 0 {
		status.RevisitOngoingCreatedAt = lowestOngoing
	}
	if isRevisit {
		status.RevisitedAt = r.now().Unix()
		status.RevisitOngoingCreatedAt = 0
	}
	if err := saveStatus(ctx, r.eng, userID, status); err != nil {
		storage.FatalHandler(err)
		return
	}
	r.metrics.RecordIndexerRun("completed")
}

func (r *Runner) indexOneGame(ctx context.Context, subjectUser, lowerUser string, g upstream.Game) error {
	color, ok := subjectColor(lowerUser, g)
	if !ok {
		return errAnonymousOrAbsent
	}
	if !g.White.HasUser || !g.White.HasRating || !g.Black.HasUser || !g.Black.HasRating {
		return nil // anonymous or unrated players: skip silently, not an error
	}

	id, err := key.ParseGameID(g.ID)
	if err != nil {
		return err
	}

	flag := entry.IndexedFromWhite
	if color == chess.Black {
		flag = entry.IndexedFromBlack
	}

	existing, err := r.eng.Get(ctx, storage.CFLichessGame, id[:])
	if err != nil && err != storage.ErrNotFound {
		return err
	}
	if existing != nil {
		info, derr := entry.DecodeGameInfo(existing)
		if derr == nil && info.Flags&flag != 0 {
			return nil // idempotence
		}
	}

	speed := parseSpeed(g.Speed)
	outcome := stats.OutcomeDraw
	switch g.Winner {
	case "white":
		outcome = stats.OutcomeWhite
	case "black":
		outcome = stats.OutcomeBlack
	}

	var pos *chess.Position
	if g.InitialFEN != "" {
		pos, err = chess.ParseFEN(g.InitialFEN)
		if err != nil {
			return err
		}
	} else {
		pos = chess.NewGame()
	}

	variant, verr := chess.ParseVariant(g.Variant)
	if verr != nil {
		variant = chess.Standard
	}
	base := key.PlayerBase(subjectUser, colorToKeyColor(color))
	month := key.MonthBucket(yearOf(g.CreatedAt), monthOf(g.CreatedAt))

	withoutLoops := make(map[chess.Zobrist]varint.Move, len(g.Moves))
	for i, uciStr := range g.Moves {
		if i >= MaxPlies {
			break
		}
		mv, err := chess.ParseUCI(uciStr)
		if err != nil {
			break
		}
		z := pos.Zobrist()
		if _, dup := withoutLoops[z]; !dup {
			withoutLoops[z] = mv
		}
		if err := pos.PlayUCI(mv); err != nil {
			break
		}
	}

	opponentRating := g.Black.Rating
	if color == chess.Black {
		opponentRating = g.White.Rating
	}

	mode := entry.Rated
	if !g.Rated {
		mode = entry.Casual
	}

	batch := r.eng.NewBatch()
	for z, mv := range withoutLoops {
		prefix := key.BuildPrefix(base, z, variant.Constant())
		k := key.Build(prefix, month)
		single := entry.NewPlayerSingle(mv, speed, mode, id, outcome, uint16(opponentRating))
		batch.Merge(storage.CFPlayer, k.Bytes(), single.Encode())
	}

	info := entry.GameInfo{
		Outcome: outcome,
		Speed:   speed,
		Mode:    mode,
		White:   entry.Player{Name: g.White.UserName, Rating: uint16(g.White.Rating)},
		Black:   entry.Player{Name: g.Black.UserName, Rating: uint16(g.Black.Rating)},
		Month:   uint16(month),
		Flags:   flag,
	}
	infoBuf, err := info.Encode()
	if err != nil {
		return err
	}
	batch.Merge(storage.CFLichessGame, id[:], infoBuf)

	return batch.Commit(ctx)
}

// subjectColor identifies which color lowerUser (already lower-cased)
// played in g, matching case-insensitively against both sides' usernames.
func subjectColor(lowerUser string, g upstream.Game) (chess.Color, bool) {
	if g.White.HasUser && strings.ToLower(g.White.UserName) == lowerUser {
		return chess.White, true
	}
	if g.Black.HasUser && strings.ToLower(g.Black.UserName) == lowerUser {
		return chess.Black, true
	}
	return 0, false
}

func colorToKeyColor(c chess.Color) key.Color {
	if c == chess.Black {
		return key.ColorBlack
	}
	return key.ColorWhite
}

func parseSpeed(s string) entry.Speed {
	switch s {
	case "ultraBullet":
		return entry.UltraBullet
	case "bullet":
		return entry.Bullet
	case "blitz":
		return entry.Blitz
	case "rapid":
		return entry.Rapid
	case "classical":
		return entry.Classical
	default:
		return entry.Correspondence
	}
}

func yearOf(unixMillis int64) int {
	return time.UnixMilli(unixMillis).UTC().Year()
}

func monthOf(unixMillis int64) int {
	return int(time.UnixMilli(unixMillis).UTC().Month())
}
