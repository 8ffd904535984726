// © 2025 opening-explorer authors. MIT License.

package importer

// lichess.go implements the serial lichess batch importer: de-duplication
// by the indexed_lichess flag, month validation, loop-suppressed replay up
// to MaxPlies, and an atomic per-game commit.

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/opnexpl/openingexplorer/internal/api"
	"github.com/opnexpl/openingexplorer/internal/chess"
	"github.com/opnexpl/openingexplorer/internal/entry"
	"github.com/opnexpl/openingexplorer/internal/key"
	"github.com/opnexpl/openingexplorer/internal/stats"
	"github.com/opnexpl/openingexplorer/internal/storage"
)

// LichessGameImport is one game of a monthly bulk batch.
type LichessGameImport struct {
	Variant chess.Variant
	Speed   entry.Speed
	FEN     string // empty means the variant's standard starting position
	ID      key.GameID
	Year    int
	Month   int // 1-12; 0 means unparsable
	White   entry.Player
	Black   entry.Player
	Winner  *stats.Outcome
	Moves   []string // UCI
}

// LichessImporter is the serial lichess bulk ingest pipeline, serialized
// by a single process-wide mutex.
type LichessImporter struct {
	eng    *storage.Engine
	logger *zap.Logger
	mu     sync.Mutex
}

// NewLichessImporter builds an importer bound to eng.
func NewLichessImporter(eng *storage.Engine, logger *zap.Logger) *LichessImporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LichessImporter{eng: eng, logger: logger}
}

// ImportMany ingests every game in games in order, stopping at the first
// rejection.
func (li *LichessImporter) ImportMany(ctx context.Context, games []LichessGameImport) error {
	for _, g := range games {
		if err := li.importOne(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

func (li *LichessImporter) importOne(ctx context.Context, g LichessGameImport) error {
	li.mu.Lock()
	defer li.mu.Unlock()

	existing, err := li.eng.Get(ctx, storage.CFLichessGame, g.ID[:])
	if err != nil && err != storage.ErrNotFound {
		return err
	}
	if existing != nil {
		info, derr := entry.DecodeGameInfo(existing)
		if derr == nil && info.Flags&entry.IndexedLichess != 0 {
			li.logger.Debug("lichess game already imported", zap.String("id", g.ID.String()))
			return nil
		}
	}

	if g.Month < 1 || g.Month > 12 || g.Year < 1952 {
		return api.ErrRejectedDate{ID: g.ID, Date: fmt.Sprintf("%04d-%02d", g.Year, g.Month)}
	}
	month := key.MonthBucket(g.Year, g.Month)

	var pos *chess.Position
	if g.FEN != "" {
		pos, err = chess.ParseFEN(g.FEN)
		if err != nil {
			return api.ErrValidation{Reason: fmt.Sprintf("lichess %s: %v", g.ID, err)}
		}
	} else {
		pos = chess.NewGame()
	}

	outcome := stats.OutcomeDraw
	if g.Winner != nil {
		outcome = *g.Winner
	}

	withoutLoops := make(map[chess.Zobrist]plyMove, len(g.Moves))
	for i, uciStr := range g.Moves {
		if i >= MaxPlies {
			break
		}
		mv, err := chess.ParseUCI(uciStr)
		if err != nil {
			li.logger.Warn("cutting off game at illegal move", zap.String("id", g.ID.String()), zap.Int("ply", i))
			break
		}
		z := pos.Zobrist()
		withoutLoops[z] = plyMove{move: mv, turn: pos.Turn()}
		if err := pos.PlayUCI(mv); err != nil {
			li.logger.Warn("cutting off game at illegal move", zap.String("id", g.ID.String()), zap.Int("ply", i))
			break
		}
	}

	batch := li.eng.NewBatch()
	for z, pm := range withoutLoops {
		moverRating, opponentRating := g.White.Rating, g.Black.Rating
		if pm.turn == chess.Black {
			moverRating, opponentRating = g.Black.Rating, g.White.Rating
		}
		prefix := key.BuildPrefix(key.Base128{}, z, g.Variant.Constant())
		k := key.Build(prefix, month)
		single := entry.NewLichessSingle(pm.move, g.Speed, g.ID, outcome, moverRating, opponentRating)
		batch.Merge(storage.CFLichess, k.Bytes(), single.Encode())
	}

	info := entry.GameInfo{
		Outcome: outcome,
		Speed:   g.Speed,
		Mode:    entry.Rated,
		White:   g.White,
		Black:   g.Black,
		Month:   uint16(month),
		Flags:   entry.IndexedLichess,
	}
	infoBuf, err := info.Encode()
	if err != nil {
		return api.ErrValidation{Reason: err.Error()}
	}
	batch.Merge(storage.CFLichessGame, g.ID[:], infoBuf)

	if err := batch.Commit(ctx); err != nil {
		return err
	}
	li.logger.Debug("imported lichess game", zap.String("id", g.ID.String()), zap.Int("plies", len(withoutLoops)))
	return nil
}
