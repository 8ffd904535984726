// Package importer implements the two batch-ingest pipelines: the
// serial masters importer (individually submitted annotated games) and
// the serial lichess batch importer (monthly bulk batches).
// Both validate, de-duplicate within-game loops, build position-keyed
// single-entry merge operands, and commit a game plus all of its
// position-keyed records in one atomic storage batch.
//
// © 2025 opening-explorer authors. MIT License.
package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/opnexpl/openingexplorer/internal/api"
	"github.com/opnexpl/openingexplorer/internal/chess"
	"github.com/opnexpl/openingexplorer/internal/entry"
	"github.com/opnexpl/openingexplorer/internal/key"
	"github.com/opnexpl/openingexplorer/internal/stats"
	"github.com/opnexpl/openingexplorer/internal/storage"
	"github.com/opnexpl/openingexplorer/internal/varint"
)

// MinMastersRating is the floor on the midpoint of both players' ratings
// below which a masters submission is rejected.
const MinMastersRating = 2200

// MaxPlies bounds how many half-moves of a lichess game are replayed for
// position indexing; masters imports replay the whole mainline.
const MaxPlies = 50

// MastersGameWithID is one submitted, annotated masters game.
type MastersGameWithID struct {
	ID     key.GameID
	White  entry.Player
	Black  entry.Player
	Date   string // "YYYY.MM.DD", PGN-style
	Winner *stats.Outcome // nil (or OutcomeDraw) for a draw; White/Black otherwise
	Moves  []string       // UCI, mainline from the standard starting position
}

// MastersGameRecord is the masters_game column family's plain-put payload:
// enough to answer a masters-game PGN lookup without a second store.
type MastersGameRecord struct {
	White, Black entry.Player
	Outcome      stats.Outcome
	Year         uint16
	Month        uint8
	Day          uint8
	Moves        []string
}

// Encode writes r's binary form: white || black || outcome(1) || year(2
// le) || month(1) || day(1) || num_moves(varint) || (len||bytes)*.
func (r MastersGameRecord) Encode() []byte {
	var buf []byte
	buf = encodePlayer(buf, r.White)
	buf = encodePlayer(buf, r.Black)
	buf = append(buf, byte(r.Outcome))
	buf = append(buf, byte(r.Year), byte(r.Year>>8))
	buf = append(buf, r.Month, r.Day)
	buf = varint.AppendUint(buf, uint64(len(r.Moves)))
	for _, m := range r.Moves {
		buf = varint.AppendUint(buf, uint64(len(m)))
		buf = append(buf, m...)
	}
	return buf
}

func encodePlayer(dst []byte, p entry.Player) []byte {
	dst = varint.AppendUint(dst, uint64(len(p.Name)))
	dst = append(dst, p.Name...)
	dst = append(dst, byte(p.Rating), byte(p.Rating>>8))
	return dst
}

func decodePlayerField(buf []byte) (entry.Player, int, error) {
	n, k, err := varint.Uint(buf)
	if err != nil {
		return entry.Player{}, 0, err
	}
	buf = buf[k:]
	if uint64(len(buf)) < n+2 {
		return entry.Player{}, 0, varint.ErrTruncated
	}
	name := string(buf[:n])
	rating := uint16(buf[n]) | uint16(buf[n+1])<<8
	return entry.Player{Name: name, Rating: rating}, k + int(n) + 2, nil
}

// DecodeMastersGameRecord decodes a MastersGameRecord.
func DecodeMastersGameRecord(buf []byte) (MastersGameRecord, error) {
	var r MastersGameRecord
	white, n, err := decodePlayerField(buf)
	if err != nil {
		return r, err
	}
	buf = buf[n:]
	black, n, err := decodePlayerField(buf)
	if err != nil {
		return r, err
	}
	buf = buf[n:]
	if len(buf) < 5 {
		return r, varint.ErrTruncated
	}
	r.White, r.Black = white, black
	r.Outcome = stats.Outcome(buf[0])
	r.Year = uint16(buf[1]) | uint16(buf[2])<<8
	r.Month = buf[3]
	r.Day = buf[4]
	buf = buf[5:]

	numMoves, k, err := varint.Uint(buf)
	if err != nil {
		return r, err
	}
	buf = buf[k:]
	r.Moves = make([]string, 0, numMoves)
	for i := uint64(0); i < numMoves; i++ {
		l, k, err := varint.Uint(buf)
		if err != nil {
			return r, err
		}
		buf = buf[k:]
		if uint64(len(buf)) < l {
			return r, varint.ErrTruncated
		}
		r.Moves = append(r.Moves, string(buf[:l]))
		buf = buf[l:]
	}
	return r, nil
}

// MastersImporter is the serial masters ingest pipeline; a single
// process-wide mutex is taken around each import.
type MastersImporter struct {
	eng    *storage.Engine
	logger *zap.Logger
	mu     sync.Mutex
}

// NewMastersImporter builds an importer bound to eng.
func NewMastersImporter(eng *storage.Engine, logger *zap.Logger) *MastersImporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MastersImporter{eng: eng, logger: logger}
}

func midpoint(a, b uint16) uint16 {
	return uint16((uint32(a) + uint32(b)) / 2)
}

// Import validates and ingests one masters game: rating floor, date
// check, dedup, then one atomic commit.
func (m *MastersImporter) Import(ctx context.Context, body MastersGameWithID) error {
	avg := midpoint(body.White.Rating, body.Black.Rating)
	if avg < MinMastersRating {
		return api.ErrRejectedRating{ID: body.ID, Rating: avg}
	}

	year, month, day, err := parsePGNDate(body.Date)
	if err != nil {
		return api.ErrRejectedDate{ID: body.ID, Date: body.Date}
	}
	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	declared := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if declared.After(tomorrow) {
		return api.ErrRejectedDate{ID: body.ID, Date: body.Date}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.eng.Get(ctx, storage.CFMastersGame, body.ID[:])
	if err != nil && err != storage.ErrNotFound {
		return err
	}
	if existing != nil {
		return api.ErrDuplicateGame{ID: body.ID}
	}

	pos := chess.NewGame()
	withoutLoops := make(map[chess.Zobrist]plyMove, len(body.Moves))
	var finalHash chess.Zobrist
	haveFinal := false

	for _, uciStr := range body.Moves {
		mv, err := chess.ParseUCI(uciStr)
		if err != nil {
			return api.ErrValidation{Reason: fmt.Sprintf("masters %s: %v", body.ID, err)}
		}
		z := pos.Zobrist()
		finalHash = z
		haveFinal = true
		withoutLoops[z] = plyMove{move: mv, turn: pos.Turn()}
		if err := pos.PlayUCI(mv); err != nil {
			return api.ErrValidation{Reason: fmt.Sprintf("masters %s: %v", body.ID, err)}
		}
	}

	if haveFinal {
		finalPrefix := key.BuildPrefix(key.Base128{}, finalHash, chess.Standard.Constant())
		finalKey := key.Build(finalPrefix, key.YearBucket(year))
		dup, err := m.eng.Get(ctx, storage.CFMasters, finalKey.Bytes())
		if err != nil && err != storage.ErrNotFound {
			return err
		}
		if dup != nil {
			return api.ErrDuplicateGame{ID: body.ID}
		}
	}

	outcome := stats.OutcomeDraw
	if body.Winner != nil {
		outcome = *body.Winner
	}

	batch := m.eng.NewBatch()
	record := MastersGameRecord{
		White: body.White, Black: body.Black,
		Outcome: outcome,
		Year:    uint16(year), Month: uint8(month), Day: uint8(day),
		Moves: body.Moves,
	}
	batch.Put(storage.CFMastersGame, body.ID[:], record.Encode())

	for z, pm := range withoutLoops {
		moverRating, opponentRating := body.White.Rating, body.Black.Rating
		moveOutcome := outcome
		if pm.turn == chess.Black {
			moverRating, opponentRating = body.Black.Rating, body.White.Rating
		}
		prefix := key.BuildPrefix(key.Base128{}, z, chess.Standard.Constant())
		k := key.Build(prefix, key.YearBucket(year))
		single := entry.NewMastersSingle(pm.move, body.ID, moveOutcome, moverRating, opponentRating)
		batch.Merge(storage.CFMasters, k.Bytes(), single.Encode())
	}

	if err := batch.Commit(ctx); err != nil {
		return err
	}
	m.logger.Debug("imported masters game", zap.String("id", body.ID.String()), zap.Int("plies", len(withoutLoops)))
	return nil
}

type plyMove struct {
	move varint.Move
	turn chess.Color
}

func parsePGNDate(s string) (year, month, day int, err error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("importer: bad date %q", s)
	}
	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, err
	}
	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, err
	}
	day, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, err
	}
	return year, month, day, nil
}
