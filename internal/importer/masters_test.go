// © 2025 opening-explorer authors. MIT License.

package importer

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/opnexpl/openingexplorer/internal/api"
	"github.com/opnexpl/openingexplorer/internal/chess"
	"github.com/opnexpl/openingexplorer/internal/entry"
	"github.com/opnexpl/openingexplorer/internal/key"
	"github.com/opnexpl/openingexplorer/internal/stats"
	"github.com/opnexpl/openingexplorer/internal/storage"
)

func newTestMastersImporter(t *testing.T) (*MastersImporter, *storage.Engine) {
	t.Helper()
	eng, err := storage.Open(storage.Config{Dir: t.TempDir(), Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return NewMastersImporter(eng, zap.NewNop()), eng
}

func sampleMastersGame(id string) MastersGameWithID {
	white := stats.OutcomeWhite
	gid, _ := key.ParseGameID(id)
	return MastersGameWithID{
		ID:     gid,
		White:  entry.Player{Name: "X", Rating: 2500},
		Black:  entry.Player{Name: "Y", Rating: 2500},
		Date:   "2024.03.14",
		Winner: &white,
		Moves:  []string{"e2e4"},
	}
}

// TestImportMastersAccept: the accepted game's
// position-keyed record reflects the one move played, with both players'
// ratings summed in.
func TestImportMastersAccept(t *testing.T) {
	imp, eng := newTestMastersImporter(t)
	ctx := context.Background()

	if err := imp.Import(ctx, sampleMastersGame("aaaaaaaa")); err != nil {
		t.Fatalf("Import: %v", err)
	}

	id, _ := key.ParseGameID("aaaaaaaa")
	if _, err := eng.Get(ctx, storage.CFMastersGame, id[:]); err != nil {
		t.Fatalf("masters_game record missing: %v", err)
	}

	root := chess.NewGame()
	prefix := key.BuildPrefix(key.Base128{}, root.Zobrist(), chess.Standard.Constant())
	k := key.Build(prefix, key.YearBucket(2024))
	raw, err := eng.Get(ctx, storage.CFMasters, k.Bytes())
	if err != nil {
		t.Fatalf("masters aggregate missing: %v", err)
	}
	got := entry.NewMastersEntry()
	if err := got.ExtendFrom(raw); err != nil {
		t.Fatalf("ExtendFrom: %v", err)
	}
	moves := got.Moves()
	if len(moves) != 1 {
		t.Fatalf("len(moves) = %d, want 1", len(moves))
	}
	g := got.Group(moves[0])
	if g.Stats.White != 1 || g.Stats.Draws != 0 || g.Stats.Black != 0 {
		t.Fatalf("stats = %+v, want one white win", g.Stats)
	}
	if g.Stats.RatingSum != 5000 {
		t.Fatalf("rating_sum = %d, want 5000", g.Stats.RatingSum)
	}
}

// TestImportMastersDuplicate: a second import of the same id is
// rejected as a duplicate.
func TestImportMastersDuplicate(t *testing.T) {
	imp, _ := newTestMastersImporter(t)
	ctx := context.Background()
	game := sampleMastersGame("aaaaaaaa")

	if err := imp.Import(ctx, game); err != nil {
		t.Fatalf("first Import: %v", err)
	}
	err := imp.Import(ctx, game)
	if _, ok := err.(api.ErrDuplicateGame); !ok {
		t.Fatalf("second Import: got %v (%T), want ErrDuplicateGame", err, err)
	}
}

// TestImportMastersLowRatingRejected: a sub-2200 midpoint rating is
// rejected.
func TestImportMastersLowRatingRejected(t *testing.T) {
	imp, _ := newTestMastersImporter(t)
	ctx := context.Background()

	game := sampleMastersGame("aaaaaaaa")
	game.White.Rating = 2100
	game.Black.Rating = 2100

	err := imp.Import(ctx, game)
	rejected, ok := err.(api.ErrRejectedRating)
	if !ok {
		t.Fatalf("Import: got %v (%T), want ErrRejectedRating", err, err)
	}
	if rejected.Rating != 2100 {
		t.Fatalf("rejected rating = %d, want 2100", rejected.Rating)
	}
}

// TestImportMastersFutureDateRejected exercises the "strictly after
// tomorrow" date check.
func TestImportMastersFutureDateRejected(t *testing.T) {
	imp, _ := newTestMastersImporter(t)
	ctx := context.Background()

	game := sampleMastersGame("aaaaaaaa")
	game.Date = "2999.01.01"

	err := imp.Import(ctx, game)
	if _, ok := err.(api.ErrRejectedDate); !ok {
		t.Fatalf("Import: got %v (%T), want ErrRejectedDate", err, err)
	}
}

// TestImportMastersRepetitionSuppressed: a
// repeated position within one game contributes only once.
func TestImportMastersRepetitionSuppressed(t *testing.T) {
	imp, eng := newTestMastersImporter(t)
	ctx := context.Background()

	game := sampleMastersGame("aaaaaaaa")
	game.Winner = nil
	game.Moves = []string{"g1f3", "g8f6", "f3g1", "f6g8", "g1f3"}

	if err := imp.Import(ctx, game); err != nil {
		t.Fatalf("Import: %v", err)
	}

	root := chess.NewGame()
	prefix := key.BuildPrefix(key.Base128{}, root.Zobrist(), chess.Standard.Constant())
	k := key.Build(prefix, key.YearBucket(2024))
	raw, err := eng.Get(ctx, storage.CFMasters, k.Bytes())
	if err != nil {
		t.Fatalf("masters aggregate missing: %v", err)
	}
	got := entry.NewMastersEntry()
	if err := got.ExtendFrom(raw); err != nil {
		t.Fatalf("ExtendFrom: %v", err)
	}
	var total uint64
	for _, m := range got.Moves() {
		total += got.Group(m).Stats.Total()
	}
	if total != 1 {
		t.Fatalf("total = %d, want 1 (loop suppressed)", total)
	}
}
