// © 2025 opening-explorer authors. MIT License.

package query

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/opnexpl/openingexplorer/internal/api"
	"github.com/opnexpl/openingexplorer/internal/blacklist"
	"github.com/opnexpl/openingexplorer/internal/chess"
	"github.com/opnexpl/openingexplorer/internal/entry"
	"github.com/opnexpl/openingexplorer/internal/importer"
	"github.com/opnexpl/openingexplorer/internal/key"
	"github.com/opnexpl/openingexplorer/internal/stats"
	"github.com/opnexpl/openingexplorer/internal/storage"
)

func newTestEngine(t *testing.T) *storage.Engine {
	t.Helper()
	eng, err := storage.Open(storage.Config{Dir: t.TempDir(), Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func mustID(t *testing.T, s string) key.GameID {
	t.Helper()
	id, err := key.ParseGameID(s)
	if err != nil {
		t.Fatalf("ParseGameID(%q): %v", s, err)
	}
	return id
}

// TestResolveRootIsIndependentOfPosition is the regression test behind the
// ClassifyAlongPlay fix: Root must hold the pre-replay position even after
// Position has been walked forward by every requested move.
func TestResolveRootIsIndependentOfPosition(t *testing.T) {
	resolved, err := Resolve(api.PlaySpec{Variant: "standard", UCIMoves: []string{"e2e4", "e7e5"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	root := chess.NewGame()
	if resolved.Root.Zobrist() != root.Zobrist() {
		t.Fatal("Root zobrist changed by move replay, want the untouched starting position")
	}
	if resolved.Position.Zobrist() == resolved.Root.Zobrist() {
		t.Fatal("Position was never advanced past Root despite a non-empty move list")
	}
	if resolved.Ply != 2 {
		t.Fatalf("Ply = %d, want 2", resolved.Ply)
	}
}

// TestResolveEmptyMovesRootEqualsPosition covers the ply-zero case: with no
// moves, Root and Position both describe the same unreplayed position.
func TestResolveEmptyMovesRootEqualsPosition(t *testing.T) {
	resolved, err := Resolve(api.PlaySpec{Variant: "standard"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Root.Zobrist() != resolved.Position.Zobrist() {
		t.Fatal("Root and Position should match with zero moves played")
	}
}

// TestReadMastersAccumulatesAcrossBuckets imports two masters games
// reaching the same position in different years and checks ReadMasters
// folds both into one entry with the correct per-bucket running totals.
func TestReadMastersAccumulatesAcrossBuckets(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	imp := importer.NewMastersImporter(eng, zap.NewNop())

	white := stats.OutcomeWhite
	black := stats.OutcomeBlack
	games := []importer.MastersGameWithID{
		{ID: mustID(t, "aaaaaaaa"), White: entry.Player{Name: "A", Rating: 2500}, Black: entry.Player{Name: "B", Rating: 2500}, Date: "2023.01.01", Winner: &white, Moves: []string{"e2e4"}},
		{ID: mustID(t, "bbbbbbbb"), White: entry.Player{Name: "C", Rating: 2500}, Black: entry.Player{Name: "D", Rating: 2500}, Date: "2024.01.01", Winner: &black, Moves: []string{"e2e4"}},
	}
	for _, g := range games {
		if err := imp.Import(ctx, g); err != nil {
			t.Fatalf("Import: %v", err)
		}
	}

	// The aggregates are keyed at the position each move was played FROM,
	// so the two e2e4 contributions live under the starting position.
	resolved, err := Resolve(api.PlaySpec{Variant: "standard"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	prefix := resolved.MastersPrefix()

	agg, totals, err := ReadMasters(ctx, eng, prefix, key.YearBucket(2023), key.Bucket(^uint16(0)), resolved.Ply)
	if err != nil {
		t.Fatalf("ReadMasters: %v", err)
	}
	var total stats.Stats
	for _, m := range agg.Moves() {
		total = total.Add(agg.Group(m).Stats)
	}
	if total.Total() != 2 {
		t.Fatalf("total = %d, want 2", total.Total())
	}
	if len(totals) != 2 {
		t.Fatalf("len(totals) = %d, want 2 buckets", len(totals))
	}
	if totals[0].Total.Total() != 1 || totals[1].Total.Total() != 2 {
		t.Fatalf("running totals = %+v, want [1 2]", totals)
	}
}

// TestBuildHistoryDropsTrailingSegmentWithoutUntil covers the rule that
// an open-ended history drops its trailing (partial-month) segment.
func TestBuildHistoryDropsTrailingSegmentWithoutUntil(t *testing.T) {
	totals := []BucketTotal{
		{Bucket: key.YearBucket(2023), Total: stats.Stats{White: 1}},
		{Bucket: key.YearBucket(2024), Total: stats.Stats{White: 3}},
	}
	segs := BuildHistory(totals, 0, false, 0, false)
	if len(segs) != 1 {
		t.Fatalf("len(segs) = %d, want 1 (trailing partial segment dropped)", len(segs))
	}
	if segs[0].Stats.White != 1 {
		t.Fatalf("segs[0].Stats.White = %d, want 1", segs[0].Stats.White)
	}
}

// TestBuildHistoryKeepsTrailingSegmentWithUntil covers the complementary
// case: an explicit until keeps every differenced segment, including the
// last.
func TestBuildHistoryKeepsTrailingSegmentWithUntil(t *testing.T) {
	totals := []BucketTotal{
		{Bucket: key.YearBucket(2023), Total: stats.Stats{White: 1}},
		{Bucket: key.YearBucket(2024), Total: stats.Stats{White: 3}},
	}
	segs := BuildHistory(totals, key.YearBucket(2023), true, key.YearBucket(2024)+1, true)
	if len(segs) != 2 {
		t.Fatalf("len(segs) = %d, want 2", len(segs))
	}
	if segs[1].Stats.White != 2 {
		t.Fatalf("segs[1].Stats.White = %d, want 2 (3-1 differenced)", segs[1].Stats.White)
	}
}

// TestBuildHistoryZeroFillsGapBucket covers a bucket no record touched: it
// must appear as a zero segment, not be skipped.
func TestBuildHistoryZeroFillsGapBucket(t *testing.T) {
	totals := []BucketTotal{
		{Bucket: key.YearBucket(2022), Total: stats.Stats{White: 1}},
		{Bucket: key.YearBucket(2024), Total: stats.Stats{White: 1}},
	}
	segs := BuildHistory(totals, key.YearBucket(2022), true, key.YearBucket(2024)+1, true)
	if len(segs) != 3 {
		t.Fatalf("len(segs) = %d, want 3 (2022, 2023 gap, 2024)", len(segs))
	}
	if segs[1].Stats.Total() != 0 {
		t.Fatalf("segs[1] (gap year) = %+v, want zero", segs[1].Stats)
	}
}

// TestPrepareMastersExcludesBlacklistedSampleGame covers the blacklist
// wiring: a blacklisted player's game must not surface as a sample game,
// while the move's aggregate total is unaffected (the filter only hides
// the game record, never the counts).
func TestPrepareMastersExcludesBlacklistedSampleGame(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	imp := importer.NewMastersImporter(eng, zap.NewNop())

	white := stats.OutcomeWhite
	game := importer.MastersGameWithID{
		ID: mustID(t, "aaaaaaaa"), White: entry.Player{Name: "cheater", Rating: 2500},
		Black: entry.Player{Name: "B", Rating: 2500}, Date: "2024.01.01", Winner: &white, Moves: []string{"e2e4"},
	}
	if err := imp.Import(ctx, game); err != nil {
		t.Fatalf("Import: %v", err)
	}

	resolved, err := Resolve(api.PlaySpec{Variant: "standard"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	agg, _, err := ReadMasters(ctx, eng, resolved.MastersPrefix(), key.Bucket(0), key.Bucket(^uint16(0)), resolved.Ply)
	if err != nil {
		t.Fatalf("ReadMasters: %v", err)
	}

	bl := blacklist.New()
	if _, err := bl.Load(strings.NewReader("cheater\n")); err != nil {
		t.Fatalf("Load: %v", err)
	}

	_, topGames, total := PrepareMasters(ctx, eng, bl, agg, api.DefaultLimits())
	if total.Total() != 1 {
		t.Fatalf("total = %d, want 1 (aggregate unaffected by blacklist)", total.Total())
	}
	if len(topGames) != 0 {
		t.Fatalf("topGames = %+v, want empty (sole game's player is blacklisted)", topGames)
	}
}
