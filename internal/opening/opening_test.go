// © 2025 opening-explorer authors. MIT License.

package opening

import (
	"strings"
	"testing"

	"github.com/opnexpl/openingexplorer/internal/chess"
)

const sampleTSV = "eco\tname\tuci\n" +
	"C50\tItalian Game\te2e4 e7e5 g1f3 b8c6 f1c4\n" +
	"B01\tScandinavian Defense\te2e4 d7d5\n"

func TestLoadAndClassify(t *testing.T) {
	tbl := New()
	if err := tbl.Load(strings.NewReader(sampleTSV)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tbl.Len())
	}

	root := chess.NewGame()
	ref, err := tbl.ClassifyAlongPlay(chess.Standard, root, []string{"e2e4", "d7d5"})
	if err != nil {
		t.Fatalf("ClassifyAlongPlay: %v", err)
	}
	if ref == nil || ref.ECO != "B01" {
		t.Fatalf("ref = %+v, want B01", ref)
	}
}

func TestClassifyAlongPlayKeepsDeepestMatch(t *testing.T) {
	tbl := New()
	if err := tbl.Load(strings.NewReader(sampleTSV)); err != nil {
		t.Fatalf("Load: %v", err)
	}

	root := chess.NewGame()
	ref, err := tbl.ClassifyAlongPlay(chess.Standard, root, []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1c4", "g8f6"})
	if err != nil {
		t.Fatalf("ClassifyAlongPlay: %v", err)
	}
	if ref == nil || ref.ECO != "C50" {
		t.Fatalf("ref = %+v, want C50 (out-of-book ply keeps last match)", ref)
	}
}

func TestClassifyIgnoresNonSensibleVariant(t *testing.T) {
	tbl := New()
	if err := tbl.Load(strings.NewReader(sampleTSV)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	root := chess.NewGame()
	ref, err := tbl.ClassifyAlongPlay(chess.Antichess, root, []string{"e2e4", "d7d5"})
	if err != nil {
		t.Fatalf("ClassifyAlongPlay: %v", err)
	}
	if ref != nil {
		t.Fatalf("ref = %+v, want nil for antichess", ref)
	}
}

func TestLoadRejectsDuplicatePosition(t *testing.T) {
	tbl := New()
	dup := "eco\tname\tuci\nA00\tFirst\te2e4\nA01\tSecond\te2e4\n"
	if err := tbl.Load(strings.NewReader(dup)); err == nil {
		t.Fatal("Load: want error on duplicate position, got nil")
	}
}
