// © 2025 opening-explorer authors. MIT License.

package key

import (
	"bytes"
	"testing"

	"github.com/opnexpl/openingexplorer/internal/chess"
)

// For any two months m <= n and a fixed prefix, keys sort ascending by
// bucket.
func TestKeyOrderByBucket(t *testing.T) {
	prefix := PositionPrefix{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	a := Build(prefix, MonthBucket(2024, 1))
	b := Build(prefix, MonthBucket(2024, 6))
	c := Build(prefix, MonthBucket(2025, 1))

	if bytes.Compare(a.Bytes(), b.Bytes()) >= 0 {
		t.Fatalf("expected a < b")
	}
	if bytes.Compare(b.Bytes(), c.Bytes()) >= 0 {
		t.Fatalf("expected b < c")
	}
}

func TestKeyBucketRoundTrip(t *testing.T) {
	prefix := PositionPrefix{}
	bucket := MonthBucket(2024, 3)
	k := Build(prefix, bucket)
	if k.Bucket() != bucket {
		t.Fatalf("bucket roundtrip failed: got %d want %d", k.Bucket(), bucket)
	}
	if k.Prefix() != prefix {
		t.Fatalf("prefix roundtrip failed")
	}
}

// Different users (or colors) get different namespace bases for the
// same position, with overwhelming probability.
func TestPlayerBaseIsolation(t *testing.T) {
	z := chess.Zobrist{Hi: 0x1122334455667788, Lo: 0x99aabbccddeeff00}
	var variantConst Base128

	baseA := PlayerBase("alice", ColorWhite)
	baseB := PlayerBase("bob", ColorWhite)
	baseAblack := PlayerBase("alice", ColorBlack)

	prefixA := BuildPrefix(baseA, z, variantConst)
	prefixB := BuildPrefix(baseB, z, variantConst)
	prefixAblack := BuildPrefix(baseAblack, z, variantConst)

	if prefixA == prefixB {
		t.Fatalf("expected different users to get different prefixes")
	}
	if prefixA == prefixAblack {
		t.Fatalf("expected different colors to get different prefixes")
	}
}

func TestPlayerBaseCaseInsensitive(t *testing.T) {
	if PlayerBase("Alice", ColorWhite) != PlayerBase("alice", ColorWhite) {
		t.Fatalf("expected user id lower-casing before hashing")
	}
}

func TestGameIDRoundTrip(t *testing.T) {
	ids := []string{"aaaaaaaa", "ZZZZZZZZ", "a1B2c3D4"}
	for _, s := range ids {
		id, err := ParseGameID(s)
		if err != nil {
			t.Fatalf("ParseGameID(%q): %v", s, err)
		}
		if got := id.String(); got != s {
			t.Fatalf("roundtrip(%q) = %q", s, got)
		}
	}
}

func TestGameIDInvalid(t *testing.T) {
	cases := []string{"short", "toolongggg", "bad!char"}
	for _, s := range cases {
		if _, err := ParseGameID(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}
