// © 2025 opening-explorer authors. MIT License.

package entry

import "testing"

func TestPlayerStatusRoundTrip(t *testing.T) {
	s := PlayerStatus{
		LatestCreatedAt:         1700000000,
		RevisitOngoingCreatedAt: 0,
		IndexedAt:               1700000500,
		RevisitedAt:             1690000000,
	}
	got, err := DecodePlayerStatus(s.Encode())
	if err != nil {
		t.Fatalf("DecodePlayerStatus: %v", err)
	}
	if got != s {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, s)
	}
}
