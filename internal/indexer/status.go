// © 2025 opening-explorer authors. MIT License.

package indexer

// status.go wraps the per-user PlayerStatus record: read-modify-write
// by exactly one worker at a time for a given user, since the queue
// holds at most one pending or running task per user.

import (
	"context"

	"github.com/opnexpl/openingexplorer/internal/entry"
	"github.com/opnexpl/openingexplorer/internal/storage"
)

const (
	indexCooldown = 60           // seconds between index runs per user
	revisitWindow = 24 * 60 * 60 // seconds
)

// loadStatus reads a user's PlayerStatus, returning the zero value if none
// is stored yet (a never-indexed user).
func loadStatus(ctx context.Context, eng *storage.Engine, userID string) (entry.PlayerStatus, error) {
	buf, err := eng.Get(ctx, storage.CFPlayerStatus, []byte(userID))
	if err == storage.ErrNotFound {
		return entry.PlayerStatus{}, nil
	}
	if err != nil {
		return entry.PlayerStatus{}, err
	}
	return entry.DecodePlayerStatus(buf)
}

func saveStatus(ctx context.Context, eng *storage.Engine, userID string, s entry.PlayerStatus) error {
	return eng.Put(ctx, storage.CFPlayerStatus, []byte(userID), s.Encode())
}

// decideRun decides whether an indexing run should start for a user: it
// returns (since, true) if a run should start — since is the
// created_at-exclusive lower bound to request from upstream — or (0,
// false) if the call should be a no-op.
func decideRun(s entry.PlayerStatus, nowUnix int64) (since int64, shouldRun bool) {
	if nowUnix-s.IndexedAt > indexCooldown {
		return s.LatestCreatedAt, true
	}
	if s.RevisitOngoingCreatedAt != 0 && nowUnix-s.RevisitedAt > revisitWindow {
		return s.RevisitOngoingCreatedAt - 1, true
	}
	return 0, false
}
