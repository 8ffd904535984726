// Package blacklist maintains a read-mostly set of moderator-blacklisted
// user ids, refreshed periodically from an upstream NDJSON stream and
// used as a post-filter on sample games so a blacklisted player's games
// never surface in an explorer response. The synchronization mechanism
// that keeps the set current (as opposed to the set's read-mostly
// interface into the rest of the service) is this package's own concern
// to define.
//
// © 2025 opening-explorer authors. MIT License.
package blacklist

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// RefreshInterval is the blacklist reload cadence.
const RefreshInterval = 173 * time.Minute

// Set is the shared, lock-free-to-read blacklist snapshot: an
// atomic.Pointer swap on refresh, same pattern as internal/opening.Table,
// so a reader never blocks behind a refresh in progress.
type Set struct {
	current atomic.Pointer[map[string]struct{}]
}

// New returns an empty Set.
func New() *Set {
	s := &Set{}
	empty := map[string]struct{}{}
	s.current.Store(&empty)
	return s
}

// Contains reports whether userID (case-insensitively) is blacklisted.
func (s *Set) Contains(userID string) bool {
	m := *s.current.Load()
	_, ok := m[strings.ToLower(userID)]
	return ok
}

// AnyBlacklisted reports whether any of userIDs is blacklisted, the
// shape the per-game player-name post-filter needs.
func (s *Set) AnyBlacklisted(userIDs ...string) bool {
	for _, id := range userIDs {
		if s.Contains(id) {
			return true
		}
	}
	return false
}

// Len reports the current snapshot's size.
func (s *Set) Len() int {
	return len(*s.current.Load())
}

// Load replaces the current snapshot by streaming newline-delimited user
// ids from r (one bare id per line, or a JSON object with a "username"
// field — both shapes a cheater-list feed might use).
func (s *Set) Load(r io.Reader) (int, error) {
	next := make(map[string]struct{}, 1024)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id := line
		if strings.HasPrefix(line, "{") {
			var rec struct {
				Username string `json:"username"`
			}
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				return 0, fmt.Errorf("blacklist: decode line: %w", err)
			}
			id = rec.Username
		}
		next[strings.ToLower(id)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	s.current.Store(&next)
	return len(next), nil
}

// Fetcher pulls the latest blacklist stream from the upstream
// moderation source. Only the call shape is implemented here, mirroring
// internal/upstream.Client's NDJSON style.
type Fetcher struct {
	http    *http.Client
	baseURL string
	bearer  string
}

// NewFetcher builds a Fetcher against baseURL (e.g. "https://lichess.org"),
// optionally authenticated with a bearer token for the moderator-only
// stream.
func NewFetcher(baseURL, bearer string) *Fetcher {
	return &Fetcher{http: &http.Client{}, baseURL: baseURL, bearer: bearer}
}

// RunPeriodic refreshes set every RefreshInterval until ctx is canceled,
// logging the size delta after each successful pull.
func (f *Fetcher) RunPeriodic(ctx context.Context, set *Set, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()
	for {
		f.refreshOnce(ctx, set, logger)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (f *Fetcher) refreshOnce(ctx context.Context, set *Set, logger *zap.Logger) {
	before := set.Len()
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/api/user/moderation/blacklist", nil)
	if err != nil {
		logger.Error("blacklist: build request", zap.Error(err))
		return
	}
	if f.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+f.bearer)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		logger.Error("blacklist request failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.Error("blacklist request to lila", zap.Int("status", resp.StatusCode))
		return
	}

	after, err := set.Load(resp.Body)
	if err != nil {
		logger.Error("blacklist stream from lila", zap.Error(err))
		return
	}

	logger.Info("blacklist updated",
		zap.Duration("took", time.Since(start)),
		zap.Int("new_users", max(0, after-before)),
		zap.Int("total", after))
}
