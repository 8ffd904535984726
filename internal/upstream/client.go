// Package upstream implements the player pipeline's crawl client: a
// paginated, date-ascending, newline-delimited-JSON streaming request to
// the upstream game archive. Only the outbound call lives here; the
// upstream's own HTTP surface is not this module's concern.
//
// © 2025 opening-explorer authors. MIT License.
package upstream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"
)

// Config configures the client's crawl behavior against the upstream archive.
type Config struct {
	BaseURL string // default "https://lichess.org"
	Bearer  string // optional token, unlocks higher rate limits

	// ReadTimeout bounds each line read from the stream; a read that
	// stalls past it abandons the run. Default 60s.
	ReadTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://lichess.org"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60 * time.Second
	}
}

// Client issues authenticated NDJSON streaming requests against the
// upstream game archive.
type Client struct {
	http *http.Client
	cfg  Config
}

// New builds a Client.
func New(cfg Config) *Client {
	cfg.setDefaults()
	return &Client{
		http: &http.Client{}, // per-read timeouts applied by UserGames' stall timer, not client.Timeout
		cfg:  cfg,
	}
}

// Status mirrors the upstream game's terminal status field.
type Status string

const (
	StatusCreated       Status = "created"
	StatusStarted       Status = "started"
	StatusAborted       Status = "aborted"
	StatusMate          Status = "mate"
	StatusResign        Status = "resign"
	StatusStalemate     Status = "stalemate"
	StatusTimeout       Status = "timeout"
	StatusDraw          Status = "draw"
	StatusOutOfTime     Status = "outoftime"
	StatusCheat         Status = "cheat"
	StatusNoStart       Status = "noStart"
	StatusUnknownFinish Status = "unknownFinish"
	StatusVariantEnd    Status = "variantEnd"
)

// IsOngoing reports whether the game had not yet finished when crawled.
func (s Status) IsOngoing() bool { return s == StatusCreated || s == StatusStarted }

// IsUnindexable reports the terminal statuses the indexer skips outright:
// games that never really happened or whose finish is unknown.
func (s Status) IsUnindexable() bool {
	return s == StatusUnknownFinish || s == StatusNoStart || s == StatusAborted
}

// Player is one side of an upstream game record.
type Player struct {
	UserName string `json:"-"`
	Rating   int    `json:"-"`
	HasUser  bool   `json:"-"`
	HasRating bool  `json:"-"`
}

type rawPlayer struct {
	User *struct {
		Name string `json:"name"`
	} `json:"user"`
	Rating *int `json:"rating"`
}

// Game is one upstream game record, decoded from one NDJSON line.
type Game struct {
	ID          string
	Rated       bool
	CreatedAt   int64 // unix millis
	LastMoveAt  int64 // unix millis
	Status      Status
	Variant     string
	Speed       string
	White       Player
	Black       Player
	Moves       []string // UCI move tokens, space-split
	Winner      string   // "white", "black", or "" for draw/ongoing
	InitialFEN  string
}

type rawGame struct {
	ID         string    `json:"id"`
	Rated      bool      `json:"rated"`
	CreatedAt  int64     `json:"createdAt"`
	LastMoveAt int64     `json:"lastMoveAt"`
	Status     Status    `json:"status"`
	Variant    string    `json:"variant"`
	Speed      string    `json:"speed"`
	Players    struct {
		White rawPlayer `json:"white"`
		Black rawPlayer `json:"black"`
	} `json:"players"`
	Moves      string `json:"moves"`
	Winner     string `json:"winner"`
	InitialFEN string `json:"initialFen"`
}

func (r rawPlayer) toPlayer() Player {
	p := Player{}
	if r.User != nil {
		p.HasUser = true
		p.UserName = r.User.Name
	}
	if r.Rating != nil {
		p.HasRating = true
		p.Rating = *r.Rating
	}
	return p
}

// UserGames streams every game for user with createdAt > sinceMillis,
// ordered oldest-first, yielding (Game, error) pairs lazily as lines
// arrive. The iterator stops (with a final error value, possibly nil) when
// the stream ends, a read stalls past ReadTimeout, or ctx is canceled.
func (c *Client) UserGames(ctx context.Context, user string, sinceMillis int64) iter.Seq2[Game, error] {
	return func(yield func(Game, error) bool) {
		url := fmt.Sprintf("%s/api/games/user/%s?sort=dateAsc&ongoing=true&since=%d",
			c.cfg.BaseURL, strings.ToLower(user), sinceMillis)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			yield(Game{}, err)
			return
		}
		req.Header.Set("Accept", "application/x-ndjson")
		if c.cfg.Bearer != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.Bearer)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			yield(Game{}, err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			yield(Game{}, ErrNotFound{User: user})
			return
		}
		if resp.StatusCode != http.StatusOK {
			yield(Game{}, fmt.Errorf("upstream: status %d for %s", resp.StatusCode, user))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

		// Scan() blocks on the underlying connection's Read with no
		// deadline of its own, so the stall-detection (ReadTimeout) runs
		// Scan() on a separate goroutine and races it against a timer;
		// on timeout the response body is closed to unblock the
		// in-flight Read and the run is abandoned. stop lets the main
		// loop walk away (timeout, cancellation, or the caller stopping
		// iteration) without leaving the goroutine parked on a send
		// nobody will ever receive.
		stop := make(chan struct{})
		defer close(stop)
		lines := make(chan string)
		done := make(chan error, 1)
		go func() {
			defer close(lines)
			for scanner.Scan() {
				select {
				case lines <- scanner.Text():
				case <-stop:
					return
				}
			}
			select {
			case done <- scanner.Err():
			case <-stop:
			}
		}()

		timeout := c.cfg.ReadTimeout
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				resp.Body.Close()
				yield(Game{}, ctx.Err())
				return
			case <-timer.C:
				resp.Body.Close()
				yield(Game{}, fmt.Errorf("upstream: read stalled past %s", timeout))
				return
			case line, ok := <-lines:
				if !ok {
					if err := <-done; err != nil {
						yield(Game{}, fmt.Errorf("upstream: stream read: %w", err))
					}
					return
				}
				timer.Reset(timeout)
				if len(line) == 0 {
					continue
				}
				var raw rawGame
				if err := json.Unmarshal([]byte(line), &raw); err != nil {
					if !yield(Game{}, fmt.Errorf("upstream: decode line: %w", err)) {
						return
					}
					continue
				}
				g := Game{
					ID:         raw.ID,
					Rated:      raw.Rated,
					CreatedAt:  raw.CreatedAt,
					LastMoveAt: raw.LastMoveAt,
					Status:     raw.Status,
					Variant:    raw.Variant,
					Speed:      raw.Speed,
					White:      raw.Players.White.toPlayer(),
					Black:      raw.Players.Black.toPlayer(),
					Winner:     raw.Winner,
					InitialFEN: raw.InitialFEN,
				}
				if raw.Moves != "" {
					g.Moves = strings.Fields(raw.Moves)
				}
				if !yield(g, nil) {
					resp.Body.Close()
					return
				}
			}
		}
	}
}

// ErrNotFound is returned when the upstream has no such user. Callers
// log it at warn level and drop the run rather than retrying.
type ErrNotFound struct{ User string }

func (e ErrNotFound) Error() string { return fmt.Sprintf("upstream: user %q not found", e.User) }
