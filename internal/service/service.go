// © 2025 opening-explorer authors. MIT License.

package service

// service.go is the top-level wiring of the service's six operations,
// the shape cmd/explorerd's main() builds once at startup and threads
// into whatever transport it adds: one struct holding every
// collaborator, constructed once, with no package-level globals.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/opnexpl/openingexplorer/internal/api"
	"github.com/opnexpl/openingexplorer/internal/blacklist"
	"github.com/opnexpl/openingexplorer/internal/importer"
	"github.com/opnexpl/openingexplorer/internal/indexer"
	"github.com/opnexpl/openingexplorer/internal/key"
	"github.com/opnexpl/openingexplorer/internal/metrics"
	"github.com/opnexpl/openingexplorer/internal/opening"
	"github.com/opnexpl/openingexplorer/internal/query"
	"github.com/opnexpl/openingexplorer/internal/respcache"
	"github.com/opnexpl/openingexplorer/internal/storage"
)

// Service bundles every collaborator the six wire operations need: the
// storage engine, the two batch importers, the on-demand player indexer,
// the response caches, the openings table and the blacklist.
type Service struct {
	eng *storage.Engine

	masters *importer.MastersImporter
	lichess *importer.LichessImporter

	queue *indexer.Queue[string]
	pool  *indexer.Pool

	mastersCache *respcache.Cache
	lichessCache *respcache.Cache

	openings  *opening.Table
	blacklist *blacklist.Set

	metrics *metrics.Metrics
	logger  *zap.Logger
}

// Deps bundles every already-constructed collaborator New needs; built by
// cmd/explorerd's main() from a config.Config.
type Deps struct {
	Engine    *storage.Engine
	Runner    *indexer.Runner
	Queue     *indexer.Queue[string]
	Pool      *indexer.Pool
	Masters   *respcache.Cache
	Lichess   *respcache.Cache
	Openings  *opening.Table
	Blacklist *blacklist.Set
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// NewService assembles a Service from deps, defaulting a nop logger.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		eng:          deps.Engine,
		masters:      importer.NewMastersImporter(deps.Engine, logger),
		lichess:      importer.NewLichessImporter(deps.Engine, logger),
		queue:        deps.Queue,
		pool:         deps.Pool,
		mastersCache: deps.Masters,
		lichessCache: deps.Lichess,
		openings:     deps.Openings,
		blacklist:    deps.Blacklist,
		metrics:      deps.Metrics,
		logger:       logger,
	}
}

// QueryMasters answers a cached, single-shot query over the masters
// scope.
func (s *Service) QueryMasters(ctx context.Context, spec api.PlaySpec, filter api.Filter, limits api.Limits, wantHistory bool) (api.ExplorerResponse, error) {
	defer s.metrics.ObserveQuery("masters", time.Now())

	k := respcache.Key(spec, api.Filter{Since: filter.Since, Until: filter.Until, HasSince: filter.HasSince, HasUntil: filter.HasUntil}, limits, wantHistory)
	if s.mastersCache != nil {
		if resp, ok := s.mastersCache.Get(k); ok {
			s.metrics.RecordRespCache("masters", true)
			return resp, nil
		}
	}
	s.metrics.RecordRespCache("masters", false)

	compute := func(ctx context.Context) (api.ExplorerResponse, error) {
		return s.computeMasters(ctx, spec, filter, limits, wantHistory)
	}
	if s.mastersCache == nil {
		return compute(ctx)
	}
	return s.mastersCache.GetOrCompute(ctx, k, compute)
}

func (s *Service) computeMasters(ctx context.Context, spec api.PlaySpec, filter api.Filter, limits api.Limits, wantHistory bool) (api.ExplorerResponse, error) {
	resolved, err := query.Resolve(spec)
	if err != nil {
		return api.ExplorerResponse{}, err
	}
	prefix := resolved.MastersPrefix()

	since, until := filter.Since, filter.Until
	if !filter.HasUntil {
		until = key.Bucket(^uint16(0))
	}

	agg, totals, err := query.ReadMasters(ctx, s.eng, prefix, since, until, resolved.Ply)
	if err != nil {
		return api.ExplorerResponse{}, err
	}

	moves, topGames, total := query.PrepareMasters(ctx, s.eng, s.blacklist, agg, limits)

	resp := api.ExplorerResponse{Total: total, Moves: moves, TopGames: topGames}
	if wantHistory {
		resp.History = query.BuildHistory(totals, since, filter.HasSince, until, filter.HasUntil)
	}
	if s.openings != nil {
		resp.Opening, _ = s.openings.ClassifyAlongPlay(resolved.Variant, resolved.Root, spec.UCIMoves)
	}
	return resp, nil
}

// QueryLichess answers a cached, single-shot query over the lichess
// scope.
func (s *Service) QueryLichess(ctx context.Context, spec api.PlaySpec, filter api.Filter, limits api.Limits, wantHistory bool) (api.ExplorerResponse, error) {
	defer s.metrics.ObserveQuery("lichess", time.Now())

	k := respcache.Key(spec, filter, limits, wantHistory)
	if s.lichessCache != nil {
		if resp, ok := s.lichessCache.Get(k); ok {
			s.metrics.RecordRespCache("lichess", true)
			return resp, nil
		}
	}
	s.metrics.RecordRespCache("lichess", false)

	compute := func(ctx context.Context) (api.ExplorerResponse, error) {
		return s.computeLichess(ctx, spec, filter, limits, wantHistory)
	}
	if s.lichessCache == nil {
		return compute(ctx)
	}
	return s.lichessCache.GetOrCompute(ctx, k, compute)
}

func (s *Service) computeLichess(ctx context.Context, spec api.PlaySpec, filter api.Filter, limits api.Limits, wantHistory bool) (api.ExplorerResponse, error) {
	resolved, err := query.Resolve(spec)
	if err != nil {
		return api.ExplorerResponse{}, err
	}
	prefix := resolved.LichessPrefix()

	since, until := filter.Since, filter.Until
	if !filter.HasUntil {
		until = key.Bucket(^uint16(0))
	}

	agg, totals, err := query.ReadLichess(ctx, s.eng, prefix, since, until, resolved.Ply, filter)
	if err != nil {
		return api.ExplorerResponse{}, err
	}

	moves, recent, top, total := query.PrepareLichess(ctx, s.eng, s.blacklist, agg, filter, limits)

	resp := api.ExplorerResponse{Total: total, Moves: moves, RecentGames: recent, TopGames: top}
	if wantHistory {
		resp.History = query.BuildHistory(totals, since, filter.HasSince, until, filter.HasUntil)
	}
	if s.openings != nil {
		resp.Opening, _ = s.openings.ClassifyAlongPlay(resolved.Variant, resolved.Root, spec.UCIMoves)
	}
	return resp, nil
}

// QueryPlayer submits (or joins) an indexing run for userID/color, then
// streams responses computed live against the growing storage scope.
// Each yielded response carries QueuePosition until the run completes.
// The caller drains the returned channel (e.g. a handler framing each
// value as one NDJSON line); it is closed when the run completes or ctx
// is canceled.
//
// Blacklisted users are rejected immediately: the returned channel is nil
// and err is an api.ErrValidation.
func (s *Service) QueryPlayer(ctx context.Context, userID string, color key.Color, spec api.PlaySpec, filter api.Filter, limits api.Limits) (<-chan api.ExplorerResponse, error) {
	if s.blacklist != nil && s.blacklist.Contains(userID) {
		return nil, api.ErrValidation{Reason: fmt.Sprintf("user %q is blacklisted", userID)}
	}

	var ticket indexer.Ticket
	if s.queue != nil {
		t, err := s.queue.Submit(userID)
		if err != nil {
			var full indexer.ErrQueueFull[string]
			if errors.As(err, &full) {
				return nil, api.ErrQueueFull{UserID: userID}
			}
			return nil, err
		}
		ticket = t
	}

	resolved, err := query.Resolve(spec)
	if err != nil {
		return nil, err
	}

	ch := make(chan api.ExplorerResponse)
	go s.streamPlayer(ctx, ticket, userID, color, resolved, spec, filter, limits, ch)
	return ch, nil
}

// playerPollInterval is how often a streaming player response is
// recomputed while the indexing run is in flight.
const playerPollInterval = time.Second

// playerKeepAlive is the idle keep-alive cadence for a stalled long-poll
// client.
const playerKeepAlive = 8 * time.Second

func (s *Service) streamPlayer(ctx context.Context, ticket indexer.Ticket, userID string, color key.Color, resolved query.Resolved, spec api.PlaySpec, filter api.Filter, limits api.Limits, ch chan<- api.ExplorerResponse) {
	defer close(ch)
	defer s.metrics.ObserveQuery("player", time.Now())

	ticker := time.NewTicker(playerPollInterval)
	defer ticker.Stop()
	keepAlive := time.NewTimer(playerKeepAlive)
	defer keepAlive.Stop()

	var lastSent *api.ExplorerResponse

	emit := func() bool {
		resp, err := s.computePlayer(ctx, userID, color, resolved, spec, filter, limits)
		if err != nil {
			s.logger.Warn("player query: compute failed", zap.String("user", userID), zap.Error(err))
			return true
		}
		if s.queue != nil {
			n := s.queue.PrecedingTickets(ticket)
			resp.QueuePosition = &n
		}
		if lastSent != nil && sameResponse(*lastSent, resp) {
			return true
		}
		select {
		case ch <- resp:
			lastSent = &resp
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit() {
		return
	}

	done := ticket.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			emit()
			return
		case <-ticker.C:
			if !emit() {
				return
			}
			keepAlive.Reset(playerKeepAlive)
		case <-keepAlive.C:
			if !emit() {
				return
			}
			keepAlive.Reset(playerKeepAlive)
		}
	}
}

func (s *Service) computePlayer(ctx context.Context, userID string, color key.Color, resolved query.Resolved, spec api.PlaySpec, filter api.Filter, limits api.Limits) (api.ExplorerResponse, error) {
	prefix := resolved.PlayerPrefix(userID, color)

	since, until := filter.Since, filter.Until
	if !filter.HasUntil {
		until = key.Bucket(^uint16(0))
	}

	agg, totals, err := query.ReadPlayer(ctx, s.eng, prefix, since, until, resolved.Ply, filter)
	if err != nil {
		return api.ExplorerResponse{}, err
	}

	moves, recent, total := query.PreparePlayer(ctx, s.eng, s.blacklist, agg, filter, limits)
	resp := api.ExplorerResponse{Total: total, Moves: moves, RecentGames: recent}
	resp.History = query.BuildHistory(totals, since, filter.HasSince, until, filter.HasUntil)
	if s.openings != nil {
		resp.Opening, _ = s.openings.ClassifyAlongPlay(resolved.Variant, resolved.Root, spec.UCIMoves)
	}
	return resp, nil
}

// sameResponse reports whether two responses would render identically
// (same queue position, same totals, same move rows), so streamPlayer
// can skip re-sending an unchanged snapshot.
func sameResponse(a, b api.ExplorerResponse) bool {
	if (a.QueuePosition == nil) != (b.QueuePosition == nil) {
		return false
	}
	if a.QueuePosition != nil && *a.QueuePosition != *b.QueuePosition {
		return false
	}
	if a.Total != b.Total || len(a.Moves) != len(b.Moves) {
		return false
	}
	for i := range a.Moves {
		if a.Moves[i].UCI != b.Moves[i].UCI || a.Moves[i].Stats != b.Moves[i].Stats {
			return false
		}
	}
	return true
}

// ImportMasters validates and ingests one submitted masters game.
func (s *Service) ImportMasters(ctx context.Context, game importer.MastersGameWithID) error {
	err := s.masters.Import(ctx, game)
	s.recordImportMetric("masters", err)
	if err == nil && s.mastersCache != nil {
		_ = s.mastersCache.Invalidate()
	}
	return err
}

// ImportLichessBatch ingests one monthly batch of lichess games.
func (s *Service) ImportLichessBatch(ctx context.Context, games []importer.LichessGameImport) error {
	err := s.lichess.ImportMany(ctx, games)
	s.recordImportMetric("lichess", err)
	if err == nil && s.lichessCache != nil {
		_ = s.lichessCache.Invalidate()
	}
	return err
}

func (s *Service) recordImportMetric(scope string, err error) {
	if s.metrics == nil {
		return
	}
	reason := ""
	switch err.(type) {
	case api.ErrDuplicateGame:
		reason = "duplicate"
	case api.ErrRejectedRating:
		reason = "rating"
	case api.ErrRejectedDate:
		reason = "date"
	case api.ErrValidation:
		reason = "validation"
	default:
		if err != nil {
			reason = "other"
		}
	}
	s.metrics.RecordImport(scope, reason)
}

// GetMastersPGN reconstructs a masters game's metadata and mainline from
// masters_game without a second store.
func (s *Service) GetMastersPGN(ctx context.Context, id key.GameID) (importer.MastersGameRecord, error) {
	buf, err := s.eng.Get(ctx, storage.CFMastersGame, id[:])
	if err != nil {
		return importer.MastersGameRecord{}, err
	}
	return importer.DecodeMastersGameRecord(buf)
}

// ColorFromWhite is the service-level convenience a caller uses to turn
// "is this user playing white" into the key.Color a player-scope query
// salts its key with.
func ColorFromWhite(white bool) key.Color {
	if white {
		return key.ColorWhite
	}
	return key.ColorBlack
}
