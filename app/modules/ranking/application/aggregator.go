package rankingservice

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	rankingdb "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/maprank/app/observability"
	"github.com/Black-And-White-Club/maprank/app/observability/attr"
	"github.com/uptrace/bun"
)

// Rebuild reasons, used as metric labels.
const (
	RebuildStartup     = "startup"
	RebuildStale       = "stale"
	RebuildConsistency = "consistency"
	RebuildResync      = "resync"
)

type txRunner func(ctx context.Context, fn func(ctx context.Context, db bun.IDB) error) error

// RankAggregator owns per-participant totals and the global ranking.
//
// All changes go through a single mutex. Writers call Prepare, persist the
// returned rows, then Commit or Abort; the mutex is held in between so a
// rebuild never observes half-applied deltas.
type RankAggregator struct {
	mu      sync.Mutex
	repo    rankingdb.Repository
	runInTx txRunner
	logger  *slog.Logger
	metrics observability.RankingMetrics
	now     func() time.Time

	totals    map[rankingdomain.ParticipantID]int
	persisted map[rankingdomain.ParticipantID]rankingdomain.PlayerRank
	stale     bool

	// published is read without the mutex so queries never wait on writers.
	published atomic.Pointer[[]rankingdomain.PlayerRank]
	gen       atomic.Uint64
}

func NewRankAggregator(repo rankingdb.Repository, runInTx txRunner, logger *slog.Logger, metrics observability.RankingMetrics, now func() time.Time) *RankAggregator {
	return &RankAggregator{
		repo:      repo,
		runInTx:   runInTx,
		logger:    logger,
		metrics:   metrics,
		now:       now,
		totals:    make(map[rankingdomain.ParticipantID]int),
		persisted: make(map[rankingdomain.ParticipantID]rankingdomain.PlayerRank),
		stale:     true,
	}
}

// PendingTotals is a prepared, not yet committed, aggregate update.
type PendingTotals struct {
	agg     *RankAggregator
	next    map[rankingdomain.ParticipantID]int
	ordered []rankingdomain.PlayerRank
	changed []rankingdomain.PlayerRank
	done    bool
}

// Changed returns the rank rows that must be persisted with this update.
func (p *PendingTotals) Changed() []rankingdomain.PlayerRank { return p.changed }

// Ranks returns the full global ordering after this update.
func (p *PendingTotals) Ranks() []rankingdomain.PlayerRank { return p.ordered }

// Commit publishes the update. The caller must have persisted Changed.
func (p *PendingTotals) Commit() {
	if p.done {
		return
	}
	p.done = true
	p.agg.install(p.next, p.ordered, p.changed)
	p.agg.mu.Unlock()
}

// Abort drops the update and marks the aggregator stale, since map rows may
// already be visible in stores without transactions.
func (p *PendingTotals) Abort() {
	if p.done {
		return
	}
	p.done = true
	p.agg.stale = true
	p.agg.mu.Unlock()
}

// Prepare locks the aggregator and computes totals with deltas applied.
// On success the caller owns the lock until Commit or Abort.
func (a *RankAggregator) Prepare(ctx context.Context, deltas map[rankingdomain.ParticipantID]int) (*PendingTotals, error) {
	a.mu.Lock()

	base := a.totals
	if a.stale {
		a.metrics.RecordRebuild(ctx, RebuildStale)
		a.logger.WarnContext(ctx, "Rebuilding stale totals before applying deltas")
		totals, stored, err := a.loadLocked(ctx)
		if err != nil {
			a.mu.Unlock()
			return nil, err
		}
		base = totals
		a.persisted = stored
	}

	next := maps.Clone(base)
	if next == nil {
		next = make(map[rankingdomain.ParticipantID]int)
	}
	for id, d := range deltas {
		next[id] += d
	}

	ordered := rankingdomain.RankTotals(next, a.now())
	return &PendingTotals{
		agg:     a,
		next:    next,
		ordered: ordered,
		changed: rankingdomain.ChangedRanks(a.persisted, ordered),
	}, nil
}

// install must be called with a.mu held.
func (a *RankAggregator) install(next map[rankingdomain.ParticipantID]int, ordered, changed []rankingdomain.PlayerRank) {
	a.totals = next
	a.published.Store(&ordered)
	for _, r := range changed {
		a.persisted[r.ParticipantID] = r
	}
	a.stale = false
	a.gen.Add(1)
}

// Generation counts published orderings. It moves after Snapshot reflects the
// new ordering.
func (a *RankAggregator) Generation() uint64 {
	return a.gen.Load()
}

// Rebuild recomputes every total from persisted map scores and persists the
// rank rows that changed. On failure the previous snapshot stays published.
func (a *RankAggregator) Rebuild(ctx context.Context, reason string) ([]rankingdomain.PlayerRank, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rebuildLocked(ctx, reason)
}

func (a *RankAggregator) rebuildLocked(ctx context.Context, reason string) ([]rankingdomain.PlayerRank, int, error) {
	a.metrics.RecordRebuild(ctx, reason)

	next, stored, err := a.loadLocked(ctx)
	if err != nil {
		a.stale = true
		return nil, 0, err
	}

	ordered := rankingdomain.RankTotals(next, a.now())
	changed := rankingdomain.ChangedRanks(stored, ordered)

	if len(changed) > 0 {
		err = a.runInTx(ctx, func(ctx context.Context, db bun.IDB) error {
			return a.repo.UpsertPlayerRanks(ctx, db, changed)
		})
		if err != nil {
			a.stale = true
			a.metrics.RecordPersistenceFailure(ctx, "UpsertPlayerRanks")
			return nil, 0, fmt.Errorf("persist player ranks: %w", err)
		}
	}

	a.persisted = stored
	a.install(next, ordered, changed)
	a.logger.InfoContext(ctx, "Global ranks rebuilt",
		attr.String("reason", reason),
		attr.Int("participants", len(ordered)),
		attr.Int("changed", len(changed)),
	)
	return ordered, len(changed), nil
}

// loadLocked reads totals implied by persisted map scores, plus the persisted
// rank rows keyed by participant.
func (a *RankAggregator) loadLocked(ctx context.Context) (map[rankingdomain.ParticipantID]int, map[rankingdomain.ParticipantID]rankingdomain.PlayerRank, error) {
	scores, err := a.repo.FindAllMapScores(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("load map scores: %w", err)
	}
	ranks, err := a.repo.FindAllPlayerRanks(ctx, nil, rankingdb.OrderByRank)
	if err != nil {
		return nil, nil, fmt.Errorf("load player ranks: %w", err)
	}
	stored := make(map[rankingdomain.ParticipantID]rankingdomain.PlayerRank, len(ranks))
	for _, r := range ranks {
		stored[r.ParticipantID] = r
	}
	return rankingdomain.SumPoints(scores), stored, nil
}

// Verify compares in-memory totals with the store. A mismatch marks the
// aggregator stale and returns a *ConsistencyError.
func (a *RankAggregator) Verify(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	scores, err := a.repo.FindAllMapScores(ctx, nil)
	if err != nil {
		return fmt.Errorf("load map scores: %w", err)
	}
	if diff := rankingdomain.DivergentTotals(a.totals, rankingdomain.SumPoints(scores)); len(diff) > 0 {
		a.stale = true
		return &ConsistencyError{Participants: diff}
	}
	return nil
}

// Invalidate forces the next Prepare to rebuild from the store.
func (a *RankAggregator) Invalidate() {
	a.mu.Lock()
	a.stale = true
	a.mu.Unlock()
}

// Stale reports whether totals must be rebuilt before use.
func (a *RankAggregator) Stale() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stale
}

// Snapshot returns the last committed global ordering. The slice is shared
// and must not be modified.
func (a *RankAggregator) Snapshot() []rankingdomain.PlayerRank {
	if p := a.published.Load(); p != nil {
		return *p
	}
	return nil
}
