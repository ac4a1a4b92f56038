package rankingdb

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	"github.com/uptrace/bun"
)

type mapScoreKey struct {
	mapID       rankingdomain.MapID
	participant rankingdomain.ParticipantID
}

// MemoryRepository keeps ranking rows in process memory.
// Rows are copied in and out so callers never share state with the store.
// The bun.IDB argument is ignored.
type MemoryRepository struct {
	mu        sync.RWMutex
	mapScores map[mapScoreKey]rankingdomain.MapScore
	ranks     map[rankingdomain.ParticipantID]rankingdomain.PlayerRank
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		mapScores: make(map[mapScoreKey]rankingdomain.MapScore),
		ranks:     make(map[rankingdomain.ParticipantID]rankingdomain.PlayerRank),
	}
}

func (m *MemoryRepository) UpsertMapScore(ctx context.Context, db bun.IDB, score rankingdomain.MapScore) error {
	return m.UpsertMapScores(ctx, db, []rankingdomain.MapScore{score})
}

func (m *MemoryRepository) UpsertMapScores(ctx context.Context, _ bun.IDB, scores []rankingdomain.MapScore) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rankingdb.UpsertMapScores: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range scores {
		m.mapScores[mapScoreKey{s.MapID, s.ParticipantID}] = s
	}
	return nil
}

func (m *MemoryRepository) FindMapScore(_ context.Context, _ bun.IDB, mapID rankingdomain.MapID, participant rankingdomain.ParticipantID) (*rankingdomain.MapScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.mapScores[mapScoreKey{mapID, participant}]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryRepository) FindMapScores(_ context.Context, _ bun.IDB, mapID rankingdomain.MapID, order Order) ([]rankingdomain.MapScore, error) {
	cmpFn, err := mapScoreOrder(order)
	if err != nil {
		return nil, fmt.Errorf("rankingdb.FindMapScores: %w", err)
	}

	m.mu.RLock()
	out := make([]rankingdomain.MapScore, 0)
	for k, s := range m.mapScores {
		if k.mapID == mapID {
			out = append(out, s)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(out, cmpFn)
	return out, nil
}

func (m *MemoryRepository) FindAllMapScores(_ context.Context, _ bun.IDB) ([]rankingdomain.MapScore, error) {
	m.mu.RLock()
	out := slices.Collect(maps.Values(m.mapScores))
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b rankingdomain.MapScore) int {
		if c := cmp.Compare(a.MapID, b.MapID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
			return c
		}
		return cmp.Compare(a.ParticipantID, b.ParticipantID)
	})
	return out, nil
}

func (m *MemoryRepository) FindMapIDs(_ context.Context, _ bun.IDB) ([]rankingdomain.MapID, error) {
	m.mu.RLock()
	ids := make([]rankingdomain.MapID, 0)
	for k := range m.mapScores {
		ids = append(ids, k.mapID)
	}
	m.mu.RUnlock()

	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// AcquireMapLock is a no-op: a single process owns the memory store.
func (m *MemoryRepository) AcquireMapLock(context.Context, bun.IDB, rankingdomain.MapID) error {
	return nil
}

func (m *MemoryRepository) UpsertPlayerRank(ctx context.Context, db bun.IDB, rank rankingdomain.PlayerRank) error {
	return m.UpsertPlayerRanks(ctx, db, []rankingdomain.PlayerRank{rank})
}

func (m *MemoryRepository) UpsertPlayerRanks(ctx context.Context, _ bun.IDB, ranks []rankingdomain.PlayerRank) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rankingdb.UpsertPlayerRanks: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range ranks {
		m.ranks[r.ParticipantID] = r
	}
	return nil
}

func (m *MemoryRepository) FindPlayerRank(_ context.Context, _ bun.IDB, participant rankingdomain.ParticipantID) (*rankingdomain.PlayerRank, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.ranks[participant]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryRepository) FindAllPlayerRanks(_ context.Context, _ bun.IDB, order Order) ([]rankingdomain.PlayerRank, error) {
	var cmpFn func(a, b rankingdomain.PlayerRank) int
	switch order {
	case OrderByRank:
		cmpFn = func(a, b rankingdomain.PlayerRank) int {
			if c := cmp.Compare(a.GlobalRank, b.GlobalRank); c != 0 {
				return c
			}
			return cmp.Compare(a.ParticipantID, b.ParticipantID)
		}
	case OrderByPoints:
		cmpFn = func(a, b rankingdomain.PlayerRank) int {
			if c := cmp.Compare(b.TotalPoints, a.TotalPoints); c != 0 {
				return c
			}
			return cmp.Compare(a.ParticipantID, b.ParticipantID)
		}
	default:
		return nil, fmt.Errorf("rankingdb.FindAllPlayerRanks: %w", ErrInvalidOrder)
	}

	m.mu.RLock()
	out := slices.Collect(maps.Values(m.ranks))
	m.mu.RUnlock()

	slices.SortFunc(out, cmpFn)
	return out, nil
}

func mapScoreOrder(order Order) (func(a, b rankingdomain.MapScore) int, error) {
	switch order {
	case OrderByRank:
		return func(a, b rankingdomain.MapScore) int {
			if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
				return c
			}
			return cmp.Compare(a.ParticipantID, b.ParticipantID)
		}, nil
	case OrderByTime:
		return func(a, b rankingdomain.MapScore) int {
			if c := cmp.Compare(a.BestTimeMs, b.BestTimeMs); c != 0 {
				return c
			}
			if c := a.AchievedAt.Compare(b.AchievedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.ParticipantID, b.ParticipantID)
		}, nil
	case OrderByPoints:
		return func(a, b rankingdomain.MapScore) int {
			if c := cmp.Compare(b.Points, a.Points); c != 0 {
				return c
			}
			return cmp.Compare(a.ParticipantID, b.ParticipantID)
		}, nil
	default:
		return nil, ErrInvalidOrder
	}
}
