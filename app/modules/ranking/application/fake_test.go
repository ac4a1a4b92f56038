package rankingservice

import (
	"context"
	"sync"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	rankingdb "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/repositories"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Ranking Repo
// ------------------------

// FakeRepository forwards to an in-memory store unless a Func override is set.
type FakeRepository struct {
	mu    sync.Mutex
	trace []string
	store *rankingdb.MemoryRepository

	UpsertMapScoresFunc   func(ctx context.Context, db bun.IDB, scores []rankingdomain.MapScore) error
	FindMapScoresFunc     func(ctx context.Context, db bun.IDB, mapID rankingdomain.MapID, order rankingdb.Order) ([]rankingdomain.MapScore, error)
	FindAllMapScoresFunc  func(ctx context.Context, db bun.IDB) ([]rankingdomain.MapScore, error)
	UpsertPlayerRanksFunc func(ctx context.Context, db bun.IDB, ranks []rankingdomain.PlayerRank) error
}

func NewFakeRepository() *FakeRepository {
	return &FakeRepository{store: rankingdb.NewMemoryRepository()}
}

// Trace returns the sequence of method calls made to the fake.
func (f *FakeRepository) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeRepository) ResetTrace() {
	f.mu.Lock()
	f.trace = nil
	f.mu.Unlock()
}

func (f *FakeRepository) record(step string) {
	f.mu.Lock()
	f.trace = append(f.trace, step)
	f.mu.Unlock()
}

// --- Repository Interface Implementation ---

func (f *FakeRepository) UpsertMapScore(ctx context.Context, db bun.IDB, score rankingdomain.MapScore) error {
	return f.UpsertMapScores(ctx, db, []rankingdomain.MapScore{score})
}

func (f *FakeRepository) UpsertMapScores(ctx context.Context, db bun.IDB, scores []rankingdomain.MapScore) error {
	f.record("UpsertMapScores")
	if f.UpsertMapScoresFunc != nil {
		return f.UpsertMapScoresFunc(ctx, db, scores)
	}
	return f.store.UpsertMapScores(ctx, db, scores)
}

func (f *FakeRepository) FindMapScore(ctx context.Context, db bun.IDB, mapID rankingdomain.MapID, participant rankingdomain.ParticipantID) (*rankingdomain.MapScore, error) {
	f.record("FindMapScore")
	return f.store.FindMapScore(ctx, db, mapID, participant)
}

func (f *FakeRepository) FindMapScores(ctx context.Context, db bun.IDB, mapID rankingdomain.MapID, order rankingdb.Order) ([]rankingdomain.MapScore, error) {
	f.record("FindMapScores")
	if f.FindMapScoresFunc != nil {
		return f.FindMapScoresFunc(ctx, db, mapID, order)
	}
	return f.store.FindMapScores(ctx, db, mapID, order)
}

func (f *FakeRepository) FindAllMapScores(ctx context.Context, db bun.IDB) ([]rankingdomain.MapScore, error) {
	f.record("FindAllMapScores")
	if f.FindAllMapScoresFunc != nil {
		return f.FindAllMapScoresFunc(ctx, db)
	}
	return f.store.FindAllMapScores(ctx, db)
}

func (f *FakeRepository) FindMapIDs(ctx context.Context, db bun.IDB) ([]rankingdomain.MapID, error) {
	f.record("FindMapIDs")
	return f.store.FindMapIDs(ctx, db)
}

func (f *FakeRepository) AcquireMapLock(ctx context.Context, db bun.IDB, mapID rankingdomain.MapID) error {
	f.record("AcquireMapLock")
	return f.store.AcquireMapLock(ctx, db, mapID)
}

func (f *FakeRepository) UpsertPlayerRank(ctx context.Context, db bun.IDB, rank rankingdomain.PlayerRank) error {
	return f.UpsertPlayerRanks(ctx, db, []rankingdomain.PlayerRank{rank})
}

func (f *FakeRepository) UpsertPlayerRanks(ctx context.Context, db bun.IDB, ranks []rankingdomain.PlayerRank) error {
	f.record("UpsertPlayerRanks")
	if f.UpsertPlayerRanksFunc != nil {
		return f.UpsertPlayerRanksFunc(ctx, db, ranks)
	}
	return f.store.UpsertPlayerRanks(ctx, db, ranks)
}

func (f *FakeRepository) FindPlayerRank(ctx context.Context, db bun.IDB, participant rankingdomain.ParticipantID) (*rankingdomain.PlayerRank, error) {
	f.record("FindPlayerRank")
	return f.store.FindPlayerRank(ctx, db, participant)
}

func (f *FakeRepository) FindAllPlayerRanks(ctx context.Context, db bun.IDB, order rankingdb.Order) ([]rankingdomain.PlayerRank, error) {
	f.record("FindAllPlayerRanks")
	return f.store.FindAllPlayerRanks(ctx, db, order)
}

// Ensure the fake actually satisfies the interface
var _ rankingdb.Repository = (*FakeRepository)(nil)

// ------------------------
// Fake Broadcaster
// ------------------------

type FakeBroadcaster struct {
	mu        sync.Mutex
	connected map[rankingdomain.ParticipantID]rankingdomain.SyncView
	published []rankingdomain.SyncView
}

func NewFakeBroadcaster() *FakeBroadcaster {
	return &FakeBroadcaster{connected: make(map[rankingdomain.ParticipantID]rankingdomain.SyncView)}
}

func (f *FakeBroadcaster) Connect(observer rankingdomain.ParticipantID, view rankingdomain.SyncView) {
	f.mu.Lock()
	f.connected[observer] = view
	f.mu.Unlock()
}

func (f *FakeBroadcaster) Disconnect(observer rankingdomain.ParticipantID) {
	f.mu.Lock()
	delete(f.connected, observer)
	f.mu.Unlock()
}

func (f *FakeBroadcaster) Publish(view rankingdomain.SyncView) {
	f.mu.Lock()
	f.published = append(f.published, view)
	f.mu.Unlock()
}

func (f *FakeBroadcaster) Published() []rankingdomain.SyncView {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]rankingdomain.SyncView, len(f.published))
	copy(out, f.published)
	return out
}

func (f *FakeBroadcaster) Connected(observer rankingdomain.ParticipantID) (rankingdomain.SyncView, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.connected[observer]
	return v, ok
}

var _ Broadcaster = (*FakeBroadcaster)(nil)
