package rankingservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace/noop"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	rankingdb "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/maprank/app/observability"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// steppingClock advances one millisecond per read so timestamps are ordered.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newTestService(t *testing.T, repo rankingdb.Repository, bc Broadcaster, opts Options) *RankingService {
	t.Helper()
	if opts.Clock == nil {
		clock := &steppingClock{now: testEpoch}
		opts.Clock = clock.Now
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracer := noop.NewTracerProvider().Tracer("test")
	return NewRankingService(repo, logger, &observability.NoOpMetrics{}, tracer, nil, bc, opts)
}

func finish(participant, mapID string, timeMs int64, at time.Time) rankingdomain.FinishEvent {
	return rankingdomain.FinishEvent{
		ParticipantID: rankingdomain.ParticipantID(participant),
		MapID:         rankingdomain.MapID(mapID),
		TimeMs:        timeMs,
		ArrivedAt:     at,
	}
}

func mustRecord(t *testing.T, s *RankingService, ev rankingdomain.FinishEvent) FinishOutcome {
	t.Helper()
	res, err := s.RecordFinish(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, res.IsSuccess(), "expected success for %+v", ev)
	return *res.Success
}

func globalPoints(board rankingdomain.GlobalLeaderboard) map[rankingdomain.ParticipantID]int {
	out := make(map[rankingdomain.ParticipantID]int, len(board.Rows))
	for _, r := range board.Rows {
		out[r.ParticipantID] = r.Points
	}
	return out
}

func TestRankingService_RecordFinish_ThreeRunners(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, rankingdb.NewMemoryRepository(), nil, Options{})
	require.NoError(t, s.Start(ctx))

	mustRecord(t, s, finish("p1", "m1", 40000, testEpoch))
	mustRecord(t, s, finish("p2", "m1", 45000, testEpoch.Add(time.Second)))
	mustRecord(t, s, finish("p3", "m1", 50000, testEpoch.Add(2*time.Second)))

	board, err := s.GetMapLeaderboard(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, board.Rows, 3)

	want := []struct {
		id     rankingdomain.ParticipantID
		rank   int
		points int
	}{
		{"p1", 1, 1000},
		{"p2", 2, 600},
		{"p3", 3, 367},
	}
	for i, w := range want {
		assert.Equal(t, w.id, board.Rows[i].ParticipantID)
		assert.Equal(t, w.rank, board.Rows[i].Rank)
		assert.Equal(t, w.points, board.Rows[i].Points)
	}
	assert.Equal(t, "0:40.000", board.Rows[0].Time)

	global, err := s.GetGlobalLeaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[rankingdomain.ParticipantID]int{"p1": 1000, "p2": 600, "p3": 367}, globalPoints(global))

	pr, err := s.GetPlayerRank(ctx, "p3")
	require.NoError(t, err)
	assert.Equal(t, 3, pr.Rank)
}

func TestRankingService_RecordFinish_Outcomes(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		setup     []rankingdomain.FinishEvent
		event     rankingdomain.FinishEvent
		wantFail  error
		wantNote  *rankingdomain.RecordNotification
		improved  bool
		wantCalls []string
	}{
		{
			name:     "first finish on empty map is a new record",
			event:    finish("p1", "m1", 40000, testEpoch),
			improved: true,
			wantNote: &rankingdomain.RecordNotification{
				Kind:          rankingdomain.NotificationNewRecord,
				MapID:         "m1",
				ParticipantID: "p1",
				TimeMs:        40000,
				Points:        1000,
				PointsDelta:   1000,
				Rank:          1,
			},
		},
		{
			name:     "improvement short of first is a standings update",
			setup:    []rankingdomain.FinishEvent{finish("p1", "m1", 40000, testEpoch), finish("p2", "m1", 50000, testEpoch)},
			event:    finish("p2", "m1", 45000, testEpoch.Add(time.Minute)),
			improved: true,
			wantNote: &rankingdomain.RecordNotification{
				Kind:          rankingdomain.NotificationStandingsUpdate,
				MapID:         "m1",
				ParticipantID: "p2",
				TimeMs:        45000,
				PreviousMs:    50000,
				Points:        496,
				PointsDelta:   0,
				Rank:          2,
				PreviousRank:  2,
			},
		},
		{
			name:     "overtaking the leader is a new record with the point gain",
			setup:    []rankingdomain.FinishEvent{finish("p1", "m1", 40000, testEpoch), finish("p2", "m1", 50000, testEpoch)},
			event:    finish("p2", "m1", 39000, testEpoch.Add(time.Minute)),
			improved: true,
			wantNote: &rankingdomain.RecordNotification{
				Kind:          rankingdomain.NotificationNewRecord,
				MapID:         "m1",
				ParticipantID: "p2",
				TimeMs:        39000,
				PreviousMs:    50000,
				Points:        1000,
				PointsDelta:   504,
				Rank:          1,
				PreviousRank:  2,
			},
		},
		{
			name:      "slower time changes nothing",
			setup:     []rankingdomain.FinishEvent{finish("p1", "m1", 40000, testEpoch)},
			event:     finish("p1", "m1", 41000, testEpoch.Add(time.Minute)),
			wantCalls: []string{"AcquireMapLock", "FindMapScores"},
		},
		{
			name:      "equal time changes nothing",
			setup:     []rankingdomain.FinishEvent{finish("p1", "m1", 40000, testEpoch)},
			event:     finish("p1", "m1", 40000, testEpoch.Add(time.Minute)),
			wantCalls: []string{"AcquireMapLock", "FindMapScores"},
		},
		{
			name:      "zero time is rejected",
			event:     finish("p1", "m1", 0, testEpoch),
			wantFail:  ErrInvalidFinish,
			wantCalls: []string{},
		},
		{
			name:      "missing map is rejected",
			event:     finish("p1", "", 1000, testEpoch),
			wantFail:  ErrInvalidFinish,
			wantCalls: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewFakeRepository()
			s := newTestService(t, repo, nil, Options{})
			require.NoError(t, s.Start(ctx))
			for _, ev := range tt.setup {
				mustRecord(t, s, ev)
			}
			repo.ResetTrace()

			res, err := s.RecordFinish(ctx, tt.event)
			require.NoError(t, err)

			if tt.wantFail != nil {
				require.True(t, res.IsFailure())
				assert.ErrorIs(t, *res.Failure, tt.wantFail)
			} else {
				require.True(t, res.IsSuccess())
				assert.Equal(t, tt.improved, res.Success.Improved)
			}

			if tt.wantNote != nil {
				got := *res.Success.Notification
				assert.Equal(t, tt.event.MapID, got.Leaderboard.MapID)
				got.Leaderboard = rankingdomain.MapLeaderboard{}
				if diff := cmp.Diff(*tt.wantNote, got); diff != "" {
					t.Errorf("notification mismatch (-want +got):\n%s", diff)
				}
			}
			if tt.wantCalls != nil {
				got := repo.Trace()
				if got == nil {
					got = []string{}
				}
				assert.Equal(t, tt.wantCalls, got)
			}
		})
	}
}

func TestRankingService_TieBreaksOnArrival(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, rankingdb.NewMemoryRepository(), nil, Options{})
	require.NoError(t, s.Start(ctx))

	mustRecord(t, s, finish("late", "m1", 40000, testEpoch.Add(time.Second)))
	mustRecord(t, s, finish("early", "m1", 40000, testEpoch))

	board, err := s.GetMapLeaderboard(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, board.Rows, 2)
	assert.Equal(t, rankingdomain.ParticipantID("early"), board.Rows[0].ParticipantID)
	assert.Equal(t, 1, board.Rows[0].Rank)
	assert.Equal(t, 2, board.Rows[1].Rank)
}

func TestRankingService_PersistenceFailureKeepsLastKnownGood(t *testing.T) {
	ctx := context.Background()
	repo := NewFakeRepository()
	s := newTestService(t, repo, nil, Options{})
	require.NoError(t, s.Start(ctx))

	mustRecord(t, s, finish("p1", "m1", 40000, testEpoch))
	beforeMap, err := s.GetMapLeaderboard(ctx, "m1")
	require.NoError(t, err)
	beforeGlobal, err := s.GetGlobalLeaderboard(ctx)
	require.NoError(t, err)

	repo.UpsertPlayerRanksFunc = func(context.Context, bun.IDB, []rankingdomain.PlayerRank) error {
		return errors.New("connection reset")
	}
	_, err = s.RecordFinish(ctx, finish("p2", "m1", 35000, testEpoch.Add(time.Second)))
	require.Error(t, err)

	afterMap, err := s.GetMapLeaderboard(ctx, "m1")
	require.NoError(t, err)
	afterGlobal, err := s.GetGlobalLeaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, beforeMap, afterMap)
	assert.Equal(t, beforeGlobal, afterGlobal)
	assert.True(t, s.aggregator.Stale())

	// The next accepted finish reconciles with whatever the store holds.
	repo.UpsertPlayerRanksFunc = nil
	mustRecord(t, s, finish("p3", "m1", 50000, testEpoch.Add(2*time.Second)))

	audit, err := s.AuditConsistency(ctx)
	require.NoError(t, err)
	assert.Empty(t, audit.Divergent)
}

func TestRankingService_MapScoreFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	repo := NewFakeRepository()
	s := newTestService(t, repo, nil, Options{})
	require.NoError(t, s.Start(ctx))
	mustRecord(t, s, finish("p1", "m1", 40000, testEpoch))

	repo.UpsertMapScoresFunc = func(context.Context, bun.IDB, []rankingdomain.MapScore) error {
		return errors.New("disk full")
	}
	_, err := s.RecordFinish(ctx, finish("p2", "m1", 30000, testEpoch.Add(time.Second)))
	require.Error(t, err)

	_, err = s.GetPlayerRank(ctx, "p2")
	assert.ErrorIs(t, err, ErrNotRanked)
	pr, err := s.GetPlayerRank(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1000, pr.Points)
}

// expectedTotals replays events with the same acceptance rule as the service.
func expectedTotals(events []rankingdomain.FinishEvent, cfg rankingdomain.PointsConfig) map[rankingdomain.ParticipantID]int {
	best := make(map[rankingdomain.MapID]map[rankingdomain.ParticipantID]rankingdomain.TimedRecord)
	for _, ev := range events {
		m, ok := best[ev.MapID]
		if !ok {
			m = make(map[rankingdomain.ParticipantID]rankingdomain.TimedRecord)
			best[ev.MapID] = m
		}
		if cur, ok := m[ev.ParticipantID]; ok && cur.TimeMs <= ev.TimeMs {
			continue
		}
		m[ev.ParticipantID] = rankingdomain.TimedRecord{ParticipantID: ev.ParticipantID, TimeMs: ev.TimeMs, AchievedAt: ev.ArrivedAt}
	}

	totals := make(map[rankingdomain.ParticipantID]int)
	for _, m := range best {
		records := make([]rankingdomain.TimedRecord, 0, len(m))
		for _, r := range m {
			records = append(records, r)
		}
		for _, r := range rankingdomain.CalculateMapPoints(records, cfg) {
			totals[r.ParticipantID] += r.Points
		}
	}
	return totals
}

func randomEvents(seed int64, n int, unique bool) []rankingdomain.FinishEvent {
	f := gofakeit.New(uint64(seed))
	maps := []string{"alpine", "canyon", "dunes", "harbor"}
	events := make([]rankingdomain.FinishEvent, n)
	for i := range events {
		timeMs := int64(f.IntRange(30, 90)) * 1000
		if unique {
			timeMs = timeMs*1000 + int64(i)
		}
		events[i] = finish(
			fmt.Sprintf("player-%02d", f.IntRange(1, 25)),
			maps[f.IntRange(0, len(maps)-1)],
			timeMs,
			testEpoch.Add(time.Duration(i)*time.Second),
		)
	}
	return events
}

func TestRankingService_IncrementalMatchesRecompute(t *testing.T) {
	ctx := context.Background()
	for _, seed := range []int64{1, 7, 42} {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			repo := rankingdb.NewMemoryRepository()
			s := newTestService(t, repo, nil, Options{})
			require.NoError(t, s.Start(ctx))

			events := randomEvents(seed, 300, false)
			for _, ev := range events {
				mustRecord(t, s, ev)
			}

			global, err := s.GetGlobalLeaderboard(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(expectedTotals(events, rankingdomain.DefaultPointsConfig()), globalPoints(global)); diff != "" {
				t.Fatalf("incremental totals differ from recompute (-want +got):\n%s", diff)
			}

			for i, row := range global.Rows {
				assert.Equal(t, i+1, row.Rank)
				if i > 0 {
					assert.GreaterOrEqual(t, global.Rows[i-1].Points, row.Points)
				}
			}

			// A fresh service over the same store rebuilds to the same standings.
			fresh := newTestService(t, repo, nil, Options{})
			require.NoError(t, fresh.Start(ctx))
			rebuilt, err := fresh.GetGlobalLeaderboard(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(global.Rows, rebuilt.Rows); diff != "" {
				t.Errorf("rebuilt standings differ (-incremental +rebuilt):\n%s", diff)
			}
		})
	}
}

func TestRankingService_ResyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := rankingdb.NewMemoryRepository()
	s := newTestService(t, repo, nil, Options{})
	require.NoError(t, s.Start(ctx))
	for _, ev := range randomEvents(99, 120, false) {
		mustRecord(t, s, ev)
	}

	snapshot := func() ([]rankingdomain.MapScore, []rankingdomain.PlayerRank) {
		scores, err := repo.FindAllMapScores(ctx, nil)
		require.NoError(t, err)
		ranks, err := repo.FindAllPlayerRanks(ctx, nil, rankingdb.OrderByRank)
		require.NoError(t, err)
		return scores, ranks
	}

	res, err := s.Resync(ctx, "")
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	assert.Equal(t, 4, res.Success.MapsChecked)
	assert.Zero(t, res.Success.MapRows, "incremental state should already match a recompute")
	assert.Zero(t, res.Success.RankRows)
	scores1, ranks1 := snapshot()

	res, err = s.Resync(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, res.Success.MapRows)
	assert.Zero(t, res.Success.RankRows)
	scores2, ranks2 := snapshot()

	if diff := cmp.Diff(scores1, scores2); diff != "" {
		t.Errorf("map scores changed on second resync:\n%s", diff)
	}
	if diff := cmp.Diff(ranks1, ranks2); diff != "" {
		t.Errorf("player ranks changed on second resync:\n%s", diff)
	}
}

func TestRankingService_ResyncSnapshotsAreIdentical(t *testing.T) {
	ctx := context.Background()
	repo := rankingdb.NewMemoryRepository()
	s := newTestService(t, repo, nil, Options{})
	require.NoError(t, s.Start(ctx))
	mustRecord(t, s, finish("p1", "m1", 40000, testEpoch))
	mustRecord(t, s, finish("p2", "m1", 45000, testEpoch))
	mustRecord(t, s, finish("p3", "m2", 30000, testEpoch))

	first, err := s.Resync(ctx, "m1")
	require.NoError(t, err)
	require.True(t, first.IsSuccess())
	second, err := s.Resync(ctx, "m1")
	require.NoError(t, err)
	require.True(t, second.IsSuccess())

	if diff := cmp.Diff(first.Success.Map, second.Success.Map); diff != "" {
		t.Errorf("map snapshot changed between resyncs:\n%s", diff)
	}
	if diff := cmp.Diff(first.Success.Global, second.Success.Global); diff != "" {
		t.Errorf("global snapshot changed between resyncs:\n%s", diff)
	}

	stored, err := repo.FindAllPlayerRanks(ctx, nil, rankingdb.OrderByRank)
	require.NoError(t, err)
	if diff := cmp.Diff(stored, s.aggregator.Snapshot()); diff != "" {
		t.Errorf("in-memory ranks drifted from the store:\n%s", diff)
	}
}

func TestRankingService_PublishedViewsAreOrdered(t *testing.T) {
	ctx := context.Background()
	bc := NewFakeBroadcaster()
	s := newTestService(t, rankingdb.NewMemoryRepository(), bc, Options{})
	require.NoError(t, s.Start(ctx))

	_, err := s.BeginMap(ctx, "m1")
	require.NoError(t, err)
	mustRecord(t, s, finish("p1", "m1", 40000, testEpoch))
	mustRecord(t, s, finish("p2", "m1", 45000, testEpoch))
	_, err = s.Resync(ctx, "m1")
	require.NoError(t, err)

	views := bc.Published()
	require.GreaterOrEqual(t, len(views), 4)
	for i := 1; i < len(views); i++ {
		assert.Greater(t, views[i].Seq, views[i-1].Seq, "view %d", i)
	}
}

func TestRankingService_ResyncAppliesNewCurve(t *testing.T) {
	ctx := context.Background()
	repo := rankingdb.NewMemoryRepository()
	s := newTestService(t, repo, nil, Options{})
	require.NoError(t, s.Start(ctx))
	mustRecord(t, s, finish("p1", "m1", 40000, testEpoch))
	mustRecord(t, s, finish("p2", "m1", 45000, testEpoch))

	doubled := newTestService(t, repo, nil, Options{Points: rankingdomain.PointsConfig{MinValue: 0.2, Multiplier: 2000}})
	require.NoError(t, doubled.Start(ctx))

	pr, err := doubled.GetPlayerRank(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2000, pr.Points)
}

func TestRankingService_ConcurrentFinishes(t *testing.T) {
	ctx := context.Background()
	repo := rankingdb.NewMemoryRepository()
	s := newTestService(t, repo, nil, Options{})
	require.NoError(t, s.Start(ctx))

	events := randomEvents(2026, 400, true)
	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, len(events))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(events); i += workers {
				if _, err := s.RecordFinish(ctx, events[i]); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("RecordFinish: %v", err)
	}

	global, err := s.GetGlobalLeaderboard(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(expectedTotals(events, rankingdomain.DefaultPointsConfig()), globalPoints(global)); diff != "" {
		t.Fatalf("concurrent totals differ from recompute (-want +got):\n%s", diff)
	}

	audit, err := s.AuditConsistency(ctx)
	require.NoError(t, err)
	assert.Empty(t, audit.Divergent)
	assert.False(t, audit.Rebuilt)
}

func TestRankingService_AuditRepairsDivergence(t *testing.T) {
	ctx := context.Background()
	repo := rankingdb.NewMemoryRepository()
	s := newTestService(t, repo, nil, Options{})
	require.NoError(t, s.Start(ctx))
	mustRecord(t, s, finish("p1", "m1", 40000, testEpoch))
	mustRecord(t, s, finish("p2", "m1", 45000, testEpoch))

	row, err := repo.FindMapScore(ctx, nil, "m1", "p2")
	require.NoError(t, err)
	row.Points = 5000
	require.NoError(t, repo.UpsertMapScore(ctx, nil, *row))

	audit, err := s.AuditConsistency(ctx)
	require.NoError(t, err)
	assert.Equal(t, []rankingdomain.ParticipantID{"p2"}, audit.Divergent)
	assert.True(t, audit.Rebuilt)

	pr, err := s.GetPlayerRank(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, 1, pr.Rank)
	assert.Equal(t, 5000, pr.Points)
}

func TestRankingService_MapLifecycleDrivesBroadcasts(t *testing.T) {
	ctx := context.Background()
	bc := NewFakeBroadcaster()
	s := newTestService(t, rankingdb.NewMemoryRepository(), bc, Options{})
	require.NoError(t, s.Start(ctx))

	res, err := s.BeginMap(ctx, "m1")
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	assert.Equal(t, rankingdomain.MapID("m1"), s.ActiveMap())
	published := len(bc.Published())

	mustRecord(t, s, finish("p1", "m2", 40000, testEpoch))
	assert.Len(t, bc.Published(), published, "finishes on other maps are not pushed")

	mustRecord(t, s, finish("p1", "m1", 40000, testEpoch))
	views := bc.Published()
	require.Len(t, views, published+1)
	last := views[len(views)-1]
	assert.Equal(t, rankingdomain.MapID("m1"), last.ActiveMap)
	require.Len(t, last.Map.Rows, 1)
	assert.Equal(t, 2000, last.Global.Rows[0].Points)

	res, err = s.EndMap(ctx, "m1")
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	assert.Empty(t, s.ActiveMap())
	assert.Len(t, res.Success.Map.Rows, 1)

	res, err = s.BeginMap(ctx, "")
	require.NoError(t, err)
	require.True(t, res.IsFailure())
	assert.ErrorIs(t, *res.Failure, ErrMapIDRequired)
}

func TestRankingService_GlobalScopePublishesEveryMap(t *testing.T) {
	ctx := context.Background()
	bc := NewFakeBroadcaster()
	s := newTestService(t, rankingdb.NewMemoryRepository(), bc, Options{Scope: ScopeGlobal})
	require.NoError(t, s.Start(ctx))
	before := len(bc.Published())

	mustRecord(t, s, finish("p1", "m2", 40000, testEpoch))
	assert.Len(t, bc.Published(), before+1)
}

func TestRankingService_ObserversAndNames(t *testing.T) {
	ctx := context.Background()
	bc := NewFakeBroadcaster()
	s := newTestService(t, rankingdb.NewMemoryRepository(), bc, Options{})
	require.NoError(t, s.Start(ctx))
	mustRecord(t, s, finish("p1", "m1", 40000, testEpoch))

	require.NoError(t, s.ConnectObserver(ctx, "p1", "Speedy"))
	view, ok := bc.Connected("p1")
	require.True(t, ok)
	require.Len(t, view.Global.Rows, 1)
	assert.Equal(t, "Speedy", view.Global.Rows[0].DisplayName)

	row, err := s.GetMapRecord(ctx, "m1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Speedy", row.DisplayName)

	_, err = s.GetMapRecord(ctx, "m1", "ghost")
	assert.ErrorIs(t, err, ErrNotRanked)

	s.DisconnectObserver(ctx, "p1")
	_, ok = bc.Connected("p1")
	assert.False(t, ok)

	assert.ErrorIs(t, s.ConnectObserver(ctx, "", "nobody"), ErrInvalidObserver)
}

func TestRankingService_StartFailsWhenStoreIsDown(t *testing.T) {
	repo := NewFakeRepository()
	repo.FindAllMapScoresFunc = func(context.Context, bun.IDB) ([]rankingdomain.MapScore, error) {
		return nil, errors.New("connection refused")
	}
	s := newTestService(t, repo, nil, Options{})
	require.Error(t, s.Start(context.Background()))
}

func TestRankingService_ListMaps(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, rankingdb.NewMemoryRepository(), nil, Options{})
	require.NoError(t, s.Start(ctx))

	maps, err := s.ListMaps(ctx)
	require.NoError(t, err)
	assert.Empty(t, maps)

	mustRecord(t, s, finish("p1", "m2", 40000, testEpoch))
	mustRecord(t, s, finish("p1", "m1", 40000, testEpoch))
	mustRecord(t, s, finish("p2", "m1", 41000, testEpoch))

	maps, err = s.ListMaps(ctx)
	require.NoError(t, err)
	assert.Equal(t, []rankingdomain.MapID{"m1", "m2"}, maps)
}
