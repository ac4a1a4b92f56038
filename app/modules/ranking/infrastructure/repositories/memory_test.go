package rankingdb

import (
	"context"
	"testing"
	"time"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_MapScores(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := []rankingdomain.MapScore{
		{MapID: "m1", ParticipantID: "b", BestTimeMs: 40000, Points: 1000, Rank: 1, AchievedAt: t0.Add(time.Second)},
		{MapID: "m1", ParticipantID: "a", BestTimeMs: 40000, Points: 496, Rank: 2, AchievedAt: t0.Add(2 * time.Second)},
		{MapID: "m1", ParticipantID: "c", BestTimeMs: 39000, Points: 0, Rank: 0, AchievedAt: t0.Add(3 * time.Second)},
		{MapID: "m2", ParticipantID: "a", BestTimeMs: 10000, Points: 1000, Rank: 1, AchievedAt: t0},
	}
	require.NoError(t, repo.UpsertMapScores(ctx, nil, rows))

	byTime, err := repo.FindMapScores(ctx, nil, "m1", OrderByTime)
	require.NoError(t, err)
	assert.Equal(t, []rankingdomain.ParticipantID{"c", "b", "a"}, participants(byTime))

	byPoints, err := repo.FindMapScores(ctx, nil, "m1", OrderByPoints)
	require.NoError(t, err)
	assert.Equal(t, []rankingdomain.ParticipantID{"b", "a", "c"}, participants(byPoints))

	byRank, err := repo.FindMapScores(ctx, nil, "m1", OrderByRank)
	require.NoError(t, err)
	assert.Equal(t, []rankingdomain.ParticipantID{"c", "b", "a"}, participants(byRank))

	_, err = repo.FindMapScores(ctx, nil, "m1", Order(42))
	assert.ErrorIs(t, err, ErrInvalidOrder)

	empty, err := repo.FindMapScores(ctx, nil, "unknown", OrderByTime)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	ids, err := repo.FindMapIDs(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []rankingdomain.MapID{"m1", "m2"}, ids)

	all, err := repo.FindAllMapScores(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, rankingdomain.MapID("m2"), all[3].MapID)

	got, err := repo.FindMapScore(ctx, nil, "m2", "a")
	require.NoError(t, err)
	if diff := cmp.Diff(rows[3], *got); diff != "" {
		t.Errorf("FindMapScore mismatch (-want +got):\n%s", diff)
	}

	_, err = repo.FindMapScore(ctx, nil, "m2", "zz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.UpsertMapScore(ctx, nil, rankingdomain.MapScore{MapID: "m1", ParticipantID: "a", BestTimeMs: 5000}))

	got, err := repo.FindMapScore(ctx, nil, "m1", "a")
	require.NoError(t, err)
	got.BestTimeMs = 1

	again, err := repo.FindMapScore(ctx, nil, "m1", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), again.BestTimeMs)
}

func TestMemoryRepository_PlayerRanks(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.UpsertPlayerRanks(ctx, nil, []rankingdomain.PlayerRank{
		{ParticipantID: "a", TotalPoints: 1496, GlobalRank: 1},
		{ParticipantID: "c", TotalPoints: 600, GlobalRank: 3},
		{ParticipantID: "b", TotalPoints: 600, GlobalRank: 2},
	}))
	require.NoError(t, repo.UpsertPlayerRank(ctx, nil, rankingdomain.PlayerRank{ParticipantID: "c", TotalPoints: 600, GlobalRank: 2}))

	byPoints, err := repo.FindAllPlayerRanks(ctx, nil, OrderByPoints)
	require.NoError(t, err)
	require.Len(t, byPoints, 3)
	assert.Equal(t, rankingdomain.ParticipantID("a"), byPoints[0].ParticipantID)
	assert.Equal(t, rankingdomain.ParticipantID("b"), byPoints[1].ParticipantID)

	_, err = repo.FindAllPlayerRanks(ctx, nil, OrderByTime)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	c, err := repo.FindPlayerRank(ctx, nil, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, c.GlobalRank)

	_, err = repo.FindPlayerRank(ctx, nil, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := NewMemoryRepository()

	err := repo.UpsertMapScores(ctx, nil, []rankingdomain.MapScore{{MapID: "m1", ParticipantID: "a"}})
	assert.ErrorIs(t, err, context.Canceled)
	err = repo.UpsertPlayerRanks(ctx, nil, []rankingdomain.PlayerRank{{ParticipantID: "a"}})
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, repo.AcquireMapLock(ctx, nil, "m1"))
}

func participants(scores []rankingdomain.MapScore) []rankingdomain.ParticipantID {
	out := make([]rankingdomain.ParticipantID, len(scores))
	for i, s := range scores {
		out[i] = s.ParticipantID
	}
	return out
}
