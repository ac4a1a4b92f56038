package rankingdb

import (
	"context"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	"github.com/uptrace/bun"
)

// Order selects how list queries are sorted.
type Order int

const (
	// OrderByRank sorts by rank ascending, participant id as tie-break.
	OrderByRank Order = iota
	// OrderByTime sorts map scores by best time, then achievement instant, then participant id.
	OrderByTime
	// OrderByPoints sorts by points descending, participant id as tie-break.
	OrderByPoints
)

// Repository is the persistence contract of the ranking module.
// Every method accepts a bun.IDB so callers can pass a transaction; nil uses the store's own handle.
type Repository interface {
	// Map scores
	UpsertMapScore(ctx context.Context, db bun.IDB, score rankingdomain.MapScore) error
	UpsertMapScores(ctx context.Context, db bun.IDB, scores []rankingdomain.MapScore) error
	FindMapScore(ctx context.Context, db bun.IDB, mapID rankingdomain.MapID, participant rankingdomain.ParticipantID) (*rankingdomain.MapScore, error)
	FindMapScores(ctx context.Context, db bun.IDB, mapID rankingdomain.MapID, order Order) ([]rankingdomain.MapScore, error)
	FindAllMapScores(ctx context.Context, db bun.IDB) ([]rankingdomain.MapScore, error)
	FindMapIDs(ctx context.Context, db bun.IDB) ([]rankingdomain.MapID, error)

	// AcquireMapLock serializes writers of one map across processes.
	// Must be called within a transaction; stores without cross-process writers treat it as a no-op.
	AcquireMapLock(ctx context.Context, db bun.IDB, mapID rankingdomain.MapID) error

	// Player ranks
	UpsertPlayerRank(ctx context.Context, db bun.IDB, rank rankingdomain.PlayerRank) error
	UpsertPlayerRanks(ctx context.Context, db bun.IDB, ranks []rankingdomain.PlayerRank) error
	FindPlayerRank(ctx context.Context, db bun.IDB, participant rankingdomain.ParticipantID) (*rankingdomain.PlayerRank, error)
	FindAllPlayerRanks(ctx context.Context, db bun.IDB, order Order) ([]rankingdomain.PlayerRank, error)
}
