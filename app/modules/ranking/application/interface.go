package rankingservice

import (
	"context"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	"github.com/Black-And-White-Club/maprank/app/shared/results"
)

// FinishOutcome is the result of an accepted finish event.
type FinishOutcome struct {
	Improved     bool
	Notification *rankingdomain.RecordNotification
}

// ResyncOutcome summarises a resync pass.
type ResyncOutcome struct {
	ActiveMap   rankingdomain.MapID
	MapsChecked int
	MapRows     int
	RankRows    int
	Map         rankingdomain.MapLeaderboard
	Global      rankingdomain.GlobalLeaderboard
}

// AuditOutcome is the result of comparing in-memory totals with the store.
type AuditOutcome struct {
	Divergent []rankingdomain.ParticipantID
	Rebuilt   bool
}

type (
	FinishResult = results.OperationResult[FinishOutcome, error]
	ResyncResult = results.OperationResult[ResyncOutcome, error]
)

// Service is the ranking pipeline: ingest, aggregation, observer sync and queries.
type Service interface {
	// Start loads persisted state and rebuilds caches. Call before consuming events.
	Start(ctx context.Context) error

	RecordFinish(ctx context.Context, event rankingdomain.FinishEvent) (FinishResult, error)

	BeginMap(ctx context.Context, mapID rankingdomain.MapID) (ResyncResult, error)
	EndMap(ctx context.Context, mapID rankingdomain.MapID) (ResyncResult, error)
	// Resync recomputes mapID (every map when empty) and rebuilds global ranks.
	Resync(ctx context.Context, mapID rankingdomain.MapID) (ResyncResult, error)
	AuditConsistency(ctx context.Context) (AuditOutcome, error)

	ConnectObserver(ctx context.Context, participant rankingdomain.ParticipantID, displayName string) error
	DisconnectObserver(ctx context.Context, participant rankingdomain.ParticipantID)

	ActiveMap() rankingdomain.MapID
	GetMapLeaderboard(ctx context.Context, mapID rankingdomain.MapID) (rankingdomain.MapLeaderboard, error)
	GetGlobalLeaderboard(ctx context.Context) (rankingdomain.GlobalLeaderboard, error)
	ListMaps(ctx context.Context) ([]rankingdomain.MapID, error)
	GetPlayerRank(ctx context.Context, participant rankingdomain.ParticipantID) (rankingdomain.GlobalRow, error)
	GetMapRecord(ctx context.Context, mapID rankingdomain.MapID, participant rankingdomain.ParticipantID) (rankingdomain.MapRow, error)
}

// Broadcaster pushes leaderboard windows to connected observers.
type Broadcaster interface {
	Connect(observer rankingdomain.ParticipantID, view rankingdomain.SyncView)
	Disconnect(observer rankingdomain.ParticipantID)
	Publish(view rankingdomain.SyncView)
}
