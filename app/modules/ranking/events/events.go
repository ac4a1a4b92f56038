package rankingevents

import (
	"time"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
)

// Inbound topics.
const (
	FinishRecordedV1       = "ranking.finish.recorded.v1"
	MapBeganV1             = "ranking.map.began.v1"
	MapEndedV1             = "ranking.map.ended.v1"
	ObserverConnectedV1    = "ranking.observer.connected.v1"
	ObserverDisconnectedV1 = "ranking.observer.disconnected.v1"
	ResyncRequestedV1      = "ranking.resync.requested.v1"
)

// Outbound topics.
const (
	NewRecordV1            = "ranking.record.new.v1"
	StandingsUpdatedV1     = "ranking.record.updated.v1"
	WindowPushedV1         = "ranking.window.pushed.v1"
	MapSnapshotSyncedV1    = "ranking.map.snapshot.synced.v1"
	GlobalSnapshotSyncedV1 = "ranking.global.snapshot.synced.v1"
	ResyncFailedV1         = "ranking.resync.failed.v1"
)

// InboundTopics lists every topic the ranking module consumes.
func InboundTopics() []string {
	return []string{
		FinishRecordedV1,
		MapBeganV1,
		MapEndedV1,
		ObserverConnectedV1,
		ObserverDisconnectedV1,
		ResyncRequestedV1,
	}
}

// OutboundTopics lists every topic the ranking module produces.
func OutboundTopics() []string {
	return []string{
		NewRecordV1,
		StandingsUpdatedV1,
		WindowPushedV1,
		MapSnapshotSyncedV1,
		GlobalSnapshotSyncedV1,
		ResyncFailedV1,
	}
}

// FinishRecordedPayloadV1 is a completed run.
type FinishRecordedPayloadV1 struct {
	ParticipantID rankingdomain.ParticipantID `json:"participant_id"`
	MapID         rankingdomain.MapID         `json:"map_id"`
	TimeMs        int64                       `json:"time_ms"`
	ArrivedAt     time.Time                   `json:"arrived_at"`
}

// MapLifecyclePayloadV1 announces a map begin or end.
type MapLifecyclePayloadV1 struct {
	MapID rankingdomain.MapID `json:"map_id"`
}

type ObserverConnectedPayloadV1 struct {
	ParticipantID rankingdomain.ParticipantID `json:"participant_id"`
	DisplayName   string                      `json:"display_name"`
}

type ObserverDisconnectedPayloadV1 struct {
	ParticipantID rankingdomain.ParticipantID `json:"participant_id"`
}

// ResyncRequestedPayloadV1 is an operator resync. An empty MapID resyncs the active map.
type ResyncRequestedPayloadV1 struct {
	MapID       rankingdomain.MapID `json:"map_id"`
	RequestedBy string              `json:"requested_by"`
}

// NewRecordPayloadV1 is published when a run takes rank 1 on a map.
type NewRecordPayloadV1 struct {
	MapID         rankingdomain.MapID          `json:"map_id"`
	ParticipantID rankingdomain.ParticipantID  `json:"participant_id"`
	DisplayName   string                       `json:"display_name"`
	TimeMs        int64                        `json:"time_ms"`
	Time          string                       `json:"time"`
	PreviousMs    int64                        `json:"previous_ms,omitempty"`
	Points        int                          `json:"points"`
	PointsDelta   int                          `json:"points_delta"`
	Leaderboard   rankingdomain.MapLeaderboard `json:"leaderboard"`
}

// StandingsUpdatedPayloadV1 is published for an improvement below rank 1.
type StandingsUpdatedPayloadV1 struct {
	MapID         rankingdomain.MapID          `json:"map_id"`
	ParticipantID rankingdomain.ParticipantID  `json:"participant_id"`
	DisplayName   string                       `json:"display_name"`
	TimeMs        int64                        `json:"time_ms"`
	Time          string                       `json:"time"`
	PreviousMs    int64                        `json:"previous_ms,omitempty"`
	Points        int                          `json:"points"`
	PointsDelta   int                          `json:"points_delta"`
	Rank          int                          `json:"rank"`
	PreviousRank  int                          `json:"previous_rank,omitempty"`
	Leaderboard   rankingdomain.MapLeaderboard `json:"leaderboard"`
}

// WindowPushedPayloadV1 is one observer's slice of a leaderboard.
type WindowPushedPayloadV1 struct {
	ObserverID rankingdomain.ParticipantID `json:"observer_id"`
	Scope      string                      `json:"scope"`
	MapID      rankingdomain.MapID         `json:"map_id,omitempty"`
	MapRows    []rankingdomain.MapRow      `json:"map_rows,omitempty"`
	GlobalRows []rankingdomain.GlobalRow   `json:"global_rows,omitempty"`
}

// MapSnapshotSyncedPayloadV1 is the full record list of a map.
type MapSnapshotSyncedPayloadV1 struct {
	MapID       rankingdomain.MapID          `json:"map_id"`
	Leaderboard rankingdomain.MapLeaderboard `json:"leaderboard"`
}

// GlobalSnapshotSyncedPayloadV1 is the full global leaderboard.
type GlobalSnapshotSyncedPayloadV1 struct {
	Leaderboard rankingdomain.GlobalLeaderboard `json:"leaderboard"`
}

type ResyncFailedPayloadV1 struct {
	MapID  rankingdomain.MapID `json:"map_id"`
	Reason string              `json:"reason"`
}
