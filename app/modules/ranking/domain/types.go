package rankingdomain

import (
	"slices"
	"time"
)

// ParticipantID identifies a player across maps.
type ParticipantID string

func (p ParticipantID) String() string { return string(p) }

// MapID identifies a map (course).
type MapID string

func (m MapID) String() string { return string(m) }

// FinishEvent is a completed run reported by the game server.
type FinishEvent struct {
	ParticipantID ParticipantID `json:"participant_id"`
	MapID         MapID         `json:"map_id"`
	TimeMs        int64         `json:"time_ms"`
	ArrivedAt     time.Time     `json:"arrived_at"`
}

// MapScore is a participant's best result on one map.
// AchievedAt only moves when BestTimeMs improves; UpdatedAt moves on every rewrite.
type MapScore struct {
	MapID         MapID
	ParticipantID ParticipantID
	BestTimeMs    int64
	Points        int
	Rank          int
	AchievedAt    time.Time
	UpdatedAt     time.Time
}

// Record returns the points-curve input of s.
func (s MapScore) Record() TimedRecord {
	return TimedRecord{ParticipantID: s.ParticipantID, TimeMs: s.BestTimeMs, AchievedAt: s.AchievedAt}
}

// PlayerRank is a participant's position on the global leaderboard.
type PlayerRank struct {
	ParticipantID ParticipantID
	TotalPoints   int
	GlobalRank    int
	UpdatedAt     time.Time
}

// MapRow is one line of a map leaderboard.
type MapRow struct {
	ParticipantID ParticipantID `json:"participant_id"`
	DisplayName   string        `json:"display_name"`
	TimeMs        int64         `json:"time_ms"`
	Time          string        `json:"time"`
	Points        int           `json:"points"`
	Rank          int           `json:"rank"`
}

// GlobalRow is one line of the global leaderboard.
type GlobalRow struct {
	ParticipantID ParticipantID `json:"participant_id"`
	DisplayName   string        `json:"display_name"`
	Points        int           `json:"points"`
	Rank          int           `json:"rank"`
}

// MapLeaderboard is an ordered, read-only view of one map.
type MapLeaderboard struct {
	MapID       MapID     `json:"map_id"`
	Rows        []MapRow  `json:"rows"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Clone returns a copy whose rows do not share memory with m.
func (m MapLeaderboard) Clone() MapLeaderboard {
	m.Rows = slices.Clone(m.Rows)
	return m
}

// IndexOf returns the row index of participant, or -1.
func (m MapLeaderboard) IndexOf(participant ParticipantID) int {
	return slices.IndexFunc(m.Rows, func(r MapRow) bool { return r.ParticipantID == participant })
}

// GlobalLeaderboard is an ordered, read-only view of the global standings.
type GlobalLeaderboard struct {
	Rows        []GlobalRow `json:"rows"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Clone returns a copy whose rows do not share memory with g.
func (g GlobalLeaderboard) Clone() GlobalLeaderboard {
	g.Rows = slices.Clone(g.Rows)
	return g
}

// IndexOf returns the row index of participant, or -1.
func (g GlobalLeaderboard) IndexOf(participant ParticipantID) int {
	return slices.IndexFunc(g.Rows, func(r GlobalRow) bool { return r.ParticipantID == participant })
}

// NotificationKind separates a new map record from an ordinary improvement.
type NotificationKind string

const (
	NotificationNewRecord       NotificationKind = "new_record"
	NotificationStandingsUpdate NotificationKind = "standings_update"
)

// RecordNotification describes an accepted improvement on a map.
type RecordNotification struct {
	Kind          NotificationKind
	MapID         MapID
	ParticipantID ParticipantID
	TimeMs        int64
	PreviousMs    int64
	Points        int
	PointsDelta   int
	Rank          int
	PreviousRank  int
	Leaderboard   MapLeaderboard
}

// SyncView is what observers are synchronised against: the active map and the
// global standings, captured together. Seq orders views: a view never replaces
// one with a higher Seq.
type SyncView struct {
	Seq       uint64
	ActiveMap MapID
	Map       MapLeaderboard
	Global    GlobalLeaderboard
}
