package rankingdb

import (
	"time"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	"github.com/uptrace/bun"
)

// MapScore is a participant's best result on one map.
type MapScore struct {
	bun.BaseModel `bun:"table:map_scores,alias:ms"`

	MapID         string    `bun:"map_id,pk"`
	ParticipantID string    `bun:"participant_id,pk"`
	BestTimeMs    int64     `bun:"best_time_ms,notnull"`
	Points        int       `bun:"points,notnull,default:0"`
	Rank          int       `bun:"rank,notnull,default:0"`
	AchievedAt    time.Time `bun:"achieved_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// PlayerRank is a participant's position on the global leaderboard.
type PlayerRank struct {
	bun.BaseModel `bun:"table:player_ranks,alias:pr"`

	ParticipantID string    `bun:"participant_id,pk"`
	TotalPoints   int       `bun:"total_points,notnull,default:0"`
	GlobalRank    int       `bun:"global_rank,notnull,default:0"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func mapScoreFromDomain(s rankingdomain.MapScore) MapScore {
	return MapScore{
		MapID:         string(s.MapID),
		ParticipantID: string(s.ParticipantID),
		BestTimeMs:    s.BestTimeMs,
		Points:        s.Points,
		Rank:          s.Rank,
		AchievedAt:    s.AchievedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func (m MapScore) toDomain() rankingdomain.MapScore {
	return rankingdomain.MapScore{
		MapID:         rankingdomain.MapID(m.MapID),
		ParticipantID: rankingdomain.ParticipantID(m.ParticipantID),
		BestTimeMs:    m.BestTimeMs,
		Points:        m.Points,
		Rank:          m.Rank,
		AchievedAt:    m.AchievedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func playerRankFromDomain(r rankingdomain.PlayerRank) PlayerRank {
	return PlayerRank{
		ParticipantID: string(r.ParticipantID),
		TotalPoints:   r.TotalPoints,
		GlobalRank:    r.GlobalRank,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (p PlayerRank) toDomain() rankingdomain.PlayerRank {
	return rankingdomain.PlayerRank{
		ParticipantID: rankingdomain.ParticipantID(p.ParticipantID),
		TotalPoints:   p.TotalPoints,
		GlobalRank:    p.GlobalRank,
		UpdatedAt:     p.UpdatedAt,
	}
}
