package rankingdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	"github.com/uptrace/bun"
)

// Impl implements Repository against Postgres through bun.
type Impl struct {
	db bun.IDB
}

var _ Repository = (*Impl)(nil)

// NewRepository creates a new ranking repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) conn(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// --- Map scores ---

func (r *Impl) UpsertMapScore(ctx context.Context, db bun.IDB, score rankingdomain.MapScore) error {
	return r.UpsertMapScores(ctx, db, []rankingdomain.MapScore{score})
}

// UpsertMapScores writes every given row, replacing time, points and rank on conflict.
func (r *Impl) UpsertMapScores(ctx context.Context, db bun.IDB, scores []rankingdomain.MapScore) error {
	if len(scores) == 0 {
		return nil
	}
	rows := make([]MapScore, len(scores))
	for i, s := range scores {
		rows[i] = mapScoreFromDomain(s)
	}

	_, err := r.conn(db).NewInsert().
		Model(&rows).
		On("CONFLICT (map_id, participant_id) DO UPDATE").
		Set("best_time_ms = EXCLUDED.best_time_ms").
		Set("points = EXCLUDED.points").
		Set("rank = EXCLUDED.rank").
		Set("achieved_at = EXCLUDED.achieved_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("rankingdb.UpsertMapScores: %w", err)
	}
	return nil
}

func (r *Impl) FindMapScore(ctx context.Context, db bun.IDB, mapID rankingdomain.MapID, participant rankingdomain.ParticipantID) (*rankingdomain.MapScore, error) {
	var row MapScore
	err := r.conn(db).NewSelect().
		Model(&row).
		Where("map_id = ?", string(mapID)).
		Where("participant_id = ?", string(participant)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("rankingdb.FindMapScore: %w", err)
	}
	score := row.toDomain()
	return &score, nil
}

func (r *Impl) FindMapScores(ctx context.Context, db bun.IDB, mapID rankingdomain.MapID, order Order) ([]rankingdomain.MapScore, error) {
	var rows []MapScore
	q := r.conn(db).NewSelect().
		Model(&rows).
		Where("map_id = ?", string(mapID))

	switch order {
	case OrderByRank:
		q = q.OrderExpr("rank ASC, participant_id ASC")
	case OrderByTime:
		q = q.OrderExpr("best_time_ms ASC, achieved_at ASC, participant_id ASC")
	case OrderByPoints:
		q = q.OrderExpr("points DESC, participant_id ASC")
	default:
		return nil, fmt.Errorf("rankingdb.FindMapScores: %w", ErrInvalidOrder)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("rankingdb.FindMapScores: %w", err)
	}
	return mapScoresToDomain(rows), nil
}

func (r *Impl) FindAllMapScores(ctx context.Context, db bun.IDB) ([]rankingdomain.MapScore, error) {
	var rows []MapScore
	err := r.conn(db).NewSelect().
		Model(&rows).
		OrderExpr("map_id ASC, rank ASC, participant_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("rankingdb.FindAllMapScores: %w", err)
	}
	return mapScoresToDomain(rows), nil
}

func (r *Impl) FindMapIDs(ctx context.Context, db bun.IDB) ([]rankingdomain.MapID, error) {
	var ids []string
	err := r.conn(db).NewSelect().
		Model((*MapScore)(nil)).
		Distinct().
		Column("map_id").
		OrderExpr("map_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("rankingdb.FindMapIDs: %w", err)
	}
	out := make([]rankingdomain.MapID, len(ids))
	for i, id := range ids {
		out[i] = rankingdomain.MapID(id)
	}
	return out, nil
}

// AcquireMapLock takes a transaction-scoped advisory lock on the map id.
func (r *Impl) AcquireMapLock(ctx context.Context, db bun.IDB, mapID rankingdomain.MapID) error {
	// Use hashtext() for a stable int8 from the map id string
	_, err := r.conn(db).NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", "map:"+string(mapID)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("rankingdb.AcquireMapLock: %w", err)
	}
	return nil
}

// --- Player ranks ---

func (r *Impl) UpsertPlayerRank(ctx context.Context, db bun.IDB, rank rankingdomain.PlayerRank) error {
	return r.UpsertPlayerRanks(ctx, db, []rankingdomain.PlayerRank{rank})
}

func (r *Impl) UpsertPlayerRanks(ctx context.Context, db bun.IDB, ranks []rankingdomain.PlayerRank) error {
	if len(ranks) == 0 {
		return nil
	}
	rows := make([]PlayerRank, len(ranks))
	for i, pr := range ranks {
		rows[i] = playerRankFromDomain(pr)
	}

	_, err := r.conn(db).NewInsert().
		Model(&rows).
		On("CONFLICT (participant_id) DO UPDATE").
		Set("total_points = EXCLUDED.total_points").
		Set("global_rank = EXCLUDED.global_rank").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("rankingdb.UpsertPlayerRanks: %w", err)
	}
	return nil
}

func (r *Impl) FindPlayerRank(ctx context.Context, db bun.IDB, participant rankingdomain.ParticipantID) (*rankingdomain.PlayerRank, error) {
	var row PlayerRank
	err := r.conn(db).NewSelect().
		Model(&row).
		Where("participant_id = ?", string(participant)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("rankingdb.FindPlayerRank: %w", err)
	}
	pr := row.toDomain()
	return &pr, nil
}

func (r *Impl) FindAllPlayerRanks(ctx context.Context, db bun.IDB, order Order) ([]rankingdomain.PlayerRank, error) {
	var rows []PlayerRank
	q := r.conn(db).NewSelect().Model(&rows)

	switch order {
	case OrderByRank:
		q = q.OrderExpr("global_rank ASC, participant_id ASC")
	case OrderByPoints:
		q = q.OrderExpr("total_points DESC, participant_id ASC")
	default:
		return nil, fmt.Errorf("rankingdb.FindAllPlayerRanks: %w", ErrInvalidOrder)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("rankingdb.FindAllPlayerRanks: %w", err)
	}
	out := make([]rankingdomain.PlayerRank, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func mapScoresToDomain(rows []MapScore) []rankingdomain.MapScore {
	out := make([]rankingdomain.MapScore, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out
}
