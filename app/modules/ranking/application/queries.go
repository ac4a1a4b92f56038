package rankingservice

import (
	"context"
	"fmt"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	rankingdb "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/maprank/app/observability/attr"
)

// ActiveMap returns the map currently being played, or "".
func (s *RankingService) ActiveMap() rankingdomain.MapID {
	return s.cache.activeMap()
}

// GetMapLeaderboard returns the rank-ordered leaderboard of mapID. Maps never
// seen since startup are loaded from the store once; an unknown map is empty.
func (s *RankingService) GetMapLeaderboard(ctx context.Context, mapID rankingdomain.MapID) (rankingdomain.MapLeaderboard, error) {
	snap, err := s.loadMap(ctx, mapID)
	if err != nil {
		return rankingdomain.MapLeaderboard{}, err
	}
	return s.renderMap(mapID, snap), nil
}

func (s *RankingService) GetGlobalLeaderboard(ctx context.Context) (rankingdomain.GlobalLeaderboard, error) {
	return s.renderGlobal(), nil
}

// ListMaps returns every map with at least one stored score, sorted by id.
func (s *RankingService) ListMaps(ctx context.Context) ([]rankingdomain.MapID, error) {
	ids, err := s.repo.FindMapIDs(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	return ids, nil
}

// GetPlayerRank returns the participant's global row, or ErrNotRanked.
func (s *RankingService) GetPlayerRank(ctx context.Context, participant rankingdomain.ParticipantID) (rankingdomain.GlobalRow, error) {
	for _, r := range s.aggregator.Snapshot() {
		if r.ParticipantID == participant {
			return s.globalRow(r), nil
		}
	}
	return rankingdomain.GlobalRow{}, fmt.Errorf("%w: %s", ErrNotRanked, participant)
}

// GetMapRecord returns the participant's row on mapID, or ErrNotRanked.
func (s *RankingService) GetMapRecord(ctx context.Context, mapID rankingdomain.MapID, participant rankingdomain.ParticipantID) (rankingdomain.MapRow, error) {
	snap, err := s.loadMap(ctx, mapID)
	if err != nil {
		return rankingdomain.MapRow{}, err
	}
	for _, sc := range snap.scores {
		if sc.ParticipantID == participant {
			return s.mapRow(sc), nil
		}
	}
	return rankingdomain.MapRow{}, fmt.Errorf("%w: %s on %s", ErrNotRanked, participant, mapID)
}

func (s *RankingService) loadMap(ctx context.Context, mapID rankingdomain.MapID) (mapSnapshot, error) {
	if snap, ok := s.cache.mapSnapshot(mapID); ok {
		return snap, nil
	}
	scores, err := s.repo.FindMapScores(ctx, nil, mapID, rankingdb.OrderByRank)
	if err != nil {
		return mapSnapshot{}, fmt.Errorf("load map %s: %w", mapID, err)
	}
	return s.cache.setMapIfAbsent(mapID, scores), nil
}

// syncView captures the active map and global standings for observers.
func (s *RankingService) syncView(ctx context.Context) rankingdomain.SyncView {
	// Read before capturing, so the view is at least as new as its Seq.
	seq := s.aggregator.Generation() + s.cache.generation()
	view := rankingdomain.SyncView{
		Seq:       seq,
		ActiveMap: s.cache.activeMap(),
		Global:    s.renderGlobal(),
	}
	if view.ActiveMap != "" {
		board, err := s.GetMapLeaderboard(ctx, view.ActiveMap)
		if err != nil {
			s.logger.WarnContext(ctx, "Active map unavailable for sync",
				attr.MapID(view.ActiveMap),
				attr.Error(err),
			)
		}
		view.Map = board
	}
	return view
}

func (s *RankingService) renderMap(mapID rankingdomain.MapID, snap mapSnapshot) rankingdomain.MapLeaderboard {
	rows := make([]rankingdomain.MapRow, len(snap.scores))
	for i, sc := range snap.scores {
		rows[i] = s.mapRow(sc)
	}
	return rankingdomain.MapLeaderboard{MapID: mapID, Rows: rows, GeneratedAt: snap.at}
}

func (s *RankingService) renderGlobal() rankingdomain.GlobalLeaderboard {
	ranks := s.aggregator.Snapshot()
	board := rankingdomain.GlobalLeaderboard{Rows: make([]rankingdomain.GlobalRow, len(ranks))}
	for i, r := range ranks {
		board.Rows[i] = s.globalRow(r)
		if r.UpdatedAt.After(board.GeneratedAt) {
			board.GeneratedAt = r.UpdatedAt
		}
	}
	return board
}

func (s *RankingService) mapRow(sc rankingdomain.MapScore) rankingdomain.MapRow {
	return rankingdomain.MapRow{
		ParticipantID: sc.ParticipantID,
		DisplayName:   s.names.Name(sc.ParticipantID),
		TimeMs:        sc.BestTimeMs,
		Time:          rankingdomain.FormatTime(sc.BestTimeMs),
		Points:        sc.Points,
		Rank:          sc.Rank,
	}
}

func (s *RankingService) globalRow(r rankingdomain.PlayerRank) rankingdomain.GlobalRow {
	return rankingdomain.GlobalRow{
		ParticipantID: r.ParticipantID,
		DisplayName:   s.names.Name(r.ParticipantID),
		Points:        r.TotalPoints,
		Rank:          r.GlobalRank,
	}
}
