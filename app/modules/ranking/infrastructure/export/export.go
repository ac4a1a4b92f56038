// Package rankingexport renders standings for download: a workbook of every
// leaderboard and a bar chart of the global top.
package rankingexport

import (
	"context"
	"fmt"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
)

// Source is the read side of the ranking service an export needs.
type Source interface {
	GetGlobalLeaderboard(ctx context.Context) (rankingdomain.GlobalLeaderboard, error)
	ListMaps(ctx context.Context) ([]rankingdomain.MapID, error)
	GetMapLeaderboard(ctx context.Context, mapID rankingdomain.MapID) (rankingdomain.MapLeaderboard, error)
}

// Standings is everything one export covers, captured up front so the file
// is built from a single read.
type Standings struct {
	Global rankingdomain.GlobalLeaderboard
	Maps   []rankingdomain.MapLeaderboard
}

// Collect reads the global leaderboard and every map leaderboard from src.
func Collect(ctx context.Context, src Source) (Standings, error) {
	global, err := src.GetGlobalLeaderboard(ctx)
	if err != nil {
		return Standings{}, fmt.Errorf("global leaderboard: %w", err)
	}
	ids, err := src.ListMaps(ctx)
	if err != nil {
		return Standings{}, fmt.Errorf("list maps: %w", err)
	}

	st := Standings{Global: global, Maps: make([]rankingdomain.MapLeaderboard, 0, len(ids))}
	for _, id := range ids {
		board, err := src.GetMapLeaderboard(ctx, id)
		if err != nil {
			return Standings{}, fmt.Errorf("map %s leaderboard: %w", id, err)
		}
		st.Maps = append(st.Maps, board)
	}
	return st, nil
}
