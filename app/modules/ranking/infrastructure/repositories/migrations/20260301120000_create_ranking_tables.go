package rankingmigrations

import (
	"context"
	"fmt"

	rankingdb "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating map_scores and player_ranks tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.NewCreateTable().Model((*rankingdb.MapScore)(nil)).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to create map_scores table: %w", err)
			}
			if _, err := tx.NewCreateTable().Model((*rankingdb.PlayerRank)(nil)).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to create player_ranks table: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping map_scores and player_ranks tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.NewDropTable().Model((*rankingdb.PlayerRank)(nil)).IfExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to drop player_ranks table: %w", err)
			}
			if _, err := tx.NewDropTable().Model((*rankingdb.MapScore)(nil)).IfExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to drop map_scores table: %w", err)
			}
			return nil
		})
	})
}
