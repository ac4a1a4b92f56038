package rankingmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Adding ranking indexes...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			for _, stmt := range []string{
				`CREATE INDEX IF NOT EXISTS idx_map_scores_map_rank ON map_scores(map_id, rank)`,
				`CREATE INDEX IF NOT EXISTS idx_map_scores_participant ON map_scores(participant_id)`,
				`CREATE INDEX IF NOT EXISTS idx_player_ranks_global_rank ON player_ranks(global_rank)`,
			} {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("failed to add ranking indexes: %w", err)
				}
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Rolling back ranking indexes...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			for _, index := range []string{
				"idx_map_scores_map_rank",
				"idx_map_scores_participant",
				"idx_player_ranks_global_rank",
			} {
				if _, err := tx.ExecContext(ctx, "DROP INDEX IF EXISTS "+index); err != nil {
					return fmt.Errorf("failed to drop ranking indexes: %w", err)
				}
			}
			return nil
		})
	})
}
