package testutils

import (
	"context"
	"fmt"
	"log"
	"strings"

	rankingqueue "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/queue"
	"github.com/Black-And-White-Club/maprank/config"
	"github.com/Black-And-White-Club/maprank/db/bundb"
	"github.com/Black-And-White-Club/maprank/integration_tests/containers"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
)

// rankingTables are truncated between tests.
var rankingTables = []string{"map_scores", "player_ranks"}

// TestDB is a migrated Postgres container shared by one test package.
type TestDB struct {
	DSN       string
	Service   *bundb.DBService
	container *postgres.PostgresContainer
}

// DB returns the bun handle.
func (t *TestDB) DB() *bun.DB {
	return t.Service.GetDB()
}

// SetupTestDB starts Postgres, connects through bundb and applies the ranking
// and River migrations.
func SetupTestDB(ctx context.Context) (*TestDB, error) {
	container, dsn, err := containers.SetupPostgres(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := bundb.NewBunDBService(ctx, config.PostgresConfig{DSN: dsn})
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("connect test database: %w", err)
	}

	if err := svc.Migrate(ctx); err != nil {
		_ = svc.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("run ranking migrations: %w", err)
	}
	if err := rankingqueue.Migrate(ctx, dsn); err != nil {
		_ = svc.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("run River migrations: %w", err)
	}
	log.Println("Test database migrated")

	return &TestDB{DSN: dsn, Service: svc, container: container}, nil
}

// Terminate closes the connection and stops the container.
func (t *TestDB) Terminate(ctx context.Context) {
	if t == nil {
		return
	}
	if err := t.Service.Close(); err != nil {
		log.Printf("Warning: closing test database: %v", err)
	}
	if err := t.container.Terminate(ctx); err != nil {
		log.Printf("Warning: terminating postgres container: %v", err)
	}
}

// CleanupDatabase truncates the ranking tables and the River job table.
func CleanupDatabase(ctx context.Context, db bun.IDB) error {
	query := fmt.Sprintf("TRUNCATE TABLE %s", strings.Join(rankingTables, ", "))
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM river_job"); err != nil {
		// Don't fail if table doesn't exist yet
		if !strings.Contains(err.Error(), "does not exist") {
			return fmt.Errorf("failed to cleanup river jobs: %w", err)
		}
	}
	return nil
}
