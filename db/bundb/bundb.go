// Package bundb opens the Postgres connection shared by the repositories and
// owns the schema migrators.
package bundb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	rankingdb "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/repositories"
	rankingmigrations "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/repositories/migrations"
	"github.com/Black-And-White-Club/maprank/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// DBService holds the bun handle and the repositories built on it.
type DBService struct {
	RankingDB rankingdb.Repository
	db        *bun.DB
}

// GetDB returns the underlying database connection pool.
func (s *DBService) GetDB() *bun.DB {
	return s.db
}

// NewBunDBService connects to Postgres and builds the repositories.
func NewBunDBService(ctx context.Context, cfg config.PostgresConfig) (*DBService, error) {
	sqldb, err := pgConn(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	db.RegisterModel((*rankingdb.MapScore)(nil), (*rankingdb.PlayerRank)(nil))

	return &DBService{
		RankingDB: rankingdb.NewRepository(db),
		db:        db,
	}, nil
}

// Migrators returns one migrator per module, keyed by module name.
func (s *DBService) Migrators() map[string]*migrate.Migrator {
	return map[string]*migrate.Migrator{
		"ranking": migrate.NewMigrator(s.db, rankingmigrations.Migrations),
	}
}

// Migrate initialises the migration tables and applies every pending group.
func (s *DBService) Migrate(ctx context.Context) error {
	for name, m := range s.Migrators() {
		if err := m.Init(ctx); err != nil {
			return fmt.Errorf("init %s migrations: %w", name, err)
		}
		if _, err := m.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

func (s *DBService) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *DBService) Close() error {
	return s.db.Close()
}

func pgConn(ctx context.Context, dsn string) (*sql.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	sqldb.SetMaxOpenConns(20)
	sqldb.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqldb.PingContext(pingCtx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return sqldb, nil
}
