package main

import (
	"fmt"
	"sort"

	rankingqueue "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/queue"
	"github.com/Black-And-White-Club/maprank/db/bundb"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

// withMigrators opens the database and runs fn over every module migrator in
// a stable order.
func withMigrators(c *cli.Context, fn func(module string, m *migrate.Migrator) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	dbService, err := bundb.NewBunDBService(c.Context, cfg.Postgres)
	if err != nil {
		return err
	}
	defer dbService.Close()

	migrators := dbService.Migrators()
	names := make([]string, 0, len(migrators))
	for name := range migrators {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := fn(name, migrators[name]); err != nil {
			return fmt.Errorf("module %s: %w", name, err)
		}
	}
	return nil
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: func(c *cli.Context) error {
					return withMigrators(c, func(module string, m *migrate.Migrator) error {
						fmt.Printf("Initializing migrations for module: %s\n", module)
						return m.Init(c.Context)
					})
				},
			},
			{
				Name:  "migrate",
				Usage: "migrate database, including the job queue schema",
				Action: func(c *cli.Context) error {
					err := withMigrators(c, func(module string, m *migrate.Migrator) error {
						if err := m.Init(c.Context); err != nil {
							return err
						}
						group, err := m.Migrate(c.Context)
						if err != nil {
							return err
						}
						if group.IsZero() {
							fmt.Printf("No new migrations to run for module: %s\n", module)
						} else {
							fmt.Printf("Migrated module: %s to %s\n", module, group)
						}
						return nil
					})
					if err != nil {
						return err
					}

					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if err := rankingqueue.Migrate(c.Context, cfg.Postgres.DSN); err != nil {
						return err
					}
					fmt.Println("River queue migrations completed")
					return nil
				},
			},
			{
				Name:  "rollback",
				Usage: "rollback the last migration group",
				Action: func(c *cli.Context) error {
					return withMigrators(c, func(module string, m *migrate.Migrator) error {
						group, err := m.Rollback(c.Context)
						if err != nil {
							return err
						}
						if group.IsZero() {
							fmt.Printf("No groups to roll back for module: %s\n", module)
						} else {
							fmt.Printf("Rolled back module: %s to %s\n", module, group)
						}
						return nil
					})
				},
			},
			{
				Name:  "status",
				Usage: "print migrations status",
				Action: func(c *cli.Context) error {
					return withMigrators(c, func(module string, m *migrate.Migrator) error {
						ms, err := m.MigrationsWithStatus(c.Context)
						if err != nil {
							return err
						}
						fmt.Printf("Migrations for module: %s\n", module)
						fmt.Printf("  Applied: %s\n", ms.Applied())
						fmt.Printf("  Unapplied: %s\n", ms.Unapplied())
						return nil
					})
				},
			},
		},
	}
}
