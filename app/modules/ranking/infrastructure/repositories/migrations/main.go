package rankingmigrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the ranking module's schema history.
var Migrations = migrate.NewMigrations()

func init() {
	if err := Migrations.DiscoverCaller(); err != nil {
		panic(err)
	}
}
