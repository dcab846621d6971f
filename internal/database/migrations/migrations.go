package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the ordered set of schema migrations.
var Migrations = migrate.NewMigrations() //nolint:gochecknoglobals // -
