package repository

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// MigrationsDir is the root of the embedded migrations
const MigrationsDir = "data/sql/migrations"

// GetMigrationsFS returns the migration files for the users and
// auth_sessions tables
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
