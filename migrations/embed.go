// Package migrations embeds the SQLite schema of the vDC host daemon.
//
// Importing it for side effects registers the files with the database
// package:
//
//	import _ "github.com/nerrad567/vdc-core/migrations"
package migrations

import (
	"embed"

	"github.com/nerrad567/vdc-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
