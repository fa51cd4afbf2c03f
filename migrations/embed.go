// Package migrations embeds the SQL schema of the path daemon.
package migrations

import (
	"embed"

	"github.com/arentkievits/odemis/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
