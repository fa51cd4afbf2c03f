// Package database opens the SQLite store of the path daemon and applies
// its versioned schema migrations.
//
// Migrations are SQL files named YYYYMMDD_HHMMSS_name.up.sql (and the
// matching .down.sql) read from MigrationsFS. Applied versions are
// tracked in the schema_migrations table.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
