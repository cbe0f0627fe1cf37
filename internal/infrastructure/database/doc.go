// Package database provides the SQLite connection that backs the fire
// session history.
//
// Open applies WAL mode and a busy timeout from the database section of
// config.yaml. Schema changes live as paired .up.sql/.down.sql files in the
// migrations package, which embeds them and registers them on Migrations.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive: new columns must be nullable or carry a default.
package database
