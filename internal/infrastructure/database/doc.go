// Package database opens the SQLite file that holds the dashboard
// catalogue and applies its schema migrations.
//
// Migrations are pairs of files named YYYYMMDD_HHMMSS_name.up.sql and
// .down.sql, embedded by the migrations package and registered with
// RegisterMigrations. Applied versions are tracked in schema_migrations.
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Schema changes are additive: new columns are nullable or carry a
// default, so a rollback never loses catalogue rows.
package database
