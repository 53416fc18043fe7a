// Package database opens the SQLite file behind the bulb log and keeps its
// schema current.
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// The pool holds one connection since SQLite has a single writer. The file
// is made owner-only after Open.
//
// Migrations only add: new columns are nullable or have a default, and
// every up file ships with its down file.
package database
