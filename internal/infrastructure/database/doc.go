// Package database owns the SQLite file shared by the accessory registry
// and the command log.
//
// Open applies WAL mode, the busy timeout and foreign keys through the
// go-sqlite3 connection string and keeps one pooled connection. Migrate
// applies additive *.up.sql files from an fs.FS, normally migrations.FS:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	err = db.Migrate(ctx, migrations.FS)
package database
