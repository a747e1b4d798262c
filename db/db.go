package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/charmbracelet/log"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// Archive is the persistent log of inbound activities.
type Archive struct {
	db      *sql.DB
	log     *log.Logger
	maxRows int
}

// defaultMaxRows caps the archive so a chatty fediverse neighbour
// cannot grow the database without bound.
const defaultMaxRows = 1000

const (
	sqlCreateActivitiesTable = `CREATE TABLE IF NOT EXISTS activities(
                        id uuid NOT NULL PRIMARY KEY,
                        activity_uri varchar(500),
                        activity_type varchar(100) NOT NULL,
                        actor_uri varchar(500),
                        object_uri varchar(500),
                        raw_json text NOT NULL,
                        received_at timestamp default current_timestamp
                        )`

	sqlCreateActivitiesIndices = `
		CREATE INDEX IF NOT EXISTS idx_activities_received_at ON activities(received_at DESC);
		CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(activity_type);
	`
)

// Open opens the archive database at path, creating the schema if needed.
func Open(path string, logger *log.Logger) (*Archive, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Configure connection pool for concurrent access
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Try to enable WAL2 mode, fall back to WAL if not supported
	var journalMode string
	err = sqlDB.QueryRow("PRAGMA journal_mode=WAL2").Scan(&journalMode)
	if err != nil || journalMode == "delete" {
		err = sqlDB.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode)
		if err != nil {
			logger.Warn("Failed to enable WAL mode", "err", err)
		} else {
			logger.Debug("Database journal mode (WAL2 not supported)", "mode", journalMode)
		}
	} else {
		logger.Debug("Database journal mode", "mode", journalMode)
	}

	sqlDB.Exec("PRAGMA synchronous = NORMAL")
	sqlDB.Exec("PRAGMA cache_size = -64000")
	sqlDB.Exec("PRAGMA temp_store = MEMORY")
	sqlDB.Exec("PRAGMA busy_timeout = 5000")
	sqlDB.Exec("PRAGMA foreign_keys = ON")
	sqlDB.Exec("PRAGMA auto_vacuum = INCREMENTAL")

	a := &Archive{db: sqlDB, log: logger, maxRows: defaultMaxRows}
	if err := a.createSchema(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) createSchema() error {
	return a.wrapTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(sqlCreateActivitiesTable); err != nil {
			return err
		}
		if _, err := tx.Exec(sqlCreateActivitiesIndices); err != nil {
			a.log.Warn("Failed to create activity indices", "err", err)
		}
		return nil
	})
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// wrapTransaction runs the given function within a transaction.
func (a *Archive) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		a.log.Error("error starting transaction", "err", err)
		return err
	}
	for {
		err = f(tx)
		if err != nil {
			serr, ok := err.(*sqlite.Error)
			if ok && serr.Code() == sqlitelib.SQLITE_BUSY {
				continue
			}
			tx.Rollback()
			a.log.Error("error in transaction", "err", err)
			return err
		}
		err = tx.Commit()
		if err != nil {
			a.log.Error("error committing transaction", "err", err)
			return err
		}
		break
	}
	return nil
}
