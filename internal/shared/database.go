package shared

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"
)

var registerDriver sync.Once

// driverName registers a sqlite3 driver variant whose connections enforce
// foreign keys and expose the similarity() SQL function backing trigram
// search. Registration is process-wide, hence the Once.
func driverName() string {
	registerDriver.Do(func() {
		sql.Register("sqlite3_trgm", &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if err := conn.RegisterFunc("similarity", TrigramSimilarity, true); err != nil {
					return err
				}
				_, err := conn.Exec("PRAGMA foreign_keys = ON", nil)
				return err
			},
		})
	})
	return "sqlite3_trgm"
}

// NewDatabase opens a connection to a SQLite database at the specified path.
// The path can be ":memory:" for an in-memory database.
// Returns an open database connection or an error if connection fails.
func NewDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open(driverName(), path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
// Recommended for production use to limit connections and improve performance.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
}
