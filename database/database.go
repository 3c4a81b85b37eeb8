package database

import (
	"context"
	"database/sql"
	"net/url"
	"strings"
	"time"
)

// Open connects to the store named by dbURL: a mongodb:// URL selects MongoDB,
// anything else is the path of a SQLite3 file.
func Open(ctx context.Context, dbURL string) (Store, error) {
	if strings.HasPrefix(dbURL, "mongodb://") || strings.HasPrefix(dbURL, "mongodb+srv://") {
		return OpenMongo(ctx, dbURL)
	}
	return OpenSQLite(dbURL)
}

func OpenSQLite(path string) (store *SQLiteStore, err error) {
	params := url.Values{
		"_foreign_keys": {"on"},
		"_busy_timeout": {"5000"},
		"_journal_mode": {"WAL"},
		"_txlock":       {"immediate"},
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?"+params.Encode())
	if err != nil {
		return
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(db)
	if err != nil {
		db.Close()
		return
	}

	return &SQLiteStore{db}, nil
}
