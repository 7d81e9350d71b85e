// Package db is the SQLite job store behind the compression service.
//
// The schema is managed by golang-migrate from SQL files embedded in the
// binary; NewDB brings a database up to the latest version on open.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"
)

// ErrJobNotFound is returned when a job id is not in the store.
var ErrJobNotFound = errors.New("db: job not found")

// DB wraps the SQLite handle.
type DB struct {
	*sql.DB
	path string
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// NewDB opens (or creates) the database at path, applies the connection
// PRAGMAs and runs any pending migrations. ":memory:" gives a private
// in-memory database.
func NewDB(path string) (*DB, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenNoMigrate opens the database without touching its schema. The
// migrate command uses it to inspect and repair migration state.
func OpenNoMigrate(path string) (*DB, error) {
	return open(path)
}

func open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// PRAGMAs are per connection, and ":memory:" is per connection too.
	sqlDB.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// retryOnBusy retries fn while SQLite reports the database as locked.
func retryOnBusy(fn func() error) error {
	const attempts = 5
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(time.Duration(i+1) * 20 * time.Millisecond)
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// AttachAdminRoutes mounts the tsweb debug index on mux with a tailsql
// console over the job database.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+db.path, db.DB, &tailsql.DBOptions{
		Label: "Glyph jobs",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	debug.Handle("jobs", "Job counts by status", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counts, err := db.CountJobsByStatus()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to count jobs: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, s := range []JobStatus{StatusPending, StatusProcessing, StatusComplete, StatusFailed} {
			fmt.Fprintf(w, "%-10s %d\n", s, counts[s])
		}
	}))
	log.Printf("[DB] admin routes mounted at /debug/")
	return nil
}
