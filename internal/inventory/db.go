// Package inventory is the relational store behind the pipeline. Each
// repository owns one table, normalizes what it is given and decides
// whether an observation is new, changed or a re-sighting.
//
// Upserts are lookup, decide, write with no locking: one pipeline
// instance is expected to write at a time.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/vulnverified/watchtower/internal/logger"
)

var (
	// ErrInvalid is returned when normalization leaves a required key empty.
	ErrInvalid = errors.New("invalid record")
	// ErrNotFound is returned by lookups and deletes of unknown rows.
	ErrNotFound = errors.New("not found")
)

func init() {
	// modernc registers "sqlite", which sqlx does not know by default.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// DB is the shared handle passed to every repository.
type DB struct {
	*sqlx.DB
	Driver string

	log logger.Logger
	now func() time.Time
}

// Open connects to driver ("sqlite" or "postgres") and verifies the connection.
func Open(ctx context.Context, driver, dsn string, log logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.NewNop()
	}
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// One writer; this also keeps ":memory:" databases on a single connection.
		conn.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
		} {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				conn.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to %s: %w", driver, err)
	}

	log.Debug("database opened", logger.String("driver", driver))
	return &DB{DB: conn, Driver: driver, log: log, now: time.Now}, nil
}

// Migrate creates any missing tables.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema(db.Driver) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}

func (db *DB) stamp() Timestamp {
	return Timestamp{db.now().UTC()}
}

// get runs a single-row query; sql.ErrNoRows is passed through for callers
// to treat as "absent".
func (db *DB) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return db.GetContext(ctx, dest, db.Rebind(query), args...)
}

func (db *DB) sel(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return db.SelectContext(ctx, dest, db.Rebind(query), args...)
}

func (db *DB) exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := db.ExecContext(ctx, db.Rebind(query), args...)
	return err
}
