package database

import (
	"context"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sirupsen/logrus"
)

// Execer is the subset of *pgxpool.Pool the result store needs.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// NewPostgresPool creates a new database connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string, log logrus.FieldLogger) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	// Rows are written one at a time from a single goroutine
	config.MaxConns = 2
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	// Ping the database to verify the connection
	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}

	log.Debug("database pool created")
	return pool, nil
}

// Schema creates the result tables if they do not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS evaluation_runs (
	run_id     uuid PRIMARY KEY,
	started_at timestamptz NOT NULL,
	header     text[] NOT NULL
);
CREATE TABLE IF NOT EXISTS evaluation_cells (
	run_id           uuid NOT NULL REFERENCES evaluation_runs(run_id),
	clip             text NOT NULL,
	duration_seconds double precision NOT NULL,
	position         integer NOT NULL,
	field            text NOT NULL,
	score            double precision,
	error            text,
	PRIMARY KEY (run_id, clip, position)
);`

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, db Execer) error {
	_, err := db.Exec(ctx, Schema)
	return err
}
