package utils

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresPoolConfig tunes the database/sql pool. Zero values fall back to
// defaults sized for a single API instance.
type PostgresPoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// OpenPostgres opens a pooled connection through database/sql and verifies
// it with a bounded ping. driverName is normally "pgx". The DSN carries
// credentials and must never be logged.
func OpenPostgres(ctx context.Context, driverName, dsn string, pool PostgresPoolConfig) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(orInt(pool.MaxOpenConns, 20))
	db.SetMaxIdleConns(orInt(pool.MaxIdleConns, 10))
	db.SetConnMaxLifetime(orDur(pool.ConnMaxLifetime, time.Hour))
	db.SetConnMaxIdleTime(orDur(pool.ConnMaxIdleTime, 10*time.Minute))

	pingCtx, cancel := context.WithTimeout(ctx, orDur(pool.PingTimeout, 5*time.Second))
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orDur(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}
