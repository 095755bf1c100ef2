package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hrvault/internal/logging"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "modernc.org/sqlite"             // pure-Go SQLite driver
)

// retryPolicy bounds connection retries with exponential backoff
type retryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

var defaultRetryPolicy = retryPolicy{
	MaxAttempts: 3,
	BaseDelay:   2 * time.Second,
	MaxDelay:    30 * time.Second,
	Multiplier:  2.0,
}

// Connect opens the database described by cfg, applies pool settings, and
// verifies the connection with bounded retries. The returned handle is owned
// by the caller.
func Connect(ctx context.Context, cfg Config, logger *logging.Logger) (*sql.DB, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	policy := defaultRetryPolicy
	policy.MaxAttempts = cfg.MaxRetries
	policy.BaseDelay = cfg.RetryDelay

	err = pingWithRetry(ctx, db, cfg.Timeout, policy)

	if logger != nil {
		logger.LogDatabaseConnection(cfg.Driver, cfg.DSN, err == nil, time.Since(started), err)
	}

	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func pingWithRetry(ctx context.Context, db *sql.DB, timeout time.Duration, policy retryPolicy) error {
	var lastErr error
	delay := policy.BaseDelay

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		lastErr = db.PingContext(pingCtx)
		cancel()

		if lastErr == nil {
			return nil
		}
		if attempt == policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * policy.Multiplier)
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	return fmt.Errorf("failed to ping database after %d attempts: %w", policy.MaxAttempts, lastErr)
}
