// Package postgres opens the document-store pool on lib/pq and provides the
// transaction and error helpers the store uses.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/resilience"
	"github.com/lib/pq"
)

const (
	connectAttempts = 5
	pingTimeout     = 5 * time.Second
)

// uniqueViolation is SQLSTATE 23505.
const uniqueViolation pq.ErrorCode = "23505"

type Client struct {
	DB *sql.DB
}

// New opens the pool and waits for the server, retrying with backoff so
// the service can start alongside its database container.
func New(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logger := slog.Default().With("component", "postgres", "database", cfg.Database)
	ping := func(ctx context.Context, attempt int) error {
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		err := db.PingContext(ctx)
		if err != nil {
			logger.Warn("postgres not ready", "attempt", attempt, "error", err)
		}
		return err
	}
	backoff := func(attempt int, err error) (time.Duration, bool) {
		return resilience.Exponential(250*time.Millisecond, 2, attempt), err != nil
	}
	err, _ = resilience.Retry(context.Background(), "postgres-connect", connectAttempts, ping, backoff)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// Ping verifies the connection is alive; used by readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// InTx runs fn in a transaction, committing on nil and rolling back
// otherwise.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a duplicate-key error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
