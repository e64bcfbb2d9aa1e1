// Package walletdb is the wallet's on-disk store: accounts, cached fiat prices
// and dApp connections on top of internal/platform/sqlite.
package walletdb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"walletstore/internal/platform/sqlite"
	"walletstore/pkg/retry"
)

// Options configures the store.
type Options struct {
	SQLite sqlite.Options
	// Retry applies to writes that fail with SQLITE_BUSY
	Retry retry.Config
	// PriceCacheTTL bounds how long a price read is served from memory
	PriceCacheTTL time.Duration
}

func DefaultOptions() Options {
	return Options{
		SQLite:        sqlite.DefaultOptions(),
		Retry:         retry.DefaultConfig(),
		PriceCacheTTL: 5 * time.Minute,
	}
}

// Store bundles the database with its DAOs.
type Store struct {
	db    *sqlite.Database
	log   *slog.Logger
	retry retry.Config

	Accounts    *Accounts
	Prices      *Prices
	Connections *Connections
}

// Open opens or creates the wallet database at path.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if opts.SQLite.Logger == nil {
		opts.SQLite.Logger = slog.Default()
	}
	log := opts.SQLite.Logger.With("component", "walletdb")

	db, err := sqlite.Open(ctx, path, Version, Schema{}, opts.SQLite)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet database: %w", err)
	}

	s := &Store{
		db:    db,
		log:   log,
		retry: opts.Retry,
	}
	s.retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Debug("retrying busy write", "attempt", attempt, "delay", delay, "error", err)
	}
	s.Accounts = &Accounts{store: s}
	s.Prices = newPrices(s, opts.PriceCacheTTL)
	s.Connections = &Connections{store: s}
	return s, nil
}

// DB exposes the underlying database for maintenance and diagnostics.
func (s *Store) DB() *sqlite.Database {
	return s.db
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}

// write runs fn in a transaction and retries it while the file is busy.
func (s *Store) write(ctx context.Context, fn func(ctx context.Context, tx *sqlite.Tx) error) error {
	return retry.DoWithRetryable(ctx, s.retry, func(ctx context.Context) error {
		return s.db.WithTransaction(ctx, fn)
	}, sqlite.IsBusy)
}

// Schema is the lifecycle callback of the wallet database.
type Schema struct{}

func (Schema) OnCreate(ctx context.Context, h *sqlite.Handle) error {
	for _, t := range Tables() {
		if _, err := h.Exec(ctx, t.CreateStatement()); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name(), err)
		}
	}

	seed, err := fiatPricesTable.SeedStatement(map[string]any{colTokenID: nativeTokenID})
	if err != nil {
		return err
	}
	if _, err := h.Exec(ctx, seed.SQL, seed.Args...); err != nil {
		return fmt.Errorf("seed %s: %w", tableFiatPrices, err)
	}
	return nil
}

func (Schema) OnOpen(ctx context.Context, h *sqlite.Handle) error {
	_, err := h.Exec(ctx, "PRAGMA foreign_keys = ON")
	return err
}
