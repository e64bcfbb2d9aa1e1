package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

// TablesCallback - простой Callback: создаёт перечисленные таблицы в OnCreate
// и включает внешние ключи в OnOpen. Удобен для тестов и утилит.
type TablesCallback struct {
	Tables []*TableSchema
	// Seeds - начальные строки по имени таблицы
	Seeds map[string][]map[string]any
}

// NewTablesCallback создаёт TablesCallback без начальных данных.
func NewTablesCallback(tables ...*TableSchema) *TablesCallback {
	return &TablesCallback{Tables: tables}
}

func (c *TablesCallback) OnCreate(ctx context.Context, h *Handle) error {
	for _, t := range c.Tables {
		if _, err := h.Exec(ctx, t.CreateStatement()); err != nil {
			return err
		}
		for _, row := range c.Seeds[t.Name()] {
			st, err := t.SeedStatement(row)
			if err != nil {
				return err
			}
			if _, err := h.Exec(ctx, st.SQL, st.Args...); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *TablesCallback) OnOpen(ctx context.Context, h *Handle) error {
	_, err := h.Exec(ctx, "PRAGMA foreign_keys = ON")
	return err
}

// TestOptions возвращает настройки для тестов: без логов и с коротким busy_timeout.
func TestOptions() Options {
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	opts.BusyTimeout = time.Second
	opts.ReadConns = 2
	return opts
}

// NewTestDatabase открывает файловую базу версии 1 во временной директории теста.
// База закрывается автоматически после завершения теста.
func NewTestDatabase(t testing.TB, cb Callback) *Database {
	t.Helper()
	return OpenTestDatabase(t, filepath.Join(t.TempDir(), "test.db"), 1, cb)
}

// OpenTestDatabase открывает базу по пути path; удобно для проверок повторного открытия.
func OpenTestDatabase(t testing.TB, path string, version int, cb Callback) *Database {
	t.Helper()

	db, err := Open(context.Background(), path, version, cb, TestOptions())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Close(ctx)
	})
	return db
}

// MustExec выполняет выражения в одной транзакции и падает при ошибке.
func MustExec(t testing.TB, db *Database, queries ...string) {
	t.Helper()

	err := db.WithTransaction(context.Background(), func(ctx context.Context, tx *Tx) error {
		for _, q := range queries {
			if _, err := tx.Exec(ctx, q); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to execute statements: %v", err)
	}
}

// CountRows возвращает количество строк в таблице.
func CountRows(t testing.TB, db *Database, table string) int {
	t.Helper()

	rs, err := db.Read(context.Background(), "SELECT COUNT(*) AS n FROM "+table)
	if err != nil {
		t.Fatalf("Failed to count rows in table %s: %v", table, err)
	}
	n, err := rs.Int64(0, "n")
	if err != nil {
		t.Fatalf("Failed to read row count of table %s: %v", table, err)
	}
	return int(n)
}

// TableExists проверяет существование таблицы.
func TableExists(t testing.TB, db *Database, table string) bool {
	t.Helper()

	rs, err := db.Read(context.Background(), "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table)
	if err != nil {
		t.Fatalf("Failed to check table existence: %v", err)
	}
	return rs.Len() > 0
}
