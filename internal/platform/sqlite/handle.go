package sqlite

import (
	"context"
	"database/sql"
)

// Mode - тег режима хендла
type Mode int

const (
	// ModeRead - хендл чтения, пул соединений с query_only
	ModeRead Mode = iota
	// ModeWrite - единственный хендл записи, принадлежит потоку записи
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

// conn объединяет методы, общие для *sql.DB и *sql.Conn.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Убедимся на этапе компиляции, что типы реализуют интерфейс
var (
	_ conn = (*sql.DB)(nil)
	_ conn = (*sql.Conn)(nil)
)

// ExecResult - результат выполнения выражения, прочитанный сразу после выполнения.
type ExecResult struct {
	LastInsertID int64
	RowsAffected int64
}

// Handle - тонкая синхронная обёртка над соединением.
// Хендл не переключает потоки: хендл записи вызывается только из потока записи
// (через Ticket), хендл чтения - из любой горутины.
type Handle struct {
	mode Mode
	conn conn
}

func newHandle(mode Mode, c conn) *Handle {
	return &Handle{mode: mode, conn: c}
}

// Mode возвращает режим хендла
func (h *Handle) Mode() Mode {
	return h.mode
}

// Exec выполняет выражение, не возвращающее строк.
func (h *Handle) Exec(ctx context.Context, query string, args ...any) (ExecResult, error) {
	res, err := h.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return ExecResult{}, translate("exec", err)
	}

	var out ExecResult
	// Драйвер заполняет оба значения при выполнении, ошибки здесь не ожидаются
	out.LastInsertID, _ = res.LastInsertId()
	out.RowsAffected, _ = res.RowsAffected()
	return out, nil
}

// ExecAll выполняет выражения по порядку и останавливается на первой ошибке.
func (h *Handle) ExecAll(ctx context.Context, queries ...string) error {
	for _, q := range queries {
		if _, err := h.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Query выполняет запрос и полностью читает результат.
// Строки не покидают горутину, выполнившую запрос.
func (h *Handle) Query(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	rows, err := h.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate("query", err)
	}
	defer rows.Close()

	rs, err := readResultSet(rows)
	if err != nil {
		return nil, translate("query", err)
	}
	return rs, nil
}
