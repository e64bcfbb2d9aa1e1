package sqlite

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Tx - транзакция, привязанная к потоку записи.
// Все выражения Tx перенаправляются на поток записи через удерживаемый тикет.
// После завершения WithTransaction любые вызовы Tx возвращают ErrTicketReleased.
type Tx struct {
	ticket     *Ticket
	savepoints atomic.Int64
}

// Ticket возвращает тикет, удерживаемый транзакцией
func (tx *Tx) Ticket() *Ticket {
	return tx.ticket
}

// Exec выполняет выражение в транзакции.
func (tx *Tx) Exec(ctx context.Context, query string, args ...any) (ExecResult, error) {
	var res ExecResult
	err := tx.ticket.Do(ctx, func(h *Handle) error {
		var err error
		res, err = h.Exec(ctx, query, args...)
		return err
	})
	return res, err
}

// ExecStatement выполняет Statement в транзакции.
func (tx *Tx) ExecStatement(ctx context.Context, st Statement) (ExecResult, error) {
	return tx.Exec(ctx, st.SQL, st.Args...)
}

// Query выполняет запрос в транзакции и видит её незакоммиченные изменения.
func (tx *Tx) Query(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	var rs *ResultSet
	err := tx.ticket.Do(ctx, func(h *Handle) error {
		var err error
		rs, err = h.Query(ctx, query, args...)
		return err
	})
	return rs, err
}

// Savepoint выполняет fn внутри SAVEPOINT.
// При ошибке fn изменения откатываются до savepoint, а внешняя транзакция продолжается.
func (tx *Tx) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	name := fmt.Sprintf("sp_%d", tx.savepoints.Add(1))

	if _, err := tx.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to create savepoint %s: %w", name, err)
	}

	if err := fn(ctx); err != nil {
		// Откат должен пройти даже при отменённом ctx
		rbCtx := context.WithoutCancel(ctx)
		if _, rbErr := tx.Exec(rbCtx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("failed to rollback to savepoint %s: %v (original error: %w)", name, rbErr, err)
		}
		_, _ = tx.Exec(rbCtx, "RELEASE SAVEPOINT "+name)
		return err
	}

	if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to release savepoint %s: %w", name, err)
	}
	return nil
}

// WithTransaction выполняет fn внутри транзакции на потоке записи.
//
// Поток записи захватывается до BEGIN и освобождается только после COMMIT или ROLLBACK,
// поэтому выражения разных транзакций никогда не перемежаются.
// Если fn возвращает ошибку или паникует, транзакция откатывается, а тикет освобождается.
// Вложенный вызов из fn возвращает ErrNestedTransaction.
func (d *Database) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	ticket, err := d.coord.Acquire(ctx)
	if err != nil {
		return err
	}
	defer ticket.Release()

	tx := &Tx{ticket: ticket}
	if _, err := tx.Exec(ctx, "BEGIN "+string(d.opts.TxLockMode)); err != nil {
		return err
	}

	done := false
	defer func() {
		if done {
			return
		}
		// Выполняется и при панике fn: откатываем до освобождения тикета
		if _, rbErr := tx.Exec(context.WithoutCancel(ctx), "ROLLBACK"); rbErr != nil {
			d.log.Debug("rollback failed", "ticket", ticket.ID(), "error", rbErr)
		}
	}()

	if err := fn(withTicket(ctx, ticket), tx); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "COMMIT"); err != nil {
		return err
	}
	done = true
	return nil
}

// InTransaction - обобщённый вариант WithTransaction, возвращающий значение из fn.
func InTransaction[T any](ctx context.Context, d *Database, fn func(ctx context.Context, tx *Tx) (T, error)) (T, error) {
	var out T
	err := d.WithTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		v, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Exclusive удерживает поток записи без открытия транзакции и выполняет fn прямо на нём.
// Нужен для выражений, которые нельзя выполнять внутри транзакции
// (PRAGMA wal_checkpoint, VACUUM, PRAGMA optimize).
func (d *Database) Exclusive(ctx context.Context, fn func(ctx context.Context, h *Handle) error) error {
	ticket, err := d.coord.Acquire(ctx)
	if err != nil {
		return err
	}
	defer ticket.Release()

	inner := withTicket(ctx, ticket)
	return ticket.Do(ctx, func(h *Handle) error {
		return fn(inner, h)
	})
}
