package sqlite

import (
	"context"
	"errors"
	"fmt"

	sqlitedrv "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"walletstore/internal/shared"
)

var (
	// ErrNestedTransaction возвращается при попытке открыть транзакцию изнутри другой
	ErrNestedTransaction = fmt.Errorf("%w: nested transactions are not supported by SQLite", shared.ErrInvalid)
	// ErrTicketReleased возвращается при использовании Tx после освобождения потока записи
	ErrTicketReleased = fmt.Errorf("%w: transaction ticket already released", shared.ErrUnavailable)
	// ErrDowngrade возвращается, если версия файла БД больше целевой
	ErrDowngrade = fmt.Errorf("%w: cannot downgrade database", shared.ErrInvalid)
)

// StorageError описывает ошибку хранилища, приведённую к таксономии shared.Kind.
type StorageError struct {
	Kind shared.Kind
	// Op - операция, на которой произошла ошибка (exec, query, begin, acquire...)
	Op string
	// Code - исходный код ошибки SQLite (0, если ошибка не от движка)
	Code int
	Err  error
}

func (e *StorageError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("sqlite %s: %s (code %d): %v", e.Op, e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("sqlite %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is сопоставляет ошибку с sentinel-ошибкой её вида из пакета shared.
func (e *StorageError) Is(target error) bool {
	sentinel := shared.SentinelOf(e.Kind)
	return sentinel != nil && target == sentinel
}

// Temporary сообщает, имеет ли смысл повторить операцию (только SQLITE_BUSY/LOCKED).
func (e *StorageError) Temporary() bool {
	return e.Kind == shared.KindBusy
}

// IsBusy проверяет, является ли ошибка SQLITE_BUSY/SQLITE_LOCKED.
func IsBusy(err error) bool {
	return shared.IsBusy(err)
}

// IsConstraint проверяет, является ли ошибка нарушением ограничения.
func IsConstraint(err error) bool {
	return shared.IsConstraint(err)
}

// translate приводит ошибку драйвера к StorageError. Никогда не скрывает исходную ошибку.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}

	// Уже переведённые ошибки не оборачиваем повторно
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return &StorageError{Kind: shared.KindCanceled, Op: op, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &StorageError{Kind: shared.KindTimeout, Op: op, Err: err}
	}

	var drvErr *sqlitedrv.Error
	if errors.As(err, &drvErr) {
		code := drvErr.Code()
		return &StorageError{Kind: kindFromCode(code), Op: op, Code: code, Err: err}
	}

	return &StorageError{Kind: shared.KindInvalid, Op: op, Err: err}
}

// kindFromCode отображает код SQLite (в том числе расширенный) на вид ошибки.
func kindFromCode(code int) shared.Kind {
	// Младший байт расширенного кода - основной код
	switch code & 0xff {
	case sqlitelib.SQLITE_CONSTRAINT:
		return shared.KindConstraint
	case sqlitelib.SQLITE_BUSY, sqlitelib.SQLITE_LOCKED:
		return shared.KindBusy
	case sqlitelib.SQLITE_CORRUPT, sqlitelib.SQLITE_NOTADB:
		return shared.KindCorrupt
	case sqlitelib.SQLITE_IOERR, sqlitelib.SQLITE_FULL, sqlitelib.SQLITE_CANTOPEN, sqlitelib.SQLITE_PERM:
		return shared.KindIO
	case sqlitelib.SQLITE_READONLY:
		// Запись через соединение чтения (query_only) - ошибка вызывающего, а не диска
		return shared.KindInvalid
	default:
		return shared.KindInvalid
	}
}

func unavailable(op string, format string, args ...any) error {
	return &StorageError{Kind: shared.KindUnavailable, Op: op, Err: fmt.Errorf(format, args...)}
}
