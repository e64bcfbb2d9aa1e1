package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"walletstore/internal/shared"
)

// Callback - точка расширения жизненного цикла базы.
// Все методы вызываются на потоке записи с хендлом записи.
type Callback interface {
	// OnCreate создаёт схему свежей базы (user_version == 0). Выполняется внутри транзакции.
	OnCreate(ctx context.Context, h *Handle) error
	// OnOpen вызывается при каждом открытии, после создания или миграции.
	OnOpen(ctx context.Context, h *Handle) error
}

// Upgrader - необязательное расширение Callback для миграции схемы с версии from на to.
type Upgrader interface {
	OnUpgrade(ctx context.Context, h *Handle, from, to int) error
}

// Stats - состояние базы данных.
type Stats struct {
	Writer  CoordinatorStats
	Readers sql.DBStats
}

// Database - открытая база: один поток записи и пул соединений чтения.
type Database struct {
	path    string
	version int
	opts    Options
	log     *slog.Logger

	writeDB *sql.DB
	readDB  *sql.DB
	reader  *Handle
	coord   *Coordinator

	closeOnce sync.Once
	closeErr  error
}

// Open открывает (или создаёт) базу по пути path и приводит её схему к версии version.
//
// Свежая база создаётся через cb.OnCreate в одной транзакции вместе с установкой версии,
// поэтому неудачное создание не оставляет полусозданную схему.
// Более новая версия файла, чем version, приводит к ErrDowngrade.
func Open(ctx context.Context, path string, version int, cb Callback, opts Options) (*Database, error) {
	if path == "" {
		return nil, shared.Validationf("database path is empty")
	}
	if version < 1 {
		return nil, shared.Validationf("database version must be positive, got %d", version)
	}
	if cb == nil {
		return nil, shared.Validationf("database callback is nil")
	}

	opts = opts.normalize()
	log := opts.Logger.With("component", "sqlite", "path", path)

	if err := ensureDir(path); err != nil {
		return nil, &StorageError{Kind: shared.KindIO, Op: "open", Err: err}
	}

	writeDB, err := openPool(ctx, path, ModeWrite, opts)
	if err != nil {
		return nil, err
	}
	conn, err := writeDB.Conn(ctx)
	if err != nil {
		_ = writeDB.Close()
		return nil, translate("open", err)
	}

	d := &Database{
		path:    path,
		version: version,
		opts:    opts,
		log:     log,
		writeDB: writeDB,
		coord:   NewCoordinator(conn, opts),
	}

	if err := d.setup(ctx, cb); err != nil {
		_ = d.closeAll(ctx)
		return nil, err
	}

	d.readDB, err = openPool(ctx, path, ModeRead, opts)
	if err != nil {
		_ = d.closeAll(ctx)
		return nil, err
	}
	d.reader = newHandle(ModeRead, d.readDB)

	log.Debug("database opened", "version", version)
	return d, nil
}

// setup выполняет настройку соединения, создание/миграцию и OnOpen на потоке записи.
func (d *Database) setup(ctx context.Context, cb Callback) error {
	ticket, err := d.coord.Acquire(ctx)
	if err != nil {
		return err
	}
	defer ticket.Release()

	cbCtx := withTicket(ctx, ticket)
	return ticket.Do(ctx, func(h *Handle) error {
		if err := h.ExecAll(ctx, writerPragmas(d.opts)...); err != nil {
			return fmt.Errorf("failed to apply pragmas: %w", err)
		}

		current, err := userVersion(ctx, h)
		if err != nil {
			return err
		}

		switch {
		case current == 0:
			if err := d.create(cbCtx, h, cb); err != nil {
				return err
			}
		case current < d.version:
			if err := d.upgrade(cbCtx, h, cb, current); err != nil {
				return err
			}
		case current > d.version:
			return fmt.Errorf("%w: file is at version %d, requested %d", ErrDowngrade, current, d.version)
		}

		if err := cb.OnOpen(cbCtx, h); err != nil {
			return fmt.Errorf("open callback failed: %w", err)
		}
		return nil
	})
}

func (d *Database) create(ctx context.Context, h *Handle, cb Callback) error {
	if _, err := h.Exec(ctx, "BEGIN IMMEDIATE"); err != nil {
		return err
	}

	err := cb.OnCreate(ctx, h)
	if err == nil {
		err = setUserVersion(ctx, h, d.version)
	}
	if err == nil {
		_, err = h.Exec(ctx, "COMMIT")
	}
	if err != nil {
		// Откат возвращает файл к user_version = 0, следующий Open начнёт заново
		if _, rbErr := h.Exec(context.WithoutCancel(ctx), "ROLLBACK"); rbErr != nil {
			d.log.Warn("rollback after failed create", "error", rbErr)
		}
		return fmt.Errorf("failed to create database: %w", err)
	}

	d.log.Info("database created", "version", d.version)
	return nil
}

func (d *Database) upgrade(ctx context.Context, h *Handle, cb Callback, from int) error {
	if up, ok := cb.(Upgrader); ok {
		if err := up.OnUpgrade(ctx, h, from, d.version); err != nil {
			return fmt.Errorf("failed to upgrade database from %d to %d: %w", from, d.version, err)
		}
	}
	if err := setUserVersion(ctx, h, d.version); err != nil {
		return err
	}

	d.log.Info("database upgraded", "from", from, "to", d.version)
	return nil
}

func userVersion(ctx context.Context, h *Handle) (int, error) {
	rs, err := h.Query(ctx, "PRAGMA user_version")
	if err != nil {
		return 0, err
	}
	if rs.Len() == 0 {
		return 0, nil
	}
	var v int
	if err := rs.Scan(0, &v); err != nil {
		return 0, translate("user_version", err)
	}
	return v, nil
}

// PRAGMA не принимает параметры, версия подставляется как число
func setUserVersion(ctx context.Context, h *Handle, v int) error {
	_, err := h.Exec(ctx, fmt.Sprintf("PRAGMA user_version = %d", v))
	return err
}

// Path возвращает путь к файлу базы
func (d *Database) Path() string {
	return d.path
}

// Reader возвращает хендл чтения. Его можно использовать из любой горутины.
func (d *Database) Reader() *Handle {
	return d.reader
}

// Read выполняет запрос на хендле чтения.
// Видит только закоммиченные данные; незакоммиченные изменения транзакции читаются через Tx.Query.
func (d *Database) Read(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	return d.reader.Query(ctx, query, args...)
}

// Version читает текущую версию схемы из файла.
func (d *Database) Version(ctx context.Context) (int, error) {
	return userVersion(ctx, d.reader)
}

// Ping проверяет доступность базы через пул чтения.
func (d *Database) Ping(ctx context.Context) error {
	if err := d.readDB.PingContext(ctx); err != nil {
		return translate("ping", err)
	}
	return nil
}

// Stats возвращает счётчики потока записи и пула чтения.
func (d *Database) Stats() Stats {
	return Stats{
		Writer:  d.coord.Stats(),
		Readers: d.readDB.Stats(),
	}
}

// Close останавливает поток записи и закрывает все соединения.
// Повторные вызовы возвращают результат первого.
func (d *Database) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.closeErr = d.closeAll(ctx)
		d.log.Debug("database closed")
	})
	return d.closeErr
}

func (d *Database) closeAll(ctx context.Context) error {
	var errs []error
	if err := d.coord.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := d.writeDB.Close(); err != nil {
		errs = append(errs, translate("close", err))
	}
	if d.readDB != nil {
		if err := d.readDB.Close(); err != nil {
			errs = append(errs, translate("close", err))
		}
	}
	return errors.Join(errs...)
}
