package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	_ "modernc.org/sqlite" // SQLite драйвер
)

// TxLockMode определяет режим блокировки транзакций SQLite
type TxLockMode string

const (
	// TxLockDeferred - откладывает блокировку до первого чтения/записи (по умолчанию SQLite)
	TxLockDeferred TxLockMode = "DEFERRED"
	// TxLockImmediate - немедленно захватывает RESERVED блокировку для избежания SQLITE_BUSY при записи
	TxLockImmediate TxLockMode = "IMMEDIATE"
	// TxLockExclusive - немедленно захватывает EXCLUSIVE блокировку
	TxLockExclusive TxLockMode = "EXCLUSIVE"
)

// Options содержит настройки для базы данных.
type Options struct {
	// ReadConns - размер пула соединений для чтения
	ReadConns int
	// ConnMaxIdleTime - максимальное время простоя соединения чтения
	ConnMaxIdleTime time.Duration
	// PingTimeout - таймаут для проверки соединения при открытии БД
	PingTimeout time.Duration
	// WALMode - использовать ли WAL режим (чтение параллельно с записью)
	WALMode bool
	// BusyTimeout - таймаут ожидания при SQLITE_BUSY
	BusyTimeout time.Duration
	// TxLockMode - режим блокировки для новых транзакций
	TxLockMode TxLockMode
	// WriteQueueSize - размер очереди запросов на поток записи
	WriteQueueSize int
	// SlowTxThreshold - транзакции дольше порога логируются с уровнем Warn (0 - отключено)
	SlowTxThreshold time.Duration
	// Logger - логгер; по умолчанию slog.Default()
	Logger *slog.Logger
	// Registerer - реестр метрик Prometheus; nil отключает метрики
	Registerer prometheus.Registerer
}

// DefaultOptions возвращает настройки по умолчанию, оптимизированные для embedded использования.
func DefaultOptions() Options {
	return Options{
		ReadConns:       4,
		ConnMaxIdleTime: 10 * time.Minute,
		PingTimeout:     5 * time.Second,
		WALMode:         true,
		BusyTimeout:     5 * time.Second,
		TxLockMode:      TxLockImmediate, // писатель один, поэтому RESERVED берём сразу
		WriteQueueSize:  100,
		SlowTxThreshold: 500 * time.Millisecond,
	}
}

func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.ReadConns <= 0 {
		o.ReadConns = def.ReadConns
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = def.PingTimeout
	}
	if o.TxLockMode == "" {
		o.TxLockMode = def.TxLockMode
	}
	if o.WriteQueueSize <= 0 {
		o.WriteQueueSize = def.WriteQueueSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// buildDSN строит DSN строку для драйвера modernc.
// PRAGMA из параметров _pragma выполняются первыми на каждом новом соединении,
// поэтому внешние ключи включены на всех соединениях пула, а не только на первом.
func buildDSN(dbPath string, mode Mode, opts Options) string {
	params := []string{"_pragma=foreign_keys(1)"}

	if opts.BusyTimeout > 0 {
		params = append(params, fmt.Sprintf("_pragma=busy_timeout(%d)", opts.BusyTimeout.Milliseconds()))
	}

	// Соединения чтения физически не могут писать
	if mode == ModeRead {
		params = append(params, "_pragma=query_only(1)")
	}

	return dbPath + "?" + strings.Join(params, "&")
}

// openPool открывает пул соединений в указанном режиме и проверяет его ping-ом.
func openPool(ctx context.Context, dbPath string, mode Mode, opts Options) (*sql.DB, error) {
	db, err := sql.Open("sqlite", buildDSN(dbPath, mode, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	switch mode {
	case ModeWrite:
		// Единственное соединение записи живёт столько же, сколько база
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	default:
		db.SetMaxOpenConns(opts.ReadConns)
		db.SetMaxIdleConns(opts.ReadConns)
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, translate("open", err)
	}

	return db, nil
}

// ensureDir создает директорию для БД если её нет
func ensureDir(dbPath string) error {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// writerPragmas возвращает PRAGMA, применяемые к соединению записи после открытия.
func writerPragmas(opts Options) []string {
	pragmas := make([]string, 0, 3)

	// Повторно утверждаем внешние ключи (идемпотентно)
	pragmas = append(pragmas, "PRAGMA foreign_keys = ON")

	// Режим журнала сохраняется в файле, поэтому достаточно соединения записи
	if opts.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	pragmas = append(pragmas, "PRAGMA synchronous = NORMAL")
	return pragmas
}
