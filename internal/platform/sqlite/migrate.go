package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"walletstore/internal/shared"
)

// Migration - шаг миграции схемы до версии Version.
type Migration struct {
	Version    int
	Statements []string
}

// Migrations - пошаговый мигратор. Каждый шаг выполняется в своей транзакции
// вместе с установкой user_version, поэтому прерванная миграция продолжается с последнего шага.
// Встраивается в Callback, чтобы тот реализовал Upgrader.
type Migrations []Migration

// Validate проверяет, что версии шагов положительны и не повторяются.
func (ms Migrations) Validate() error {
	seen := make(map[int]struct{}, len(ms))
	for _, m := range ms {
		if m.Version < 1 {
			return shared.Validationf("migration version must be positive, got %d", m.Version)
		}
		if _, dup := seen[m.Version]; dup {
			return shared.Validationf("duplicate migration version %d", m.Version)
		}
		seen[m.Version] = struct{}{}
	}
	return nil
}

// OnUpgrade применяет шаги с версиями из интервала (from, to] по возрастанию.
func (ms Migrations) OnUpgrade(ctx context.Context, h *Handle, from, to int) error {
	if err := ms.Validate(); err != nil {
		return err
	}

	steps := make([]Migration, 0, len(ms))
	for _, m := range ms {
		if m.Version > from && m.Version <= to {
			steps = append(steps, m)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Version < steps[j].Version })

	for _, step := range steps {
		if err := applyStep(ctx, h, step); err != nil {
			return fmt.Errorf("migration %d: %w", step.Version, err)
		}
	}
	return nil
}

func applyStep(ctx context.Context, h *Handle, step Migration) error {
	if _, err := h.Exec(ctx, "BEGIN IMMEDIATE"); err != nil {
		return err
	}

	err := h.ExecAll(ctx, step.Statements...)
	if err == nil {
		err = setUserVersion(ctx, h, step.Version)
	}
	if err == nil {
		_, err = h.Exec(ctx, "COMMIT")
	}
	if err != nil {
		_, _ = h.Exec(context.WithoutCancel(ctx), "ROLLBACK")
		return err
	}
	return nil
}

// FileMigrator реализует Upgrader через golang-migrate: применяет пронумерованные
// SQL-файлы (1_init.up.sql, 2_add_column.up.sql ...) до целевой версии.
//
// golang-migrate открывает своё соединение. Это безопасно, потому что OnUpgrade
// вызывается на потоке записи, пока соединение записи не держит транзакцию.
type FileMigrator struct {
	// Path - путь к файлу базы
	Path string
	// Source - файловая система с миграциями (например, embed.FS); если nil, используется Dir на диске
	Source fs.FS
	// Dir - директория миграций внутри Source или на диске
	Dir string
	// Logger - логгер для сообщений golang-migrate; nil отключает их
	Logger *slog.Logger
}

// OnUpgrade мигрирует файл до версии to.
// Если golang-migrate ещё не вёл учёт версий, текущая версия from фиксируется как базовая,
// чтобы файлы, уже покрытые OnCreate, не применялись повторно.
func (fm FileMigrator) OnUpgrade(ctx context.Context, _ *Handle, from, to int) error {
	m, err := fm.open()
	if err != nil {
		return err
	}
	defer func() {
		_, _ = m.Close()
	}()

	if _, _, err := m.Version(); errors.Is(err, migrate.ErrNilVersion) && from > 0 {
		if err := m.Force(from); err != nil {
			return fmt.Errorf("failed to baseline migrations at version %d: %w", from, err)
		}
	}

	// Отмена ctx останавливает golang-migrate между файлами
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			select {
			case m.GracefulStop <- true:
			default:
			}
		case <-stop:
		}
	}()

	if err := m.Migrate(uint(to)); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations up to %d: %w", to, err)
	}
	return ctx.Err()
}

// Version возвращает версию, записанную golang-migrate, и флаг dirty.
// Если миграции ещё не применялись, возвращается 0.
func (fm FileMigrator) Version() (uint, bool, error) {
	m, err := fm.open()
	if err != nil {
		return 0, false, err
	}
	defer func() {
		_, _ = m.Close()
	}()

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

func (fm FileMigrator) open() (*migrate.Migrate, error) {
	databaseURL, err := BuildMigrateURL(fm.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to build database URL: %w", err)
	}

	var m *migrate.Migrate
	if fm.Source != nil {
		var src source.Driver
		src, err = iofs.New(fm.Source, fm.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open migrations source: %w", err)
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, databaseURL)
	} else {
		m, err = migrate.New("file://"+filepath.ToSlash(fm.Dir), databaseURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if fm.Logger != nil {
		m.Log = migrateLogger{log: fm.Logger}
	}
	return m, nil
}

// migrateLogger перенаправляет сообщения golang-migrate в slog.
type migrateLogger struct {
	log *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l migrateLogger) Verbose() bool {
	return false
}

// BuildMigrateURL строит корректный URL для golang-migrate с учётом особенностей ОС.
// На Windows для путей вида "C:\..." создаёт "sqlite:///C:/...",
// на Unix для "/..." создаёт "sqlite:///...".
func BuildMigrateURL(dbPath string) (string, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	urlPath := filepath.ToSlash(absPath)

	// C:/path -> /C:/path для правильного URL
	if runtime.GOOS == "windows" && len(urlPath) >= 2 && urlPath[1] == ':' {
		urlPath = "/" + urlPath
	}
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}

	return "sqlite://" + urlPath, nil
}
