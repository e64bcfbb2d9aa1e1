package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"walletstore/internal/platform/sqlite"
	"walletstore/internal/shared"
)

// Имена стандартных задач
const (
	JobCheckpoint = "wal_checkpoint"
	JobOptimize   = "optimize"
	JobIntegrity  = "quick_check"
)

// Schedules - расписания стандартных задач; пустая строка отключает задачу.
type Schedules struct {
	Checkpoint string
	Optimize   string
	Integrity  string
}

// Register добавляет стандартные задачи обслуживания базы db.
func Register(s *Scheduler, db *sqlite.Database, sch Schedules) error {
	jobs := []struct {
		schedule string
		name     string
		job      JobFunc
		timeout  time.Duration
	}{
		{sch.Checkpoint, JobCheckpoint, Checkpoint(db, s.logger), time.Minute},
		{sch.Optimize, JobOptimize, Optimize(db), time.Minute},
		{sch.Integrity, JobIntegrity, IntegrityCheck(db), 10 * time.Minute},
	}

	for _, j := range jobs {
		if j.schedule == "" {
			continue
		}
		if err := s.AddJob(j.schedule, j.job, JobOptions{Name: j.name, Timeout: j.timeout}); err != nil {
			return err
		}
	}
	return nil
}

// Checkpoint переносит WAL в основной файл и обрезает журнал.
// Выполняется на потоке записи без транзакции, поэтому не конкурирует с записью.
func Checkpoint(db *sqlite.Database, logger *slog.Logger) JobFunc {
	return func(ctx context.Context) error {
		return db.Exclusive(ctx, func(ctx context.Context, h *sqlite.Handle) error {
			rs, err := h.Query(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
			if err != nil {
				return err
			}
			if rs.Len() == 0 {
				return nil
			}

			busy, _ := rs.Int64(0, "busy")
			pages, _ := rs.Int64(0, "log")
			moved, _ := rs.Int64(0, "checkpointed")
			logger.Debug("wal checkpoint", "busy", busy, "log_pages", pages, "checkpointed", moved)

			if busy != 0 {
				return shared.MarkKind(errors.New("wal checkpoint blocked by readers"), shared.KindBusy)
			}
			return nil
		})
	}
}

// Optimize обновляет статистику планировщика запросов SQLite.
func Optimize(db *sqlite.Database) JobFunc {
	return func(ctx context.Context) error {
		return db.Exclusive(ctx, func(ctx context.Context, h *sqlite.Handle) error {
			_, err := h.Exec(ctx, "PRAGMA optimize")
			return err
		})
	}
}

// IntegrityCheck выполняет PRAGMA quick_check на соединении чтения.
// Найденные повреждения возвращаются как ошибка вида Corrupt.
func IntegrityCheck(db *sqlite.Database) JobFunc {
	return func(ctx context.Context) error {
		problems, err := QuickCheck(ctx, db)
		if err != nil {
			return err
		}
		if len(problems) > 0 {
			return shared.MarkKind(fmt.Errorf("quick_check: %s", strings.Join(problems, "; ")), shared.KindCorrupt)
		}
		return nil
	}
}

// QuickCheck возвращает список проблем, найденных PRAGMA quick_check; пустой список означает "ok".
func QuickCheck(ctx context.Context, db *sqlite.Database) ([]string, error) {
	rs, err := db.Read(ctx, "PRAGMA quick_check")
	if err != nil {
		return nil, err
	}

	var problems []string
	for i := 0; i < rs.Len(); i++ {
		var line string
		if err := rs.Scan(i, &line); err != nil {
			return nil, err
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	return problems, nil
}
