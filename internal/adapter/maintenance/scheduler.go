package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

// JobFunc - функция обслуживающей задачи.
type JobFunc func(ctx context.Context) error

// JobOptions содержит опции задачи.
type JobOptions struct {
	Name string
	// Timeout - максимальное время выполнения (0 - без ограничения)
	Timeout time.Duration
}

// JobStatus - снимок состояния задачи для диагностики.
type JobStatus struct {
	Name         string        `json:"name"`
	Schedule     string        `json:"schedule"`
	Runs         uint64        `json:"runs"`
	Failures     uint64        `json:"failures"`
	LastRun      time.Time     `json:"last_run,omitzero"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
	Next         time.Time     `json:"next,omitzero"`
}

type jobWrapper struct {
	job     JobFunc
	options JobOptions
	entry   cron.EntryID
	running sync.Mutex

	mu     sync.Mutex
	status JobStatus
}

// cronLogger адаптирует slog к интерфейсу логгера cron.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}

// Config содержит конфигурацию планировщика.
type Config struct {
	Logger *slog.Logger
	// Registerer - реестр метрик; nil отключает метрики
	Registerer prometheus.Registerer
	// Location - часовой пояс расписаний; по умолчанию time.Local
	Location *time.Location
}

// Scheduler запускает задачи обслуживания базы по cron-расписанию.
// Выполнение одной и той же задачи никогда не перекрывается: если предыдущий
// запуск не закончился, очередной пропускается.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	metrics *jobMetrics

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]*jobWrapper

	startOnce sync.Once
	stopOnce  sync.Once
}

// New создает планировщик. Расписания в стандартном 5-полевом формате
// или дескрипторы (@hourly, @every 10m).
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "maintenance")

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		metrics: newJobMetrics(cfg.Registerer),
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]*jobWrapper),
	}
}

// AddJob регистрирует задачу. Имя обязательно и должно быть уникальным.
func (s *Scheduler) AddJob(schedule string, job JobFunc, opts JobOptions) error {
	if opts.Name == "" {
		return errors.New("maintenance: job name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[opts.Name]; exists {
		return fmt.Errorf("maintenance: job %q already registered", opts.Name)
	}

	w := &jobWrapper{
		job:     job,
		options: opts,
		status:  JobStatus{Name: opts.Name, Schedule: schedule},
	}
	id, err := s.cron.AddFunc(schedule, func() { s.run(s.ctx, w) })
	if err != nil {
		return fmt.Errorf("maintenance: job %q: invalid schedule %q: %w", opts.Name, schedule, err)
	}
	w.entry = id
	s.jobs[opts.Name] = w

	s.logger.Info("maintenance job added", "name", opts.Name, "schedule", schedule)
	return nil
}

// RunNow выполняет задачу немедленно и синхронно, в обход расписания.
// Если задача уже выполняется, ждет её завершения.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	w, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("maintenance: unknown job %q", name)
	}
	return s.run(ctx, w)
}

// Status возвращает состояние всех задач, отсортированное по имени.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, w := range s.jobs {
		w.mu.Lock()
		st := w.status
		w.mu.Unlock()
		st.Next = s.cron.Entry(w.entry).Next
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start запускает планировщик.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.logger.Info("starting maintenance scheduler", "jobs", len(s.jobs))
		s.cron.Start()
	})
}

// Stop останавливает планировщик и ждет завершения выполняющихся задач,
// но не дольше, чем позволяет ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.cancel()
		cronCtx := s.cron.Stop()

		select {
		case <-cronCtx.Done():
			s.logger.Info("maintenance scheduler stopped")
		case <-ctx.Done():
			s.logger.Warn("maintenance scheduler stop deadline exceeded")
			err = ctx.Err()
		}
	})
	return err
}

// run выполняет задачу с учетом таймаута и обновляет её статус.
func (s *Scheduler) run(ctx context.Context, w *jobWrapper) (err error) {
	w.running.Lock()
	defer w.running.Unlock()

	if w.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.options.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		d := time.Since(start)
		w.record(start, d, err)
		s.metrics.observe(w.options.Name, d, err)

		if err != nil {
			s.logger.Error("maintenance job failed", "name", w.options.Name, "duration", d, "error", err)
		} else {
			s.logger.Debug("maintenance job completed", "name", w.options.Name, "duration", d)
		}
	}()

	return w.job(ctx)
}

func (w *jobWrapper) record(start time.Time, d time.Duration, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.status.Runs++
	w.status.LastRun = start
	w.status.LastDuration = d
	w.status.LastError = ""
	if err != nil {
		w.status.Failures++
		w.status.LastError = err.Error()
	}
}
