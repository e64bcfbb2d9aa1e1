package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"walletstore/internal/adapter/diag"
	"walletstore/internal/adapter/maintenance"
	"walletstore/internal/config"
	"walletstore/internal/platform/logger"
	"walletstore/internal/walletdb"
)

// App wires application components.
type App struct {
	cfg config.Config
	log *slog.Logger
	reg *prometheus.Registry
}

// New loads configuration and builds the logger.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg), nil
}

// NewWithConfig builds the App from an already loaded config.
func NewWithConfig(cfg config.Config) *App {
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "walletdb",
	})

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &App{cfg: cfg, log: log, reg: reg}
}

func (a *App) Config() config.Config {
	return a.cfg
}

func (a *App) Logger() *slog.Logger {
	return a.log
}

// Close flushes the log file.
func (a *App) Close() error {
	return logger.Close(a.log)
}

// OpenStore opens the wallet database described by the config.
func (a *App) OpenStore(ctx context.Context) (*walletdb.Store, error) {
	opts := walletdb.DefaultOptions()
	opts.SQLite.ReadConns = a.cfg.DB.ReadConns
	opts.SQLite.WriteQueueSize = a.cfg.DB.WriteQueue
	opts.SQLite.BusyTimeout = a.cfg.DB.BusyTimeout
	opts.SQLite.WALMode = a.cfg.DB.WAL
	opts.SQLite.SlowTxThreshold = 250 * time.Millisecond
	opts.SQLite.Logger = a.log
	opts.SQLite.Registerer = a.reg

	return walletdb.Open(ctx, a.cfg.DB.Path, opts)
}

// Run opens the store, starts maintenance and the diagnostics server, and
// blocks until ctx is done.
func (a *App) Run(ctx context.Context) (err error) {
	a.log.Info("starting", "db", a.cfg.DB.Path)

	store, err := a.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		err = errors.Join(err, store.Close(closeCtx))
	}()

	sched := maintenance.New(maintenance.Config{Logger: a.log, Registerer: a.reg})
	err = maintenance.Register(sched, store.DB(), maintenance.Schedules{
		Checkpoint: a.cfg.Maintenance.Checkpoint,
		Optimize:   a.cfg.Maintenance.Optimize,
		Integrity:  a.cfg.Maintenance.Integrity,
	})
	if err != nil {
		return err
	}
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		err = errors.Join(err, sched.Stop(stopCtx))
	}()

	if a.cfg.Diag.Addr == "" {
		<-ctx.Done()
		a.log.Info("shutting down")
		return nil
	}

	router := diag.NewRouter(store.DB(), diag.Options{
		Logger:   a.log,
		Gatherer: a.reg,
		Tables:   walletdb.Tables(),
		Jobs:     sched,
	})
	err = diag.NewServer(a.cfg.Diag.Addr, router, a.log).Run(ctx)
	a.log.Info("shutting down")
	return err
}

// Init creates the database file if needed and reports its schema version.
func (a *App) Init(ctx context.Context, w io.Writer) error {
	store, err := a.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	v, err := store.DB().Version(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s: schema version %d\n", store.DB().Path(), v)
	return err
}

// Check runs PRAGMA quick_check and prints the findings.
func (a *App) Check(ctx context.Context, w io.Writer) error {
	store, err := a.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	problems, err := maintenance.QuickCheck(ctx, store.DB())
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		_, err = fmt.Fprintln(w, "ok")
		return err
	}
	for _, p := range problems {
		fmt.Fprintln(w, p)
	}
	return fmt.Errorf("quick_check found %d problem(s)", len(problems))
}
