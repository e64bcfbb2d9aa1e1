// Package diag serves read-only diagnostics of the wallet database over HTTP.
package diag

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"walletstore/internal/adapter/maintenance"
	"walletstore/internal/platform/sqlite"
	"walletstore/internal/shared"
)

// Database is the part of *sqlite.Database the endpoints read.
type Database interface {
	Path() string
	Ping(ctx context.Context) error
	Version(ctx context.Context) (int, error)
	Stats() sqlite.Stats
}

// JobStatuser reports maintenance job state.
type JobStatuser interface {
	Status() []maintenance.JobStatus
}

// Options configures the router.
type Options struct {
	Logger *slog.Logger
	// Gatherer backs /metrics; the endpoint is absent when nil
	Gatherer prometheus.Gatherer
	// Tables are rendered by /schema
	Tables []*sqlite.TableSchema
	// Jobs is optional
	Jobs JobStatuser
	// PingTimeout bounds /healthz (default 2s)
	PingTimeout time.Duration
}

type handlers struct {
	db   Database
	opts Options
}

// NewRouter builds the gin engine with /healthz, /stats, /schema and /metrics.
func NewRouter(db Database, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 2 * time.Second
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(opts.Logger))

	h := &handlers{db: db, opts: opts}
	r.GET("/healthz", h.health)
	r.GET("/stats", h.stats)
	r.GET("/schema", h.schema)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

func (h *handlers) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.PingTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"kind":   shared.KindOf(err).String(),
			"error":  err.Error(),
		})
		return
	}

	version, err := h.db.Version(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version})
}

type writerStats struct {
	Granted   uint64 `json:"granted"`
	Abandoned uint64 `json:"abandoned"`
	Rejected  uint64 `json:"rejected"`
	Queued    int64  `json:"queued"`
	InFlight  bool   `json:"in_flight"`
}

type readerStats struct {
	MaxOpen      int    `json:"max_open"`
	Open         int    `json:"open"`
	InUse        int    `json:"in_use"`
	Idle         int    `json:"idle"`
	WaitCount    int64  `json:"wait_count"`
	WaitDuration string `json:"wait_duration"`
}

type statsResponse struct {
	Path    string                  `json:"path"`
	Writer  writerStats             `json:"writer"`
	Readers readerStats             `json:"readers"`
	Jobs    []maintenance.JobStatus `json:"jobs,omitempty"`
}

func (h *handlers) stats(c *gin.Context) {
	st := h.db.Stats()
	resp := statsResponse{
		Path: h.db.Path(),
		Writer: writerStats{
			Granted:   st.Writer.Granted,
			Abandoned: st.Writer.Abandoned,
			Rejected:  st.Writer.Rejected,
			Queued:    st.Writer.Queued,
			InFlight:  st.Writer.InFlight,
		},
		Readers: readerStats{
			MaxOpen:      st.Readers.MaxOpenConnections,
			Open:         st.Readers.OpenConnections,
			InUse:        st.Readers.InUse,
			Idle:         st.Readers.Idle,
			WaitCount:    st.Readers.WaitCount,
			WaitDuration: st.Readers.WaitDuration.String(),
		},
	}
	if h.opts.Jobs != nil {
		resp.Jobs = h.opts.Jobs.Status()
	}
	c.JSON(http.StatusOK, resp)
}

type tableDDL struct {
	Name string `json:"name"`
	DDL  string `json:"ddl"`
}

func (h *handlers) schema(c *gin.Context) {
	version, err := h.db.Version(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	tables := make([]tableDDL, 0, len(h.opts.Tables))
	for _, t := range h.opts.Tables {
		tables = append(tables, tableDDL{Name: t.Name(), DDL: t.CreateStatement()})
	}
	c.JSON(http.StatusOK, gin.H{"version": version, "tables": tables})
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("diag request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Server runs the router until its context ends.
type Server struct {
	srv *http.Server
	log *slog.Logger
}

func NewServer(addr string, handler http.Handler, log *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Run serves until ctx is done, then shuts down with a 5s grace period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("diagnostics server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
