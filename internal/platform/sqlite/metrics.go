package sqlite

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "walletstore"

// coordinatorMetrics - метрики потока записи. Нулевой указатель означает, что метрики отключены.
// Счётчики общие для всех баз, открытых с одним реестром; gauge-функции принадлежат
// конкретному координатору и живут до его закрытия.
type coordinatorMetrics struct {
	reg      prometheus.Registerer
	granted  prometheus.Counter
	failures *prometheus.CounterVec
	wait     prometheus.Histogram
	hold     prometheus.Histogram

	mu     sync.Mutex
	gauges []prometheus.Collector
}

// register регистрирует c или возвращает уже зарегистрированный в reg коллектор
// с тем же описанием.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func newCoordinatorMetrics(reg prometheus.Registerer) *coordinatorMetrics {
	if reg == nil {
		return nil
	}
	buckets := []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}

	return &coordinatorMetrics{
		reg: reg,
		granted: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "writer",
			Name:      "tickets_granted_total",
			Help:      "Total number of write thread tickets granted.",
		})),
		failures: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "writer",
			Name:      "ticket_acquire_failures_total",
			Help:      "Ticket acquisitions that did not reach the write thread.",
		}, []string{"reason"})),
		wait: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "writer",
			Name:      "ticket_wait_seconds",
			Help:      "Time between enqueueing a request and the grant.",
			Buckets:   buckets,
		})),
		hold: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "writer",
			Name:      "ticket_hold_seconds",
			Help:      "Time a ticket kept the write thread parked.",
			Buckets:   buckets,
		})),
	}
}

// observeQueue регистрирует gauge-функции, читающие состояние координатора.
// Если в реестре уже есть gauge другой открытой базы, он остаётся на месте.
func (m *coordinatorMetrics) observeQueue(c *Coordinator) {
	if m == nil {
		return
	}
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "writer",
			Name:      "queue_depth",
			Help:      "Requests waiting for the write thread.",
		}, func() float64 { return float64(c.queued.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "writer",
			Name:      "in_flight",
			Help:      "1 while a ticket holds the write thread.",
		}, func() float64 {
			if c.inFlight.Load() {
				return 1
			}
			return 0
		}),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range gauges {
		if err := m.reg.Register(g); err != nil {
			c.log.Debug("writer gauge not registered", "error", err)
			continue
		}
		m.gauges = append(m.gauges, g)
	}
}

// unobserveQueue снимает gauge-функции закрытого координатора.
func (m *coordinatorMetrics) unobserveQueue() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.gauges {
		m.reg.Unregister(g)
	}
	m.gauges = nil
}

func (m *coordinatorMetrics) grant(waited time.Duration) {
	if m == nil {
		return
	}
	m.granted.Inc()
	m.wait.Observe(waited.Seconds())
}

func (m *coordinatorMetrics) release(held time.Duration) {
	if m == nil {
		return
	}
	m.hold.Observe(held.Seconds())
}

func (m *coordinatorMetrics) failure(reason string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(reason).Inc()
}
