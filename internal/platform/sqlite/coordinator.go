package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ticketKey используется как ключ для хранения удерживаемого Ticket в context.Context
type ticketKey struct{}

// request - запрос на захват потока записи в очереди координатора.
type request struct {
	granted   chan *Ticket  // небуферизованный: рукопожатие с ожидающим вызывающим
	rejected  chan struct{} // закрывается потоком записи, если координатор закрыт
	abandoned chan struct{} // закрывается вызывающим, если он перестал ждать
	enqueued  time.Time
}

// job - одно выражение, перенаправленное на поток записи.
type job struct {
	run      func(h *Handle) error
	err      error
	panicked any
	done     chan struct{}
}

// Ticket - исключительное право выполнять выражения на потоке записи.
// Пока Ticket удерживается, поток записи припаркован и выполняет только
// задания, переданные через Do. Release освобождает поток ровно один раз.
type Ticket struct {
	id       uuid.UUID
	acquired time.Time
	waited   time.Duration
	jobs     chan *job
	released chan struct{}
	freed    chan struct{} // закрывается потоком записи, когда он снова свободен
	once     sync.Once
}

// ID возвращает идентификатор тикета (для логов)
func (t *Ticket) ID() uuid.UUID {
	return t.id
}

// AcquiredAt возвращает момент выдачи тикета
func (t *Ticket) AcquiredAt() time.Time {
	return t.acquired
}

// Released сообщает, освобождён ли тикет
func (t *Ticket) Released() bool {
	select {
	case <-t.released:
		return true
	default:
		return false
	}
}

// Do выполняет fn на потоке записи и ждёт результата.
// Паника внутри fn перебрасывается в вызывающую горутину с исходным значением.
func (t *Ticket) Do(ctx context.Context, fn func(h *Handle) error) error {
	if t.Released() {
		return ErrTicketReleased
	}

	j := &job{run: fn, done: make(chan struct{})}
	select {
	case t.jobs <- j:
	case <-t.released:
		return ErrTicketReleased
	case <-ctx.Done():
		return translate("dispatch", ctx.Err())
	}

	// Выражение само учитывает ctx, поэтому ждём его завершения без select
	<-j.done
	if j.panicked != nil {
		panic(j.panicked)
	}
	return j.err
}

// Release освобождает поток записи и ждёт, пока поток снимет отметку занятости.
// После возврата Stats уже не видит тикет. Повторные вызовы ничего не делают.
// Нельзя вызывать из fn, переданной в Do.
func (t *Ticket) Release() {
	t.once.Do(func() { close(t.released) })
	<-t.freed
}

// CoordinatorStats - счётчики координатора.
type CoordinatorStats struct {
	Granted   uint64
	Abandoned uint64
	Rejected  uint64
	Queued    int64
	InFlight  bool
}

// Coordinator привязывает все транзакции к одному выделенному потоку записи.
// Поток записи - горутина, закреплённая за OS-потоком через runtime.LockOSThread,
// которая владеет единственным соединением записи. Запросы обслуживаются
// строго по одному в порядке поступления (FIFO очереди).
type Coordinator struct {
	writer  *Handle
	conn    *sql.Conn
	log     *slog.Logger
	metrics *coordinatorMetrics
	slow    time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan *request

	closing  atomic.Bool
	stopped  chan struct{}
	queued   atomic.Int64
	inFlight atomic.Bool

	granted   atomic.Uint64
	abandoned atomic.Uint64
	rejected  atomic.Uint64
}

// NewCoordinator запускает поток записи, владеющий соединением conn.
// Соединение закрывается потоком записи при остановке координатора.
func NewCoordinator(conn *sql.Conn, opts Options) *Coordinator {
	opts = opts.normalize()
	c := &Coordinator{
		writer:  newHandle(ModeWrite, conn),
		conn:    conn,
		log:     opts.Logger.With("component", "tx-coordinator"),
		metrics: newCoordinatorMetrics(opts.Registerer),
		slow:    opts.SlowTxThreshold,
		queue:   make(chan *request, opts.WriteQueueSize),
		stopped: make(chan struct{}),
	}
	c.metrics.observeQueue(c)
	go c.loop()
	return c
}

// Acquire захватывает поток записи. Ожидание прерывается отменой ctx;
// в этом случае поток записи не остаётся припаркованным.
// Если очередь закрыта или переполнена, возвращается ошибка вида Unavailable.
func (c *Coordinator) Acquire(ctx context.Context) (*Ticket, error) {
	if _, held := ctx.Value(ticketKey{}).(*Ticket); held {
		return nil, ErrNestedTransaction
	}
	if err := ctx.Err(); err != nil {
		return nil, translate("acquire", err)
	}

	req := &request{
		granted:   make(chan *Ticket),
		rejected:  make(chan struct{}),
		abandoned: make(chan struct{}),
		enqueued:  time.Now(),
	}
	if err := c.submit(req); err != nil {
		return nil, err
	}

	select {
	case t := <-req.granted:
		return t, nil
	case <-req.rejected:
		c.metrics.failure("closed")
		return nil, unavailable("acquire", "write executor is closed")
	case <-ctx.Done():
		close(req.abandoned)
		c.metrics.failure("abandoned")
		return nil, translate("acquire", ctx.Err())
	}
}

// submit ставит запрос в очередь без блокировки.
func (c *Coordinator) submit(req *request) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		c.rejected.Add(1)
		c.metrics.failure("closed")
		return unavailable("acquire", "write executor is closed")
	}

	c.queued.Add(1)
	select {
	case c.queue <- req:
		return nil
	default:
		c.queued.Add(-1)
		c.rejected.Add(1)
		c.metrics.failure("saturated")
		return unavailable("acquire", "write queue is full (%d pending)", cap(c.queue))
	}
}

// loop - тело потока записи.
func (c *Coordinator) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(c.stopped)
	defer func() {
		if err := c.conn.Close(); err != nil {
			c.log.Warn("failed to close write connection", "error", err)
		}
	}()

	for req := range c.queue {
		c.queued.Add(-1)
		if c.closing.Load() {
			c.rejected.Add(1)
			close(req.rejected)
			continue
		}
		c.serve(req)
	}
}

// serve выполняет рукопожатие и паркует поток до освобождения тикета.
func (c *Coordinator) serve(req *request) {
	t := &Ticket{
		id:       uuid.New(),
		jobs:     make(chan *job),
		released: make(chan struct{}),
		freed:    make(chan struct{}),
	}
	t.acquired = time.Now()
	t.waited = t.acquired.Sub(req.enqueued)

	select {
	case req.granted <- t:
	case <-req.abandoned:
		// Вызывающий ушёл до выдачи - поток сразу свободен
		c.abandoned.Add(1)
		c.log.Debug("transaction request abandoned before grant")
		return
	}

	c.granted.Add(1)
	c.inFlight.Store(true)
	c.metrics.grant(t.waited)
	c.log.Debug("transaction ticket granted", "ticket", t.id, "waited", t.waited)

	for {
		select {
		case j := <-t.jobs:
			c.run(t, j)
		case <-t.released:
			held := time.Since(t.acquired)
			c.inFlight.Store(false)
			c.metrics.release(held)
			close(t.freed)
			if c.slow > 0 && held > c.slow {
				c.log.Warn("slow transaction", "ticket", t.id, "held", held)
			} else {
				c.log.Debug("transaction ticket released", "ticket", t.id, "held", held)
			}
			return
		}
	}
}

func (c *Coordinator) run(t *Ticket, j *job) {
	defer close(j.done)

	// Задание могло прийти одновременно с освобождением тикета
	if t.Released() {
		j.err = ErrTicketReleased
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic on write thread", "ticket", t.id, "panic", fmt.Sprint(r))
			j.panicked = r
		}
	}()
	j.err = j.run(c.writer)
}

// Stats возвращает текущие счётчики координатора.
func (c *Coordinator) Stats() CoordinatorStats {
	return CoordinatorStats{
		Granted:   c.granted.Load(),
		Abandoned: c.abandoned.Load(),
		Rejected:  c.rejected.Load(),
		Queued:    c.queued.Load(),
		InFlight:  c.inFlight.Load(),
	}
}

// Close запрещает новые запросы, отклоняет ожидающие и ждёт остановки потока записи.
// Если тикет удерживается, Close ждёт его освобождения или отмены ctx.
// После остановки gauge-функции координатора снимаются с реестра.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.closing.Store(true)
		close(c.queue)
	}
	c.mu.Unlock()

	select {
	case <-c.stopped:
		c.metrics.unobserveQueue()
		return nil
	case <-ctx.Done():
		return translate("close", ctx.Err())
	}
}

// withTicket сохраняет удерживаемый тикет в контексте, чтобы распознать вложенный захват.
func withTicket(ctx context.Context, t *Ticket) context.Context {
	return context.WithValue(ctx, ticketKey{}, t)
}
