package exchange

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/orchestra/core/command"
	"github.com/dmitrymomot/orchestra/core/logger"
	"github.com/dmitrymomot/orchestra/pkg/async"
)

// State is the exchange life cycle.
type State uint8

const (
	// StateStopped rejects messages.
	StateStopped State = iota
	// StateActive runs the processing loops.
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "ACTIVE"
	}
	return "STOPPED"
}

// Exchange executes contexts through a requests queue and a responses queue.
// Senders block on a watchdog keyed by the message correlation id until the
// response arrives or the wait times out. Exchange implements
// command.Executor, so macros can run nested commands through it.
//
// Example:
//
//	ex := exchange.New(
//	    exchange.WithConfig(cfg),
//	    exchange.WithLogger(log),
//	)
//	if err := ex.Start(ctx); err != nil {
//	    return err
//	}
//	defer ex.Shutdown(context.Background())
//
//	c = ex.Do(ctx, c)
type Exchange struct {
	cfg       Config
	logger    *slog.Logger
	requests  Queue
	responses Queue
	metrics   *Metrics
	pool      *async.Pool
	ownsPool  bool
	watchdogs watchdogs

	mu       sync.Mutex
	active   atomic.Bool
	cancel   context.CancelFunc
	loops    *errgroup.Group
	loopsEnd chan struct{}

	sent      atomic.Uint64
	completed atomic.Uint64
	expired   atomic.Uint64
	rejected  atomic.Uint64
	executed  atomic.Uint64
}

// Option configures an Exchange.
type Option func(*Exchange)

// WithConfig sets the exchange configuration.
func WithConfig(cfg Config) Option {
	return func(e *Exchange) {
		e.cfg = cfg
	}
}

// WithLogger sets a custom logger for the exchange.
func WithLogger(log *slog.Logger) Option {
	return func(e *Exchange) {
		if log != nil {
			e.logger = log
		}
	}
}

// WithRequests sets the requests queue. Default: a memory queue.
func WithRequests(q Queue) Option {
	return func(e *Exchange) {
		e.requests = q
	}
}

// WithResponses sets the responses queue. Default: a memory queue.
func WithResponses(q Queue) Option {
	return func(e *Exchange) {
		e.responses = q
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Exchange) {
		e.metrics = m
	}
}

// WithPool sets the operational pool commands run on. The exchange does not
// stop a pool it did not create.
func WithPool(pool *async.Pool) Option {
	return func(e *Exchange) {
		e.pool = pool
	}
}

// New creates a stopped exchange.
func New(opts ...Option) *Exchange {
	e := &Exchange{
		cfg:    DefaultConfig(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.requests == nil {
		e.requests = NewMemoryQueue(e.cfg.QueueSize)
	}
	if e.responses == nil {
		e.responses = NewMemoryQueue(e.cfg.QueueSize)
	}
	return e
}

// Start moves the exchange from STOPPED to ACTIVE and starts the requests
// and responses loops. The loops keep running after ctx ends; use Shutdown.
func (e *Exchange) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active.Load() {
		return ErrAlreadyActive
	}

	if e.pool == nil || e.ownsPool {
		e.pool = async.NewPool(max(e.cfg.OperationalPoolSize, runtime.NumCPU()))
		e.ownsPool = true
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopping := func() bool { return !e.active.Load() }
	requests := NewProcessor("requests", e.requests, e.handleRequest,
		WithDispatcher(e.pool),
		WithStopCondition(stopping),
		WithProcessorLogger(e.logger))
	responses := NewProcessor("responses", e.responses, e.handleResponse,
		WithStopCondition(stopping),
		WithProcessorLogger(e.logger))

	loops := &errgroup.Group{}
	loops.Go(func() error { return requests.Run(loopCtx) })
	loops.Go(func() error { return responses.Run(loopCtx) })

	end := make(chan struct{})
	go func() {
		_ = loops.Wait()
		close(end)
	}()

	e.cancel = cancel
	e.loops = loops
	e.loopsEnd = end
	e.active.Store(true)

	e.logger.InfoContext(ctx, "exchange started", logger.Workers(e.pool.Workers()))
	return nil
}

// Shutdown moves the exchange to STOPPED. It wakes both loops with the empty
// message, waits for them, stops the operational pool and expires every
// pending watchdog. Messages still queued are not drained. Calling Shutdown
// on a stopped exchange does nothing.
func (e *Exchange) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active.Load() {
		return nil
	}
	e.active.Store(false)

	if _, ok := ctx.Deadline(); !ok && e.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
		defer cancel()
	}

	for name, q := range map[string]Queue{"requests": e.requests, "responses": e.responses} {
		if err := q.Put(ctx, Message{}); err != nil {
			e.logger.WarnContext(ctx, "failed to wake processing loop",
				logger.Queue(name),
				logger.Error(err))
		}
	}

	var shutdownErr error
	select {
	case <-e.loopsEnd:
	case <-ctx.Done():
		e.logger.WarnContext(ctx, "processing loops did not stop in time, cancelling")
		shutdownErr = ctx.Err()
	}
	e.cancel()
	<-e.loopsEnd

	if e.ownsPool {
		if err := e.pool.Stop(ctx); err != nil {
			e.logger.WarnContext(ctx, "operational pool did not stop in time", logger.Error(err))
			shutdownErr = err
		}
	}

	cause := fmt.Errorf("%w: exchange stopped", ErrNotActive)
	pending := e.watchdogs.clear()
	for _, w := range pending {
		if !w.claim() {
			// The waiter settles its own watchdog.
			w.expire(cause)
			continue
		}
		e.metrics.inFlight(-1)
		e.release(w, cause)
	}
	if len(pending) > 0 {
		e.logger.InfoContext(ctx, "expired pending watchdogs", logger.Count("watchdogs", len(pending)))
	}

	stats := e.Stats()
	e.logger.InfoContext(ctx, "exchange stopped",
		logger.Group("stats",
			slog.Uint64("sent", stats.Sent),
			slog.Uint64("completed", stats.Completed),
			slog.Uint64("expired", stats.Expired),
			slog.Uint64("rejected", stats.Rejected),
			slog.Uint64("executed", stats.Executed)))
	return shutdownErr
}

// State returns the exchange life cycle state.
func (e *Exchange) State() State {
	if e.active.Load() {
		return StateActive
	}
	return StateStopped
}

// ProcessActionCommand sends m and waits for its response. It returns the
// context of the response, or the original context marked FAIL with
// ErrTimeout when no response arrived within Config.WaitTimeout or before
// ctx ended. An error is returned only when m could not be sent.
func (e *Exchange) ProcessActionCommand(ctx context.Context, m Message) (*command.Context, error) {
	w, err := e.send(ctx, m, true)
	if err != nil {
		return m.Context, err
	}
	return e.await(ctx, w), nil
}

// Send registers a watchdog for m and puts it on the requests queue without
// waiting. It returns false when m is invalid, its correlation id is already
// in flight or the exchange is not active. A message that nobody Receives
// within Config.WaitTimeout is dropped and its correlation id released.
func (e *Exchange) Send(ctx context.Context, m Message) bool {
	w, err := e.send(ctx, m, false)
	if err != nil {
		return false
	}
	if e.cfg.WaitTimeout > 0 {
		time.AfterFunc(e.cfg.WaitTimeout, func() { e.abandon(w) })
	}
	return true
}

func (e *Exchange) send(ctx context.Context, m Message, claimed bool) (*Watchdog, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	w, ok := e.watchdogs.register(m, claimed)
	if !ok {
		e.rejected.Add(1)
		e.metrics.observe(m.Direction, OutcomeRejected)
		return nil, fmt.Errorf("%w: %s", ErrDuplicateCorrelation, m.CorrelationID)
	}

	if !e.active.Load() {
		e.reject(w)
		return nil, ErrNotActive
	}

	if err := e.requests.Put(ctx, m); err != nil {
		e.reject(w)
		return nil, fmt.Errorf("failed to enqueue %s: %w", m.CorrelationID, err)
	}

	e.sent.Add(1)
	e.metrics.inFlight(1)
	e.logger.DebugContext(ctx, "message sent",
		logger.CorrelationID(m.CorrelationID),
		logger.Direction(m.Direction),
		logger.CommandID(m.Context.Command().ID()))
	return w, nil
}

func (e *Exchange) reject(w *Watchdog) {
	e.watchdogs.remove(w)
	e.rejected.Add(1)
	e.metrics.observe(w.request.Direction, OutcomeRejected)
}

// abandon releases a watchdog registered by Send that no one received.
func (e *Exchange) abandon(w *Watchdog) {
	if !w.claim() {
		return
	}
	e.watchdogs.remove(w)
	e.metrics.inFlight(-1)
	e.release(w, fmt.Errorf("%w: response was not received", ErrTimeout))
}

// release settles an unclaimed watchdog: without a response the request
// context fails with cause, otherwise the response is dropped.
func (e *Exchange) release(w *Watchdog, cause error) {
	if w.expire(cause) {
		e.expired.Add(1)
		e.metrics.observe(w.request.Direction, OutcomeExpired)
		w.request.Context.Fail(cause)
		return
	}
	e.metrics.observe(w.request.Direction, OutcomeOrphaned)
	e.logger.Warn("response dropped, nobody received it",
		logger.CorrelationID(w.CorrelationID()),
		logger.Elapsed(w.sentAt))
}

// Receive waits for the response to a message sent with Send. It returns
// the response context, or the original context marked FAIL when the wait
// timed out or the exchange stopped. The response is delivered once: other
// callers for the same correlation id get ErrUnknownCorrelation. The
// watchdog is removed whatever the outcome.
func (e *Exchange) Receive(ctx context.Context, correlationID string) (*command.Context, error) {
	w, ok := e.watchdogs.lookup(correlationID)
	if !ok || !w.claim() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCorrelation, correlationID)
	}
	return e.await(ctx, w), nil
}

func (e *Exchange) await(ctx context.Context, w *Watchdog) *command.Context {
	defer e.watchdogs.remove(w)
	defer e.metrics.inFlight(-1)

	if e.cfg.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.WaitTimeout)
		defer cancel()
	}

	request := w.request
	response, err := w.wait(ctx, ErrTimeout)
	if err != nil {
		e.expired.Add(1)
		e.metrics.observe(request.Direction, OutcomeExpired)
		e.logger.WarnContext(ctx, "message expired",
			logger.CorrelationID(request.CorrelationID),
			logger.CommandID(request.Context.Command().ID()),
			logger.Elapsed(w.sentAt),
			logger.Timeout(e.cfg.WaitTimeout),
			logger.Error(err))
		request.Context.Fail(err)
		return request.Context
	}

	e.completed.Add(1)
	e.metrics.observe(request.Direction, OutcomeCompleted)
	e.metrics.roundTrip(request.Direction, time.Since(w.sentAt))
	if response.Context == nil {
		return request.Context
	}
	return response.Context
}

// Do implements command.Executor. Failures to send are stored on c.
func (e *Exchange) Do(ctx context.Context, c *command.Context) *command.Context {
	return e.execute(ctx, c, DirectionDo)
}

// Undo implements command.Executor. Failures to send are stored on c.
func (e *Exchange) Undo(ctx context.Context, c *command.Context) *command.Context {
	return e.execute(ctx, c, DirectionUndo)
}

func (e *Exchange) execute(ctx context.Context, c *command.Context, dir Direction) *command.Context {
	if c == nil {
		return nil
	}
	action, _ := command.ActionContextFrom(ctx)
	out, err := e.ProcessActionCommand(ctx, NewMessage(c, dir, action))
	if err != nil {
		c.Fail(err)
		return c
	}
	return out
}

// handleRequest runs on the operational pool.
func (e *Exchange) handleRequest(ctx context.Context, m Message) {
	ctx = command.WithCorrelationID(ctx, m.CorrelationID)
	if !m.Action.IsZero() {
		ctx = command.WithActionContext(ctx, m.Action)
	}

	e.execCommand(ctx, m)
	e.executed.Add(1)

	if err := e.responses.Put(ctx, m); err != nil {
		e.logger.ErrorContext(ctx, "failed to put response",
			logger.CorrelationID(m.CorrelationID),
			logger.Error(err))
	}
}

func (e *Exchange) execCommand(ctx context.Context, m Message) {
	defer func() {
		if r := recover(); r != nil {
			m.Context.Fail(fmt.Errorf("%w: %v", command.ErrCommandPanicked, r))
		}
	}()

	switch m.Direction {
	case DirectionDo:
		command.Do(ctx, m.Context)
	case DirectionUndo:
		command.Undo(ctx, m.Context)
	default:
		m.Context.Fail(fmt.Errorf("%w: %s", ErrInvalidDirection, m.Direction))
	}
}

func (e *Exchange) handleResponse(ctx context.Context, m Message) {
	w, ok := e.watchdogs.lookup(m.CorrelationID)
	if !ok || !w.complete(m) {
		e.metrics.observe(m.Direction, OutcomeOrphaned)
		e.logger.WarnContext(ctx, "response without waiting sender",
			logger.CorrelationID(m.CorrelationID))
	}
}

// Stats is a snapshot of exchange counters.
type Stats struct {
	Sent      uint64 // Messages put on the requests queue
	Completed uint64 // Responses delivered to their sender
	Expired   uint64 // Senders that gave up waiting
	Rejected  uint64 // Messages refused by Send
	Executed  uint64 // Requests executed by the operational pool
	InFlight  int    // Registered watchdogs
}

// Stats returns the current exchange counters.
func (e *Exchange) Stats() Stats {
	return Stats{
		Sent:      e.sent.Load(),
		Completed: e.completed.Load(),
		Expired:   e.expired.Load(),
		Rejected:  e.rejected.Load(),
		Executed:  e.executed.Load(),
		InFlight:  e.watchdogs.len(),
	}
}

// Healthcheck reports whether the exchange is active and its queues are
// reachable. Queues implementing Healthcheck(ctx) error are checked.
func (e *Exchange) Healthcheck(ctx context.Context) error {
	if !e.active.Load() {
		return ErrNotActive
	}
	for _, q := range []Queue{e.requests, e.responses} {
		if hc, ok := q.(interface{ Healthcheck(context.Context) error }); ok {
			if err := hc.Healthcheck(ctx); err != nil {
				return fmt.Errorf("exchange queue unhealthy: %w", err)
			}
		}
	}
	return nil
}

var _ command.Executor = (*Exchange)(nil)
