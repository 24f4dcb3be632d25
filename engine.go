package flowz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// ErrEngineClosed is returned when a stream is launched on an engine that
// has already been closed.
var ErrEngineClosed = errors.New("engine closed")

// Observability constants for the Engine.
const (
	// Metrics.
	EngineStreamsStartedTotal   = metricz.Key("engine.streams.started.total")
	EngineStreamsCompletedTotal = metricz.Key("engine.streams.completed.total")
	EngineStreamsFailedTotal    = metricz.Key("engine.streams.failed.total")
	EngineStreamsCanceledTotal  = metricz.Key("engine.streams.canceled.total")
	EngineStreamsActive         = metricz.Key("engine.streams.active")
	EngineElementsTotal         = metricz.Key("engine.elements.total")

	// Spans.
	EngineMaterializeSpan = tracez.Key("engine.materialize")
	EngineStreamSpan      = tracez.Key("engine.stream")

	// Span tags.
	EngineTagStreamID = tracez.Tag("engine.stream_id")
	EngineTagShape    = tracez.Tag("engine.shape")
	EngineTagStages   = tracez.Tag("engine.stages")
	EngineTagOutcome  = tracez.Tag("engine.outcome")
	EngineTagError    = tracez.Tag("engine.error")

	// Hook event keys.
	EngineEventStreamStarted   = hookz.Key("engine.stream.started")
	EngineEventStreamCompleted = hookz.Key("engine.stream.completed")
	EngineEventStreamFailed    = hookz.Key("engine.stream.failed")
	EngineEventStreamCanceled  = hookz.Key("engine.stream.canceled")
)

// StreamEvent captures a stream lifecycle transition for hook handlers.
type StreamEvent struct {
	Timestamp time.Time
	Error     error
	Stages    []Name
	StreamID  uint64
	Elements  uint64
	Duration  time.Duration
	Shape     Shape
	Success   bool
}

// Engine owns the execution of materialized streams. Every stream runs on
// its own goroutine with a serialized signal queue; the engine tracks them
// all so Close can tear the whole set down and collect their failures.
//
// The zero engine is not usable; construct with NewEngine. Package-level
// Run and Build calls without an explicit engine share DefaultEngine.
type Engine struct {
	logger  zerolog.Logger
	clock   clockz.Clock
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[StreamEvent]

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mailbox int

	nextID atomic.Uint64
	active atomic.Int64
	closed atomic.Bool

	failMu   sync.Mutex
	failures error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for stream lifecycle events. The default
// discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock sets the clock used for timestamps, durations and Ticks
// sources. Tests use this to make time deterministic.
func WithClock(clock clockz.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithMailboxSize sets the initial capacity of each stream's signal queue.
// The queue still grows without bound; the size only avoids reallocation on
// bursty streams. Non-positive values are ignored.
func WithMailboxSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.mailbox = n
		}
	}
}

// NewEngine creates an engine with the given options.
func NewEngine(opts ...Option) *Engine {
	metrics := metricz.New()
	metrics.Counter(EngineStreamsStartedTotal)
	metrics.Counter(EngineStreamsCompletedTotal)
	metrics.Counter(EngineStreamsFailedTotal)
	metrics.Counter(EngineStreamsCanceledTotal)
	metrics.Gauge(EngineStreamsActive)
	metrics.Counter(EngineElementsTotal)

	e := &Engine{
		logger:  zerolog.Nop(),
		clock:   clockz.RealClock,
		metrics: metrics,
		tracer:  tracez.New(),
		hooks:   hookz.New[StreamEvent](),
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = sync.OnceValue(func() *Engine {
	return NewEngine()
})

// DefaultEngine returns the shared engine used when no explicit engine is
// given. It is created on first use and lives for the process.
func DefaultEngine() *Engine {
	return defaultEngine()
}

// Metrics returns the engine's metrics registry.
func (e *Engine) Metrics() *metricz.Registry {
	return e.metrics
}

// Tracer returns the engine's tracer for span collection.
func (e *Engine) Tracer() *tracez.Tracer {
	return e.tracer
}

// OnStreamStarted registers a handler called when a stream begins running.
func (e *Engine) OnStreamStarted(handler func(context.Context, StreamEvent) error) error {
	_, err := e.hooks.Hook(EngineEventStreamStarted, handler)
	return err
}

// OnStreamCompleted registers a handler called when a stream finishes
// successfully.
func (e *Engine) OnStreamCompleted(handler func(context.Context, StreamEvent) error) error {
	_, err := e.hooks.Hook(EngineEventStreamCompleted, handler)
	return err
}

// OnStreamFailed registers a handler called when a stream fails.
func (e *Engine) OnStreamFailed(handler func(context.Context, StreamEvent) error) error {
	_, err := e.hooks.Hook(EngineEventStreamFailed, handler)
	return err
}

// OnStreamCanceled registers a handler called when a stream is canceled.
func (e *Engine) OnStreamCanceled(handler func(context.Context, StreamEvent) error) error {
	_, err := e.hooks.Hook(EngineEventStreamCanceled, handler)
	return err
}

// Wait blocks until every launched stream has settled and returns the first
// failure, if any.
func (e *Engine) Wait() error {
	return e.group.Wait()
}

// Close cancels all in-flight streams, waits for them to settle, and shuts
// down the observability plumbing. It returns every stream failure recorded
// over the engine's lifetime, combined.
func (e *Engine) Close() error {
	e.closed.Store(true)
	e.cancel()
	_ = e.group.Wait() //nolint:errcheck // individual failures are collected below
	if e.tracer != nil {
		e.tracer.Close()
	}
	e.hooks.Close()
	e.failMu.Lock()
	defer e.failMu.Unlock()
	return e.failures
}

func (e *Engine) recordFailure(err error) {
	e.failMu.Lock()
	e.failures = multierr.Append(e.failures, err)
	e.failMu.Unlock()
}

// launch validates the graph and starts its stream goroutine. Validation
// errors are returned synchronously; everything after that is reported
// through onTerminal and the engine's observability surface.
func (e *Engine) launch(ctx context.Context, g graph, onTerminal func(any, error)) (*stream, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s := &stream{
		id:         e.nextID.Add(1),
		engine:     e,
		shape:      g.shape,
		names:      g.names(),
		queue:      make([]func(), 0, e.mailbox),
		wake:       make(chan struct{}, 1),
		dead:       make(chan struct{}),
		onTerminal: onTerminal,
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	// Tie the stream to the engine's lifetime without merging contexts.
	go func() {
		select {
		case <-e.ctx.Done():
			s.cancel()
		case <-s.dead:
		}
	}()

	e.group.Go(func() error {
		return s.run(g.stages)
	})
	return s, nil
}

// executor is a live stage instance. Optional capabilities are discovered
// by type assertion during wiring: starter, upstreamEnd, downstreamEnd and
// terminalExecutor.
type executor interface{}

// starter is implemented by executors that act at materialization time,
// before any signal flows.
type starter interface {
	start()
}

// upstreamEnd is an executor that emits into a downstream port.
type upstreamEnd interface {
	OutletListener
	setOutlet(out Outlet[any])
}

// downstreamEnd is an executor that consumes from an upstream port.
type downstreamEnd interface {
	InletListener
	setInlet(in Inlet[any])
}

// terminalExecutor is the sink at the end of a closed stream; halt is the
// teardown path used for context cancellation and task cancellation.
type terminalExecutor interface {
	halt(err error)
}

// stream is one materialized graph running on one goroutine. All stage
// state is confined to that goroutine; external parties enter through
// dispatch, which appends to an unbounded mutex-guarded queue so re-entrant
// dispatches from stream-driven callbacks can never deadlock.
type stream struct {
	id     uint64
	engine *Engine
	ctx    context.Context
	cancel context.CancelFunc
	shape  Shape
	names  []Name

	// queue is the loop-local signal queue; enqueue from the stream
	// goroutine only.
	queue []func()

	extMu sync.Mutex
	extQ  []func()
	wake  chan struct{}
	dead  chan struct{}

	terminal   terminalExecutor
	inbound    *upstreamBridge
	outbound   *downstreamBridge
	onTerminal func(any, error)

	span     *tracez.ActiveSpan
	started  time.Time
	elements uint64
	finished bool
	torn     bool
	err      error
}

// enqueue adds a signal from the stream goroutine itself.
func (s *stream) enqueue(f func()) {
	s.queue = append(s.queue, f)
}

// dispatch adds a signal from any goroutine and wakes the loop.
func (s *stream) dispatch(f func()) {
	s.extMu.Lock()
	s.extQ = append(s.extQ, f)
	s.extMu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *stream) countElement() {
	s.elements++
	s.engine.metrics.Counter(EngineElementsTotal).Inc()
}

// userError wraps a failure from user code with the stage and element it
// happened on, unless it already carries stream context.
func (s *stream) userError(stage Name, element any, err error) error {
	return newStreamError(stage, element, err, s.engine.clock.Now())
}

// run materializes the stages and drains signals until the stream settles.
func (s *stream) run(stages []stage) error {
	defer close(s.dead)
	defer s.cancel()

	ctx, span := s.engine.tracer.StartSpan(s.ctx, EngineStreamSpan)
	s.span = span
	span.SetTag(EngineTagStreamID, strconv.FormatUint(s.id, 10))
	span.SetTag(EngineTagShape, s.shape.String())
	span.SetTag(EngineTagStages, joinNames(s.names))

	s.started = s.engine.clock.Now()
	s.engine.metrics.Counter(EngineStreamsStartedTotal).Inc()
	s.engine.metrics.Gauge(EngineStreamsActive).Set(float64(s.engine.active.Add(1)))
	s.engine.logger.Debug().
		Uint64("stream_id", s.id).
		Str("shape", s.shape.String()).
		Int("stages", len(s.names)).
		Msg("stream started")
	_ = s.engine.hooks.Emit(ctx, EngineEventStreamStarted, StreamEvent{ //nolint:errcheck
		StreamID:  s.id,
		Shape:     s.shape,
		Stages:    s.names,
		Timestamp: s.started,
	})

	// A context that is already dead cancels the stream before any stage
	// runs; otherwise a short stream could win the race and complete.
	if err := s.ctx.Err(); err != nil {
		s.fail(fmt.Errorf("%w: %w", ErrCanceled, err))
		return s.err
	}

	s.materialize(ctx, stages)

	for {
		for len(s.queue) > 0 {
			f := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			f()
		}
		if s.finished {
			return s.err
		}

		s.extMu.Lock()
		ext := s.extQ
		s.extQ = nil
		s.extMu.Unlock()
		if len(ext) > 0 {
			s.queue = append(s.queue, ext...)
			continue
		}

		select {
		case <-s.wake:
		case <-s.ctx.Done():
			s.teardown()
		}
	}
}

// materialize builds the executors from the descriptors and starts them, in
// list order.
func (s *stream) materialize(ctx context.Context, stages []stage) {
	_, span := s.engine.tracer.StartSpan(ctx, EngineMaterializeSpan)
	defer span.Finish()
	span.SetTag(EngineTagStreamID, strconv.FormatUint(s.id, 10))

	executors := s.buildChain(flatten(stages), nil)
	if last, ok := executors[len(executors)-1].(terminalExecutor); ok {
		s.terminal = last
	}
	if head, ok := executors[0].(*upstreamBridge); ok {
		s.inbound = head
	}
	if tail, ok := executors[len(executors)-1].(*downstreamBridge); ok {
		s.outbound = tail
	}
	for _, ex := range executors {
		if st, ok := ex.(starter); ok {
			st.start()
		}
	}
}

// teardown cancels the stream from the outside in: the terminal's inlet is
// cancelled, which cascades upstream, and the terminal settles the outcome
// with the context's error.
func (s *stream) teardown() {
	if s.torn || s.finished {
		return
	}
	s.torn = true
	err := s.ctx.Err()
	if err == nil {
		err = ErrCanceled
	}
	if s.terminal != nil {
		s.terminal.halt(fmt.Errorf("%w: %w", ErrCanceled, err))
		return
	}
	s.fail(fmt.Errorf("%w: %w", ErrCanceled, err))
}

// complete settles the stream successfully with the terminal value.
func (s *stream) complete(value any) {
	if s.finished {
		return
	}
	s.finished = true
	now := s.engine.clock.Now()

	s.engine.metrics.Counter(EngineStreamsCompletedTotal).Inc()
	s.engine.metrics.Gauge(EngineStreamsActive).Set(float64(s.engine.active.Add(-1)))
	s.span.SetTag(EngineTagOutcome, "completed")
	s.span.Finish()
	s.engine.logger.Debug().
		Uint64("stream_id", s.id).
		Uint64("elements", s.elements).
		Msg("stream completed")
	_ = s.engine.hooks.Emit(s.ctx, EngineEventStreamCompleted, StreamEvent{ //nolint:errcheck
		StreamID:  s.id,
		Shape:     s.shape,
		Stages:    s.names,
		Success:   true,
		Elements:  s.elements,
		Duration:  now.Sub(s.started),
		Timestamp: now,
	})
	if s.onTerminal != nil {
		s.onTerminal(value, nil)
	}
}

// fail settles the stream with an error. Cancellation is a distinct
// outcome: errors carrying ErrCanceled are recorded as canceled, not
// failed, and are not reported to Wait.
func (s *stream) fail(err error) {
	if s.finished {
		return
	}
	s.finished = true
	now := s.engine.clock.Now()
	canceled := errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)

	event := StreamEvent{
		StreamID:  s.id,
		Shape:     s.shape,
		Stages:    s.names,
		Error:     err,
		Elements:  s.elements,
		Duration:  now.Sub(s.started),
		Timestamp: now,
	}
	s.engine.metrics.Gauge(EngineStreamsActive).Set(float64(s.engine.active.Add(-1)))
	s.span.SetTag(EngineTagError, err.Error())
	if canceled {
		s.engine.metrics.Counter(EngineStreamsCanceledTotal).Inc()
		s.span.SetTag(EngineTagOutcome, "canceled")
		s.span.Finish()
		s.engine.logger.Debug().
			Uint64("stream_id", s.id).
			Msg("stream canceled")
		_ = s.engine.hooks.Emit(s.ctx, EngineEventStreamCanceled, event) //nolint:errcheck
	} else {
		s.err = err
		s.engine.recordFailure(err)
		s.engine.metrics.Counter(EngineStreamsFailedTotal).Inc()
		s.span.SetTag(EngineTagOutcome, "failed")
		s.span.Finish()
		s.engine.logger.Error().
			Err(err).
			Uint64("stream_id", s.id).
			Msg("stream failed")
		_ = s.engine.hooks.Emit(s.ctx, EngineEventStreamFailed, event) //nolint:errcheck
	}
	if s.onTerminal != nil {
		s.onTerminal(nil, err)
	}
}

func joinNames(names []Name) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ","
		}
		out += n
	}
	return out
}
