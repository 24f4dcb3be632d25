package flowz

import "time"

// sliceSource emits a fixed list of elements. The pull handler loops while
// demand remains so it also serves standing backpressureless demand, and it
// completes eagerly after the last element rather than waiting for one more
// pull.
type sliceSource struct {
	s        *stream
	out      Outlet[any]
	name     Name
	elements []any
	index    int
}

func (src *sliceSource) setOutlet(out Outlet[any]) { src.out = out }

func (src *sliceSource) OnPull() {
	for src.out.IsAvailable() && src.index < len(src.elements) {
		element := src.elements[src.index]
		src.index++
		src.out.Push(element)
	}
	if src.index >= len(src.elements) && !src.out.IsClosed() {
		src.out.Complete()
	}
}

func (src *sliceSource) OnDownstreamFinish() {}

// failedSource fails its outlet as soon as the stream starts, before any
// demand arrives.
type failedSource struct {
	s   *stream
	out Outlet[any]
	err error
}

func (src *failedSource) setOutlet(out Outlet[any]) { src.out = out }

func (src *failedSource) start() {
	src.out.Fail(src.err)
}

func (src *failedSource) OnPull()             {}
func (src *failedSource) OnDownstreamFinish() {}

// ticksSource emits the current clock time on a fixed interval, one tick
// per pull. Each pull arms a timer goroutine on the engine clock; the tick
// is dropped if demand disappeared while it was pending.
type ticksSource struct {
	s        *stream
	out      Outlet[any]
	interval time.Duration
	stop     chan struct{}
	stopped  bool
}

func (src *ticksSource) setOutlet(out Outlet[any]) { src.out = out }

func (src *ticksSource) OnPull() {
	src.arm()
}

func (src *ticksSource) arm() {
	clock := src.s.engine.clock
	go func() {
		select {
		case now := <-clock.After(src.interval):
			src.s.dispatch(func() { src.tick(now) })
		case <-src.stop:
		case <-src.s.dead:
		}
	}()
}

func (src *ticksSource) tick(now time.Time) {
	if !src.out.IsAvailable() {
		return
	}
	src.out.Push(now)
	// Standing demand keeps the outlet available after a push; re-arm so
	// backpressureless consumers keep receiving ticks.
	if src.out.IsAvailable() {
		src.arm()
	}
}

func (src *ticksSource) OnDownstreamFinish() {
	if !src.stopped {
		src.stopped = true
		close(src.stop)
	}
}
