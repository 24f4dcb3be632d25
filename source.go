package flowz

import (
	"context"
	"time"
)

// Source is a stream description with an open downstream end: it knows how
// to produce elements of type T but not yet what consumes them. Sources are
// immutable; every operator returns a new Source sharing the existing
// prefix, so one Source can be extended in several directions and each
// terminal operation materializes its own independent run.
//
// Operators that keep the element type are methods. Operators that change
// it are package functions (Map, FlatMap, Reduce and friends), because Go
// methods cannot introduce new type parameters.
//
// Example:
//
//	evens := flowz.From(1, 2, 3, 4, 5, 6).
//	    Filter(func(n int) (bool, error) { return n%2 == 0, nil })
//
//	doubled := flowz.Map(evens, func(n int) (string, error) {
//	    return strconv.Itoa(n * 2), nil
//	})
//
//	result, err := doubled.ToList().Run(ctx).Await(ctx)
type Source[T any] struct {
	chain *chain
}

func sourceOf[T any](c *chain) *Source[T] {
	return &Source[T]{chain: c}
}

// From creates a source that emits the given values in order, then
// completes.
func From[T any](values ...T) *Source[T] {
	elements := make([]any, len(values))
	for i, v := range values {
		elements[i] = v
	}
	return sourceOf[T]((*chain)(nil).push(sliceSourceStage{name: nameFrom, elements: elements}))
}

// FromSlice creates a source over a copy of the slice, so later mutation of
// the caller's slice does not leak into the stream.
func FromSlice[T any](values []T) *Source[T] {
	elements := make([]any, len(values))
	for i, v := range values {
		elements[i] = v
	}
	return sourceOf[T]((*chain)(nil).push(sliceSourceStage{name: nameFrom, elements: elements}))
}

// Empty creates a source that completes without emitting anything.
func Empty[T any]() *Source[T] {
	return sourceOf[T]((*chain)(nil).push(sliceSourceStage{name: nameEmpty}))
}

// Failed creates a source that fails the stream with err before emitting
// anything.
func Failed[T any](err error) *Source[T] {
	if err == nil {
		panic("flowz: nil error for failed source")
	}
	return sourceOf[T]((*chain)(nil).push(failedSourceStage{err: err}))
}

// FromChannel creates a source that emits everything received from ch and
// completes when ch is closed. The channel is read only as fast as the
// stream demands, so an unbuffered channel gives full end-to-end
// backpressure between the producing goroutine and the stream.
func FromChannel[T any](ch <-chan T) *Source[T] {
	if ch == nil {
		panic("flowz: nil channel")
	}
	recv := func(dead <-chan struct{}) (any, bool, bool) {
		select {
		case v, ok := <-ch:
			if !ok {
				return nil, false, true
			}
			return v, true, true
		case <-dead:
			return nil, false, false
		}
	}
	return sourceOf[T]((*chain)(nil).push(channelSourceStage{recv: recv}))
}

// FromPublisher creates a source fed by an external Publisher. The stream
// subscribes on materialization and requests one element at a time.
func FromPublisher[T any](p Publisher[T]) *Source[T] {
	if p == nil {
		panic("flowz: nil publisher")
	}
	subscribe := func(sub erasedSubscriber) {
		p.Subscribe(typedSubscriber[T]{sub})
	}
	return sourceOf[T]((*chain)(nil).push(publisherSourceStage{subscribe: subscribe}))
}

// Ticks creates a source that emits the current time every interval for as
// long as downstream demands. It never completes on its own; bound it with
// Limit or TakeWhile, or cancel the run. The engine's clock drives it, so
// tests with a fake clock control every tick.
func Ticks(interval time.Duration) *Source[time.Time] {
	if interval <= 0 {
		panic("flowz: non-positive tick interval")
	}
	return sourceOf[time.Time]((*chain)(nil).push(ticksSourceStage{interval: interval}))
}

// Concat emits every element of first, then every element of second.
// Completion of first hands over seamlessly; a failure in either source
// fails the whole stream.
func Concat[T any](first, second *Source[T]) *Source[T] {
	if first == nil || second == nil {
		panic("flowz: nil source")
	}
	return FlatMap(From(first, second), func(s *Source[T]) (*Source[T], error) {
		return s, nil
	})
}

// Filter keeps the elements pred returns true for.
func (s *Source[T]) Filter(pred func(T) (bool, error)) *Source[T] {
	if pred == nil {
		panic("flowz: nil predicate")
	}
	return sourceOf[T](s.chain.push(filterStage{name: nameFilter, predicate: erasePredicate(pred)}))
}

// Limit passes through at most n elements, then completes and cancels
// upstream. A negative n panics.
//
// Limit(0) completes without emitting, but only after one element has
// arrived from upstream; the element is discarded. Use Empty for a source
// that completes without consuming anything.
func (s *Source[T]) Limit(n int) *Source[T] {
	return sourceOf[T](s.chain.push(limitStage(n)))
}

// Skip drops the first n elements and passes the rest through. A negative
// n panics.
func (s *Source[T]) Skip(n int) *Source[T] {
	return sourceOf[T](s.chain.push(skipStage(n)))
}

// TakeWhile passes elements through while pred holds. The first element
// that fails the predicate is discarded, the stream completes, and
// upstream is cancelled.
func (s *Source[T]) TakeWhile(pred func(T) (bool, error)) *Source[T] {
	if pred == nil {
		panic("flowz: nil predicate")
	}
	return sourceOf[T](s.chain.push(takeWhileStage{name: nameTakeWhile, predicate: erasePredicate(pred)}))
}

// DropWhile drops elements while pred holds; from the first element that
// fails it onward, everything passes through and pred is never called
// again.
func (s *Source[T]) DropWhile(pred func(T) (bool, error)) *Source[T] {
	if pred == nil {
		panic("flowz: nil predicate")
	}
	return sourceOf[T](s.chain.push(filterStage{name: nameDropWhile, predicate: dropWhilePredicate(pred)}))
}

// Peek invokes fn on every element as it passes through, unchanged. An
// error from fn fails the stream.
func (s *Source[T]) Peek(fn func(T) error) *Source[T] {
	if fn == nil {
		panic("flowz: nil function")
	}
	erased := func(v any) (any, error) {
		if err := fn(v.(T)); err != nil {
			return nil, err
		}
		return v, nil
	}
	return sourceOf[T](s.chain.push(mapStage{name: namePeek, fn: erased}))
}

// ToList terminates the source by collecting every element into a slice.
// An empty stream yields an empty, non-nil slice.
func (s *Source[T]) ToList() *Runner[[]T] {
	return &Runner[[]T]{chain: s.chain.push(toListStage[T]()).push(valueSinkStage{})}
}

// FindFirst terminates the source with its first element, cancelling the
// rest of the stream; an empty stream yields the empty Optional.
func (s *Source[T]) FindFirst() *Runner[Optional[T]] {
	return &Runner[Optional[T]]{chain: s.chain.push(findFirstStageFor[T]()).push(valueSinkStage{})}
}

// ForEach terminates the source by invoking fn on every element. An error
// from fn fails the stream and cancels upstream.
func (s *Source[T]) ForEach(fn func(T) error) *Runner[Void] {
	if fn == nil {
		panic("flowz: nil function")
	}
	erased := func(v any) error {
		return fn(v.(T))
	}
	return &Runner[Void]{chain: s.chain.push(forEachStage{fn: erased})}
}

// Ignore terminates the source by draining and discarding every element.
func (s *Source[T]) Ignore() *Runner[Void] {
	return &Runner[Void]{chain: s.chain.push(ignoreStage{})}
}

// Cancel terminates the source by refusing it: upstream is cancelled at
// materialization and the run completes immediately.
func (s *Source[T]) Cancel() *Runner[Void] {
	return &Runner[Void]{chain: s.chain.push(cancelStage{})}
}

// RunChannel terminates the source into a fresh channel and starts the run.
// The channel is unbuffered, closed when the stream ends for any reason,
// and fed only as fast as the consumer receives. A failure closes the
// channel too; the error is on the task.
func (s *Source[T]) RunChannel(ctx context.Context, opts ...BuildOption) (<-chan T, *Task[Void]) {
	ch := make(chan T)
	send := func(dead <-chan struct{}, element any) bool {
		select {
		case ch <- element.(T):
			return true
		case <-dead:
			return false
		}
	}
	st := channelSinkStage{send: send, closeCh: func() { close(ch) }}
	runner := &Runner[Void]{chain: s.chain.push(st)}
	return ch, runner.Run(ctx, opts...)
}

// Build closes the open end with a Publisher. The publisher is cold: every
// Subscribe materializes a fresh run of the whole source on the engine.
func (s *Source[T]) Build(opts ...BuildOption) Publisher[T] {
	return builtPublisher[T]{
		engine: resolveEngine(opts),
		g:      graph{stages: s.chain.stages(), shape: SourceShape},
	}
}

// Map transforms each element with fn.
func Map[T, R any](s *Source[T], fn func(T) (R, error)) *Source[R] {
	if fn == nil {
		panic("flowz: nil function")
	}
	return sourceOf[R](s.chain.push(mapStage{name: nameMap, fn: eraseMap(fn)}))
}

// FlatMap substitutes a whole sub-source for each element and concatenates
// the results in order. Each sub-source is drained to completion before the
// next element is requested; a failing sub-source fails the outer stream.
func FlatMap[T, R any](s *Source[T], fn func(T) (*Source[R], error)) *Source[R] {
	if fn == nil {
		panic("flowz: nil function")
	}
	erased := func(v any) ([]stage, error) {
		inner, err := fn(v.(T))
		if err != nil {
			return nil, err
		}
		if inner == nil {
			return nil, errNilSubSource
		}
		return inner.chain.stages(), nil
	}
	return sourceOf[R](s.chain.push(flatMapStage{name: nameFlatMap, fn: erased}))
}

// FlatMapAsync substitutes one asynchronously produced value per element.
// Order is preserved: exactly one task runs at a time and its value is
// emitted before the next element is requested, whatever order tasks would
// resolve in. A failed task fails the stream.
func FlatMapAsync[T, R any](s *Source[T], fn func(T) (*Task[R], error)) *Source[R] {
	if fn == nil {
		panic("flowz: nil function")
	}
	return sourceOf[R](s.chain.push(flatMapAsyncStage{name: nameFlatMapAsync, fn: eraseAsync(fn)}))
}

// FlatMapSlice substitutes a slice of elements for each element, emitted in
// order. An empty slice drops the element.
func FlatMapSlice[T, R any](s *Source[T], fn func(T) ([]R, error)) *Source[R] {
	if fn == nil {
		panic("flowz: nil function")
	}
	return sourceOf[R](s.chain.push(flatMapSliceStage{name: nameFlatMapSlice, fn: eraseSlice(fn)}))
}

// Reduce terminates the source by folding every element into an
// accumulation starting from identity.
func Reduce[T, S any](s *Source[T], identity S, acc func(S, T) (S, error)) *Runner[S] {
	if acc == nil {
		panic("flowz: nil accumulator")
	}
	return &Runner[S]{chain: s.chain.push(reduceStage(identity, acc, nil)).push(valueSinkStage{})}
}

// ReduceWithCombiner is Reduce with a combiner for API compatibility with
// parallel reduction protocols. Streams here are sequential, so the
// combiner is never invoked; it must still be non-nil.
func ReduceWithCombiner[T, S any](s *Source[T], identity S, acc func(S, T) (S, error), combiner func(S, S) S) *Runner[S] {
	if acc == nil {
		panic("flowz: nil accumulator")
	}
	if combiner == nil {
		panic("flowz: nil combiner")
	}
	return &Runner[S]{chain: s.chain.push(reduceStage(identity, acc, combiner)).push(valueSinkStage{})}
}

// CollectSeq terminates the source with a Collector-described mutable
// reduction. Supplier and Accumulator are required; a nil Finisher is
// treated as identity, which requires A and S to be the same type.
func CollectSeq[T, A, S any](s *Source[T], c Collector[T, A, S]) *Runner[S] {
	return &Runner[S]{chain: s.chain.push(collectorStage(c)).push(valueSinkStage{})}
}

// Through extends the source with all the stages of a pipe.
func Through[T, R any](s *Source[T], p *Pipe[T, R]) *Source[R] {
	if p == nil {
		panic("flowz: nil pipe")
	}
	return sourceOf[R](s.chain.push(nestedStage{stages: p.chain.stages()}))
}

// To closes the source with a sink, producing a runnable stream whose
// result is the sink's.
func To[T, R any](s *Source[T], sink *Sink[T, R]) *Runner[R] {
	if sink == nil {
		panic("flowz: nil sink")
	}
	combined := s.chain
	for _, st := range sink.chain.stages() {
		combined = combined.push(st)
	}
	return &Runner[R]{chain: combined}
}
