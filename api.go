// Package flowz provides a lightweight, type-safe library for building backpressured
// streaming pipelines in Go.
//
// # Overview
//
// flowz lets you describe a data-processing pipeline (map, filter, flat-map,
// truncation, reductions, terminal sinks) as an immutable graph of stage descriptors, then
// run that graph as a set of cooperating components connected by a demand-driven signal
// protocol. An upstream stage may push an element only after being granted permission
// (a pull), a downstream stage never holds more than one unconsumed element, and
// cancellation and failure propagate deterministically through the whole chain.
//
// # Installation
//
//	go get github.com/zoobzio/flowz
//
// Requires Go 1.23+.
//
// # Core Concepts
//
// The library has three layers:
//
//   - Builders: Source[T], Pipe[In, Out], Sink[In, R] and Runner[R] are immutable
//     value chains. Every operation returns a new builder wrapping the previous one,
//     so intermediate builders can be reused and shared freely.
//   - Signal protocol: Inlet[T] and Outlet[T] are the two halves of one stage
//     boundary. All stage behavior is defined in terms of pull, push, grab, cancel,
//     complete and fail signals.
//   - Engine: materializes a finished graph into a running stream. Each stream is
//     driven by a single goroutine that serializes all signal delivery, so stage
//     code never needs locks.
//
// Because Go methods cannot introduce new type parameters, operations that change
// the element type are package-level functions (Map, FlatMap, Reduce, ...) while
// type-preserving operations are methods (Filter, Limit, Skip, TakeWhile, ...).
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//
//	    "github.com/zoobzio/flowz"
//	)
//
//	func main() {
//	    evens := flowz.From(1, 2, 3, 4, 5, 6).
//	        Filter(func(n int) (bool, error) { return n%2 == 0, nil })
//
//	    doubled := flowz.Map(evens, func(n int) (string, error) {
//	        return fmt.Sprintf("#%d", n*2), nil
//	    })
//
//	    result, err := doubled.ToList().Run(context.Background()).Await(context.Background())
//	    // result: ["#4", "#8", "#12"], err: nil
//	    fmt.Println(result, err)
//	}
//
// # Shapes
//
// A builder chain has one of four shapes, and each shape materializes differently:
//
//   - Source[T] (fixed source, open downstream end) builds a Publisher[T].
//   - Sink[In, R] (open upstream end, fixed terminal) builds a Subscriber[In]
//     plus a Task[R] carrying the terminal outcome.
//   - Pipe[In, Out] (open at both ends) builds a Processor[In, Out].
//   - Runner[R] (closed at both ends) runs directly and returns a Task[R].
//
// # Error Handling
//
// Two error classes are kept strictly apart:
//
//   - Usage errors: protocol violations (pull while pulled, grab without a pending
//     element, signalling a closed boundary) and argument errors (Limit with a
//     negative count, nil functions). These panic immediately at the offending
//     call. They indicate caller bugs and are never converted into stream failures.
//   - Stream errors: a failure signalled by upstream, or an error (or panic)
//     produced by a user-supplied function. These are wrapped in *Error, propagated
//     downstream exactly once, and cancel the corresponding upstream. A failure
//     arriving mid-accumulation discards the partial accumulation.
//
//	result, err := flowz.Reduce(src, 0, add).Run(ctx).Await(ctx)
//	if err != nil {
//	    var streamErr *flowz.Error
//	    if errors.As(err, &streamErr) {
//	        log.Printf("stage %q failed on %v: %v", streamErr.Stage, streamErr.Element, streamErr.Err)
//	    }
//	}
//
// # Observability
//
// The Engine exposes metrics, traces and typed events for every stream it runs:
//
//	engine := flowz.NewEngine()
//	engine.OnStreamCompleted(func(_ context.Context, e flowz.StreamEvent) error {
//	    log.Printf("stream %d done in %v", e.StreamID, e.Duration)
//	    return nil
//	})
//
//	task := flowz.Reduce(src, 0, add).Run(ctx, flowz.On(engine))
//
// # Best Practices
//
//  1. Build once, run many times: builders are immutable and safe to share.
//  2. Let errors bubble as stream failures; inspect them at the Task.
//  3. Use FlatMapAsync for one-at-a-time asynchronous work; ordering is preserved.
//  4. Close engines you create; Close waits for running streams to finish.
//  5. Use a fake clock (WithClock) to test time-driven sources deterministically.
package flowz

// Name identifies a stage kind in errors, logs, traces and events.
// Using this type encourages storing names as constants rather than
// using inline strings throughout your code.
type Name = string

// Void is the result type of terminal operations that produce no value,
// such as ForEach, Ignore and Cancel.
type Void struct{}

// Shape describes which ends of a builder chain are open.
type Shape int

// Graph shapes, by open ends.
const (
	// SourceShape has a fixed source and an open downstream end.
	SourceShape Shape = iota
	// SinkShape has an open upstream end and a fixed terminal.
	SinkShape
	// PipeShape is open at both ends.
	PipeShape
	// ClosedShape is fixed at both ends and can run directly.
	ClosedShape
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case SourceShape:
		return "source"
	case SinkShape:
		return "sink"
	case PipeShape:
		return "pipe"
	case ClosedShape:
		return "closed"
	default:
		return "unknown"
	}
}
