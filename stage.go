package flowz

import (
	"time"

	"go.uber.org/multierr"
)

// Stage descriptors are the pure-data representation of a pipeline. Each
// variant carries configuration only, never running state, so a finished
// graph can be materialized any number of times. The set of variants is
// closed: the compiler and validators match it exhaustively and panic on an
// unknown variant.
//
// Stateful predicate configuration (limit, skip, drop-while) is carried as a
// factory producing a fresh predicate per materialization, which is what
// keeps descriptors reusable.
type stage interface {
	stageName() Name
}

// Stage names as they appear in errors, logs, traces and events.
const (
	nameFrom          Name = "from"
	nameFromChannel   Name = "from-channel"
	nameFromPublisher Name = "from-publisher"
	nameTicks         Name = "ticks"
	nameEmpty         Name = "empty"
	nameFailed        Name = "failed"
	nameMap           Name = "map"
	namePeek          Name = "peek"
	nameFilter        Name = "filter"
	nameSkip          Name = "skip"
	nameDropWhile     Name = "drop-while"
	nameTakeWhile     Name = "take-while"
	nameLimit         Name = "limit"
	nameFlatMap       Name = "flat-map"
	nameFlatMapAsync  Name = "flat-map-async"
	nameFlatMapSlice  Name = "flat-map-slice"
	nameCollect       Name = "collect"
	nameReduce        Name = "reduce"
	nameToList        Name = "to-list"
	nameFindFirst     Name = "find-first"
	nameNested        Name = "nested"
	nameValueSink     Name = "value-sink"
	nameForEach       Name = "for-each"
	nameIgnore        Name = "ignore"
	nameCancel        Name = "cancel"
	nameToChannel     Name = "to-channel"
	nameSubscriber    Name = "subscriber"
)

// Source variants.

type sliceSourceStage struct {
	name     Name
	elements []any
}

func (s sliceSourceStage) stageName() Name { return s.name }

// channelSourceStage receives elements from an external Go channel. The recv
// closure blocks until an element arrives, the channel closes, or the stream
// dies; it runs on a dedicated reader goroutine, never on the stream loop.
type channelSourceStage struct {
	recv func(dead <-chan struct{}) (element any, ok bool, alive bool)
}

func (channelSourceStage) stageName() Name { return nameFromChannel }

type publisherSourceStage struct {
	subscribe func(sub erasedSubscriber)
}

func (publisherSourceStage) stageName() Name { return nameFromPublisher }

type ticksSourceStage struct {
	interval time.Duration
}

func (ticksSourceStage) stageName() Name { return nameTicks }

type failedSourceStage struct {
	err error
}

func (failedSourceStage) stageName() Name { return nameFailed }

// Intermediate variants.

type mapStage struct {
	name Name
	fn   func(any) (any, error)
}

func (m mapStage) stageName() Name { return m.name }

type filterStage struct {
	name      Name
	predicate func() func(any) (bool, error)
}

func (f filterStage) stageName() Name { return f.name }

// takeWhileStage emits while the predicate holds. The first element for
// which the predicate fails terminates the stage: with inclusive set that
// element is still emitted (bounded-count limiting), without it the element
// is dropped.
type takeWhileStage struct {
	name      Name
	predicate func() func(any) (bool, error)
	inclusive bool
}

func (t takeWhileStage) stageName() Name { return t.name }

// flatMapStage substitutes each element with a source-shaped sub-graph and
// drains it fully before requesting the next outer element.
type flatMapStage struct {
	name Name
	fn   func(any) ([]stage, error)
}

func (f flatMapStage) stageName() Name { return f.name }

type flatMapAsyncStage struct {
	name Name
	fn   func(any) (asyncValue, error)
}

func (f flatMapAsyncStage) stageName() Name { return f.name }

type flatMapSliceStage struct {
	name Name
	fn   func(any) ([]any, error)
}

func (f flatMapSliceStage) stageName() Name { return f.name }

// collectStage runs a sequential accumulation and emits the finished value
// downstream once upstream completes. The combiner is carried for interface
// symmetry but never invoked: execution is strictly sequential per stream.
type collectStage struct {
	name        Name
	supplier    func() (any, error)
	accumulator func(acc, element any) (any, error)
	combiner    func(a, b any) any
	finisher    func(acc any) (any, error)
}

func (c collectStage) stageName() Name { return c.name }

// findFirstStage emits exactly one wrapped value: the first upstream element
// if one arrives, the absent wrap if upstream finishes first.
type findFirstStage struct {
	wrap func(element any, present bool) any
}

func (findFirstStage) stageName() Name { return nameFindFirst }

// nestedStage embeds a pipe-shaped sub-graph as a single node; the compiler
// inlines it.
type nestedStage struct {
	stages []stage
}

func (nestedStage) stageName() Name { return nameNested }

// Terminal variants.

// valueSinkStage completes the stream with the single element its upstream
// emits. Terminal reductions end with this sink after their accumulating
// stage.
type valueSinkStage struct{}

func (valueSinkStage) stageName() Name { return nameValueSink }

type forEachStage struct {
	fn func(any) error
}

func (forEachStage) stageName() Name { return nameForEach }

type ignoreStage struct{}

func (ignoreStage) stageName() Name { return nameIgnore }

type cancelStage struct{}

func (cancelStage) stageName() Name { return nameCancel }

// channelSinkStage forwards elements to an external Go channel. The send
// closure blocks until the element is accepted or the stream dies; it runs
// on a dedicated writer goroutine. closeCh is nil when the channel is owned
// by the caller.
type channelSinkStage struct {
	send    func(dead <-chan struct{}, element any) bool
	closeCh func()
}

func (channelSinkStage) stageName() Name { return nameToChannel }

type subscriberSinkStage struct {
	sub erasedSubscriber
}

func (subscriberSinkStage) stageName() Name { return nameSubscriber }

// graph is the finished, ordered descriptor sequence for one pipeline.
// Built once by the builder layer, immutable, reusable across
// materializations.
type graph struct {
	stages []stage
	shape  Shape
}

func (g graph) names() []Name {
	names := make([]Name, len(g.stages))
	for i, st := range g.stages {
		names[i] = st.stageName()
	}
	return names
}

func isSourceStage(st stage) bool {
	switch st.(type) {
	case sliceSourceStage, channelSourceStage, publisherSourceStage,
		ticksSourceStage, failedSourceStage:
		return true
	default:
		return false
	}
}

func isTerminalStage(st stage) bool {
	switch st.(type) {
	case valueSinkStage, forEachStage, ignoreStage, cancelStage,
		channelSinkStage, subscriberSinkStage:
		return true
	default:
		return false
	}
}

// validate checks the structural invariants of a graph against its declared
// shape: a fixed source end starts with a source descriptor, a fixed
// terminal end finishes with a terminal descriptor, and neither appears in
// an intermediate position. Problems are combined so a caller sees all of
// them at once.
func (g graph) validate() error {
	if len(g.stages) == 0 {
		return ErrEmptyGraph
	}

	var errs []error
	wantSource := g.shape == SourceShape || g.shape == ClosedShape
	wantSink := g.shape == SinkShape || g.shape == ClosedShape

	if wantSource && !isSourceStage(g.stages[0]) {
		errs = append(errs, ErrMissingSource)
	}
	if wantSink && !isTerminalStage(g.stages[len(g.stages)-1]) {
		errs = append(errs, ErrMissingSink)
	}

	first := 0
	if wantSource {
		first = 1
	}
	last := len(g.stages)
	if wantSink {
		last--
	}
	for i := first; i < last && i < len(g.stages); i++ {
		st := g.stages[i]
		if isSourceStage(st) || isTerminalStage(st) {
			errs = append(errs, ErrMisplacedStage)
			break
		}
		if nested, ok := st.(nestedStage); ok {
			for _, inner := range nested.stages {
				if isSourceStage(inner) || isTerminalStage(inner) {
					errs = append(errs, ErrMisplacedStage)
					break
				}
			}
		}
	}

	return multierr.Combine(errs...)
}

// chain is the persistent spine of the builder layer: an append-only linked
// structure of previous-chain-plus-one-stage. Appending never mutates, so
// any number of builders can share a prefix.
type chain struct {
	prev  *chain
	stage stage
}

func (c *chain) push(st stage) *chain {
	return &chain{prev: c, stage: st}
}

// stages flattens the chain into processing order.
func (c *chain) stages() []stage {
	n := 0
	for link := c; link != nil; link = link.prev {
		n++
	}
	out := make([]stage, n)
	for link := c; link != nil; link = link.prev {
		n--
		out[n] = link.stage
	}
	return out
}
