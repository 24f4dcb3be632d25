package flowz

// Pipe is a stream description open at both ends: a reusable processing
// section that consumes In and produces Out once both ends are closed.
// Like Source, a Pipe is immutable and extending it shares the existing
// prefix.
//
// The same method-versus-function split applies: type-preserving operators
// are methods, type-changing ones are the Pipe* package functions.
//
// Example:
//
//	upper := flowz.PipeMap(flowz.NewPipe[string](), func(s string) (string, error) {
//	    return strings.ToUpper(s), nil
//	})
//
//	// attach to a source
//	shouting := flowz.Through(lines, upper)
//
//	// or run standalone as a Processor
//	proc := upper.Build()
type Pipe[In, Out any] struct {
	chain *chain
}

// NewPipe creates the identity pipe: everything that goes in comes out
// unchanged until operators are added.
func NewPipe[T any]() *Pipe[T, T] {
	return &Pipe[T, T]{}
}

// Filter keeps the elements pred returns true for.
func (p *Pipe[In, Out]) Filter(pred func(Out) (bool, error)) *Pipe[In, Out] {
	if pred == nil {
		panic("flowz: nil predicate")
	}
	return &Pipe[In, Out]{chain: p.chain.push(filterStage{name: nameFilter, predicate: erasePredicate(pred)})}
}

// Limit passes through at most n elements, then completes and cancels
// upstream. Limit(0) still consumes one element before completing, as on
// Source.
func (p *Pipe[In, Out]) Limit(n int) *Pipe[In, Out] {
	return &Pipe[In, Out]{chain: p.chain.push(limitStage(n))}
}

// Skip drops the first n elements and passes the rest through.
func (p *Pipe[In, Out]) Skip(n int) *Pipe[In, Out] {
	return &Pipe[In, Out]{chain: p.chain.push(skipStage(n))}
}

// TakeWhile passes elements through while pred holds, discarding the first
// element that fails it and cancelling upstream.
func (p *Pipe[In, Out]) TakeWhile(pred func(Out) (bool, error)) *Pipe[In, Out] {
	if pred == nil {
		panic("flowz: nil predicate")
	}
	return &Pipe[In, Out]{chain: p.chain.push(takeWhileStage{name: nameTakeWhile, predicate: erasePredicate(pred)})}
}

// DropWhile drops elements while pred holds, then passes everything
// through without consulting pred again.
func (p *Pipe[In, Out]) DropWhile(pred func(Out) (bool, error)) *Pipe[In, Out] {
	if pred == nil {
		panic("flowz: nil predicate")
	}
	return &Pipe[In, Out]{chain: p.chain.push(filterStage{name: nameDropWhile, predicate: dropWhilePredicate(pred)})}
}

// Peek invokes fn on every element as it passes through, unchanged.
func (p *Pipe[In, Out]) Peek(fn func(Out) error) *Pipe[In, Out] {
	if fn == nil {
		panic("flowz: nil function")
	}
	erased := func(v any) (any, error) {
		if err := fn(v.(Out)); err != nil {
			return nil, err
		}
		return v, nil
	}
	return &Pipe[In, Out]{chain: p.chain.push(mapStage{name: namePeek, fn: erased})}
}

// ToList closes the downstream end by collecting every element into a
// slice.
func (p *Pipe[In, Out]) ToList() *Sink[In, []Out] {
	return &Sink[In, []Out]{chain: p.chain.push(toListStage[Out]()).push(valueSinkStage{})}
}

// FindFirst closes the downstream end with the first element, cancelling
// the rest.
func (p *Pipe[In, Out]) FindFirst() *Sink[In, Optional[Out]] {
	return &Sink[In, Optional[Out]]{chain: p.chain.push(findFirstStageFor[Out]()).push(valueSinkStage{})}
}

// ForEach closes the downstream end by invoking fn on every element.
func (p *Pipe[In, Out]) ForEach(fn func(Out) error) *Sink[In, Void] {
	if fn == nil {
		panic("flowz: nil function")
	}
	erased := func(v any) error {
		return fn(v.(Out))
	}
	return &Sink[In, Void]{chain: p.chain.push(forEachStage{fn: erased})}
}

// Ignore closes the downstream end by discarding every element.
func (p *Pipe[In, Out]) Ignore() *Sink[In, Void] {
	return &Sink[In, Void]{chain: p.chain.push(ignoreStage{})}
}

// Cancel closes the downstream end by refusing the stream at
// materialization.
func (p *Pipe[In, Out]) Cancel() *Sink[In, Void] {
	return &Sink[In, Void]{chain: p.chain.push(cancelStage{})}
}

// Build closes both ends with reactive bridges and materializes the pipe
// as a Processor. The processor accepts one subscriber; feeding it follows
// the usual Subscriber contract.
func (p *Pipe[In, Out]) Build(opts ...BuildOption) Processor[In, Out] {
	stages := make([]stage, 0, len(p.chain.stages())+2)
	stages = append(stages, publisherSourceStage{})
	stages = append(stages, p.chain.stages()...)
	stages = append(stages, subscriberSinkStage{})
	engine := resolveEngine(opts)
	s, err := engine.launch(engine.ctx, graph{stages: stages, shape: ClosedShape}, nil)
	if err != nil {
		return failedProcessor[In, Out]{err: err}
	}
	return &builtProcessor[In, Out]{s: s}
}

// PipeMap transforms each element with fn.
func PipeMap[In, T, R any](p *Pipe[In, T], fn func(T) (R, error)) *Pipe[In, R] {
	if fn == nil {
		panic("flowz: nil function")
	}
	return &Pipe[In, R]{chain: p.chain.push(mapStage{name: nameMap, fn: eraseMap(fn)})}
}

// PipeFlatMap substitutes a sub-source for each element, concatenated in
// order.
func PipeFlatMap[In, T, R any](p *Pipe[In, T], fn func(T) (*Source[R], error)) *Pipe[In, R] {
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
	return &Pipe[In, R]{chain: p.chain.push(flatMapStage{name: nameFlatMap, fn: erased})}
}

// PipeFlatMapAsync substitutes one asynchronously produced value per
// element, order preserved.
func PipeFlatMapAsync[In, T, R any](p *Pipe[In, T], fn func(T) (*Task[R], error)) *Pipe[In, R] {
	if fn == nil {
		panic("flowz: nil function")
	}
	return &Pipe[In, R]{chain: p.chain.push(flatMapAsyncStage{name: nameFlatMapAsync, fn: eraseAsync(fn)})}
}

// PipeFlatMapSlice substitutes a slice of elements for each element.
func PipeFlatMapSlice[In, T, R any](p *Pipe[In, T], fn func(T) ([]R, error)) *Pipe[In, R] {
	if fn == nil {
		panic("flowz: nil function")
	}
	return &Pipe[In, R]{chain: p.chain.push(flatMapSliceStage{name: nameFlatMapSlice, fn: eraseSlice(fn)})}
}

// PipeReduce closes the downstream end by folding every element from
// identity.
func PipeReduce[In, T, S any](p *Pipe[In, T], identity S, acc func(S, T) (S, error)) *Sink[In, S] {
	if acc == nil {
		panic("flowz: nil accumulator")
	}
	return &Sink[In, S]{chain: p.chain.push(reduceStage(identity, acc, nil)).push(valueSinkStage{})}
}

// PipeCollect closes the downstream end with a Collector-described
// reduction.
func PipeCollect[In, T, A, S any](p *Pipe[In, T], c Collector[T, A, S]) *Sink[In, S] {
	return &Sink[In, S]{chain: p.chain.push(collectorStage(c)).push(valueSinkStage{})}
}

// PipeThrough splices another pipe onto the end of this one.
func PipeThrough[In, M, R any](p *Pipe[In, M], next *Pipe[M, R]) *Pipe[In, R] {
	if next == nil {
		panic("flowz: nil pipe")
	}
	return &Pipe[In, R]{chain: p.chain.push(nestedStage{stages: next.chain.stages()})}
}

// PipeTo closes the downstream end with a sink, producing a sink for the
// combined section.
func PipeTo[In, M, R any](p *Pipe[In, M], sink *Sink[M, R]) *Sink[In, R] {
	if sink == nil {
		panic("flowz: nil sink")
	}
	combined := p.chain
	for _, st := range sink.chain.stages() {
		combined = combined.push(st)
	}
	return &Sink[In, R]{chain: combined}
}
