package flowz

import "fmt"

// flatten expands nested stage lists into one flat list, preserving order.
func flatten(stages []stage) []stage {
	flat := make([]stage, 0, len(stages))
	for _, st := range stages {
		if nested, ok := st.(nestedStage); ok {
			flat = append(flat, flatten(nested.stages)...)
			continue
		}
		flat = append(flat, st)
	}
	return flat
}

// buildChain instantiates executors for the stages in list order and wires
// each adjacent pair through a fresh port. When tail is non-nil it is wired
// as the consumer of the final stage's outlet, which is how sub-streams
// feed back into their parent stage.
//
// Wiring happens before any start call, so every executor holds its ports
// before the first signal can flow.
func (s *stream) buildChain(stages []stage, tail downstreamEnd) []executor {
	executors := make([]executor, len(stages))
	for i, st := range stages {
		executors[i] = s.buildExecutor(st)
	}

	for i := 0; i+1 < len(executors); i++ {
		s.wire(executors[i], executors[i+1], stages[i].stageName(), stages[i+1].stageName())
	}
	if tail != nil && len(executors) > 0 {
		s.wirePort(executors[len(executors)-1].(upstreamEnd), tail)
	}
	return executors
}

func (s *stream) wire(up, down executor, upName, downName Name) {
	u, ok := up.(upstreamEnd)
	if !ok {
		panic(fmt.Sprintf("flowz: stage %q cannot emit downstream", upName))
	}
	d, ok := down.(downstreamEnd)
	if !ok {
		panic(fmt.Sprintf("flowz: stage %q cannot consume upstream", downName))
	}
	s.wirePort(u, d)
}

func (s *stream) wirePort(up upstreamEnd, down downstreamEnd) {
	p := newPort(s.enqueue)
	out := p.outlet()
	out.SetListener(up)
	up.setOutlet(out)
	in := p.inlet()
	in.SetListener(down)
	down.setInlet(in)
}

// buildExecutor maps one descriptor to a live executor. The switch is
// exhaustive over the stage variants; an unknown variant is a bug in the
// builder layer.
func (s *stream) buildExecutor(st stage) executor {
	switch v := st.(type) {
	case sliceSourceStage:
		return &sliceSource{s: s, name: v.name, elements: v.elements}
	case channelSourceStage:
		return &channelSource{s: s, recv: v.recv, pulls: make(chan struct{}, 1)}
	case publisherSourceStage:
		return &upstreamBridge{s: s, subscribe: v.subscribe}
	case ticksSourceStage:
		return &ticksSource{s: s, interval: v.interval, stop: make(chan struct{})}
	case failedSourceStage:
		return &failedSource{s: s, err: v.err}
	case mapStage:
		return &mapExecutor{s: s, name: v.name, fn: v.fn}
	case filterStage:
		return &filterExecutor{s: s, name: v.name, pred: v.predicate()}
	case takeWhileStage:
		return &takeWhileExecutor{s: s, name: v.name, pred: v.predicate(), inclusive: v.inclusive}
	case flatMapStage:
		return &flatMapExecutor{s: s, name: v.name, fn: v.fn}
	case flatMapAsyncStage:
		return &flatMapAsyncExecutor{s: s, name: v.name, fn: v.fn}
	case flatMapSliceStage:
		return &flatMapSliceExecutor{s: s, name: v.name, fn: v.fn}
	case collectStage:
		return &collectExecutor{s: s, name: v.name, supplier: v.supplier, accumulator: v.accumulator, finisher: v.finisher}
	case findFirstStage:
		return &findFirstExecutor{s: s, wrap: v.wrap}
	case valueSinkStage:
		return &valueSink{s: s}
	case forEachStage:
		return &forEachSink{s: s, fn: v.fn}
	case ignoreStage:
		return &ignoreSink{s: s}
	case cancelStage:
		return &cancelSink{s: s}
	case channelSinkStage:
		return &channelSink{s: s, send: v.send, closeCh: v.closeCh, elems: make(chan any, 1)}
	case subscriberSinkStage:
		return &downstreamBridge{s: s, sub: v.sub}
	default:
		panic(fmt.Sprintf("flowz: unknown stage variant %T", st))
	}
}
