package flowz

// Sink is a stream description with an open upstream end: it knows how to
// consume elements of type In and produce a result of type R, but not yet
// what feeds it. Sinks come from the terminal operations on Pipe, from the
// factories here, or from splicing with PipeTo; closing the open end with
// To yields a runnable stream.
type Sink[In, R any] struct {
	chain *chain
}

// FromSubscriber creates a sink that forwards the stream to an external
// Subscriber under its demand control. The run completes when the
// subscriber has received the terminal signal.
func FromSubscriber[T any](sub Subscriber[T]) *Sink[T, Void] {
	if sub == nil {
		panic("flowz: nil subscriber")
	}
	st := subscriberSinkStage{sub: subscriberAdapter[T]{sub}}
	return &Sink[T, Void]{chain: (*chain)(nil).push(st)}
}

// ToChannel creates a sink that forwards the stream to a caller-owned
// channel. The channel is never closed by the stream; completion and
// failure surface on the task. Sends block until the consumer receives,
// and that blocking is the stream's backpressure.
func ToChannel[T any](ch chan<- T) *Sink[T, Void] {
	if ch == nil {
		panic("flowz: nil channel")
	}
	send := func(dead <-chan struct{}, element any) bool {
		select {
		case ch <- element.(T):
			return true
		case <-dead:
			return false
		}
	}
	return &Sink[T, Void]{chain: (*chain)(nil).push(channelSinkStage{send: send})}
}

// Build closes the upstream end with a reactive bridge and materializes
// the sink, returning the Subscriber to feed it through and the task that
// settles with the sink's result.
func (sk *Sink[In, R]) Build(opts ...BuildOption) (Subscriber[In], *Task[R]) {
	task := NewTask[R]()
	stages := make([]stage, 0, len(sk.chain.stages())+1)
	stages = append(stages, publisherSourceStage{})
	stages = append(stages, sk.chain.stages()...)
	engine := resolveEngine(opts)
	s, err := engine.launch(engine.ctx, graph{stages: stages, shape: ClosedShape}, terminalInto(task))
	if err != nil {
		task.Fail(err)
		return inertSubscriber[In]{}, task
	}
	task.setCanceller(s.cancel)
	return inboundSubscriber[In]{s: s}, task
}
