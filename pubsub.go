package flowz

import "errors"

// Subscription errors delivered through Subscriber.OnError.
var (
	ErrAlreadySubscribed  = errors.New("processor already subscribed")
	ErrNonPositiveRequest = errors.New("non-positive demand requested")
)

// Publisher emits a stream of elements to a Subscriber under its demand
// control. Publishers built from a Source are cold: every Subscribe
// materializes a fresh run of the graph.
type Publisher[T any] interface {
	Subscribe(sub Subscriber[T])
}

// Subscriber consumes a stream of elements. It receives its Subscription
// first, then zero or more OnNext calls (never exceeding the demand it
// requested), then exactly one of OnError or OnComplete.
//
// All calls are made from the stream's serialized execution context, never
// concurrently.
type Subscriber[T any] interface {
	OnSubscribe(sub Subscription)
	OnNext(element T)
	OnError(err error)
	OnComplete()
}

// Subscription is a Subscriber's handle on the stream feeding it. Request
// and Cancel are safe to call from any goroutine; requesting a non-positive
// amount fails the stream with ErrNonPositiveRequest.
type Subscription interface {
	Request(n int64)
	Cancel()
}

// Processor is both ends at once: a Subscriber for its input elements and a
// Publisher of its outputs. Built from a Pipe. A Processor accepts exactly
// one subscriber.
type Processor[In, Out any] interface {
	Subscriber[In]
	Publisher[Out]
}

// erasedSubscriber is the untyped subscriber shape the stream internals
// drive; typed adapters below translate both directions.
type erasedSubscriber interface {
	OnSubscribe(sub Subscription)
	OnNext(element any)
	OnError(err error)
	OnComplete()
}

// subscriberAdapter erases Subscriber[T] for the stream internals.
type subscriberAdapter[T any] struct {
	sub Subscriber[T]
}

func (a subscriberAdapter[T]) OnSubscribe(sub Subscription) { a.sub.OnSubscribe(sub) }
func (a subscriberAdapter[T]) OnNext(element any)           { a.sub.OnNext(element.(T)) }
func (a subscriberAdapter[T]) OnError(err error)            { a.sub.OnError(err) }
func (a subscriberAdapter[T]) OnComplete()                  { a.sub.OnComplete() }

// typedSubscriber restores the typed face over an erasedSubscriber, used
// when subscribing to an external Publisher[T].
type typedSubscriber[T any] struct {
	sub erasedSubscriber
}

func (a typedSubscriber[T]) OnSubscribe(sub Subscription) { a.sub.OnSubscribe(sub) }
func (a typedSubscriber[T]) OnNext(element T)             { a.sub.OnNext(element) }
func (a typedSubscriber[T]) OnError(err error)            { a.sub.OnError(err) }
func (a typedSubscriber[T]) OnComplete()                  { a.sub.OnComplete() }

// upstreamBridge feeds a stream from an external publisher-like producer.
// It is the source executor behind FromPublisher and the inbound half of a
// Processor. External signals enter through dispatchingSubscriber, which
// re-enters the stream's serialized context; the bridge itself runs only on
// the stream goroutine.
//
// Demand translation is one-for-one: every pull from the chain becomes
// Request(1) upstream, so at most one element is ever in flight.
type upstreamBridge struct {
	s           *stream
	out         Outlet[any]
	sn          Subscription
	subscribe   func(sub erasedSubscriber)
	pendingPull bool
}

func (b *upstreamBridge) setOutlet(out Outlet[any]) { b.out = out }

func (b *upstreamBridge) start() {
	if b.subscribe != nil {
		b.subscribe(&dispatchingSubscriber{s: b.s, bridge: b})
	}
}

func (b *upstreamBridge) onSubscribed(sn Subscription) {
	if sn == nil {
		return
	}
	if b.sn != nil {
		sn.Cancel()
		return
	}
	if b.out.IsClosed() {
		sn.Cancel()
		return
	}
	b.sn = sn
	if b.pendingPull {
		b.pendingPull = false
		sn.Request(1)
	}
}

func (b *upstreamBridge) onNext(element any) {
	if b.out.IsClosed() {
		return
	}
	if b.out.IsAvailable() {
		b.out.Push(element)
	}
}

func (b *upstreamBridge) onComplete() {
	if !b.out.IsClosed() {
		b.out.Complete()
	}
}

func (b *upstreamBridge) onError(err error) {
	if !b.out.IsClosed() {
		b.out.Fail(err)
	}
}

func (b *upstreamBridge) OnPull() {
	if b.sn == nil {
		b.pendingPull = true
		return
	}
	b.sn.Request(1)
}

func (b *upstreamBridge) OnDownstreamFinish() {
	if b.sn != nil {
		b.sn.Cancel()
	}
}

// dispatchingSubscriber is the face handed to external publishers; every
// signal crosses into the stream's serialized context.
type dispatchingSubscriber struct {
	s      *stream
	bridge *upstreamBridge
}

func (d *dispatchingSubscriber) OnSubscribe(sn Subscription) {
	d.s.dispatch(func() { d.bridge.onSubscribed(sn) })
}

func (d *dispatchingSubscriber) OnNext(element any) {
	d.s.dispatch(func() { d.bridge.onNext(element) })
}

func (d *dispatchingSubscriber) OnError(err error) {
	d.s.dispatch(func() { d.bridge.onError(err) })
}

func (d *dispatchingSubscriber) OnComplete() {
	d.s.dispatch(func() { d.bridge.onComplete() })
}

// downstreamBridge drains a stream into an external Subscriber, translating
// its requested demand into pulls. It is the terminal executor behind
// Source.Build and the outbound half of a Processor; in the processor shape
// the subscriber attaches after materialization and any terminal signal that
// arrived early is delivered on attach.
//
// The bridge prefetches one element: it pulls before demand arrives so one
// element is ready to emit, which keeps the chain warm without ever holding
// more than one unconsumed element.
type downstreamBridge struct {
	s            *stream
	in           Inlet[any]
	sub          erasedSubscriber
	failure      error
	demand       int64
	upstreamDone bool
	terminated   bool
}

func (b *downstreamBridge) setInlet(in Inlet[any]) { b.in = in }

func (b *downstreamBridge) start() {
	if b.sub != nil {
		b.sub.OnSubscribe(&streamSubscription{s: b.s, bridge: b})
	}
	b.in.Pull()
}

// attach installs the subscriber on a bridge built without one. A second
// subscriber is refused with ErrAlreadySubscribed.
func (b *downstreamBridge) attach(sub erasedSubscriber) {
	if b.sub != nil {
		sub.OnSubscribe(deadSubscription{})
		sub.OnError(ErrAlreadySubscribed)
		return
	}
	b.sub = sub
	sub.OnSubscribe(&streamSubscription{s: b.s, bridge: b})
	if b.failure != nil {
		b.terminate()
		sub.OnError(b.failure)
		b.s.fail(b.failure)
		return
	}
	b.pump()
}

func (b *downstreamBridge) addDemand(n int64) {
	if b.terminated || b.sub == nil {
		return
	}
	if n <= 0 {
		b.terminate()
		b.in.Cancel()
		b.sub.OnError(ErrNonPositiveRequest)
		b.s.fail(ErrNonPositiveRequest)
		return
	}
	b.demand += n
	b.pump()
}

func (b *downstreamBridge) cancelled() {
	if b.terminated {
		return
	}
	b.terminate()
	b.in.Cancel()
	b.s.fail(ErrCanceled)
}

// pump emits while demand and an element are both present, then settles
// completion if upstream already finished.
func (b *downstreamBridge) pump() {
	if b.sub == nil || b.terminated {
		return
	}
	for b.demand > 0 && b.in.IsAvailable() {
		element := b.in.Grab()
		b.demand--
		b.s.countElement()
		b.sub.OnNext(element)
		if b.terminated {
			return
		}
		if !b.in.IsClosed() {
			b.in.Pull()
		}
	}
	if b.upstreamDone && !b.in.IsAvailable() {
		b.terminate()
		b.sub.OnComplete()
		b.s.complete(Void{})
	}
}

func (b *downstreamBridge) OnPush() {
	b.pump()
}

func (b *downstreamBridge) OnUpstreamFinish() {
	b.upstreamDone = true
	if b.sub != nil {
		b.pump()
	}
}

func (b *downstreamBridge) OnUpstreamFailure(err error) {
	if b.sub == nil {
		b.failure = err
		return
	}
	if b.terminated {
		return
	}
	b.terminate()
	b.sub.OnError(err)
	b.s.fail(err)
}

func (b *downstreamBridge) halt(err error) {
	b.in.Cancel()
	if b.sub != nil && !b.terminated {
		b.terminate()
		b.sub.OnError(err)
	}
	b.s.fail(err)
}

func (b *downstreamBridge) terminate() {
	b.terminated = true
	b.demand = 0
}

// streamSubscription is the Subscription handed to external subscribers.
type streamSubscription struct {
	s      *stream
	bridge *downstreamBridge
}

func (sn *streamSubscription) Request(n int64) {
	sn.s.dispatch(func() { sn.bridge.addDemand(n) })
}

func (sn *streamSubscription) Cancel() {
	sn.s.dispatch(func() { sn.bridge.cancelled() })
}

// deadSubscription is handed to a refused second subscriber.
type deadSubscription struct{}

func (deadSubscription) Request(int64) {}
func (deadSubscription) Cancel()       {}

// inertSubscriber stands in when a sink-shaped stream failed to launch; it
// refuses whatever tries to feed it.
type inertSubscriber[T any] struct{}

func (inertSubscriber[T]) OnSubscribe(sn Subscription) {
	if sn != nil {
		sn.Cancel()
	}
}
func (inertSubscriber[T]) OnNext(T)      {}
func (inertSubscriber[T]) OnError(error) {}
func (inertSubscriber[T]) OnComplete()   {}

// failedProcessor stands in when a pipe-shaped stream failed to launch.
type failedProcessor[In, Out any] struct {
	inertSubscriber[In]
	err error
}

func (p failedProcessor[In, Out]) Subscribe(sub Subscriber[Out]) {
	if sub == nil {
		panic("flowz: nil subscriber")
	}
	sub.OnSubscribe(deadSubscription{})
	sub.OnError(p.err)
}

// builtPublisher materializes one stream per subscriber.
type builtPublisher[T any] struct {
	engine *Engine
	g      graph
}

func (p builtPublisher[T]) Subscribe(sub Subscriber[T]) {
	if sub == nil {
		panic("flowz: nil subscriber")
	}
	stages := make([]stage, len(p.g.stages), len(p.g.stages)+1)
	copy(stages, p.g.stages)
	stages = append(stages, subscriberSinkStage{sub: subscriberAdapter[T]{sub}})
	closed := graph{stages: stages, shape: ClosedShape}
	if _, err := p.engine.launch(p.engine.ctx, closed, nil); err != nil {
		sub.OnSubscribe(deadSubscription{})
		sub.OnError(err)
	}
}

// inboundSubscriber is the typed consumer face of sink- and processor-shaped
// streams. Bridges are resolved inside the dispatched closures, which run
// strictly after materialization has installed them.
type inboundSubscriber[T any] struct {
	s *stream
}

func (i inboundSubscriber[T]) OnSubscribe(sn Subscription) {
	i.s.dispatch(func() { i.s.inbound.onSubscribed(sn) })
}

func (i inboundSubscriber[T]) OnNext(element T) {
	i.s.dispatch(func() { i.s.inbound.onNext(element) })
}

func (i inboundSubscriber[T]) OnError(err error) {
	i.s.dispatch(func() { i.s.inbound.onError(err) })
}

func (i inboundSubscriber[T]) OnComplete() {
	i.s.dispatch(func() { i.s.inbound.onComplete() })
}

// builtProcessor joins the two bridge ends of a materialized pipe.
type builtProcessor[In, Out any] struct {
	s *stream
}

func (p *builtProcessor[In, Out]) OnSubscribe(sn Subscription) {
	p.s.dispatch(func() { p.s.inbound.onSubscribed(sn) })
}

func (p *builtProcessor[In, Out]) OnNext(element In) {
	p.s.dispatch(func() { p.s.inbound.onNext(element) })
}

func (p *builtProcessor[In, Out]) OnError(err error) {
	p.s.dispatch(func() { p.s.inbound.onError(err) })
}

func (p *builtProcessor[In, Out]) OnComplete() {
	p.s.dispatch(func() { p.s.inbound.onComplete() })
}

func (p *builtProcessor[In, Out]) Subscribe(sub Subscriber[Out]) {
	if sub == nil {
		panic("flowz: nil subscriber")
	}
	p.s.dispatch(func() { p.s.outbound.attach(subscriberAdapter[Out]{sub}) })
}
