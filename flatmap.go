package flowz

// flatMapExecutor substitutes a sub-stream for each element. The sub-stream
// is materialized into the same serialized execution context as the parent,
// wired to an innerFeed that relays its elements into the parent's outlet.
// One sub-stream runs at a time and is drained to completion before the
// next outer element is pulled.
type flatMapExecutor struct {
	s    *stream
	name Name
	fn   func(any) ([]stage, error)
	in   Inlet[any]
	out  Outlet[any]

	inner        *innerFeed
	upstreamDone bool
}

func (fm *flatMapExecutor) setInlet(in Inlet[any])    { fm.in = in }
func (fm *flatMapExecutor) setOutlet(out Outlet[any]) { fm.out = out }

func (fm *flatMapExecutor) OnPull() {
	if fm.inner != nil {
		fm.inner.in.Pull()
		return
	}
	if fm.upstreamDone {
		return
	}
	if !fm.in.IsPulled() && !fm.in.IsClosed() {
		fm.in.Pull()
	}
}

func (fm *flatMapExecutor) OnDownstreamFinish() {
	fm.closeInner()
	fm.in.Cancel()
}

func (fm *flatMapExecutor) OnPush() {
	element := fm.in.Grab()
	stages, err := fm.apply(element)
	if err != nil {
		fm.in.Cancel()
		fm.out.Fail(fm.s.userError(fm.name, element, err))
		return
	}

	flat := flatten(stages)
	if len(flat) == 0 {
		// Empty sub-stream: move straight to the next outer element.
		if !fm.in.IsClosed() {
			fm.in.Pull()
		}
		return
	}

	feed := &innerFeed{parent: fm}
	fm.inner = feed
	executors := fm.s.buildChain(flat, feed)
	for _, ex := range executors {
		if st, ok := ex.(starter); ok {
			st.start()
		}
	}
	feed.in.Pull()
}

func (fm *flatMapExecutor) apply(element any) (stages []stage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverToError(r)
		}
	}()
	return fm.fn(element)
}

func (fm *flatMapExecutor) OnUpstreamFinish() {
	fm.upstreamDone = true
	if fm.inner == nil {
		fm.out.Complete()
	}
}

func (fm *flatMapExecutor) OnUpstreamFailure(err error) {
	fm.closeInner()
	fm.out.Fail(err)
}

func (fm *flatMapExecutor) closeInner() {
	if fm.inner != nil {
		fm.inner.in.Cancel()
		fm.inner = nil
	}
}

// innerFeed is the consumer end of a flat-map sub-stream. Elements relay
// into the parent's outlet; completion hands control back to the parent,
// which either pulls the next outer element or completes.
type innerFeed struct {
	parent *flatMapExecutor
	in     Inlet[any]
}

func (f *innerFeed) setInlet(in Inlet[any]) { f.in = in }

func (f *innerFeed) OnPush() {
	element := f.in.Grab()
	parent := f.parent
	parent.out.Push(element)
	if parent.out.IsAvailable() && !f.in.IsClosed() {
		f.in.Pull()
	}
}

func (f *innerFeed) OnUpstreamFinish() {
	parent := f.parent
	if parent.inner != f {
		return
	}
	parent.inner = nil
	if parent.upstreamDone {
		parent.out.Complete()
		return
	}
	if parent.out.IsAvailable() && !parent.in.IsPulled() && !parent.in.IsClosed() {
		// Downstream demand is still unmet; fetch the next outer element.
		parent.in.Pull()
	}
}

func (f *innerFeed) OnUpstreamFailure(err error) {
	parent := f.parent
	if parent.inner != f {
		return
	}
	parent.inner = nil
	parent.in.Cancel()
	parent.out.Fail(err)
}
