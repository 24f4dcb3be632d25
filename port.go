package flowz

// port joins the two halves of one stage boundary: the upstream stage's
// Outlet and the downstream stage's Inlet. Each half keeps its own view of
// the boundary state; signals crossing the boundary (pull, push, complete,
// fail, cancel) are enqueued onto the owning stream's signal queue and update
// the receiving half only when delivered. Deferring delivery keeps signal
// cascades iterative rather than recursive and gives each half a consistent
// view: a stage never observes its upstream's completion before the
// notification that carries it.
//
// The caller's own half updates synchronously, so queries made immediately
// after a call reflect it: Pull marks the inlet pulled before returning,
// Complete closes the outlet before returning.
//
// A port is owned by its two adjacent stages and driven only from the
// stream's serialized execution context, so it needs no locking.
type port struct {
	enqueue func(func())

	// Inlet half.
	inL          InletListener
	element      any
	pulled       bool
	bpless       bool
	available    bool
	cancelled    bool
	upstreamDone bool

	// Outlet half.
	outL           OutletListener
	demand         bool
	signalled      bool
	downstreamDone bool
}

func newPort(enqueue func(func())) *port {
	return &port{enqueue: enqueue}
}

func (p *port) inletClosed() bool {
	return p.cancelled || p.upstreamDone
}

func (p *port) outletClosed() bool {
	return p.signalled || p.downstreamDone
}

// inlet returns the consumer-facing view of the boundary.
func (p *port) inlet() Inlet[any] {
	return (*portInlet)(p)
}

// outlet returns the producer-facing view of the boundary.
func (p *port) outlet() Outlet[any] {
	return (*portOutlet)(p)
}

// portInlet adapts port to Inlet[any].
type portInlet port

func (pi *portInlet) Pull() {
	p := (*port)(pi)
	switch {
	case p.inletClosed():
		panic("flowz: pull on closed inlet")
	case p.bpless:
		panic("flowz: pull after backpressureless pull")
	case p.pulled:
		panic("flowz: pull while pull already outstanding")
	}
	// A held element that was never grabbed is forfeited by the next pull.
	p.available = false
	p.element = nil
	p.pulled = true
	p.enqueue(func() {
		if p.outletClosed() {
			return
		}
		p.demand = true
		p.outL.OnPull()
	})
}

func (pi *portInlet) BackpressurelessPull() {
	p := (*port)(pi)
	switch {
	case p.inletClosed():
		panic("flowz: backpressureless pull on closed inlet")
	case p.bpless:
		panic("flowz: backpressureless pull called twice")
	case p.pulled:
		panic("flowz: backpressureless pull after pull")
	case p.inL == nil:
		panic("flowz: backpressureless pull before listener installed")
	}
	if _, ok := p.inL.(BackpressurelessListener[any]); !ok {
		panic("flowz: listener does not support backpressureless push")
	}
	p.bpless = true
	p.enqueue(func() {
		if p.outletClosed() {
			return
		}
		p.demand = true
		p.outL.OnPull()
	})
}

func (pi *portInlet) IsPulled() bool {
	p := (*port)(pi)
	return (p.pulled || p.bpless) && !p.inletClosed()
}

func (pi *portInlet) IsAvailable() bool {
	return (*port)(pi).available
}

func (pi *portInlet) IsClosed() bool {
	return (*port)(pi).inletClosed()
}

func (pi *portInlet) Cancel() {
	p := (*port)(pi)
	if p.inletClosed() {
		return
	}
	p.cancelled = true
	p.available = false
	p.element = nil
	p.enqueue(func() {
		if p.outletClosed() {
			return
		}
		p.downstreamDone = true
		p.demand = false
		p.outL.OnDownstreamFinish()
	})
}

func (pi *portInlet) Grab() any {
	p := (*port)(pi)
	if p.cancelled {
		panic("flowz: grab on cancelled inlet")
	}
	if !p.available {
		panic("flowz: grab without pending element")
	}
	element := p.element
	p.element = nil
	p.available = false
	return element
}

func (pi *portInlet) SetListener(listener InletListener) {
	p := (*port)(pi)
	if listener == nil {
		panic("flowz: nil inlet listener")
	}
	if p.inL != nil {
		panic("flowz: inlet listener already installed")
	}
	p.inL = listener
}

// portOutlet adapts port to Outlet[any].
type portOutlet port

func (po *portOutlet) Push(element any) {
	p := (*port)(po)
	if p.outletClosed() {
		panic("flowz: push on closed outlet")
	}
	if !p.demand {
		panic("flowz: push without demand")
	}
	if !p.bpless {
		p.demand = false
	}
	p.enqueue(func() {
		if p.inletClosed() {
			// Push raced a cancellation; the element is discarded.
			return
		}
		if p.bpless {
			p.inL.(BackpressurelessListener[any]).OnBackpressurelessPush(element)
			return
		}
		p.available = true
		p.element = element
		p.pulled = false
		p.inL.OnPush()
	})
}

func (po *portOutlet) IsAvailable() bool {
	p := (*port)(po)
	return p.demand && !p.outletClosed()
}

func (po *portOutlet) IsClosed() bool {
	return (*port)(po).outletClosed()
}

func (po *portOutlet) Complete() {
	p := (*port)(po)
	if p.downstreamDone {
		return
	}
	if p.signalled {
		panic("flowz: complete on closed outlet")
	}
	p.signalled = true
	p.demand = false
	p.enqueue(func() {
		if p.inletClosed() {
			return
		}
		// The held element, if any, stays grabbable; only cancel drops it.
		p.upstreamDone = true
		p.inL.OnUpstreamFinish()
	})
}

func (po *portOutlet) Fail(err error) {
	p := (*port)(po)
	if err == nil {
		panic("flowz: fail with nil error")
	}
	if p.downstreamDone {
		return
	}
	if p.signalled {
		panic("flowz: fail on closed outlet")
	}
	p.signalled = true
	p.demand = false
	p.enqueue(func() {
		if p.inletClosed() {
			return
		}
		p.upstreamDone = true
		p.inL.OnUpstreamFailure(err)
	})
}

func (po *portOutlet) SetListener(listener OutletListener) {
	p := (*port)(po)
	if listener == nil {
		panic("flowz: nil outlet listener")
	}
	if p.outL != nil {
		panic("flowz: outlet listener already installed")
	}
	p.outL = listener
}
