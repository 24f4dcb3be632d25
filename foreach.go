package flowz

// valueSink terminates reduction streams: it expects exactly one element,
// the reduced result, and settles the stream with it.
type valueSink struct {
	s     *stream
	in    Inlet[any]
	value any
	got   bool
}

func (v *valueSink) setInlet(in Inlet[any]) { v.in = in }

func (v *valueSink) start() {
	v.in.Pull()
}

func (v *valueSink) OnPush() {
	v.value = v.in.Grab()
	v.got = true
	v.s.countElement()
}

func (v *valueSink) OnUpstreamFinish() {
	if v.got {
		v.s.complete(v.value)
		return
	}
	v.s.fail(newStreamError(nameValueSink, nil, ErrNoElement, v.s.engine.clock.Now()))
}

func (v *valueSink) OnUpstreamFailure(err error) {
	v.s.fail(err)
}

func (v *valueSink) halt(err error) {
	v.in.Cancel()
	v.s.fail(err)
}

// forEachSink drives the stream to completion, invoking a callback per
// element. A callback error fails the stream and cancels upstream.
type forEachSink struct {
	s  *stream
	fn func(any) error
	in Inlet[any]
}

func (fe *forEachSink) setInlet(in Inlet[any]) { fe.in = in }

func (fe *forEachSink) start() {
	fe.in.Pull()
}

func (fe *forEachSink) OnPush() {
	element := fe.in.Grab()
	if err := fe.apply(element); err != nil {
		fe.in.Cancel()
		fe.s.fail(fe.s.userError(nameForEach, element, err))
		return
	}
	fe.s.countElement()
	if !fe.in.IsClosed() {
		fe.in.Pull()
	}
}

func (fe *forEachSink) apply(element any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverToError(r)
		}
	}()
	return fe.fn(element)
}

func (fe *forEachSink) OnUpstreamFinish() {
	fe.s.complete(Void{})
}

func (fe *forEachSink) OnUpstreamFailure(err error) {
	fe.s.fail(err)
}

func (fe *forEachSink) halt(err error) {
	fe.in.Cancel()
	fe.s.fail(err)
}

// ignoreSink drains and discards every element.
type ignoreSink struct {
	s  *stream
	in Inlet[any]
}

func (ig *ignoreSink) setInlet(in Inlet[any]) { ig.in = in }

func (ig *ignoreSink) start() {
	ig.in.Pull()
}

func (ig *ignoreSink) OnPush() {
	ig.in.Grab()
	ig.s.countElement()
	if !ig.in.IsClosed() {
		ig.in.Pull()
	}
}

func (ig *ignoreSink) OnUpstreamFinish() {
	ig.s.complete(Void{})
}

func (ig *ignoreSink) OnUpstreamFailure(err error) {
	ig.s.fail(err)
}

func (ig *ignoreSink) halt(err error) {
	ig.in.Cancel()
	ig.s.fail(err)
}

// cancelSink refuses the stream at materialization: it cancels upstream
// before any element flows and completes immediately.
type cancelSink struct {
	s  *stream
	in Inlet[any]
}

func (cs *cancelSink) setInlet(in Inlet[any]) { cs.in = in }

func (cs *cancelSink) start() {
	cs.in.Cancel()
	cs.s.complete(Void{})
}

func (cs *cancelSink) OnPush()                 {}
func (cs *cancelSink) OnUpstreamFinish()       {}
func (cs *cancelSink) OnUpstreamFailure(error) {}

func (cs *cancelSink) halt(err error) {
	cs.in.Cancel()
	cs.s.fail(err)
}
