package flowz

// findFirstExecutor emits the first upstream element wrapped as a present
// Optional and cancels the rest of the stream; upstream completing first
// emits the empty Optional. The wrap closure carries the element's type
// back out of the erased chain.
type findFirstExecutor struct {
	s    *stream
	wrap func(element any, present bool) any
	in   Inlet[any]
	out  Outlet[any]
}

func (ff *findFirstExecutor) setInlet(in Inlet[any])    { ff.in = in }
func (ff *findFirstExecutor) setOutlet(out Outlet[any]) { ff.out = out }

func (ff *findFirstExecutor) OnPull() {
	if !ff.in.IsPulled() && !ff.in.IsClosed() {
		ff.in.Pull()
	}
}

func (ff *findFirstExecutor) OnDownstreamFinish() {
	ff.in.Cancel()
}

func (ff *findFirstExecutor) OnPush() {
	element := ff.in.Grab()
	ff.out.Push(ff.wrap(element, true))
	ff.out.Complete()
	ff.in.Cancel()
}

func (ff *findFirstExecutor) OnUpstreamFinish() {
	if ff.out.IsAvailable() {
		ff.out.Push(ff.wrap(nil, false))
	}
	ff.out.Complete()
}

func (ff *findFirstExecutor) OnUpstreamFailure(err error) {
	ff.out.Fail(err)
}
