package flowz

// filterExecutor relays the elements its predicate keeps and pulls again
// for the ones it drops. Skip and DropWhile ride the same executor with
// stateful predicates, which is why descriptors carry predicate factories:
// each materialization gets fresh counters.
type filterExecutor struct {
	s    *stream
	name Name
	pred func(any) (bool, error)
	in   Inlet[any]
	out  Outlet[any]
}

func (f *filterExecutor) setInlet(in Inlet[any])    { f.in = in }
func (f *filterExecutor) setOutlet(out Outlet[any]) { f.out = out }

func (f *filterExecutor) OnPull() {
	f.in.Pull()
}

func (f *filterExecutor) OnDownstreamFinish() {
	f.in.Cancel()
}

func (f *filterExecutor) OnPush() {
	element := f.in.Grab()
	keep, err := f.test(element)
	if err != nil {
		f.in.Cancel()
		f.out.Fail(f.s.userError(f.name, element, err))
		return
	}
	if keep {
		f.out.Push(element)
		if !f.out.IsAvailable() {
			return
		}
	}
	// Dropped element, or standing demand after a push: keep pulling.
	if !f.in.IsClosed() && !f.in.IsPulled() {
		f.in.Pull()
	}
}

func (f *filterExecutor) test(element any) (keep bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverToError(r)
		}
	}()
	return f.pred(element)
}

func (f *filterExecutor) OnUpstreamFinish() {
	f.out.Complete()
}

func (f *filterExecutor) OnUpstreamFailure(err error) {
	f.out.Fail(err)
}
