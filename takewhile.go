package flowz

// takeWhileExecutor relays elements while its predicate holds and shuts the
// stream down at the first element that fails it, cancelling upstream.
// Limit rides this executor with a counting predicate and inclusive set, so
// the bounding element itself is emitted; TakeWhile drops it.
type takeWhileExecutor struct {
	s         *stream
	name      Name
	pred      func(any) (bool, error)
	inclusive bool
	in        Inlet[any]
	out       Outlet[any]
}

func (t *takeWhileExecutor) setInlet(in Inlet[any])    { t.in = in }
func (t *takeWhileExecutor) setOutlet(out Outlet[any]) { t.out = out }

func (t *takeWhileExecutor) OnPull() {
	t.in.Pull()
}

func (t *takeWhileExecutor) OnDownstreamFinish() {
	t.in.Cancel()
}

func (t *takeWhileExecutor) OnPush() {
	element := t.in.Grab()
	keep, err := t.test(element)
	if err != nil {
		t.in.Cancel()
		t.out.Fail(t.s.userError(t.name, element, err))
		return
	}
	if keep {
		t.out.Push(element)
		if t.out.IsAvailable() && !t.in.IsClosed() && !t.in.IsPulled() {
			t.in.Pull()
		}
		return
	}
	if t.inclusive {
		t.out.Push(element)
	}
	t.out.Complete()
	t.in.Cancel()
}

func (t *takeWhileExecutor) test(element any) (keep bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverToError(r)
		}
	}()
	return t.pred(element)
}

func (t *takeWhileExecutor) OnUpstreamFinish() {
	t.out.Complete()
}

func (t *takeWhileExecutor) OnUpstreamFailure(err error) {
	t.out.Fail(err)
}
