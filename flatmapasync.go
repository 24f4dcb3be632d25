package flowz

// asyncValue is the erased face of a Task inside a flat-map-async stage.
type asyncValue interface {
	onResolve(cb func(value any, err error))
	cancelValue()
}

// taskValue adapts a typed Task to asyncValue. Pointer identity
// distinguishes a live resolution from a stale one after cancellation.
type taskValue[R any] struct {
	task *Task[R]
}

func (tv *taskValue[R]) onResolve(cb func(any, error)) {
	tv.task.onSettle(func(value R, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		cb(value, nil)
	})
}

func (tv *taskValue[R]) cancelValue() {
	tv.task.Cancel()
}

// flatMapAsyncExecutor substitutes one asynchronously produced value per
// element. Exactly one task is outstanding at a time: the next outer
// element is not pulled until the current task resolves and its value is
// emitted, so output order always matches input order regardless of
// resolution timing.
type flatMapAsyncExecutor struct {
	s    *stream
	name Name
	fn   func(any) (asyncValue, error)
	in   Inlet[any]
	out  Outlet[any]

	pending      asyncValue
	upstreamDone bool
}

func (fa *flatMapAsyncExecutor) setInlet(in Inlet[any])    { fa.in = in }
func (fa *flatMapAsyncExecutor) setOutlet(out Outlet[any]) { fa.out = out }

func (fa *flatMapAsyncExecutor) OnPull() {
	if fa.pending != nil || fa.upstreamDone {
		return
	}
	if !fa.in.IsPulled() && !fa.in.IsClosed() {
		fa.in.Pull()
	}
}

func (fa *flatMapAsyncExecutor) OnDownstreamFinish() {
	fa.cancelPending()
	fa.in.Cancel()
}

func (fa *flatMapAsyncExecutor) OnPush() {
	element := fa.in.Grab()
	value, err := fa.apply(element)
	if err != nil {
		fa.in.Cancel()
		fa.out.Fail(fa.s.userError(fa.name, element, err))
		return
	}
	fa.pending = value
	value.onResolve(func(resolved any, rerr error) {
		// Resolution may come from any goroutine; re-enter the stream.
		fa.s.dispatch(func() { fa.resolved(value, resolved, rerr) })
	})
}

func (fa *flatMapAsyncExecutor) resolved(value asyncValue, resolved any, err error) {
	if fa.pending != value {
		// Canceled or superseded while the resolution was in flight.
		return
	}
	fa.pending = nil
	if err != nil {
		fa.in.Cancel()
		fa.out.Fail(fa.s.userError(fa.name, nil, err))
		return
	}
	if fa.out.IsClosed() {
		return
	}
	fa.out.Push(resolved)
	if fa.upstreamDone {
		fa.out.Complete()
		return
	}
	if fa.out.IsAvailable() && !fa.in.IsPulled() && !fa.in.IsClosed() {
		fa.in.Pull()
	}
}

func (fa *flatMapAsyncExecutor) apply(element any) (value asyncValue, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverToError(r)
		}
	}()
	return fa.fn(element)
}

func (fa *flatMapAsyncExecutor) OnUpstreamFinish() {
	fa.upstreamDone = true
	if fa.pending == nil {
		fa.out.Complete()
	}
}

func (fa *flatMapAsyncExecutor) OnUpstreamFailure(err error) {
	fa.cancelPending()
	fa.out.Fail(err)
}

func (fa *flatMapAsyncExecutor) cancelPending() {
	if fa.pending != nil {
		fa.pending.cancelValue()
		fa.pending = nil
	}
}
