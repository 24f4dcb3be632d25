package flowz

// flatMapSliceExecutor substitutes a slice of elements for each input and
// drains the whole slice downstream before pulling the next input.
type flatMapSliceExecutor struct {
	s    *stream
	name Name
	fn   func(any) ([]any, error)
	in   Inlet[any]
	out  Outlet[any]

	buffer       []any
	upstreamDone bool
}

func (fs *flatMapSliceExecutor) setInlet(in Inlet[any])    { fs.in = in }
func (fs *flatMapSliceExecutor) setOutlet(out Outlet[any]) { fs.out = out }

func (fs *flatMapSliceExecutor) OnPull() {
	fs.drain()
}

func (fs *flatMapSliceExecutor) OnDownstreamFinish() {
	fs.buffer = nil
	fs.in.Cancel()
}

func (fs *flatMapSliceExecutor) OnPush() {
	element := fs.in.Grab()
	items, err := fs.apply(element)
	if err != nil {
		fs.in.Cancel()
		fs.out.Fail(fs.s.userError(fs.name, element, err))
		return
	}
	fs.buffer = items
	fs.drain()
}

// drain emits buffered elements while demand lasts, then either pulls the
// next input or completes.
func (fs *flatMapSliceExecutor) drain() {
	for fs.out.IsAvailable() && len(fs.buffer) > 0 {
		next := fs.buffer[0]
		fs.buffer = fs.buffer[1:]
		fs.out.Push(next)
	}
	if len(fs.buffer) > 0 || fs.out.IsClosed() {
		return
	}
	if fs.upstreamDone {
		fs.out.Complete()
		return
	}
	if fs.out.IsAvailable() && !fs.in.IsPulled() && !fs.in.IsClosed() {
		fs.in.Pull()
	}
}

func (fs *flatMapSliceExecutor) apply(element any) (items []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverToError(r)
		}
	}()
	return fs.fn(element)
}

func (fs *flatMapSliceExecutor) OnUpstreamFinish() {
	fs.upstreamDone = true
	if len(fs.buffer) == 0 {
		fs.out.Complete()
	}
}

func (fs *flatMapSliceExecutor) OnUpstreamFailure(err error) {
	fs.buffer = nil
	fs.out.Fail(err)
}
