package flowz

// mapExecutor relays elements one-for-one through a transform. Peek rides
// the same executor with a transform that returns its input.
type mapExecutor struct {
	s    *stream
	name Name
	fn   func(any) (any, error)
	in   Inlet[any]
	out  Outlet[any]
}

func (m *mapExecutor) setInlet(in Inlet[any])    { m.in = in }
func (m *mapExecutor) setOutlet(out Outlet[any]) { m.out = out }

func (m *mapExecutor) OnPull() {
	m.in.Pull()
}

func (m *mapExecutor) OnDownstreamFinish() {
	m.in.Cancel()
}

func (m *mapExecutor) OnPush() {
	element := m.in.Grab()
	mapped, err := m.apply(element)
	if err != nil {
		m.in.Cancel()
		m.out.Fail(m.s.userError(m.name, element, err))
		return
	}
	m.out.Push(mapped)
	// Standing downstream demand keeps pulling without another OnPull.
	if m.out.IsAvailable() && !m.in.IsClosed() && !m.in.IsPulled() {
		m.in.Pull()
	}
}

func (m *mapExecutor) apply(element any) (mapped any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverToError(r)
		}
	}()
	return m.fn(element)
}

func (m *mapExecutor) OnUpstreamFinish() {
	m.out.Complete()
}

func (m *mapExecutor) OnUpstreamFailure(err error) {
	m.out.Fail(err)
}
