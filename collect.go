package flowz

// Collector describes a mutable-reduction in three parts: Supplier creates
// the accumulation, Accumulator folds one element in, Finisher converts the
// accumulation to the result. Combiner exists for API compatibility with
// parallel collection protocols; streams here are sequential, so it is
// never invoked and may be nil.
type Collector[T, A, S any] struct {
	Supplier    func() (A, error)
	Accumulator func(acc A, element T) (A, error)
	Combiner    func(a, b A) A
	Finisher    func(acc A) (S, error)
}

// collectExecutor folds every upstream element into an accumulation and
// emits the finished result as its single output when upstream completes.
// A failure at any point discards the accumulation; only the error
// propagates.
//
// Demand handling: the first downstream pull starts the fold, and upstream
// is pulled one element at a time from then on. The result is pushed
// immediately if downstream demand is still outstanding at completion,
// otherwise held for the next pull.
type collectExecutor struct {
	s           *stream
	name        Name
	supplier    func() (any, error)
	accumulator func(acc, element any) (any, error)
	finisher    func(acc any) (any, error)
	in          Inlet[any]
	out         Outlet[any]

	acc         any
	result      any
	resultReady bool
}

func (c *collectExecutor) setInlet(in Inlet[any])    { c.in = in }
func (c *collectExecutor) setOutlet(out Outlet[any]) { c.out = out }

func (c *collectExecutor) start() {
	acc, err := c.supply()
	if err != nil {
		c.in.Cancel()
		c.out.Fail(c.s.userError(c.name, nil, err))
		return
	}
	c.acc = acc
}

func (c *collectExecutor) OnPull() {
	if c.resultReady {
		c.emit()
		return
	}
	if !c.in.IsPulled() && !c.in.IsClosed() {
		c.in.Pull()
	}
}

func (c *collectExecutor) OnDownstreamFinish() {
	c.acc = nil
	c.in.Cancel()
}

func (c *collectExecutor) OnPush() {
	element := c.in.Grab()
	acc, err := c.accumulate(c.acc, element)
	if err != nil {
		c.acc = nil
		c.in.Cancel()
		c.out.Fail(c.s.userError(c.name, element, err))
		return
	}
	c.acc = acc
	if !c.in.IsClosed() {
		c.in.Pull()
	}
}

func (c *collectExecutor) OnUpstreamFinish() {
	result, err := c.finish(c.acc)
	c.acc = nil
	if err != nil {
		c.out.Fail(c.s.userError(c.name, nil, err))
		return
	}
	c.result = result
	c.resultReady = true
	if c.out.IsAvailable() {
		c.emit()
	}
}

func (c *collectExecutor) emit() {
	c.out.Push(c.result)
	c.result = nil
	c.resultReady = false
	c.out.Complete()
}

func (c *collectExecutor) OnUpstreamFailure(err error) {
	c.acc = nil
	c.out.Fail(err)
}

func (c *collectExecutor) supply() (acc any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverToError(r)
		}
	}()
	return c.supplier()
}

func (c *collectExecutor) accumulate(acc, element any) (next any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverToError(r)
		}
	}()
	return c.accumulator(acc, element)
}

func (c *collectExecutor) finish(acc any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverToError(r)
		}
	}()
	return c.finisher(acc)
}
