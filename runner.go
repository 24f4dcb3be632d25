package flowz

import "context"

// Runner is a fully closed stream description: source, processing section
// and sink all decided. Nothing executes until Run.
type Runner[R any] struct {
	chain *chain
}

// BuildOption configures one materialization.
type BuildOption func(*buildOptions)

type buildOptions struct {
	engine *Engine
}

// On materializes the stream on the given engine instead of DefaultEngine.
func On(engine *Engine) BuildOption {
	return func(o *buildOptions) {
		o.engine = engine
	}
}

func resolveEngine(opts []BuildOption) *Engine {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.engine != nil {
		return o.engine
	}
	return DefaultEngine()
}

// terminalInto bridges a stream's erased terminal outcome onto a typed
// task.
func terminalInto[R any](task *Task[R]) func(any, error) {
	return func(value any, err error) {
		if err != nil {
			task.Fail(err)
			return
		}
		task.Complete(value.(R))
	}
}

// Run materializes the stream and starts it. The returned task settles
// with the sink's result when the stream completes, with a stream error if
// it fails, and with ErrCanceled if ctx ends first or the task itself is
// cancelled. Each Run call is an independent execution of the description.
func (r *Runner[R]) Run(ctx context.Context, opts ...BuildOption) *Task[R] {
	task := NewTask[R]()
	engine := resolveEngine(opts)
	s, err := engine.launch(ctx, graph{stages: r.chain.stages(), shape: ClosedShape}, terminalInto(task))
	if err != nil {
		task.Fail(err)
		return task
	}
	task.setCanceller(s.cancel)
	return task
}
