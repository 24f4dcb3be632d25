package flowz

// Outlet is the producer-facing half of one stage boundary, symmetric to
// Inlet. A stage emits elements downstream through an Outlet: it is notified
// of demand through its OutletListener, may Push exactly one element per
// granted pull, and terminates the boundary with Complete or Fail.
//
// Like Inlet, an Outlet is owned by exactly one stage, all calls happen on
// the stream's serialized execution context, and protocol violations
// (pushing without demand, signalling twice, pushing after Complete) panic
// immediately.
//
// A push may race with a cancellation travelling upstream; in that case the
// pushed element is silently discarded and never delivered downstream.
type Outlet[T any] interface {
	// Push sends one element downstream. It is illegal unless demand is
	// outstanding (IsAvailable) and the outlet is not closed.
	Push(element T)

	// IsAvailable reports whether demand is outstanding, i.e. whether a
	// push is currently permitted. Permanently true in backpressureless
	// mode until the outlet closes.
	IsAvailable() bool

	// IsClosed reports whether the outlet is terminated: completed or
	// failed by this side, or cancelled by downstream.
	IsClosed() bool

	// Complete signals normal completion downstream and closes the outlet.
	// Exactly one of Complete or Fail may be called; a second terminal
	// signal is illegal. Completing after downstream cancelled is a no-op.
	Complete()

	// Fail signals failure downstream and closes the outlet. Exactly one of
	// Complete or Fail may be called; a second terminal signal is illegal.
	// Failing after downstream cancelled is a no-op.
	Fail(err error)

	// SetListener installs the receiver of demand and cancellation
	// notifications. It must be called exactly once, before any signal
	// flows through the boundary.
	SetListener(listener OutletListener)
}

// OutletListener receives the notifications of one Outlet. Exactly one
// listener is installed per outlet, and the materializer guarantees that its
// methods are never invoked concurrently with each other.
type OutletListener interface {
	// OnPull signals that downstream granted demand for one element (or, in
	// backpressureless mode, standing demand).
	OnPull()

	// OnDownstreamFinish signals that downstream cancelled. No further
	// signal may be issued on the outlet in either direction.
	OnDownstreamFinish()
}
