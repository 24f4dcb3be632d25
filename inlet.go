package flowz

// Inlet is the consumer-facing half of one stage boundary. A stage reads
// elements from its upstream through an Inlet, one at a time, under explicit
// demand control: it must Pull before an element can arrive, it is notified
// of the arrival through its InletListener, and it takes the element with
// Grab.
//
// State machine, per element:
//
//	Pull() -> OnPush() -> Grab() -> Pull() -> ...
//
// with three terminal transitions: Cancel (issued by this side),
// OnUpstreamFinish and OnUpstreamFailure (issued by the other side). After
// any of them the inlet is closed and all further signals are illegal or
// discarded.
//
// Protocol violations (pulling while a pull is outstanding, grabbing without
// a delivered element, pulling a closed inlet) are caller bugs and panic
// immediately. They are never delivered as stream failures.
//
// All methods must be called from the stream's serialized execution context;
// an Inlet is owned by exactly one stage and is not safe for concurrent use.
type Inlet[T any] interface {
	// Pull requests one element from upstream. It is illegal if the inlet is
	// closed or if a pull is already outstanding (no element has arrived
	// since the last Pull). Any delivered element that was not grabbed is
	// forfeited by the next Pull.
	Pull()

	// BackpressurelessPull switches the inlet into backpressureless mode:
	// upstream gains standing permission to push, and elements are delivered
	// directly through OnBackpressurelessPush instead of the two-phase
	// push/grab handshake. The switch is one-time and irrevocable; Pull and
	// BackpressurelessPull are both illegal afterwards. The installed
	// listener must implement BackpressurelessListener[T], otherwise the
	// call panics.
	BackpressurelessPull()

	// IsPulled reports whether demand is outstanding: a pull was issued and
	// no element has arrived since. Permanently true in backpressureless
	// mode until the inlet closes.
	IsPulled() bool

	// IsAvailable reports whether a delivered element is waiting to be
	// grabbed.
	IsAvailable() bool

	// IsClosed reports whether the inlet is terminated: cancelled by this
	// side, or finished or failed by upstream.
	IsClosed() bool

	// Cancel closes the inlet immediately and propagates cancellation
	// upstream. Any held element is dropped, and no further notification is
	// delivered to the listener. Calling Cancel on an already closed inlet
	// is a no-op, not an error.
	Cancel()

	// Grab removes and returns the element most recently delivered via
	// OnPush. It is illegal unless an arrival was signalled since the last
	// Grab and the inlet has not been cancelled.
	Grab() T

	// SetListener installs the receiver of arrival, finish and failure
	// notifications. It must be called exactly once, before any signal
	// flows through the boundary.
	SetListener(listener InletListener)
}

// InletListener receives the notifications of one Inlet. Exactly one
// listener is installed per inlet, and the materializer guarantees that its
// methods are never invoked concurrently with each other.
type InletListener interface {
	// OnPush signals that a previously requested element has arrived and
	// can be taken with Grab.
	OnPush()

	// OnUpstreamFinish signals that upstream completed normally. No further
	// notification follows.
	OnUpstreamFinish()

	// OnUpstreamFailure signals that upstream failed. No further
	// notification follows.
	OnUpstreamFailure(err error)
}

// BackpressurelessListener is the opt-in capability for backpressureless
// mode. An inlet only enters the mode when its listener implements this
// interface; stages that never opt in can never receive a direct push and
// the capability check preserves the fail-fast usage-error semantics of an
// unsupported direct push.
type BackpressurelessListener[T any] interface {
	InletListener

	// OnBackpressurelessPush delivers an element directly, bypassing the
	// push/grab handshake. Only invoked after BackpressurelessPull.
	OnBackpressurelessPush(element T)
}
