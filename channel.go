package flowz

// channelSource feeds a stream from a Go channel. A reader goroutine blocks
// on the channel so the stream loop never does; pulls are handed to it
// through a one-slot token channel, which the protocol's single outstanding
// pull can never overflow.
type channelSource struct {
	s     *stream
	out   Outlet[any]
	recv  func(dead <-chan struct{}) (element any, ok bool, alive bool)
	pulls chan struct{}
}

func (src *channelSource) setOutlet(out Outlet[any]) { src.out = out }

func (src *channelSource) start() {
	go src.read()
}

func (src *channelSource) read() {
	for {
		select {
		case <-src.pulls:
		case <-src.s.dead:
			return
		}
		element, ok, alive := src.recv(src.s.dead)
		if !alive {
			return
		}
		if !ok {
			src.s.dispatch(func() {
				if !src.out.IsClosed() {
					src.out.Complete()
				}
			})
			return
		}
		src.s.dispatch(func() {
			if !src.out.IsAvailable() {
				return
			}
			src.out.Push(element)
			// Standing demand needs the reader re-armed without another
			// pull signal.
			if src.out.IsAvailable() {
				src.token()
			}
		})
	}
}

func (src *channelSource) token() {
	select {
	case src.pulls <- struct{}{}:
	default:
	}
}

func (src *channelSource) OnPull() {
	src.token()
}

func (src *channelSource) OnDownstreamFinish() {}

// channelSink writes stream elements to a Go channel. A writer goroutine
// absorbs the blocking sends; the sink pulls the next element only after
// the writer has confirmed the previous send, so channel backpressure maps
// one-for-one onto stream demand.
//
// closeCh is nil when the channel is caller-owned. An owned channel is also
// closed on failure so range loops over it terminate; the error itself
// travels through the task.
type channelSink struct {
	s       *stream
	in      Inlet[any]
	send    func(dead <-chan struct{}, element any) bool
	closeCh func()
	elems   chan any

	inFlight     bool
	upstreamDone bool
	elemsClosed  bool
}

func (sk *channelSink) setInlet(in Inlet[any]) { sk.in = in }

func (sk *channelSink) start() {
	go sk.write()
	sk.in.Pull()
}

func (sk *channelSink) write() {
	for element := range sk.elems {
		if !sk.send(sk.s.dead, element) {
			// Stream died mid-send; close an owned channel on the way out.
			if sk.closeCh != nil {
				sk.closeCh()
			}
			return
		}
		sk.s.dispatch(sk.ack)
	}
	if sk.closeCh != nil {
		sk.closeCh()
	}
	sk.s.dispatch(func() { sk.s.complete(Void{}) })
}

// closeElems releases the writer; every terminal path must reach it or the
// writer goroutine blocks on the element channel forever.
func (sk *channelSink) closeElems() {
	if !sk.elemsClosed {
		sk.elemsClosed = true
		close(sk.elems)
	}
}

func (sk *channelSink) ack() {
	sk.inFlight = false
	sk.s.countElement()
	if sk.upstreamDone {
		sk.closeElems()
		return
	}
	if !sk.in.IsClosed() {
		sk.in.Pull()
	}
}

func (sk *channelSink) OnPush() {
	element := sk.in.Grab()
	sk.inFlight = true
	sk.elems <- element
}

func (sk *channelSink) OnUpstreamFinish() {
	sk.upstreamDone = true
	if !sk.inFlight {
		sk.closeElems()
	}
}

func (sk *channelSink) OnUpstreamFailure(err error) {
	sk.s.fail(err)
	sk.closeElems()
}

func (sk *channelSink) halt(err error) {
	sk.in.Cancel()
	sk.s.fail(err)
	sk.closeElems()
}
