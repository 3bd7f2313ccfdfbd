package tcp

import (
	"context"
)

// Dial allocates a socket in SYN_SENT and blocks until the handshake
// completes, fails, or ctx is done, mirroring spec section 6's
// "connect(socket, remote)" upper-layer operation. The caller supplies the
// collaborators this core treats as external (spec section 1/6): where the
// segment actually goes, how it is built, and where sockets are tracked
func Dial(ctx context.Context, local, remote EndpointTuple, tunables Tunables, sink IPSink, builder SegmentBuilder, registry EndpointRegistry, wheel *TimerWheel) (*Socket, error) {
	id := EndpointTuple{LocalAddress: local.LocalAddress, LocalPort: local.LocalPort, RemoteAddress: remote.LocalAddress, RemotePort: remote.LocalPort}

	s := NewSocket(id, tunables, sink, builder, registry, wheel)
	registry.Insert(id, s)

	s.mu.Lock()
	s.iss = freshISS()
	s.sndUna = s.iss
	s.sndNxt = s.iss
	s.setState(StateSynSent)
	s.sendControlLocked(FlagSyn)
	s.mu.Unlock()

	return s, waitLocked(ctx, s, func() (bool, error) {
		if s.connected {
			return true, nil
		}
		if s.state == StateClosed {
			return true, s.closeErr
		}
		return false, nil
	}, s.waitConnect)
}

// Accept implements spec section 6's "accept(listener) -> socket": it
// blocks until a child has completed its handshake and been promoted onto
// accept_queue (spec section 4.3's SYN_RECV/ACK row), or the listener is
// closed
func (s *Socket) Accept(ctx context.Context) (*Socket, error) {
	var child *Socket
	err := waitLocked(ctx, s, func() (bool, error) {
		if s.state != StateListen {
			return true, ErrNotListening
		}
		if len(s.acceptQueue) > 0 {
			child = s.acceptQueue[0]
			s.acceptQueue = s.acceptQueue[1:]
			return true, nil
		}
		return false, nil
	}, s.waitAccept)
	return child, err
}

// Listen transitions a freshly allocated socket into LISTEN with the given
// backlog, the prerequisite for spawnChildLocked (listener.go) to accept
// children
func Listen(local EndpointTuple, backlog int, tunables Tunables, sink IPSink, builder SegmentBuilder, registry EndpointRegistry, wheel *TimerWheel) *Socket {
	s := NewSocket(local, tunables, sink, builder, registry, wheel)
	s.backlog = backlog
	s.mu.Lock()
	s.setState(StateListen)
	s.mu.Unlock()
	registry.Insert(local, s)
	return s
}

// Send implements spec section 6's "send(socket, bytes) -> n": it enqueues
// the payload onto send_queue, transmits it immediately if the send window
// allows, and blocks only when the window is fully consumed by data already
// in flight (zero-window backpressure is the only reason Send blocks)
func (s *Socket) Send(ctx context.Context, payload []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		switch s.state {
		case StateEstablished, StateCloseWait:
		case StateClosed:
			if s.closeErr != nil {
				return 0, s.closeErr
			}
			return 0, ErrConnClosing
		default:
			return 0, ErrInvalidState
		}

		if s.inflight < s.sndWnd {
			break
		}

		if err := condWaitCtx(ctx, s.waitSend); err != nil {
			return 0, err
		}
	}

	seg := s.enqueueDataLocked(payload)
	s.transmitSegmentLocked(seg)
	return len(payload), nil
}

// Recv implements spec section 6's "recv(socket, buf) -> n": it blocks on
// wait_recv until rcv_buf has data, the peer's FIN has been consumed (EOF,
// reported as n=0, err=nil), or the socket is reset
func (s *Socket) Recv(ctx context.Context, buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if n := s.rcvBuf.Read(buf); n > 0 {
			s.updateRcvWnd()
			return n, nil
		}

		switch s.state {
		case StateCloseWait, StateLastAck, StateClosed:
			if s.closeErr != nil {
				return 0, s.closeErr
			}
			return 0, nil
		}

		if err := condWaitCtx(ctx, s.waitRecv); err != nil {
			return 0, err
		}
	}
}

// Close implements spec section 5's "application-initiated close ...
// injects an ACK|FIN segment into the outbound path and drives the socket
// to FIN_WAIT_1 or LAST_ACK" (spec section 5, Cancellation)
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateEstablished:
		s.sendControlLocked(FlagFin | FlagAck)
		s.setState(StateFinWait1)
	case StateCloseWait:
		s.sendControlLocked(FlagFin | FlagAck)
		s.setState(StateLastAck)
	case StateListen, StateSynSent:
		s.setState(StateClosed)
		s.free()
	default:
		return ErrInvalidState
	}
	return nil
}

// waitLocked polls cond, which is one of s's four condition variables,
// under s.mu until test reports done, ctx is cancelled, or the socket is
// torn down. test must not block and must be safe to call with s.mu held
func waitLocked(ctx context.Context, s *Socket, test func() (bool, error), cond interface{ Wait() }) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		done, err := test()
		if done {
			return err
		}
		if err := condWaitCtx(ctx, cond); err != nil {
			return err
		}
	}
}

// condWaitCtx waits on cond (already held) while honouring ctx
// cancellation. Because sync.Cond has no cancellable Wait, cancellation is
// delivered by a helper goroutine that broadcasts the cond when ctx is
// done; this is the same shape used for context-aware condition variables
// throughout the pack's networking examples
func condWaitCtx(ctx context.Context, cond interface{ Wait() }) error {
	if ctx == nil {
		cond.Wait()
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if b, ok := cond.(interface{ Broadcast() }); ok {
				b.Broadcast()
			}
		case <-done:
		}
	}()
	cond.Wait()
	close(done)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
