package tcp

import (
	"sync"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/packetloom/tcpcore/internal/corelog"
	"github.com/packetloom/tcpcore/internal/metrics"
	"github.com/packetloom/tcpcore/seqnum"
	"github.com/packetloom/tcpcore/sleep"
)

// Socket is the per-connection record of spec section 2/3. Every mutation
// that the spec's invariants depend on happens with mu held; the four
// wait_* condition variables all share mu, per spec section 5's "per-socket
// lock coincident with its wait_send condition"
type Socket struct {
	ID xid.ID

	id       EndpointTuple
	tunables Tunables
	sink     IPSink
	builder  SegmentBuilder
	registry EndpointRegistry
	wheel    *TimerWheel

	mu sync.Mutex

	state State

	iss seqnum.Value

	sndUna seqnum.Value
	sndNxt seqnum.Value

	rcvNxt seqnum.Value

	sndWnd seqnum.Size
	rcvWnd seqnum.Size
	advWnd seqnum.Size

	cwnd          int
	ssthresh      int
	dupAck        int
	recoveryPoint seqnum.Value
	inflight      seqnum.Size

	rcvBuf RingBuffer

	sendQueue segmentList
	ofoQueue  *ofoQueue

	// listen-socket-only state
	listenQueue []*Socket
	acceptQueue []*Socket
	parent      *Socket
	backlog     int

	waitConnect *sync.Cond
	waitAccept  *sync.Cond
	waitSend    *sync.Cond
	waitRecv    *sync.Cond

	connectErr error
	closeErr   error
	connected  bool

	retransTimer  *TimerHandle
	timewaitTimer *TimerHandle

	// newSegmentWaker/notificationWaker drive the listener's dispatch
	// loop (listener.go), kept from the teacher's protocolListenLoop
	newSegmentWaker    sleep.Waker
	notificationWaker  sleep.Waker
	segmentQueue       []*ControlBlock

	log zerolog.Logger
}

// NewSocket allocates a socket in the CLOSED state. Callers normally reach
// sockets through Dial/Listen (api.go) rather than this constructor directly
func NewSocket(id EndpointTuple, tunables Tunables, sink IPSink, builder SegmentBuilder, registry EndpointRegistry, wheel *TimerWheel) *Socket {
	s := &Socket{
		ID:       xid.New(),
		id:       id,
		tunables: tunables,
		sink:     sink,
		builder:  builder,
		registry: registry,
		wheel:    wheel,
		state:    StateClosed,
		cwnd:     InitCwnd,
		ssthresh: 1 << 30,
		rcvBuf:   newRingBuffer(tunables.RcvBufSize),
		ofoQueue: newOfoQueue(),
	}
	s.retransTimer = &TimerHandle{kind: TimerRetrans, owner: s}
	s.timewaitTimer = &TimerHandle{kind: TimerTimeWait, owner: s}
	s.waitConnect = sync.NewCond(&s.mu)
	s.waitAccept = sync.NewCond(&s.mu)
	s.waitSend = sync.NewCond(&s.mu)
	s.waitRecv = sync.NewCond(&s.mu)
	s.rcvWnd = seqnum.Size(s.rcvBuf.FreeSpace())
	s.log = corelog.L.With().Str("socket", s.ID.String()).Str("endpoint", id.String()).Logger()
	return s
}

// setState performs an FSM transition, logging and counting it. Callers
// must hold mu
func (s *Socket) setState(next State) {
	if s.state == next {
		return
	}
	s.log.Debug().Stringer("from", s.state).Stringer("to", next).Msg("state transition")
	metrics.StateTransitions.WithLabelValues(s.state.String(), next.String()).Inc()
	s.state = next
}

// State returns the socket's current FSM state
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// updateSndWnd recomputes snd_wnd = min(adv_wnd, cwnd), the invariant of
// spec section 3. Callers must hold mu
func (s *Socket) updateSndWnd() {
	c := seqnum.Size(s.cwnd)
	if s.advWnd < c {
		s.sndWnd = s.advWnd
	} else {
		s.sndWnd = c
	}
}

// updateRcvWnd recomputes rcv_wnd = free_space(rcv_buf), the invariant of
// spec section 3. Callers must hold mu
func (s *Socket) updateRcvWnd() {
	s.rcvWnd = seqnum.Size(s.rcvBuf.FreeSpace())
}

// updateInflight recomputes inflight = snd_nxt - snd_una. Callers must hold mu
func (s *Socket) updateInflight() {
	s.inflight = s.sndUna.Size(s.sndNxt)
}

// free releases a socket's owned resources once it has reached CLOSED and
// been unlinked from the registry (spec section 3, "Ownership and
// lifecycle"). Callers must hold mu
func (s *Socket) free() {
	s.registry.Remove(s.id)
	s.wheel.Disarm(s.retransTimer)
	s.wheel.Disarm(s.timewaitTimer)
	s.sendQueue = segmentList{}
	s.ofoQueue.clear()
	s.waitConnect.Broadcast()
	s.waitAccept.Broadcast()
	s.waitSend.Broadcast()
	s.waitRecv.Broadcast()
}
