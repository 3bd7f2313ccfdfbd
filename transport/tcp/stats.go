package tcp

import "github.com/packetloom/tcpcore/seqnum"

// SocketInfo is a point-in-time, read-only snapshot of a socket's protocol
// state, modelled on the TCPInfo-style diagnostic structs surfaced by
// _examples/runZeroInc-conniver's go-tcpinfo package and by
// _examples/runZeroInc-sockstats. It exists purely for observability (spec
// section 3's NEW "Stats snapshot" addition in SPEC_FULL.md) and plays no
// role in the protocol itself
type SocketInfo struct {
	ID    string
	State State

	SndUna seqnum.Value
	SndNxt seqnum.Value
	RcvNxt seqnum.Value

	Cwnd     int
	Ssthresh int
	DupAck   int
	Inflight seqnum.Size

	SendQueueLen   int
	OfoQueueLen    int
	HeadRetransmits int
}

// Stats takes a consistent snapshot of the socket's diagnostic fields under
// mu
func (s *Socket) Stats() SocketInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := SocketInfo{
		ID:           s.ID.String(),
		State:        s.state,
		SndUna:       s.sndUna,
		SndNxt:       s.sndNxt,
		RcvNxt:       s.rcvNxt,
		Cwnd:         s.cwnd,
		Ssthresh:     s.ssthresh,
		DupAck:       s.dupAck,
		Inflight:     s.inflight,
		OfoQueueLen:  s.ofoQueue.len(),
	}

	n := 0
	for e := s.sendQueue.list.Front(); e != nil; e = e.Next() {
		n++
	}
	info.SendQueueLen = n

	if head := s.sendQueue.Front(); head != nil {
		info.HeadRetransmits = head.RetransCount
	}
	return info
}
