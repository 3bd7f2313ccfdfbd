package tcp

import (
	"github.com/packetloom/tcpcore/seqnum"
)

// growCwndLocked implements the Reno window-growth rule of spec section
// 4.4: additive growth by the freshly-acked byte count during slow start,
// else the classic congestion-avoidance increment scaled by MSS. Callers
// must hold mu
func (s *Socket) growCwndLocked(acked seqnum.Size) {
	if s.cwnd < s.ssthresh {
		s.cwnd += int(acked)
		return
	}
	s.cwnd += (MSS * int(acked)) / s.cwnd
}

// enterFastRecoveryLocked implements spec section 4.4, point 2: halve the
// window, remember the recovery epoch in recovery_point, and leave cwnd at
// ssthresh (Reno, not Reno+, so there is no further inflation here beyond
// what ack.go's single fast-retransmit copy already does). Callers must
// hold mu
func (s *Socket) enterFastRecoveryLocked() {
	s.ssthresh = s.cwnd / 2
	if s.ssthresh < MSS {
		s.ssthresh = MSS
	}
	s.cwnd = s.ssthresh
	s.updateSndWnd()
	s.recoveryPoint = s.sndNxt
	s.dupAck = 0
}
