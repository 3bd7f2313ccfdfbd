package tcp

import (
	"github.com/packetloom/tcpcore/internal/metrics"
)

// handleAckEstablishedLocked implements spec section 4.4 in full: the
// out-of-range, duplicate and new-data-acknowledged cases, followed by
// send_queue pruning, recovery-epoch retransmission, and retransmission
// timer rearm/cancel. Callers must hold mu and the socket must be in
// ESTABLISHED (or a state that reuses this path, e.g. CLOSE_WAIT)
func (s *Socket) handleAckEstablishedLocked(cb *ControlBlock) {
	ack := cb.Ack

	switch {
	case ack.LessThan(s.sndUna) || s.sndNxt.LessThan(ack):
		// Out-of-range ACK: old or invalid, log and ignore (spec 4.4.1)
		s.log.Debug().Msg("ack out of [snd_una, snd_nxt], ignored")
		return

	case ack == s.sndUna:
		s.handleDuplicateAckLocked(cb)
		return

	default:
		s.handleNewAckLocked(cb)
	}
}

// handleDuplicateAckLocked implements spec section 4.4, point 2. The window
// it carries is applied regardless of dup_ack count: a zero-window probe's
// reply is itself a duplicate ACK, and spec section 8 requires wait_send to
// wake as soon as adv_wnd goes non-zero, not only once fast retransmit fires
func (s *Socket) handleDuplicateAckLocked(cb *ControlBlock) {
	if s.advWnd != cb.Window {
		s.advWnd = cb.Window
		s.updateSndWnd()
		s.waitSend.Broadcast()
	}

	if s.recoveryPoint.GreaterThan(cb.Ack) {
		// Still inside a prior recovery epoch; this duplicate doesn't
		// count (spec: "only counted when recovery_point <= ack")
		return
	}

	s.dupAck++
	metrics.DupAcks.Inc()

	if s.dupAck < DupAckThreshold {
		return
	}

	s.enterFastRecoveryLocked()
	metrics.FastRecoveryEntries.Inc()

	if head := s.sendQueue.Front(); head != nil {
		s.retransmitCopyLocked(head)
		metrics.Retransmissions.WithLabelValues("fast_retransmit").Inc()
	}
}

// handleNewAckLocked implements spec section 4.4, point 3
func (s *Socket) handleNewAckLocked(cb *ControlBlock) {
	ack := cb.Ack
	acked := s.sndUna.Size(ack)

	s.dupAck = 0
	s.advWnd = cb.Window
	s.growCwndLocked(acked)
	s.updateSndWnd()
	s.sndUna = ack
	s.updateInflight()

	for {
		head := s.sendQueue.Front()
		if head == nil || head.Seq.GreaterThanEq(ack) {
			break
		}
		s.sendQueue.Remove(head)
	}

	if ack.LessThan(s.recoveryPoint) {
		if head := s.sendQueue.Front(); head != nil {
			s.retransmitCopyLocked(head)
			metrics.Retransmissions.WithLabelValues("recovery").Inc()
		}
	}

	if s.sendQueue.Empty() {
		s.wheel.Disarm(s.retransTimer)
	} else {
		s.wheel.Arm(s.retransTimer, s.tunables.RTOInitial)
	}

	metrics.Cwnd.Set(float64(s.cwnd))
	s.waitSend.Broadcast()
}
