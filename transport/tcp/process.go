package tcp

import "github.com/packetloom/tcpcore/seqnum"

// ProcessSegment is the dispatcher of spec section 4.3: every inbound
// control block for a socket passes through here, after the out-of-scope
// lower layer has already demultiplexed it to the right Socket via
// EndpointRegistry. Dispatch is purely on the flag set of the segment, per
// spec section 4.3's "Dispatch is on the flag set of the incoming segment".
// "ACK alone" (spec section 4.3) and the data-bearing default row both set
// FlagAck, so the two are split on payload: a bare ACK carries none, a
// data-bearing segment always does
func ProcessSegment(s *Socket, cb *ControlBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}

	switch {
	case cb.Flags.Has(FlagRst):
		processRST(s)

	case cb.Flags == FlagSyn && s.state == StateListen:
		processSynAtListen(s, cb)

	case cb.Flags.Has(FlagSyn) && cb.Flags.Has(FlagAck):
		processSynAck(s, cb)

	case cb.Flags.Has(FlagFin):
		processFin(s, cb)

	case cb.Flags.Has(FlagAck) && len(cb.Payload) == 0:
		processAck(s, cb)

	default:
		processData(s, cb)
	}
}

// processRST implements spec section 4.3's RST row: transition to CLOSED,
// cancel the retransmission timer, and unlink from the hash tables. No reply
func processRST(s *Socket) {
	s.log.Info().Msg("RST received, resetting connection")
	s.hardCloseLocked(ErrConnReset)
}

// processSynAtListen implements spec section 4.3's "SYN alone at LISTEN"
// row, delegating child allocation to listener.go's spawnChildLocked
func processSynAtListen(s *Socket, cb *ControlBlock) {
	s.spawnChildLocked(cb)
}

// processSynAck implements spec section 4.3's "SYN|ACK" row. At SYN_SENT it
// completes the active-open handshake; at ESTABLISHED it is a retransmitted
// handshake step whose ACK was lost and is ignored; anywhere else it is
// stale and dropped
func processSynAck(s *Socket, cb *ControlBlock) {
	switch s.state {
	case StateSynSent:
		ack := cb.Ack
		if ack.LessThan(s.sndUna) || s.sndNxt.LessThan(ack) {
			s.log.Debug().Msg("SYN|ACK carries an ack outside [snd_una, snd_nxt], dropped")
			return
		}

		s.wheel.Disarm(s.retransTimer)
		if head := s.sendQueue.Front(); head != nil {
			s.sendQueue.Remove(head)
		}

		s.cwnd = InitCwnd
		s.advWnd = cb.Window
		s.ssthresh = int(cb.Window) / 2
		if s.ssthresh < MSS {
			s.ssthresh = MSS
		}
		s.dupAck = 0
		s.recoveryPoint = ack.Add(^seqnum.Size(0)) // ack - 1
		s.inflight = 0
		s.updateSndWnd()
		s.sndUna = ack
		s.rcvNxt = cb.SeqEnd()
		s.updateRcvWnd()

		s.setState(StateEstablished)
		s.connected = true
		s.waitConnect.Broadcast()
		s.sendControlWithParamsLocked(FlagAck, s.sndNxt, s.rcvNxt, s.rcvWnd)

	case StateEstablished:
		s.log.Debug().Msg("retransmitted SYN|ACK at ESTABLISHED, lost-ack handshake tail, ignored")

	default:
		s.log.Debug().Stringer("state", s.state).Msg("unexpected SYN|ACK, dropped")
	}
}

// processAck implements spec section 4.3's "ACK alone" row: a payload-free
// ACK across every state that names one explicitly, with ESTABLISHED and
// every other state that still runs the data path (e.g. CLOSE_WAIT, before
// the local side has closed) falling through to handleAckEstablishedLocked,
// spec section 4.4. Data-bearing ACKs never reach here; ProcessSegment
// routes those to processData, which runs the same section 4.4 path before
// handing the segment to reassembly
func processAck(s *Socket, cb *ControlBlock) {
	switch s.state {
	case StateSynRecv:
		processAckAtSynRecv(s, cb)

	case StateFinWait1:
		if cb.Ack == s.sndNxt {
			s.wheel.Disarm(s.retransTimer)
			s.setState(StateFinWait2)
		}

	case StateLastAck:
		s.wheel.Disarm(s.retransTimer)
		s.setState(StateClosed)
		s.free()

	default:
		s.handleAckEstablishedLocked(cb)
	}
}

// processAckAtSynRecv implements spec section 4.3's "At SYN_RECV with a
// valid ACK" row: symmetrically to the SYN_SENT case, it completes the
// passive-open handshake and promotes the child into its parent's
// accept_queue
func processAckAtSynRecv(s *Socket, cb *ControlBlock) {
	ack := cb.Ack
	if ack.LessThan(s.sndUna) || s.sndNxt.LessThan(ack) {
		s.log.Debug().Msg("ACK at SYN_RECV outside [snd_una, snd_nxt], dropped")
		return
	}

	s.wheel.Disarm(s.retransTimer)
	if head := s.sendQueue.Front(); head != nil {
		s.sendQueue.Remove(head)
	}
	s.sndUna = ack
	s.updateInflight()
	s.setState(StateEstablished)
	s.connected = true

	if s.parent != nil {
		s.promoteChildLocked()
	}
}

// processFin implements spec section 4.3's FIN row. A FIN is only ever
// accepted in-order (seq == rcv_nxt); otherwise it is enqueued on ofo_queue
// exactly like a data segment (spec section 4.2), so the acceptance test and
// reassembly drain are shared with processData via
// handleDataSegmentLocked. What differs per state is the follow-up recorded
// in spec section 4.3's FIN table, applied below
func processFin(s *Socket, cb *ControlBlock) {
	if !isAcceptableLocked(s, cb) {
		s.log.Debug().Msg("unacceptable FIN segment, dropped")
		s.sendControlWithParamsLocked(FlagAck, s.sndNxt, s.rcvNxt, s.rcvWnd)
		return
	}

	wasBelowRcvNxt := cb.Seq.LessThan(s.rcvNxt)
	accepted, sawFin := s.handleDataSegmentLocked(cb)

	switch {
	case accepted && sawFin:
		applyFinDrainedLocked(s)

	case !accepted && wasBelowRcvNxt:
		// A duplicate FIN: handleDataSegmentLocked already re-ACKed
		// rcv_nxt. TIME_WAIT and CLOSE_WAIT additionally need the
		// bookkeeping spec section 4.3's FIN table calls for
		switch s.state {
		case StateTimeWait:
			s.wheel.Arm(s.timewaitTimer, s.tunables.TimeWaitDuration)
		case StateCloseWait:
			// peer's ACK1 was lost; the re-ACK above is the entire fix
		}
	}
}

// processData implements spec section 4.3's default row: a pure data
// segment (only PSH/ACK, or bare payload, set). Piggybacked data at
// SYN_RECV is treated as implicit handshake completion before the segment
// is handed to reassembly. Completion consumes this segment's ACK itself
// (spec section 4.3's "Then dispatch to section 4.2"), so the segment that
// completed the handshake must not additionally run through section 4.4's
// ACK/congestion-control processing
func processData(s *Socket, cb *ControlBlock) {
	completedHandshake := false

	if s.state == StateSynRecv {
		s.wheel.Disarm(s.retransTimer)
		if head := s.sendQueue.Front(); head != nil {
			s.sendQueue.Remove(head)
		}
		s.setState(StateEstablished)
		s.connected = true
		if cb.Flags.Has(FlagAck) {
			s.sndUna = cb.Ack
			s.updateInflight()
		}
		if s.parent != nil {
			s.promoteChildLocked()
		}
		completedHandshake = true
	}

	if cb.Flags.Has(FlagAck) && !completedHandshake {
		s.handleAckEstablishedLocked(cb)
	}

	if !isAcceptableLocked(s, cb) {
		s.log.Debug().Msg("unacceptable data segment, dropped")
		s.sendControlWithParamsLocked(FlagAck, s.sndNxt, s.rcvNxt, s.rcvWnd)
		return
	}

	if accepted, sawFin := s.handleDataSegmentLocked(cb); accepted && sawFin {
		applyFinDrainedLocked(s)
	}
}

// applyFinDrainedLocked applies spec section 4.3's FIN table once a FIN has
// been consumed by handleDataSegmentLocked, whether it was the triggering
// segment itself (processFin) or one drained out of ofo_queue by the
// arrival of an unrelated, in-order segment (processData). Callers must
// hold mu
func applyFinDrainedLocked(s *Socket) {
	switch s.state {
	case StateEstablished:
		// passive close, spec section 4.3 FIN/ESTABLISHED row
		s.setState(StateCloseWait)

	case StateFinWait2:
		// active close: wait for TIME_WAIT to expire
		s.setState(StateTimeWait)
		s.wheel.Arm(s.timewaitTimer, s.tunables.TimeWaitDuration)

	case StateFinWait1:
		// simultaneous close (spec section 9: the intermediate
		// FIN_WAIT_2 transition is collapsed)
		s.wheel.Disarm(s.retransTimer)
		s.setState(StateTimeWait)
		s.wheel.Arm(s.timewaitTimer, s.tunables.TimeWaitDuration)

	case StateLastAck:
		s.log.Debug().Msg("FIN received in LAST_ACK, rare, harmless")

	default:
		s.log.Debug().Stringer("state", s.state).Msg("FIN accepted in unexpected state")
	}
}

// isAcceptableLocked implements spec section 4.1's acceptability test:
// seq < rcv_nxt + max(rcv_wnd, 1) and rcv_nxt <= seq_end. Callers must hold mu
func isAcceptableLocked(s *Socket, cb *ControlBlock) bool {
	window := s.rcvWnd
	if window == 0 {
		window = 1
	}
	if !cb.Seq.LessThan(s.rcvNxt.Add(window)) {
		return false
	}
	return s.rcvNxt.LessThanEq(cb.SeqEnd())
}
