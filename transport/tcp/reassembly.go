package tcp

// handleDataSegmentLocked implements spec section 4.2 in full. It is used
// both for plain data segments and for FIN segments, since spec section 4.3
// says "FIN: accepted only when seq == rcv_nxt (otherwise enqueued on
// ofo_queue)" — exactly the same in-order/duplicate/future split as data.
//
// accepted reports whether the segment advanced rcv_nxt (i.e. arrived
// in-order); sawFin reports whether a FIN was consumed either directly or
// while draining ofo_queue, so the caller (process.go) can apply the
// state-specific FIN transition of spec section 4.3's FIN table. Callers
// must hold mu
func (s *Socket) handleDataSegmentLocked(cb *ControlBlock) (accepted, sawFin bool) {
	switch {
	case cb.Seq == s.rcvNxt:
		sawFin = s.acceptInOrderLocked(cb)
		return true, sawFin

	case cb.Seq.LessThan(s.rcvNxt):
		// Duplicate: emit an ACK carrying the current rcv_nxt and drop.
		// Parameterising sendControl by an explicit triple avoids the
		// phantom-socket copy the original used (spec section 9)
		s.sendControlWithParamsLocked(FlagAck, s.sndNxt, s.rcvNxt, s.rcvWnd)
		return false, false

	default:
		// Future: clone the payload into an ofo_queue entry and emit
		// an immediate duplicate ACK for rcv_nxt
		s.ofoQueue.insert(&ofoEntry{cb: *cb, payload: append([]byte(nil), cb.Payload...)})
		s.sendControlWithParamsLocked(FlagAck, s.sndNxt, s.rcvNxt, s.rcvWnd)
		return false, false
	}
}

// acceptInOrderLocked appends the segment's payload, advances rcv_nxt, then
// drains ofo_queue of every entry that has become contiguous, per spec
// section 4.2, step 1. It returns whether a FIN was consumed, either on
// the segment itself or on a drained entry
func (s *Socket) acceptInOrderLocked(cb *ControlBlock) bool {
	if len(cb.Payload) > 0 {
		s.rcvBuf.Write(cb.Payload)
	}
	s.rcvNxt = cb.SeqEnd()
	sawFin := cb.Flags.Has(FlagFin)

	for !sawFin {
		entry, ok := s.ofoQueue.at(s.rcvNxt)
		if !ok {
			break
		}
		if len(entry.payload) > 0 {
			s.rcvBuf.Write(entry.payload)
		}
		s.rcvNxt = entry.cb.SeqEnd()
		s.ofoQueue.remove(entry)
		if entry.cb.Flags.Has(FlagFin) {
			sawFin = true
		}
	}

	if sawFin {
		// A drained (or directly-delivered) FIN makes the remainder of
		// the out-of-order queue moot: nothing beyond a FIN can ever
		// become deliverable
		s.ofoQueue.clear()
	}

	s.updateRcvWnd()
	s.sendControlWithParamsLocked(FlagAck, s.sndNxt, s.rcvNxt, s.rcvWnd)
	s.waitRecv.Broadcast()
	return sawFin
}
