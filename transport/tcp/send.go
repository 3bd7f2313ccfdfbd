package tcp

import (
	"github.com/packetloom/tcpcore/seqnum"
)

// IPSink is the fire-and-forget IP emission sink of spec section 6
// (send_ip). The core never blocks on it and never re-enters a socket's
// lock while calling it, per spec section 9's lock-ordering note
type IPSink interface {
	SendIP(packet []byte) error
}

// SegmentBuilder is the out-of-scope wire encoder of spec section 1
// ("segment encoding/decoding and checksum math"). It turns a fully-formed
// outbound segment description into wire bytes; this core never inspects
// the result, only hands it to the IPSink
type SegmentBuilder interface {
	Build(id EndpointTuple, seq, ack seqnum.Value, wnd seqnum.Size, flags Flags, payload []byte) []byte
}

// sendControlWithParamsLocked assembles and emits a zero-payload segment
// using the given (seq, ack, wnd) triple rather than the socket's current
// state. This is the "clean implementation" alternative design note 9
// recommends in place of cloning a phantom socket to answer duplicate data
// with the correct rcv_nxt without mutating the real socket
func (s *Socket) sendControlWithParamsLocked(flags Flags, seq, ack seqnum.Value, wnd seqnum.Size) {
	pkt := s.builder.Build(s.id, seq, ack, wnd, flags, nil)
	if err := s.sink.SendIP(pkt); err != nil {
		s.log.Warn().Err(err).Msg("send_ip failed for control segment")
	}
}

// sendControlLocked implements spec section 6's send_control: it assembles
// a zero-payload segment with the socket's current snd_nxt, rcv_nxt and
// rcv_wnd. For SYN and FIN it also enqueues onto send_queue and arms the
// retransmission timer; for a bare ACK it does neither
func (s *Socket) sendControlLocked(flags Flags) {
	seq := s.sndNxt
	s.sendControlWithParamsLocked(flags, seq, s.rcvNxt, s.rcvWnd)

	if flags.Has(FlagSyn) || flags.Has(FlagFin) {
		seg := &PendingSegment{Seq: seq, Length: 1, Flags: flags}
		s.sendQueue.PushBack(seg)
		s.sndNxt = seq.Add(1)
		s.updateInflight()
		s.wheel.Arm(s.retransTimer, s.tunables.RTOInitial)
	}
}

// enqueueDataLocked appends a new data segment to send_queue and advances
// snd_nxt past it, without transmitting; the caller is responsible for the
// first transmission (spec section 6, upper-layer send path)
func (s *Socket) enqueueDataLocked(payload []byte) *PendingSegment {
	seg := &PendingSegment{
		Seq:    s.sndNxt,
		Length: seqnum.Size(len(payload)),
		Flags:  FlagAck,
		Raw:    payload,
	}
	s.sendQueue.PushBack(seg)
	s.sndNxt = seg.Seq.Add(seg.Length)
	s.updateInflight()
	return seg
}

// transmitSegmentLocked sends a segment for the first time and arms (or
// refreshes) the retransmission timer, per the invariant that the timer is
// enabled whenever send_queue is non-empty (spec section 3)
func (s *Socket) transmitSegmentLocked(seg *PendingSegment) {
	pkt := s.builder.Build(s.id, seg.Seq, s.rcvNxt, s.rcvWnd, seg.Flags, seg.Raw)
	if err := s.sink.SendIP(pkt); err != nil {
		s.log.Warn().Err(err).Msg("send_ip failed for data segment")
	}
	s.wheel.Arm(s.retransTimer, s.tunables.RTOInitial)
}

// retransmitCopyLocked duplicates a pending segment's bytes and hands the
// copy to the IP sink. The original stays in send_queue until cumulatively
// acknowledged, per spec section 4.4's "All retransmission in this
// component is done by duplicating the pending segment's bytes"
func (s *Socket) retransmitCopyLocked(seg *PendingSegment) {
	var raw []byte
	if len(seg.Raw) > 0 {
		raw = append([]byte(nil), seg.Raw...)
	}
	pkt := s.builder.Build(s.id, seg.Seq, s.rcvNxt, s.rcvWnd, seg.Flags, raw)
	if err := s.sink.SendIP(pkt); err != nil {
		s.log.Warn().Err(err).Msg("send_ip failed for retransmitted segment")
	}
}

// hardCloseLocked implements the hard-close error paths of spec section 7:
// RST received, retransmission exhaustion, and resource allocation failure
// all converge here. Waiters are released with err as the connection result
func (s *Socket) hardCloseLocked(err error) {
	s.closeErr = err
	s.setState(StateClosed)
	s.free()
}
