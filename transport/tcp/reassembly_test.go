package tcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetloom/tcpcore/seqnum"
)

func newSocketForReassembly() *Socket {
	s, _ := newTestSocket(EndpointTuple{LocalAddress: "a", LocalPort: 1, RemoteAddress: "b", RemotePort: 2}, DefaultTunables())
	s.state = StateEstablished
	s.rcvNxt = 1000
	return s
}

func TestAcceptInOrderAdvancesRcvNxt(t *testing.T) {
	s := newSocketForReassembly()
	cb := &ControlBlock{Seq: 1000, Flags: FlagAck, Payload: []byte("abc")}

	accepted, sawFin := s.handleDataSegmentLocked(cb)

	assert.True(t, accepted)
	assert.False(t, sawFin)
	assert.Equal(t, seqnum.Value(1003), s.rcvNxt)

	buf := make([]byte, 8)
	n := s.rcvBuf.Read(buf)
	assert.Equal(t, "abc", string(buf[:n]))
}

func TestAcceptInOrderDrainsContiguousOfoEntries(t *testing.T) {
	s := newSocketForReassembly()

	future := &ControlBlock{Seq: 1003, Flags: FlagAck, Payload: []byte("def")}
	accepted, _ := s.handleDataSegmentLocked(future)
	assert.False(t, accepted)
	require.Equal(t, 1, s.ofoQueue.len())

	inOrder := &ControlBlock{Seq: 1000, Flags: FlagAck, Payload: []byte("abc")}
	accepted, sawFin := s.handleDataSegmentLocked(inOrder)

	assert.True(t, accepted)
	assert.False(t, sawFin)
	assert.True(t, s.ofoQueue.empty(), "the drain must consume the now-contiguous ofo entry")
	assert.Equal(t, seqnum.Value(1006), s.rcvNxt)

	buf := make([]byte, 8)
	n := s.rcvBuf.Read(buf)
	assert.Equal(t, "abcdef", string(buf[:n]))
}

func TestDuplicateSegmentIsDroppedAndReAcked(t *testing.T) {
	s := newSocketForReassembly()
	cb := &ControlBlock{Seq: 990, Flags: FlagAck, Payload: []byte("old")}

	accepted, sawFin := s.handleDataSegmentLocked(cb)

	assert.False(t, accepted)
	assert.False(t, sawFin)
	assert.Equal(t, seqnum.Value(1000), s.rcvNxt, "a duplicate must not move rcv_nxt")
	assert.Equal(t, 0, s.rcvBuf.Len())
}

func TestDrainedFinClearsRemainingOfoEntries(t *testing.T) {
	s := newSocketForReassembly()

	// A segment past the FIN that will never become deliverable.
	stale := &ControlBlock{Seq: 1010, Flags: FlagAck, Payload: []byte("zzz")}
	s.handleDataSegmentLocked(stale)
	require.Equal(t, 1, s.ofoQueue.len())

	fin := &ControlBlock{Seq: 1000, Flags: FlagFin | FlagAck}
	accepted, sawFin := s.handleDataSegmentLocked(fin)

	assert.True(t, accepted)
	assert.True(t, sawFin)
	assert.True(t, s.ofoQueue.empty(), "a consumed FIN discards whatever else was parked on ofo_queue")
}

func TestFutureSegmentParkedOnOfoQueueElicitsDuplicateAck(t *testing.T) {
	s := newSocketForReassembly()
	cb := &ControlBlock{Seq: 1010, Flags: FlagAck, Payload: []byte("late")}

	accepted, _ := s.handleDataSegmentLocked(cb)

	assert.False(t, accepted)
	entry, ok := s.ofoQueue.at(1010)
	require.True(t, ok)
	assert.Equal(t, []byte("late"), entry.payload)

	sent := drainChildFinSink(t, s)
	require.Len(t, sent, 1)
	assert.Equal(t, FlagAck, sent[0].Flags)
	assert.Equal(t, seqnum.Value(1000), sent[0].Ack, "the immediate ack must still carry rcv_nxt, not the future seq")
}

func drainChildFinSink(t *testing.T, s *Socket) []*ControlBlock {
	t.Helper()
	fs, ok := s.sink.(*fakeSink)
	require.True(t, ok)
	return fs.drain()
}
