package tcp

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/packetloom/tcpcore/seqnum"
)

// fakeBuilder renders a segment description into a ControlBlock directly,
// skipping wire encoding entirely: spec section 1 puts "segment
// encoding/decoding and checksum math" out of scope, so tests exercise the
// core's FSM/congestion/reassembly logic against ControlBlocks rather than
// bytes
type fakeBuilder struct{}

func (fakeBuilder) Build(id EndpointTuple, seq, ack seqnum.Value, wnd seqnum.Size, flags Flags, payload []byte) []byte {
	cb := &ControlBlock{ID: id, Seq: seq, Ack: ack, Flags: flags, Window: wnd, Payload: payload}
	return encodeFakeSegment(cb)
}

// fakeSink records every segment handed to it and can redeliver it to the
// peer socket under test, the same role _examples network/loopback test
// doubles play for teacher packages without a real link layer
type fakeSink struct {
	mu  sync.Mutex
	out []*ControlBlock
}

func (f *fakeSink) SendIP(packet []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, decodeFakeSegment(packet))
	return nil
}

func (f *fakeSink) drain() []*ControlBlock {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.out
	f.out = nil
	return out
}

// encodeFakeSegment/decodeFakeSegment round-trip a ControlBlock through a
// gob-free, allocation-light representation good enough for same-process
// tests; production wiring supplies a real SegmentBuilder/parser pair
func encodeFakeSegment(cb *ControlBlock) []byte {
	clone := *cb
	clone.Payload = append([]byte(nil), cb.Payload...)
	key := fakeSegmentRegistry.store(&clone)
	packet := make([]byte, 8)
	binary.BigEndian.PutUint64(packet, key)
	return packet
}

func decodeFakeSegment(packet []byte) *ControlBlock {
	key := binary.BigEndian.Uint64(packet)
	return fakeSegmentRegistry.load(key)
}

// fakeSegmentRegistry sidesteps actually serialising ControlBlocks to bytes
// (out of scope per spec section 1) by handing back a same-process pointer
// keyed by a monotonically increasing handle
type segmentRegistry struct {
	mu     sync.Mutex
	slots  map[uint64]*ControlBlock
	nextID uint64
}

var fakeSegmentRegistry = &segmentRegistry{slots: make(map[uint64]*ControlBlock)}

func (r *segmentRegistry) store(cb *ControlBlock) uint64 {
	key := atomic.AddUint64(&r.nextID, 1)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[key] = cb
	return key
}

func (r *segmentRegistry) load(key uint64) *ControlBlock {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[key]
}

// newTestSocket builds a standalone socket wired to a fakeSink/fakeBuilder
// and a fresh in-memory registry/timer wheel, for tests that only need to
// drive a single socket's FSM directly via ProcessSegment
func newTestSocket(id EndpointTuple, tunables Tunables) (*Socket, *fakeSink) {
	sink := &fakeSink{}
	wheel := NewTimerWheel(tunables.Tick)
	s := NewSocket(id, tunables, sink, fakeBuilder{}, NewMemRegistry(), wheel)
	return s, sink
}
