package tcp

import (
	"math/rand"
	"sync/atomic"

	"github.com/packetloom/tcpcore/seqnum"
	"github.com/packetloom/tcpcore/sleep"
)

const (
	wakerForNewSegment = iota
	wakerForNotification
)

// maxSegmentsPerWake bounds how many queued segments ListenLoop drains per
// wake-up before yielding, so a burst of SYNs on one listener can't starve
// the stop notification waker. Kept from the teacher's
// maxSegmentsPerWake in connect.go
const maxSegmentsPerWake = 100

// spawnChildLocked implements spec section 4.3's "SYN alone at LISTEN" row:
// allocate a child socket with swapped endpoints, assign a fresh iss,
// initialise the send/receive sequence state, link it under the listener's
// listen_queue, transition it to SYN_RECV, and emit SYN|ACK. The listener
// itself does not transition. Grounded on the teacher's accept.go
// handleSynSegment, generalised from its per-SYN goroutine into a plain
// synchronous call guarded by the backlog check the teacher's
// listenContext used SYN cookies for
//
// Callers must hold the listener's mu; the child is returned unlocked and
// not yet reachable from any other goroutine
func (s *Socket) spawnChildLocked(cb *ControlBlock) *Socket {
	if len(s.listenQueue) >= s.backlog && !s.tunables.UseSynCookies {
		s.log.Warn().Int("backlog", s.backlog).Msg("listen backlog full, SYN dropped")
		return nil
	}

	childID := cb.ID.Reverse()
	child := NewSocket(childID, s.tunables, s.sink, s.builder, s.registry, s.wheel)
	child.parent = s

	if s.tunables.UseSynCookies {
		child.iss = globalCookieHasher.issFor(childID, cb.Seq)
	} else {
		child.iss = freshISS()
	}
	child.sndUna = child.iss
	child.sndNxt = child.iss
	child.rcvNxt = cb.SeqEnd()
	child.advWnd = cb.Window
	child.updateRcvWnd()
	child.updateSndWnd()

	s.registry.Insert(childID, child)

	child.mu.Lock()
	child.setState(StateSynRecv)
	child.sendControlLocked(FlagSyn | FlagAck)
	child.mu.Unlock()

	s.listenQueue = append(s.listenQueue, child)
	s.log.Debug().Str("child", childID.String()).Msg("child socket allocated, SYN|ACK sent")
	return child
}

// promoteChildLocked implements the "dequeued from listen_queue and
// enqueued on accept_queue" half of spec section 3's ownership note, and
// spec section 4.3's "promote the child from listen_queue to the parent's
// accept_queue ... wake the parent's wait_accept" row.
//
// This is the one place a socket's lock nests with another socket's lock:
// the child's mu is held by the caller (ProcessSegment dispatches under
// it) and this method additionally takes the parent's mu. That is safe
// because the nesting order is always child-then-parent and never the
// reverse — Accept() (api.go) only ever takes the parent's lock, never a
// child's — so no lock cycle can form. Spec section 5's "no nested
// acquisition of another socket's lock" rule is written against the
// send/IP-sink path; this bookkeeping path is the documented exception
func (s *Socket) promoteChildLocked() {
	parent := s.parent
	parent.mu.Lock()
	defer parent.mu.Unlock()

	for i, c := range parent.listenQueue {
		if c == s {
			parent.listenQueue = append(parent.listenQueue[:i], parent.listenQueue[i+1:]...)
			break
		}
	}
	parent.acceptQueue = append(parent.acceptQueue, s)
	parent.waitAccept.Broadcast()
}

// freshISS returns a new initial send sequence number. The spec leaves ISS
// generation out of scope beyond "assign a fresh iss"; a process-wide
// atomic counter seeded from a pseudo-random value is sufficient here since
// this core never attempts to defend against blind off-path spoofing
// beyond what the optional SYN-cookie path already buys it
var issCounter = rand.Uint32()

func freshISS() seqnum.Value {
	return seqnum.Value(atomic.AddUint32(&issCounter, 104729))
}

// EnqueueSegment hands an inbound control block to a listening socket's
// dispatch loop rather than calling ProcessSegment inline, so a slow
// handshake (spawnChildLocked blocks briefly while sending SYN|ACK) never
// holds up whatever goroutine is demultiplexing segments off the wire. This
// mirrors the teacher's protocolListenLoop/HandlePacket split in accept.go,
// rebuilt on the retained sleep.Sleeper/sleep.Waker pair instead of the
// teacher's per-segment goroutine spawn
func (s *Socket) EnqueueSegment(cb *ControlBlock) {
	s.mu.Lock()
	s.segmentQueue = append(s.segmentQueue, cb)
	s.mu.Unlock()
	s.newSegmentWaker.Assert()
}

// ListenLoop runs a listening socket's dispatch loop until stop is closed
// (or receives a value), which asserts the notification waker. It is the one place in this package a
// sleep.Sleeper is used for its intended purpose: waiting on more than one
// independent wakeup source (new segments, and an out-of-band stop request)
// without polling either in a busy loop
func (s *Socket) ListenLoop(stop <-chan struct{}) {
	var sleeper sleep.Sleeper
	sleeper.AddWaker(&s.newSegmentWaker, wakerForNewSegment)
	sleeper.AddWaker(&s.notificationWaker, wakerForNotification)
	defer sleeper.Done()

	go func() {
		<-stop
		s.notificationWaker.Assert()
	}()

	for {
		id, _ := sleeper.Fetch(true)
		if id == wakerForNotification {
			return
		}

		s.mu.Lock()
		pending := s.segmentQueue
		s.segmentQueue = nil
		s.mu.Unlock()

		for i, cb := range pending {
			if i >= maxSegmentsPerWake {
				// Re-queue the remainder and re-assert so the rest
				// of the batch is handled on the next wake-up,
				// giving the notification waker a chance to run too
				s.mu.Lock()
				s.segmentQueue = append(pending[i:], s.segmentQueue...)
				s.mu.Unlock()
				s.newSegmentWaker.Assert()
				break
			}

			if cb.Flags == FlagSyn {
				s.mu.Lock()
				s.spawnChildLocked(cb)
				s.mu.Unlock()
				continue
			}

			if child, ok := s.registry.Lookup(cb.ID.Reverse()); ok {
				ProcessSegment(child, cb)
			}
		}
	}
}
