package tcp

import (
	"github.com/google/btree"

	"github.com/packetloom/tcpcore/ilist"
	"github.com/packetloom/tcpcore/seqnum"
)

// PendingSegment is an unacknowledged, possibly-to-be-retransmitted segment
// owned exclusively by exactly one socket's send_queue (spec section 3,
// "Pending segment")
type PendingSegment struct {
	ilist.Entry

	Seq           seqnum.Value
	Length        seqnum.Size
	Flags         Flags
	Raw           []byte
	RetransCount  int
}

// segmentList is the FIFO send_queue, an intrusive list built on the
// teacher's ilist package so insertion, removal of the head, and iteration
// are O(1), O(1) and O(n) as spec section 9 requires
type segmentList struct {
	list ilist.List
}

func (l *segmentList) PushBack(s *PendingSegment) {
	l.list.PushBack(s)
}

func (l *segmentList) Front() *PendingSegment {
	e := l.list.Front()
	if e == nil {
		return nil
	}
	return e.(*PendingSegment)
}

func (l *segmentList) Remove(s *PendingSegment) {
	l.list.Remove(s)
}

func (l *segmentList) Empty() bool {
	return l.list.Empty()
}

// ofoEntry is an out-of-order segment: the control block plus the core's
// own copy of the payload (spec section 3, "Out-of-order segment")
type ofoEntry struct {
	cb      ControlBlock
	payload []byte
}

// ofoQueue is the unordered set of out-of-order segments awaiting
// reassembly (spec's ofo_queue), backed by a github.com/google/btree tree
// ordered by sequence number. See SPEC_FULL.md section 3 for why a btree
// replaces the original's linear scan: draining repeatedly probes "is there
// an entry at rcv_nxt", which a btree answers in O(log n) instead of O(n)
// per probe, while insert/delete remain within the O(n) iteration bound the
// spec allows
type ofoQueue struct {
	less func(a, b *ofoEntry) bool
	tree *btree.BTreeG[*ofoEntry]
}

func newOfoQueue() *ofoQueue {
	less := func(a, b *ofoEntry) bool { return a.cb.Seq.LessThan(b.cb.Seq) }
	return &ofoQueue{
		less: less,
		tree: btree.NewG(32, less),
	}
}

func (q *ofoQueue) insert(e *ofoEntry) {
	q.tree.ReplaceOrInsert(e)
}

// at returns the entry whose Seq exactly equals seq, if any
func (q *ofoQueue) at(seq seqnum.Value) (*ofoEntry, bool) {
	probe := &ofoEntry{cb: ControlBlock{Seq: seq}}
	return q.tree.Get(probe)
}

func (q *ofoQueue) remove(e *ofoEntry) {
	q.tree.Delete(e)
}

func (q *ofoQueue) empty() bool {
	return q.tree.Len() == 0
}

func (q *ofoQueue) len() int {
	return q.tree.Len()
}

// clear discards every pending out-of-order entry, used when a drained FIN
// makes the remainder of the queue moot (spec section 4.2, step 1)
func (q *ofoQueue) clear() {
	q.tree = btree.NewG(32, q.less)
}

// min returns the lowest-sequence entry in the queue (every entry must be
// > rcv_nxt); nothing in the package calls it
func (q *ofoQueue) min() (*ofoEntry, bool) {
	return q.tree.Min()
}
