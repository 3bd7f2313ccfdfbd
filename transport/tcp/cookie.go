package tcp

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/binary"
	"io"
	"sync"

	"github.com/packetloom/tcpcore/seqnum"
)

// cookieHasher derives an initial send sequence number from an endpoint
// tuple plus a process-wide secret nonce, grounded on the teacher's
// listenContext.cookieHash (accept.go). The teacher used this to encode
// connection state (MSS, a timestamp) directly in the ISS so a listener
// could stay stateless under a SYN flood; this core keeps the hash but
// drops the MSS/timestamp packing the teacher's options negotiation needed,
// since this module doesn't negotiate TCP options (spec Non-goals)
type cookieHasher struct {
	mu    sync.Mutex
	nonce [sha1.BlockSize]byte
}

var globalCookieHasher = newCookieHasher()

func newCookieHasher() *cookieHasher {
	h := &cookieHasher{}
	_, _ = rand.Read(h.nonce[:])
	return h
}

func (c *cookieHasher) hash(id EndpointTuple, seq seqnum.Value) uint32 {
	var payload [8]byte
	binary.BigEndian.PutUint16(payload[0:], id.LocalPort)
	binary.BigEndian.PutUint16(payload[2:], id.RemotePort)

	c.mu.Lock()
	defer c.mu.Unlock()
	hasher := sha1.New()
	hasher.Write(payload[:])
	hasher.Write(c.nonce[:])
	_, _ = io.WriteString(hasher, id.LocalAddress)
	_, _ = io.WriteString(hasher, id.RemoteAddress)

	var seqBytes [4]byte
	binary.BigEndian.PutUint32(seqBytes[:], uint32(seq))
	hasher.Write(seqBytes[:])

	sum := hasher.Sum(nil)
	return binary.BigEndian.Uint32(sum[:4])
}

// issFor derives a fresh ISS for a new child socket from the peer's SYN,
// replacing the plain atomic counter with a value that is unguessable from
// outside and requires no per-attempt state to validate, which is what
// makes SYN cookies useful against a flood of half-open handshakes
func (c *cookieHasher) issFor(id EndpointTuple, peerSeq seqnum.Value) seqnum.Value {
	return seqnum.Value(c.hash(id, peerSeq))
}
