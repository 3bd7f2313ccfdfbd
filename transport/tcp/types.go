// Package tcp implements the per-connection TCP state machine and
// congestion-control core: handshake, data transfer and teardown driven by
// the finite state machine in process.go, receive-side reassembly in
// reassembly.go, send-side reliability and Reno congestion control in
// send.go/congestion.go, and the timer wheel in timer.go
//
// The package deliberately knows nothing about link-layer or IP-layer
// framing, checksums, routing, or socket hash-table locking: those are
// reached only through the small interfaces declared in send.go and
// hashtable.go, following the external-collaborator boundary in the spec
// this package implements
package tcp

import (
	"fmt"

	"github.com/packetloom/tcpcore/seqnum"
)

// Flags that may be set in a TCP segment, matching the wire bit positions
type Flags uint8

const (
	FlagFin Flags = 1 << iota
	FlagSyn
	FlagRst
	FlagPsh
	FlagAck
	FlagUrg
)

// Has reports whether all bits of mask are set in f
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

func (f Flags) String() string {
	if f == 0 {
		return "<none>"
	}
	var s string
	for _, p := range []struct {
		bit  Flags
		name string
	}{
		{FlagFin, "FIN"}, {FlagSyn, "SYN"}, {FlagRst, "RST"},
		{FlagPsh, "PSH"}, {FlagAck, "ACK"}, {FlagUrg, "URG"},
	} {
		if f.Has(p.bit) {
			if s != "" {
				s += "|"
			}
			s += p.name
		}
	}
	return s
}

// State is a TCP finite-state-machine state, per spec section 4.3
type State int

const (
	StateClosed State = iota
	StateListen
	StateSynSent
	StateSynRecv
	StateEstablished
	StateFinWait1
	StateFinWait2
	StateTimeWait
	StateCloseWait
	StateLastAck
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateListen:
		return "LISTEN"
	case StateSynSent:
		return "SYN_SENT"
	case StateSynRecv:
		return "SYN_RECV"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinWait1:
		return "FIN_WAIT_1"
	case StateFinWait2:
		return "FIN_WAIT_2"
	case StateTimeWait:
		return "TIME_WAIT"
	case StateCloseWait:
		return "CLOSE_WAIT"
	case StateLastAck:
		return "LAST_ACK"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EndpointTuple identifies a connection: (src_ip, src_port, dst_ip,
// dst_port). It is immutable once a socket is allocated
type EndpointTuple struct {
	LocalAddress  string
	LocalPort     uint16
	RemoteAddress string
	RemotePort    uint16
}

// Reverse returns the tuple as seen from the other endpoint
func (t EndpointTuple) Reverse() EndpointTuple {
	return EndpointTuple{
		LocalAddress:  t.RemoteAddress,
		LocalPort:     t.RemotePort,
		RemoteAddress: t.LocalAddress,
		RemotePort:    t.LocalPort,
	}
}

func (t EndpointTuple) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d", t.LocalAddress, t.LocalPort, t.RemoteAddress, t.RemotePort)
}

// ControlBlock is the parsed representation of an inbound segment, handed to
// ProcessSegment by the (out-of-scope) lower layer after parse_segment has
// already run. It corresponds exactly to the control_block of spec section
// 2/6
type ControlBlock struct {
	ID      EndpointTuple
	Seq     seqnum.Value
	Ack     seqnum.Value
	Flags   Flags
	Window  seqnum.Size
	Payload []byte
}

// SeqEnd returns the sequence number one past the last byte (or virtual
// byte, for SYN/FIN) occupied by this segment, i.e. cb.seq + payload_len +
// (1 if SYN) + (1 if FIN), per spec section 4.1
func (cb *ControlBlock) SeqEnd() seqnum.Value {
	size := seqnum.Size(len(cb.Payload))
	if cb.Flags.Has(FlagSyn) {
		size++
	}
	if cb.Flags.Has(FlagFin) {
		size++
	}
	return cb.Seq.Add(size)
}
