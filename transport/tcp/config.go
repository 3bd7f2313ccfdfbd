package tcp

import "time"

// Reno and retransmission constants named exactly as the spec's open
// questions ask them to be preserved (spec sections 6 and 9): the initial
// congestion window is atypically large for Reno, and the duplicate-ACK
// threshold is 2 rather than the canonical 3. Both are kept verbatim as
// named tunables rather than "corrected"
const (
	// InitCwnd is the initial congestion window, in bytes. Flagged in the
	// original source as atypically large for Reno; preserved as specified
	InitCwnd = 1000

	// MSS is the maximum segment size used by the congestion controller's
	// congestion-avoidance increment (spec section 4.4's "mms")
	MSS = 1000

	// DupAckThreshold is the number of consecutive duplicate ACKs that
	// triggers fast recovery. The canonical value is 3; this core uses 2,
	// preserved as specified (spec section 9)
	DupAckThreshold = 2

	// MaxRetrans is the number of retransmissions of the same segment
	// after which the socket is hard-closed (spec section 4.5/7)
	MaxRetrans = 3
)

// Tunables collects the timing constants of spec section 6 ("Tunables
// (constants)") as a configuration surface, rather than as hard literals, in
// the style of the sampled-kernel-constant configuration exposed by
// _examples/runZeroInc-conniver's go-tcpinfo package
type Tunables struct {
	// Tick is the fixed interval at which the timer wheel is scanned
	// (spec's TCP_TIMER_SCAN_INTERVAL)
	Tick time.Duration

	// RTOInitial is the initial retransmission timeout, doubled on every
	// backoff (spec's TCP_RETRANS_INTERVAL_INITIAL)
	RTOInitial time.Duration

	// TimeWaitDuration is the 2*MSL TIME_WAIT timeout (spec's
	// TCP_TIMEWAIT_TIMEOUT)
	TimeWaitDuration time.Duration

	// RcvBufSize is the default size, in bytes, of a new socket's receive
	// buffer
	RcvBufSize int

	// UseSynCookies derives each child's ISS from a keyed hash of its
	// endpoint tuple and the peer's SYN sequence (cookie.go) and lifts the
	// listen backlog limit. Each child still holds full state on
	// listen_queue while the handshake completes; no cookie is validated on
	// the returning ACK. This is carried over from the teacher's accept.go,
	// whose comment notes cookies kick in once a bounded number of
	// in-flight handshakes is exceeded; this core makes that policy
	// explicit and caller-selectable instead of an unconditional SYN flood
	// fallback
	UseSynCookies bool
}

// DefaultTunables returns the constants used throughout the spec's worked
// examples (section 8): 16384-byte windows, a 1-second initial RTO, and the
// classic 2*MSL of 2 minutes
func DefaultTunables() Tunables {
	return Tunables{
		Tick:             100 * time.Millisecond,
		RTOInitial:       1 * time.Second,
		TimeWaitDuration: 2 * time.Minute,
		RcvBufSize:       16384,
		UseSynCookies:    false,
	}
}
