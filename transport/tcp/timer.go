package tcp

import (
	"sync"
	"time"

	"github.com/packetloom/tcpcore/ilist"
	"github.com/packetloom/tcpcore/internal/metrics"
)

// TimerKind distinguishes the two timer roles described in spec section 4.5
type TimerKind int

const (
	TimerRetrans TimerKind = iota
	TimerTimeWait
)

func (k TimerKind) String() string {
	if k == TimerTimeWait {
		return "TIME_WAIT"
	}
	return "RETRANS"
}

// TimerHandle is {kind, enabled, remaining, owner} from spec section 3. It
// is embedded in its owning socket; membership in the wheel's intrusive
// list is the only thing that makes it "active"
type TimerHandle struct {
	ilist.Entry

	kind      TimerKind
	enabled   bool
	remaining time.Duration
	owner     *Socket
}

// TimerWheel is the single process-wide timer list of spec section 4.5: a
// background goroutine ticks at a fixed interval and scans every enabled
// handle, in an intrusive list built on the retained teacher ilist package.
// Arming and disarming take wheelMu. Callers of Arm/Disarm hold the owning
// socket's mu, so wheelMu is taken inside a socket's lock; scan releases
// wheelMu before it takes any socket's lock, so the order is always socket
// lock then wheelMu
type TimerWheel struct {
	wheelMu sync.Mutex
	list    ilist.List
	tick    time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewTimerWheel creates a timer wheel that scans every tick once Start is
// called
func NewTimerWheel(tick time.Duration) *TimerWheel {
	return &TimerWheel{tick: tick, stop: make(chan struct{}), done: make(chan struct{})}
}

// Start launches the background scan goroutine
func (w *TimerWheel) Start() {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.tick)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				w.scan()
			}
		}
	}()
}

// Stop halts the scan goroutine and waits for it to exit
func (w *TimerWheel) Stop() {
	close(w.stop)
	<-w.done
}

// Arm sets remaining = d and links the handle into the wheel if it is not
// already linked (spec section 4.5, "Arming ... links into the list if not
// already linked")
func (w *TimerWheel) Arm(h *TimerHandle, d time.Duration) {
	w.wheelMu.Lock()
	defer w.wheelMu.Unlock()
	h.remaining = d
	if !h.enabled {
		h.enabled = true
		w.list.PushBack(h)
	}
}

// Disarm clears enabled and unlinks the handle. A no-op if already disarmed
func (w *TimerWheel) Disarm(h *TimerHandle) {
	w.wheelMu.Lock()
	defer w.wheelMu.Unlock()
	if h.enabled {
		h.enabled = false
		w.list.Remove(h)
	}
}

// scan walks the wheel once, decrementing every enabled handle by one tick
// and dispatching whichever have expired, per spec section 4.5
func (w *TimerWheel) scan() {
	var expired []*TimerHandle

	w.wheelMu.Lock()
	for e := w.list.Front(); e != nil; {
		h := e.(*TimerHandle)
		next := e.Next()
		h.remaining -= w.tick
		if h.remaining <= 0 {
			h.enabled = false
			w.list.Remove(h)
			expired = append(expired, h)
		}
		e = next
	}
	w.wheelMu.Unlock()

	for _, h := range expired {
		switch h.kind {
		case TimerTimeWait:
			handleTimeWaitExpiry(h.owner)
		case TimerRetrans:
			handleRetransExpiry(w, h)
		}
	}
}

// handleTimeWaitExpiry transitions the owning socket to CLOSED and frees it
// (spec section 4.5)
func handleTimeWaitExpiry(s *Socket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateTimeWait {
		return
	}
	s.log.Info().Msg("TIME_WAIT expired, closing")
	s.setState(StateClosed)
	s.free()
}

// handleRetransExpiry implements the RETRANS case of spec section 4.5:
// collapse the congestion window, retransmit the head of send_queue if its
// retrans_count allows it, or hard-close on exhaustion
func handleRetransExpiry(w *TimerWheel, h *TimerHandle) {
	s := h.owner
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sendQueue.Empty() {
		return
	}

	s.ssthresh = s.cwnd / 2
	if s.ssthresh < MSS {
		s.ssthresh = MSS
	}
	s.cwnd = MSS
	s.updateSndWnd()
	metrics.Cwnd.Set(float64(s.cwnd))

	head := s.sendQueue.Front()
	if head.RetransCount >= MaxRetrans {
		s.log.Warn().Int("retrans_count", head.RetransCount).Msg("retransmission exhausted, closing")
		metrics.RetransExhausted.Inc()
		s.hardCloseLocked(ErrConnTimedOut)
		return
	}

	s.retransmitCopyLocked(head)
	head.RetransCount++
	metrics.Retransmissions.WithLabelValues("timeout").Inc()

	backoff := s.tunables.RTOInitial * time.Duration(uint64(1)<<uint(head.RetransCount))
	w.Arm(h, backoff)
}
