// Package metrics exposes Prometheus instrumentation for the tcp core,
// grounded on the kernel TCP_INFO exporters in _examples/runZeroInc-conniver
// and _examples/runZeroInc-sockstats (both named go-tcpinfo), which publish
// per-connection counters through github.com/prometheus/client_golang. This
// core has no kernel socket to sample, so instead it instruments the state
// machine and congestion controller directly
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// StateTransitions counts FSM transitions, labelled by the
	// originating and destination state names
	StateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tcpcore",
		Name:      "state_transitions_total",
		Help:      "Number of TCP FSM state transitions, by from/to state",
	}, []string{"from", "to"})

	// Retransmissions counts segment retransmissions, labelled by cause
	Retransmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tcpcore",
		Name:      "retransmissions_total",
		Help:      "Number of segment retransmissions, by cause",
	}, []string{"cause"})

	// DupAcks counts duplicate ACKs observed in ESTABLISHED
	DupAcks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tcpcore",
		Name:      "duplicate_acks_total",
		Help:      "Number of duplicate ACKs observed",
	})

	// FastRecoveryEntries counts entries into Reno fast recovery
	FastRecoveryEntries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tcpcore",
		Name:      "fast_recovery_entries_total",
		Help:      "Number of times a socket entered fast recovery",
	})

	// Cwnd is a gauge of the current congestion window of the most
	// recently sampled socket; callers with many sockets should prefer
	// Socket.Stats() for per-connection data and treat this gauge as a
	// coarse, last-writer-wins signal
	Cwnd = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tcpcore",
		Name:      "congestion_window_bytes",
		Help:      "Most recently observed congestion window, in bytes",
	})

	// RetransExhausted counts sockets hard-closed after exhausting
	// retransmissions
	RetransExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tcpcore",
		Name:      "retransmission_exhausted_total",
		Help:      "Number of sockets hard-closed after max retransmissions",
	})
)

func init() {
	prometheus.MustRegister(
		StateTransitions,
		Retransmissions,
		DupAcks,
		FastRecoveryEntries,
		Cwnd,
		RetransExhausted,
	)
}
