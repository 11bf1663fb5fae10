package corepipe

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposed by the core pipeline. Names and registration mirror the
// rest of the module's metrics package: package-level collectors,
// registered exactly once behind a sync.Once, with registration errors
// swallowed (a reload that recompiles the graph must not panic on
// re-registering the same collector).
var (
	PipeQueueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corepipe_pipe_queue_total",
			Help: "Total messages passed through Pipe.Queue, by pipe name and result",
		},
		[]string{"pipe", "result"}, // result: ok|dropped|error
	)

	MuxFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corepipe_mux_fallback_total",
			Help: "Total times a Multiplexer's fallback pass ran because its normal pass delivered nothing",
		},
		[]string{"multiplexer"},
	)

	AckBalance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "corepipe_ack_balance",
			Help: "Outstanding (unacked) ack count per source, sampled from its WakeupCondition",
		},
		[]string{"source"},
	)

	SourceWindowCredits = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "corepipe_source_window_credits",
			Help: "Current available send-window credits for a threaded source",
		},
		[]string{"source"},
	)

	CenterCompileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "corepipe_center_compile_duration_seconds",
			Help:    "Time spent compiling a Configuration into a running Center",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// statsLock guards registration/unregistration of corepipe's collectors.
// Resolves the ambiguity between always-locked and lock-only-on-write in
// favor of always-locked: Reinit can run concurrently with the admin
// HTTP server reading InitializedPipes, and registration is cheap enough
// that the simpler invariant wins.
var statsLock sync.Mutex

var metricsRegisteredOnce sync.Once

func safeRegister(c prometheus.Collector) {
	defer func() { recover() }()
	prometheus.MustRegister(c)
}

// RegisterMetrics registers every corepipe collector exactly once. Safe to
// call from multiple Center instances (e.g. across Reinit cycles).
func RegisterMetrics() {
	statsLock.Lock()
	defer statsLock.Unlock()
	metricsRegisteredOnce.Do(func() {
		safeRegister(PipeQueueTotal)
		safeRegister(MuxFallbackTotal)
		safeRegister(AckBalance)
		safeRegister(SourceWindowCredits)
		safeRegister(CenterCompileDuration)
	})
}
