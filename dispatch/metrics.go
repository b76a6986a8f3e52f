package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	kindQuery   = "query"
	kindCommand = "command"

	outcomeOK         = "ok"
	outcomeError      = "error"
	outcomeUnresolved = "unresolved"
)

var (
	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_requests_total",
			Help: "dispatched requests by request type, kind and outcome.",
		},
		[]string{"request", "kind", "outcome"},
	)

	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_handler_duration_seconds",
			Help:    "handler execution time.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"request", "kind"},
	)
)

func init() {
	prometheus.MustRegister(dispatchTotal, dispatchDuration)
}

// observe records one dispatch. A zero start means the handler was never
// resolved.
func observe[T any](kind string, start time.Time, err error) {
	name := requestName[T]()
	switch {
	case start.IsZero():
		dispatchTotal.WithLabelValues(name, kind, outcomeUnresolved).Inc()
		return
	case err != nil:
		dispatchTotal.WithLabelValues(name, kind, outcomeError).Inc()
	default:
		dispatchTotal.WithLabelValues(name, kind, outcomeOK).Inc()
	}
	dispatchDuration.WithLabelValues(name, kind).Observe(time.Since(start).Seconds())
}
