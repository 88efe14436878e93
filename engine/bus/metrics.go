package bus

import (
	"github.com/fluxweave/fluxweave/engine/infra/monitoring/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.MetricNameWithSubsystem("bus", "events_published_total"),
			Help: "Total events published to the event bus, by channel and type.",
		},
		[]string{"channel", "type"},
	)
	callbackLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metrics.MetricNameWithSubsystem("bus", "callback_duration_seconds"),
			Help:    "Latency of individual event bus callback invocations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel", "type"},
	)
	callbackErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.MetricNameWithSubsystem("bus", "callback_errors_total"),
			Help: "Total event bus callback invocations that returned an error.",
		},
		[]string{"channel", "type"},
	)
)

// RegisterMetrics registers this package's collectors against reg. Safe to
// call once per registry; callers that already registered these (e.g. a
// shared default registry across subsystems) should catch
// prometheus.AlreadyRegisteredError and ignore it.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{eventsPublished, callbackLatency, callbackErrors} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !asAlreadyRegistered(err, &already) {
				return err
			}
		}
	}
	return nil
}

func asAlreadyRegistered(err error, target *prometheus.AlreadyRegisteredError) bool {
	are, ok := err.(prometheus.AlreadyRegisteredError)
	if ok {
		*target = are
	}
	return ok
}
