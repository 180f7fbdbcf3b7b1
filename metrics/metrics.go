// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rental_digest"

// Drop reasons used as label values.
const (
	DropInvalid  = "invalid"
	DropLocality = "locality"
	DropFilter   = "filter"
)

// Recorder holds every pipeline metric. A nil *Recorder is valid and
// records nothing, so callers never need to guard.
type Recorder struct {
	Registry *prometheus.Registry

	fetched          *prometheus.CounterVec
	dropped          *prometheus.CounterVec
	inserted         prometheus.Counter
	duplicates       prometheus.Counter
	persistErrors    prometheus.Counter
	providerFailures *prometheus.CounterVec
	digestsSent      prometheus.Counter
	digestsFailed    prometheus.Counter
	digestListings   prometheus.Gauge
	runDuration      *prometheus.HistogramVec
}

// New registers all metrics on a fresh registry, plus the Go and process
// collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		Registry: reg,
		fetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_fetched_total",
			Help:      "Raw listings returned by providers",
		}, []string{"provider"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_dropped_total",
			Help:      "Listings discarded before persistence",
		}, []string{"reason"}),
		inserted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_inserted_total",
			Help:      "Listings stored for the first time",
		}),
		duplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_duplicate_total",
			Help:      "Listings already present in the store",
		}),
		persistErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_persist_errors_total",
			Help:      "Listings the store failed to write",
		}),
		providerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failures_total",
			Help:      "Provider fetches that failed entirely",
		}, []string{"provider"}),
		digestsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digests_sent_total",
			Help:      "Digests delivered to the notification sink",
		}),
		digestsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digests_failed_total",
			Help:      "Digests the notification sink rejected",
		}),
		digestListings: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "digest_listings",
			Help:      "Listings in the most recent digest",
		}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of ingest and report runs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"kind"}),
	}
}

func (r *Recorder) Fetched(provider string, n int) {
	if r == nil {
		return
	}
	r.fetched.WithLabelValues(provider).Add(float64(n))
}

func (r *Recorder) Dropped(reason string) {
	if r == nil {
		return
	}
	r.dropped.WithLabelValues(reason).Inc()
}

// Ingested records one gateway batch.
func (r *Recorder) Ingested(inserted, duplicates, errors int) {
	if r == nil {
		return
	}
	r.inserted.Add(float64(inserted))
	r.duplicates.Add(float64(duplicates))
	r.persistErrors.Add(float64(errors))
}

func (r *Recorder) ProviderFailed(provider string) {
	if r == nil {
		return
	}
	r.providerFailures.WithLabelValues(provider).Inc()
}

// DigestSent records a delivery attempt of a digest with n listings.
func (r *Recorder) DigestSent(n int, ok bool) {
	if r == nil {
		return
	}
	r.digestListings.Set(float64(n))
	if ok {
		r.digestsSent.Inc()
	} else {
		r.digestsFailed.Inc()
	}
}

// ObserveRun records how long an "ingest" or "report" run took.
func (r *Recorder) ObserveRun(kind string, started time.Time) {
	if r == nil {
		return
	}
	r.runDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}
