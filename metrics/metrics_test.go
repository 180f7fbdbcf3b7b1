package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := New()

	r.Fetched("Apolar", 4)
	r.Dropped(DropLocality)
	r.Dropped(DropLocality)
	r.Dropped(DropFilter)
	r.Ingested(2, 1, 1)
	r.ProviderFailed("Galvão")
	r.DigestSent(3, true)
	r.DigestSent(5, false)
	r.ObserveRun("ingest", time.Now())

	assert.Equal(t, 4.0, testutil.ToFloat64(r.fetched.WithLabelValues("Apolar")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.dropped.WithLabelValues(DropLocality)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.dropped.WithLabelValues(DropFilter)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.inserted))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.duplicates))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.persistErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.providerFailures.WithLabelValues("Galvão")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.digestsSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.digestsFailed))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.digestListings))
	assert.Equal(t, 1, testutil.CollectAndCount(r.runDuration))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Fetched("x", 1)
		r.Dropped(DropInvalid)
		r.Ingested(1, 1, 1)
		r.ProviderFailed("x")
		r.DigestSent(1, true)
		r.ObserveRun("report", time.Now())
	})
}
