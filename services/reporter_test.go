package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-digest/models"
	"rental-digest/notify"
	"rental-digest/storage"
	"rental-digest/utils"
)

type fakeSink struct {
	sent []notify.Message
	err  error
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Send(_ context.Context, msg notify.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

// staticWindow returns a fixed result, duplicates included.
type staticWindow struct {
	listings []*models.Listing
	err      error
	since    time.Time
}

func (s *staticWindow) QueryWindow(_ context.Context, since time.Time) ([]*models.Listing, error) {
	s.since = since
	return s.listings, s.err
}

func newTestReporter(t *testing.T, q WindowQuerier, sink notify.Sink, window time.Duration, opts ...ReporterOption) *Reporter {
	t.Helper()
	opts = append([]ReporterOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewReporter(q, newTestComposer(t), sink, window, utils.NewNopLogger(), opts...)
}

func TestReporterDeliversDigest(t *testing.T) {
	store := storage.NewMemoryStore()
	gw := storage.NewGateway(store, 1, utils.NewNopLogger())
	for _, l := range sampleListings() {
		l.LastUpdatedAt = fixedNow.Add(-time.Hour)
		_, err := gw.InsertIfAbsent(context.Background(), l)
		require.NoError(t, err)
	}
	stale := &models.Listing{ID: "https://x/old", Price: 10, LastUpdatedAt: fixedNow.Add(-9 * time.Hour)}
	_, err := gw.InsertIfAbsent(context.Background(), stale)
	require.NoError(t, err)

	sink := &fakeSink{}
	summary, err := newTestReporter(t, gw, sink, 8*time.Hour).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Listings)
	assert.True(t, summary.Delivered)
	require.Len(t, sink.sent, 1)

	msg := sink.sent[0]
	assert.Equal(t, "Imóveis Curitiba: 3 new listings", msg.Subject)
	assert.NotContains(t, msg.Text, "https://x/old")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "digest_20240301_1504.xlsx", msg.Attachments[0].Filename)
	assert.Equal(t, spreadsheetContentType, msg.Attachments[0].ContentType)
	assert.NotEmpty(t, msg.Attachments[0].Data)
}

func TestReporterWindowBoundary(t *testing.T) {
	q := &staticWindow{}
	_, _ = newTestReporter(t, q, &fakeSink{}, 30*time.Minute).Run(context.Background())
	assert.Equal(t, fixedNow.Add(-30*time.Minute), q.since)
}

func TestReporterNothingToReport(t *testing.T) {
	sink := &fakeSink{}
	summary, err := newTestReporter(t, &staticWindow{}, sink, time.Hour).Run(context.Background())

	assert.ErrorIs(t, err, models.ErrNothingToReport)
	assert.Zero(t, summary.Listings)
	assert.Empty(t, sink.sent)
}

func TestReporterDeduplicatesIDs(t *testing.T) {
	l := sampleListings()
	q := &staticWindow{listings: []*models.Listing{l[0], l[1], l[0], l[2], l[1]}}
	sink := &fakeSink{}

	summary, err := newTestReporter(t, q, sink, time.Hour, WithoutSpreadsheet()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Listings)
	require.Len(t, sink.sent, 1)
	assert.Empty(t, sink.sent[0].Attachments)
}

func TestReporterNotificationFailureIsNotFatal(t *testing.T) {
	q := &staticWindow{listings: sampleListings()}
	sink := &fakeSink{err: errors.New("ses: throttled")}

	summary, err := newTestReporter(t, q, sink, time.Hour).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Listings)
	assert.False(t, summary.Delivered)
}

func TestReporterQueryFailure(t *testing.T) {
	q := &staticWindow{err: errors.New("scan failed")}
	_, err := newTestReporter(t, q, &fakeSink{}, time.Hour).Run(context.Background())
	assert.ErrorContains(t, err, "scan failed")
}
