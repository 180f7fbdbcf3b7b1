package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rental-digest/metrics"
	"rental-digest/models"
	"rental-digest/notify"
	"rental-digest/utils"
)

// WindowQuerier is the read side of the store gateway.
type WindowQuerier interface {
	QueryWindow(ctx context.Context, since time.Time) ([]*models.Listing, error)
}

// Reporter runs one reporting cycle: window query, compose, deliver.
type Reporter struct {
	listings   WindowQuerier
	composer   *DigestComposer
	sink       notify.Sink
	window     time.Duration
	attachXLSX bool
	now        func() time.Time
	metrics    *metrics.Recorder
	logger     *utils.Logger
}

// ReporterOption customises a Reporter.
type ReporterOption func(*Reporter)

func WithReporterMetrics(m *metrics.Recorder) ReporterOption {
	return func(r *Reporter) { r.metrics = m }
}

func WithClock(now func() time.Time) ReporterOption {
	return func(r *Reporter) { r.now = now }
}

// WithoutSpreadsheet skips the xlsx attachment.
func WithoutSpreadsheet() ReporterOption {
	return func(r *Reporter) { r.attachXLSX = false }
}

func NewReporter(listings WindowQuerier, composer *DigestComposer, sink notify.Sink, window time.Duration, logger *utils.Logger, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		listings:   listings,
		composer:   composer,
		sink:       sink,
		window:     window,
		attachXLSX: true,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reports every listing updated within the trailing window. An empty
// window returns models.ErrNothingToReport. A failed delivery is logged and
// counted but Run still succeeds: the listings are already persisted.
func (r *Reporter) Run(ctx context.Context) (models.ReportSummary, error) {
	started := time.Now()
	defer r.metrics.ObserveRun("report", started)

	summary := models.ReportSummary{RunID: uuid.NewString()}
	log := r.logger.With("run_id", summary.RunID)

	now := r.now().UTC()
	since := now.Add(-r.window)

	found, err := r.listings.QueryWindow(ctx, since)
	if err != nil {
		return summary, fmt.Errorf("report: query window since %s: %w", since.Format(time.RFC3339), err)
	}

	unique := uniqueByID(found)
	if len(unique) != len(found) {
		log.Warn("[reporter] Store returned %d duplicate ids", len(found)-len(unique))
	}

	report, err := r.composer.Compose(unique, r.window, now)
	if errors.Is(err, models.ErrNothingToReport) {
		log.Info("[reporter] Nothing new in the last %s", r.window)
		return summary, err
	}
	if err != nil {
		return summary, err
	}
	summary.Listings = report.Count()

	msg := notify.Message{Subject: report.Subject, Text: report.Text, HTML: report.HTML}
	if r.attachXLSX {
		data, err := BuildSpreadsheet(report)
		if err != nil {
			log.Warn("[reporter] Sending without spreadsheet: %v", err)
		} else {
			msg.Attachments = append(msg.Attachments, notify.Attachment{
				Filename:    SpreadsheetFilename(report),
				ContentType: spreadsheetContentType,
				Data:        data,
			})
		}
	}

	if err := r.sink.Send(ctx, msg); err != nil {
		r.metrics.DigestSent(summary.Listings, false)
		log.Error("[reporter] %v via %s: %v", models.ErrNotificationFailure, r.sink.Name(), err)
		return summary, nil
	}

	summary.Delivered = true
	r.metrics.DigestSent(summary.Listings, true)
	log.Info("[reporter] Digest of %d listings delivered via %s", summary.Listings, r.sink.Name())
	return summary, nil
}

// uniqueByID keeps the first occurrence of every id, preserving order.
func uniqueByID(listings []*models.Listing) []*models.Listing {
	seen := utils.NewIDSet()
	out := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if seen.Add(l.ID) {
			out = append(out, l)
		}
	}
	return out
}
