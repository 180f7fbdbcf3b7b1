package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"rental-digest/metrics"
	"rental-digest/models"
	"rental-digest/scraper"
	"rental-digest/storage"
	"rental-digest/utils"
)

// Pipeline runs one ingestion cycle: every provider is fetched in turn and
// its records are normalized, locality-checked, filtered and persisted.
type Pipeline struct {
	providers  []scraper.Provider
	criteria   models.FilterCriteria
	normalizer *Normalizer
	locality   *LocalityValidator
	gateway    *storage.Gateway
	rawWriter  storage.RawListingWriter
	metrics    *metrics.Recorder
	logger     *utils.Logger
}

// PipelineOption customises a Pipeline.
type PipelineOption func(*Pipeline)

// WithRawWriter snapshots every provider's raw output before normalization.
func WithRawWriter(w storage.RawListingWriter) PipelineOption {
	return func(p *Pipeline) { p.rawWriter = w }
}

func WithPipelineMetrics(m *metrics.Recorder) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithNormalizer replaces the default normalizer, e.g. to pin its clock.
func WithNormalizer(n *Normalizer) PipelineOption {
	return func(p *Pipeline) { p.normalizer = n }
}

func NewPipeline(providers []scraper.Provider, criteria models.FilterCriteria, gateway *storage.Gateway, logger *utils.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		providers:  providers,
		criteria:   criteria,
		normalizer: NewNormalizer(logger, nil),
		locality:   NewLocalityValidator(),
		gateway:    gateway,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run fetches from all providers. A failing provider is logged and skipped.
// Each provider's accepted listings are persisted before the next provider is
// fetched, so an aborted run keeps what it already wrote. The only error
// returned is ctx's.
func (p *Pipeline) Run(ctx context.Context) (models.RunSummary, error) {
	started := time.Now()
	defer p.metrics.ObserveRun("ingest", started)

	summary := models.RunSummary{RunID: uuid.NewString()}
	log := p.logger.With("run_id", summary.RunID)
	log.Info("[pipeline] Starting ingest over %d providers", len(p.providers))

	citySlug := utils.Slugify(p.criteria.City)

	for _, prov := range p.providers {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		raws, err := prov.Fetch(ctx, p.criteria)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.ProviderFailures++
			p.metrics.ProviderFailed(prov.Name())
			log.Error("[pipeline] %s: %v", prov.Name(), err)
			continue
		}
		summary.Fetched += len(raws)
		p.metrics.Fetched(prov.Name(), len(raws))

		if p.rawWriter != nil {
			if err := p.rawWriter.WriteRaw(raws); err != nil {
				log.Warn("[pipeline] Raw snapshot for %s failed: %v", prov.Name(), err)
			}
		}

		accepted := make([]*models.Listing, 0, len(raws))
		for _, raw := range raws {
			if l := p.accept(raw, citySlug, log); l != nil {
				accepted = append(accepted, l)
			} else {
				summary.Dropped++
			}
		}
		log.Info("[pipeline] %s: %d fetched, %d accepted", prov.Name(), len(raws), len(accepted))

		res, err := p.gateway.Ingest(ctx, accepted)
		summary.Inserted += res.Inserted
		summary.Duplicates += res.Duplicates
		summary.Errors += len(res.Errors)
		p.metrics.Ingested(res.Inserted, res.Duplicates, len(res.Errors))
		if err != nil {
			return summary, err
		}
	}

	log.Info("[pipeline] Done: %d inserted, %d duplicates, %d errors (%d fetched, %d dropped, %d providers failed)",
		summary.Inserted, summary.Duplicates, summary.Errors, summary.Fetched, summary.Dropped, summary.ProviderFailures)
	return summary, nil
}

// accept returns the canonical listing, or nil when the record is dropped.
// Drops are expected noise and only logged at debug level.
func (p *Pipeline) accept(raw *models.RawListing, citySlug string, log *utils.Logger) *models.Listing {
	l, err := p.normalizer.Normalize(raw, raw.RequestedNeighborhood)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			log.Debug("[pipeline] dropped: %v", verr)
		} else {
			log.Warn("[pipeline] dropped: %v", err)
		}
		p.metrics.Dropped(metrics.DropInvalid)
		return nil
	}

	if !p.locality.Validate(l, utils.Slugify(raw.RequestedNeighborhood), citySlug) {
		log.Debug("[pipeline] %s outside %s/%s: %q", l.ID, raw.RequestedNeighborhood, p.criteria.City, l.Address)
		p.metrics.Dropped(metrics.DropLocality)
		return nil
	}

	if !Matches(l, p.criteria) {
		log.Debug("[pipeline] %s does not match criteria", l.ID)
		p.metrics.Dropped(metrics.DropFilter)
		return nil
	}
	return l
}
