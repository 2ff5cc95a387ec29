package scraper

import (
	"bytes"
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/jimezsa/jobscrape/internal/models"
	"github.com/jimezsa/jobscrape/internal/network"
	"github.com/rs/zerolog"
)

// Deps are the collaborators shared by every pipeline.
type Deps struct {
	Pacer      Pacer
	Identities IdentitySource
	Fetcher    PageFetcher
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Pipeline runs search fetch, listing extraction and per-listing enrichment
// for one site, strictly one request at a time.
type Pipeline struct {
	site       Site
	pacer      Pacer
	identities IdentitySource
	fetcher    PageFetcher
	logger     zerolog.Logger
	now        func() time.Time
}

func NewPipeline(site Site, deps Deps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		site:       site,
		pacer:      deps.Pacer,
		identities: deps.Identities,
		fetcher:    deps.Fetcher,
		logger:     deps.Logger.With().Str("site", site.Name()).Logger(),
		now:        now,
	}
}

func (p *Pipeline) Name() string {
	return p.site.Name()
}

func (p *Pipeline) Search(ctx context.Context, params models.SearchParams) ([]models.JobRecord, error) {
	logger := p.logger.With().Str("run_id", uuid.NewString()).Logger()
	records := []models.JobRecord{}

	searchURL := p.site.SearchURL(params)
	logger.Info().
		Str("stage", "init").
		Str("position", params.Position).
		Str("location", params.Location).
		Str("url", searchURL).
		Msg("starting scrape")

	if err := p.pacer.Wait(ctx, network.KindSearch); err != nil {
		return records, err
	}
	page, err := p.fetcher.Fetch(ctx, searchURL, p.identities.Next())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return records, ctxErr
		}
		logger.Error().Err(err).Str("stage", "search_fetch").Str("url", searchURL).Msg("search fetch failed")
		return records, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		logger.Error().Err(err).Str("stage", "extract_listings").Str("url", searchURL).Msg("search page unreadable")
		return records, nil
	}

	stubs, skipped := p.site.ParseListings(doc)
	for _, skipErr := range skipped {
		logger.Warn().Err(skipErr).Str("stage", "extract_listings").Msg("skipping listing")
	}
	if len(stubs) == 0 {
		logger.Info().Str("stage", "extract_listings").Msg("no listings found")
		return records, nil
	}

	detail := NewDetailExtractor(p.site.Description(), p.pacer, p.identities, p.fetcher, logger)
	for i, stub := range stubs {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		description := detail.Extract(ctx, stub.Link)
		record, err := models.NewJobRecord(stub, description, p.site.Source(), p.now())
		if err != nil {
			logger.Warn().Err(err).Str("stage", "enrich").Int("listing", i).Str("link", stub.Link).Msg("dropping listing")
			continue
		}
		records = append(records, record)
		logger.Info().Str("title", record.Title).Str("company", record.Company).Msg("scraped job")
	}

	logger.Info().Int("listings", len(stubs)).Int("records", len(records)).Msg("scrape finished")
	return records, nil
}
