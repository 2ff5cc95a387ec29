package scraper

import (
	"bytes"
	"context"
	"errors"

	"github.com/PuerkitoBio/goquery"
	"github.com/jimezsa/jobscrape/internal/models"
	"github.com/jimezsa/jobscrape/internal/network"
	"github.com/rs/zerolog"
)

var ErrUnknownTemplate = errors.New("no known description template matched")

type Pacer interface {
	Wait(ctx context.Context, kind network.RequestKind) error
}

type IdentitySource interface {
	Next() network.Identity
}

type PageFetcher interface {
	Fetch(ctx context.Context, target string, id network.Identity) (network.Page, error)
}

// DetailExtractor fetches a posting page and pulls out its description.
// Every failure collapses to models.NoDescription.
type DetailExtractor struct {
	field      Field
	pacer      Pacer
	identities IdentitySource
	fetcher    PageFetcher
	logger     zerolog.Logger
}

func NewDetailExtractor(field Field, pacer Pacer, identities IdentitySource, fetcher PageFetcher, logger zerolog.Logger) *DetailExtractor {
	return &DetailExtractor{
		field:      field,
		pacer:      pacer,
		identities: identities,
		fetcher:    fetcher,
		logger:     logger,
	}
}

func (d *DetailExtractor) Extract(ctx context.Context, link string) string {
	logger := d.logger.With().Str("stage", "detail").Str("link", link).Logger()

	if err := d.pacer.Wait(ctx, network.KindDetail); err != nil {
		logger.Warn().Err(err).Msg("detail fetch skipped")
		return models.NoDescription
	}

	page, err := d.fetcher.Fetch(ctx, link, d.identities.Next())
	if err != nil {
		event := logger.Warn().Err(err)
		var fetchErr *network.FetchError
		if errors.As(err, &fetchErr) {
			event = event.Str("kind", fetchErr.Kind.String()).Int("status", fetchErr.Code)
		}
		event.Msg("could not fetch job description")
		return models.NoDescription
	}

	description, err := d.Parse(page.Body)
	if err != nil {
		logger.Warn().Err(err).Msg("description not found")
		return models.NoDescription
	}
	return description
}

// Parse extracts the description from a raw detail page.
func (d *DetailExtractor) Parse(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	return ParseDescription(doc, d.field)
}

// ParseDescription tries the field's templates in order.
func ParseDescription(doc *goquery.Document, field Field) (string, error) {
	value, ok := field.Extract(doc.Selection)
	if !ok {
		return "", ErrUnknownTemplate
	}
	return value, nil
}
