package scraper

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/jimezsa/jobscrape/internal/models"
)

// Scraper runs one search against a site and returns the records it could
// build. Failures inside a run degrade the result instead of failing it; the
// only error returned is context cancellation.
type Scraper interface {
	Name() string
	Search(ctx context.Context, params models.SearchParams) ([]models.JobRecord, error)
}

// Site describes where a listings site keeps its data.
type Site interface {
	Name() string
	Source() models.Source
	SearchURL(params models.SearchParams) string
	// ParseListings returns one stub per complete listing container and one
	// error per container that was skipped.
	ParseListings(doc *goquery.Document) ([]models.ListingStub, []error)
	// Description lists the description templates, newest first.
	Description() Field
}
