package scraper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jimezsa/jobscrape/internal/models"
)

const (
	LinkedInBaseURL      = "https://www.linkedin.com"
	linkedInCardSelector = "div.base-card"
)

var (
	linkedInCardFields = []Field{
		{Name: "title", Required: true, Rules: []Rule{Text("h3.base-search-card__title")}},
		{Name: "company", Required: true, Rules: []Rule{Text("h4.base-search-card__subtitle")}},
		{Name: "location", Required: true, Rules: []Rule{Text("span.job-search-card__location")}},
		{Name: "link", Required: true, Rules: []Rule{Attr("a.base-card__full-link", "href")}},
		{Name: "posted_at", Rules: []Rule{Attr("time", "datetime")}},
	}

	linkedInDescription = Field{
		Name:     "description",
		Required: true,
		Rules: []Rule{
			Text("div.show-more-less-html__markup"),
			// older job view template
			Text("div.description__text"),
		},
	}
)

type LinkedIn struct {
	baseURL string
}

func NewLinkedIn(baseURL string) *LinkedIn {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = LinkedInBaseURL
	}
	return &LinkedIn{baseURL: baseURL}
}

func (l *LinkedIn) Name() string {
	return SiteLinkedIn
}

func (l *LinkedIn) Source() models.Source {
	return models.SourceLinkedIn
}

func (l *LinkedIn) SearchURL(params models.SearchParams) string {
	return fmt.Sprintf("%s/jobs/search?keywords=%s&location=%s",
		l.baseURL,
		encodeQueryValue(params.Position),
		encodeQueryValue(params.Location),
	)
}

func (l *LinkedIn) ParseListings(doc *goquery.Document) ([]models.ListingStub, []error) {
	var (
		stubs   []models.ListingStub
		skipped []error
	)

	doc.Find(linkedInCardSelector).Each(func(i int, card *goquery.Selection) {
		stub, err := l.parseCard(card)
		if err != nil {
			var fieldErr *models.FieldError
			if errors.As(err, &fieldErr) {
				fieldErr.Index = i
			}
			skipped = append(skipped, err)
			return
		}
		stubs = append(stubs, stub)
	})

	return stubs, skipped
}

func (l *LinkedIn) parseCard(card *goquery.Selection) (models.ListingStub, error) {
	values, err := extractFields(card, linkedInCardFields)
	if err != nil {
		return models.ListingStub{}, err
	}

	stub := models.ListingStub{
		Title:       values["title"],
		Company:     values["company"],
		Location:    values["location"],
		Link:        absoluteURL(l.baseURL, values["link"]),
		PostedAtRaw: values["posted_at"],
	}
	if stub.PostedAtRaw != "" {
		if ts, err := parsePostedAt(stub.PostedAtRaw); err == nil {
			stub.PostedAt = ts
		}
	}
	return stub, nil
}

func (l *LinkedIn) Description() Field {
	return linkedInDescription
}
