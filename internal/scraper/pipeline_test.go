package scraper

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/jimezsa/jobscrape/internal/models"
	"github.com/jimezsa/jobscrape/internal/network"
	"github.com/rs/zerolog"
)

type fakeRoute struct {
	status int
	body   string
	err    error
}

// fakeSite answers requests from a fixed route table; unknown URLs fail at
// the transport level.
type fakeSite struct {
	mu     sync.Mutex
	routes map[string]fakeRoute
	calls  []string
	agents []string
}

func (f *fakeSite) Do(req *fhttp.Request, _ network.Identity) (*fhttp.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := req.URL.String()
	f.calls = append(f.calls, target)
	f.agents = append(f.agents, req.Header.Get("User-Agent"))

	route, ok := f.routes[target]
	if !ok {
		return nil, errors.New("dial tcp: no such host")
	}
	if route.err != nil {
		return nil, route.err
	}
	return &fhttp.Response{
		StatusCode: route.status,
		Header:     fhttp.Header{},
		Body:       io.NopCloser(strings.NewReader(route.body)),
	}, nil
}

type slept struct {
	mu        sync.Mutex
	durations []time.Duration
}

func newTestPipeline(t *testing.T, site *fakeSite, logs *bytes.Buffer) (*Pipeline, *slept) {
	t.Helper()

	delays := &slept{}
	pacer, err := network.NewPacer(network.PacerOptions{
		Sleep: func(ctx context.Context, d time.Duration) error {
			delays.mu.Lock()
			delays.durations = append(delays.durations, d)
			delays.mu.Unlock()
			return ctx.Err()
		},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPacer() error = %v", err)
	}
	pool, err := network.NewIdentityPool(network.DefaultUserAgents, nil, time.Minute)
	if err != nil {
		t.Fatalf("NewIdentityPool() error = %v", err)
	}

	logger := zerolog.New(logs)
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)
	return NewPipeline(NewLinkedIn(""), Deps{
		Pacer:      pacer,
		Identities: pool,
		Fetcher:    network.NewFetcher(site, pool, logger),
		Logger:     logger,
		Now:        func() time.Time { return fixed },
	}), delays
}

func countLevel(t *testing.T, logs *bytes.Buffer, level string) int {
	t.Helper()
	count := 0
	scanner := bufio.NewScanner(bytes.NewReader(logs.Bytes()))
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", scanner.Text(), err)
		}
		if entry["level"] == level {
			count++
		}
	}
	return count
}

const testSearchURL = "https://www.linkedin.com/jobs/search?keywords=Data%20Analyst&location=New%20York"

func dataAnalystParams() models.SearchParams {
	return models.SearchParams{Position: "Data Analyst", Location: "New York"}
}

func detailURL(id int) string {
	return fmt.Sprintf("https://www.linkedin.com/jobs/view/%d?refId=x", id)
}

func descriptionPage(text string) string {
	return `<html><body><section class="description"><div class="show-more-less-html__markup">` + text + `</div></section></body></html>`
}

func TestPipelineScrapesInPageOrder(t *testing.T) {
	site := &fakeSite{routes: map[string]fakeRoute{
		testSearchURL: {status: 200, body: linkedInSearchPage(
			linkedInCard(1, "Data Analyst", "Acme", "New York, NY", "2024-05-01"),
			linkedInCard(2, "Senior Data Analyst", "Beta", "Brooklyn, NY", ""),
			linkedInCard(3, "BI Analyst", "Gamma", "Remote", ""),
		)},
		detailURL(1): {status: 200, body: descriptionPage("First  description")},
		detailURL(2): {status: 200, body: `<div class="description__text">Second description</div>`},
		detailURL(3): {status: 200, body: descriptionPage("Third description")},
	}}
	var logs bytes.Buffer
	pipeline, delays := newTestPipeline(t, site, &logs)

	records, err := pipeline.Search(context.Background(), dataAnalystParams())
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	wantTitles := []string{"Data Analyst", "Senior Data Analyst", "BI Analyst"}
	wantDescriptions := []string{"First description", "Second description", "Third description"}
	for i, rec := range records {
		if rec.Title != wantTitles[i] || rec.Description != wantDescriptions[i] {
			t.Fatalf("record %d = %+v", i, rec)
		}
		if rec.Source != models.SourceLinkedIn {
			t.Fatalf("record %d source = %q", i, rec.Source)
		}
		if rec.ScrapedAt.IsZero() {
			t.Fatalf("record %d missing scraped_at", i)
		}
	}

	wantCalls := []string{testSearchURL, detailURL(1), detailURL(2), detailURL(3)}
	if strings.Join(site.calls, "\n") != strings.Join(wantCalls, "\n") {
		t.Fatalf("unexpected request order:\n%s", strings.Join(site.calls, "\n"))
	}
	for i, agent := range site.agents {
		if agent == "" {
			t.Fatalf("request %d sent without a user agent", i)
		}
	}
	if len(delays.durations) != len(wantCalls) {
		t.Fatalf("expected a pacing delay before each of %d requests, got %d", len(wantCalls), len(delays.durations))
	}
	if !strings.Contains(logs.String(), `"run_id"`) {
		t.Fatalf("expected run_id on log lines")
	}
}

func TestPipelineSkipsListingMissingCompany(t *testing.T) {
	site := &fakeSite{routes: map[string]fakeRoute{
		testSearchURL: {status: 200, body: linkedInSearchPage(
			linkedInCard(1, "Data Analyst", "Acme", "New York, NY", ""),
			linkedInCard(2, "Data Analyst II", "", "New York, NY", ""),
			linkedInCard(3, "Analytics Engineer", "Gamma", "New York, NY", ""),
		)},
		detailURL(1): {status: 200, body: descriptionPage("one")},
		detailURL(3): {status: 200, body: descriptionPage("three")},
	}}
	var logs bytes.Buffer
	pipeline, _ := newTestPipeline(t, site, &logs)

	records, err := pipeline.Search(context.Background(), dataAnalystParams())
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Company != "Acme" || records[1].Company != "Gamma" {
		t.Fatalf("unexpected records: %+v", records)
	}
	if got := countLevel(t, &logs, "warn"); got != 1 {
		t.Fatalf("expected 1 warning, got %d\n%s", got, logs.String())
	}
	for _, call := range site.calls {
		if call == detailURL(2) {
			t.Fatalf("skipped listing should not be fetched")
		}
	}
}

func TestPipelineSearchBlocked(t *testing.T) {
	site := &fakeSite{routes: map[string]fakeRoute{
		testSearchURL: {status: 429, body: "slow down"},
	}}
	var logs bytes.Buffer
	pipeline, _ := newTestPipeline(t, site, &logs)

	records, err := pipeline.Search(context.Background(), dataAnalystParams())
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("expected empty, non-nil records, got %#v", records)
	}
	if got := countLevel(t, &logs, "error"); got != 1 {
		t.Fatalf("expected 1 error log, got %d\n%s", got, logs.String())
	}
	if len(site.calls) != 1 {
		t.Fatalf("expected only the search request, got %v", site.calls)
	}
}

func TestPipelineSearchTransportFailure(t *testing.T) {
	site := &fakeSite{routes: map[string]fakeRoute{}}
	var logs bytes.Buffer
	pipeline, _ := newTestPipeline(t, site, &logs)

	records, err := pipeline.Search(context.Background(), dataAnalystParams())
	if err != nil || len(records) != 0 {
		t.Fatalf("Search() = %v, %v; want empty, nil", records, err)
	}
	if !strings.Contains(logs.String(), "search_fetch") {
		t.Fatalf("expected search_fetch stage in logs: %s", logs.String())
	}
}

func TestPipelineZeroListings(t *testing.T) {
	site := &fakeSite{routes: map[string]fakeRoute{
		testSearchURL: {status: 200, body: linkedInSearchPage()},
	}}
	var logs bytes.Buffer
	pipeline, _ := newTestPipeline(t, site, &logs)

	records, err := pipeline.Search(context.Background(), dataAnalystParams())
	if err != nil || len(records) != 0 {
		t.Fatalf("Search() = %v, %v; want empty, nil", records, err)
	}
	if countLevel(t, &logs, "error") != 0 || countLevel(t, &logs, "warn") != 0 {
		t.Fatalf("zero listings is not a failure: %s", logs.String())
	}
}

func TestPipelineDetailFailuresDegradeDescription(t *testing.T) {
	site := &fakeSite{routes: map[string]fakeRoute{
		testSearchURL: {status: 200, body: linkedInSearchPage(
			linkedInCard(1, "Unknown template", "Acme", "NY", ""),
			linkedInCard(2, "Forbidden", "Beta", "NY", ""),
			linkedInCard(3, "Broken pipe", "Gamma", "NY", ""),
			linkedInCard(4, "Fine", "Delta", "NY", ""),
		)},
		detailURL(1): {status: 200, body: `<html><body><div class="jobs-box">Nothing here</div></body></html>`},
		detailURL(2): {status: 403, body: "denied"},
		detailURL(3): {err: errors.New("read: connection reset by peer")},
		detailURL(4): {status: 200, body: descriptionPage("Real description")},
	}}
	var logs bytes.Buffer
	pipeline, _ := newTestPipeline(t, site, &logs)

	records, err := pipeline.Search(context.Background(), dataAnalystParams())
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected all 4 records to survive, got %d", len(records))
	}
	for i := 0; i < 3; i++ {
		if records[i].Description != models.NoDescription {
			t.Fatalf("record %d description = %q, want sentinel", i, records[i].Description)
		}
	}
	if records[3].Description != "Real description" {
		t.Fatalf("unexpected description: %q", records[3].Description)
	}
	if got := countLevel(t, &logs, "warn"); got != 3 {
		t.Fatalf("expected 3 warnings, got %d", got)
	}
}

func TestPipelineCancelled(t *testing.T) {
	site := &fakeSite{routes: map[string]fakeRoute{}}
	var logs bytes.Buffer
	pipeline, _ := newTestPipeline(t, site, &logs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := pipeline.Search(ctx, dataAnalystParams())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Search() error = %v, want context.Canceled", err)
	}
	if len(records) != 0 || len(site.calls) != 0 {
		t.Fatalf("expected no requests after cancellation, got %v", site.calls)
	}
}

func TestDetailExtractorNon2xxReturnsSentinel(t *testing.T) {
	for _, status := range []int{301, 400, 403, 404, 429, 500, 503} {
		link := "https://www.linkedin.com/jobs/view/42"
		site := &fakeSite{routes: map[string]fakeRoute{
			link: {status: status, body: descriptionPage("should not be read")},
		}}
		var logs bytes.Buffer
		pipeline, _ := newTestPipeline(t, site, &logs)

		detail := NewDetailExtractor(NewLinkedIn("").Description(), pipeline.pacer, pipeline.identities, pipeline.fetcher, zerolog.New(&logs))
		if got := detail.Extract(context.Background(), link); got != models.NoDescription {
			t.Fatalf("status %d: Extract() = %q, want sentinel", status, got)
		}
	}
}

func TestDetailExtractorIdempotent(t *testing.T) {
	link := "https://www.linkedin.com/jobs/view/7"
	site := &fakeSite{routes: map[string]fakeRoute{
		link: {status: 200, body: `<div class="description__text">  Same
		text  </div>`},
	}}
	var logs bytes.Buffer
	pipeline, _ := newTestPipeline(t, site, &logs)
	detail := NewDetailExtractor(NewLinkedIn("").Description(), pipeline.pacer, pipeline.identities, pipeline.fetcher, zerolog.Nop())

	first := detail.Extract(context.Background(), link)
	second := detail.Extract(context.Background(), link)
	if first != "Same text" || first != second {
		t.Fatalf("Extract() = %q then %q", first, second)
	}
}
