package network

import (
	"context"
	"errors"
	"fmt"
	"io"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 8 << 20

var (
	ErrBlocked   = errors.New("request blocked or rejected")
	ErrTransport = errors.New("transport error")
)

// FetchErrorKind classifies why a fetch produced no page.
type FetchErrorKind int

const (
	StatusNotOK FetchErrorKind = iota + 1
	Transport
)

func (k FetchErrorKind) String() string {
	switch k {
	case StatusNotOK:
		return "status_not_ok"
	case Transport:
		return "transport"
	default:
		return "unknown"
	}
}

type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Code int
	Err  error
}

func (e *FetchError) Error() string {
	if e.Kind == StatusNotOK {
		return fmt.Sprintf("GET %s: http %d", e.URL, e.Code)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrBlocked:
		return e.Kind == StatusNotOK
	case ErrTransport:
		return e.Kind == Transport
	}
	return false
}

// Page is the raw result of a successful fetch.
type Page struct {
	URL    string
	Status int
	Body   []byte
}

// StatusReporter receives the final status of every request made with an
// identity.
type StatusReporter interface {
	Report(id Identity, status int)
}

// Fetcher performs exactly one GET per call. It neither retries nor caches.
type Fetcher struct {
	doer     Doer
	reporter StatusReporter
	logger   zerolog.Logger
}

func NewFetcher(doer Doer, reporter StatusReporter, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		doer:     doer,
		reporter: reporter,
		logger:   logger.With().Str("component", "fetcher").Logger(),
	}
}

func (f *Fetcher) Fetch(ctx context.Context, target string, id Identity) (Page, error) {
	req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, target, nil)
	if err != nil {
		return Page{}, &FetchError{Kind: Transport, URL: target, Err: err}
	}
	applyHeaders(req)
	if id.UserAgent != "" {
		req.Header.Set("User-Agent", id.UserAgent)
	}

	resp, err := f.doer.Do(req, id)
	if err != nil {
		return Page{}, &FetchError{Kind: Transport, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if f.reporter != nil {
		f.reporter.Report(id, resp.StatusCode)
	}
	f.logger.Debug().Str("url", target).Int("status", resp.StatusCode).Msg("fetched")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return Page{}, &FetchError{Kind: StatusNotOK, URL: target, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Page{}, &FetchError{Kind: Transport, URL: target, Err: err}
	}

	return Page{URL: target, Status: resp.StatusCode, Body: body}, nil
}

var defaultHeaders = map[string]string{
	"accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"accept-language": "en-US,en;q=0.9",
}

func applyHeaders(req *fhttp.Request) {
	for key, value := range defaultHeaders {
		req.Header.Set(key, value)
	}
}
