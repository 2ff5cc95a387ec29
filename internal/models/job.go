package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Source names the site a record was extracted from.
type Source string

const SourceLinkedIn Source = "LinkedIn"

// NoDescription is stored when a posting's description cannot be obtained.
const NoDescription = "No description available"

var ErrMissingField = errors.New("missing required field")

// FieldError reports a required field that could not be extracted.
// Index is the zero-based listing container position, or -1 when unknown.
type FieldError struct {
	Field string
	Index int
}

func (e *FieldError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", ErrMissingField, e.Field)
	}
	return fmt.Sprintf("%s: %s (container %d)", ErrMissingField, e.Field, e.Index)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrMissingField
}

// ListingStub is what a search results page carries for one posting,
// before the description is fetched.
type ListingStub struct {
	Title       string
	Company     string
	Location    string
	Link        string
	PostedAt    time.Time
	PostedAtRaw string
}

// Validate checks that every structural field is present.
func (s ListingStub) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"title", s.Title},
		{"company", s.Company},
		{"location", s.Location},
		{"link", s.Link},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return &FieldError{Field: field.name, Index: -1}
		}
	}
	return nil
}

// JobRecord is the normalized posting emitted by a scrape run.
type JobRecord struct {
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	Link        string    `json:"job_link"`
	PostedAt    time.Time `json:"posted_at,omitzero"`
	PostedAtRaw string    `json:"date_posted,omitempty"`
	Description string    `json:"description"`
	Source      Source    `json:"source"`
	ScrapedAt   time.Time `json:"date_scraped"`
}

// NewJobRecord merges a listing stub with its description. Stubs missing a
// structural field are rejected; an empty description becomes NoDescription.
func NewJobRecord(stub ListingStub, description string, source Source, scrapedAt time.Time) (JobRecord, error) {
	if err := stub.Validate(); err != nil {
		return JobRecord{}, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = NoDescription
	}
	return JobRecord{
		Title:       strings.TrimSpace(stub.Title),
		Company:     strings.TrimSpace(stub.Company),
		Location:    strings.TrimSpace(stub.Location),
		Link:        strings.TrimSpace(stub.Link),
		PostedAt:    stub.PostedAt,
		PostedAtRaw: strings.TrimSpace(stub.PostedAtRaw),
		Description: description,
		Source:      source,
		ScrapedAt:   scrapedAt,
	}, nil
}

// HasPostedDate reports whether the source page carried a posting date.
func (r JobRecord) HasPostedDate() bool {
	return r.PostedAtRaw != "" || !r.PostedAt.IsZero()
}
