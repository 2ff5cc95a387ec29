package models

import (
	"errors"
	"testing"
	"time"
)

func TestNewJobRecord(t *testing.T) {
	scrapedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)
	stub := ListingStub{
		Title:       " Data Analyst ",
		Company:     "Acme",
		Location:    "New York, NY",
		Link:        "https://www.linkedin.com/jobs/view/1",
		PostedAtRaw: "2024-02-28",
	}

	rec, err := NewJobRecord(stub, "", SourceLinkedIn, scrapedAt)
	if err != nil {
		t.Fatalf("NewJobRecord() error = %v", err)
	}
	if rec.Title != "Data Analyst" {
		t.Fatalf("Title = %q, want trimmed", rec.Title)
	}
	if rec.Description != NoDescription {
		t.Fatalf("Description = %q, want %q", rec.Description, NoDescription)
	}
	if rec.Source != SourceLinkedIn || !rec.ScrapedAt.Equal(scrapedAt) {
		t.Fatalf("unexpected source/scraped_at: %+v", rec)
	}
	if !rec.HasPostedDate() {
		t.Fatalf("expected posted date to be present")
	}
}

func TestNewJobRecordRejectsMissingFields(t *testing.T) {
	base := ListingStub{Title: "T", Company: "C", Location: "L", Link: "https://example.com/1"}
	cases := map[string]func(*ListingStub){
		"title":    func(s *ListingStub) { s.Title = "" },
		"company":  func(s *ListingStub) { s.Company = "  " },
		"location": func(s *ListingStub) { s.Location = "" },
		"link":     func(s *ListingStub) { s.Link = "" },
	}

	for field, mutate := range cases {
		stub := base
		mutate(&stub)
		_, err := NewJobRecord(stub, "desc", SourceLinkedIn, time.Now())
		if !errors.Is(err, ErrMissingField) {
			t.Fatalf("%s: error = %v, want ErrMissingField", field, err)
		}
		var fieldErr *FieldError
		if !errors.As(err, &fieldErr) || fieldErr.Field != field {
			t.Fatalf("%s: unexpected field error %v", field, err)
		}
	}
}
