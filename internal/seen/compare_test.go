package seen

import (
	"testing"

	"github.com/jimezsa/jobscrape/internal/models"
)

func TestNormalize(t *testing.T) {
	got := Normalize("  Senior   Data\tAnalyst  ")
	want := "senior data analyst"
	if got != want {
		t.Fatalf("Normalize() = %q, want %q", got, want)
	}
}

func TestNormalizeLink(t *testing.T) {
	cases := map[string]string{
		"https://www.linkedin.com/jobs/view/data-analyst-123?refId=a&trackingId=b": "linkedin.com/jobs/view/data-analyst-123",
		"https://de.LinkedIn.com/jobs/view/123/":                                   "de.linkedin.com/jobs/view/123",
		"  ":                                                                       "",
		"not a url":                                                                "not a url",
	}
	for in, want := range cases {
		if got := NormalizeLink(in); got != want {
			t.Fatalf("NormalizeLink(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKey(t *testing.T) {
	rec := models.JobRecord{Title: "  Senior Analyst ", Company: " ACME   Corp ", Link: "https://www.linkedin.com/jobs/view/1?trk=x"}
	got, ok := Key(rec)
	if !ok || got != "linkedin.com/jobs/view/1" {
		t.Fatalf("Key() = %q, %v", got, ok)
	}

	rec.Link = ""
	got, ok = Key(rec)
	if !ok || got != "senior analyst::acme corp" {
		t.Fatalf("Key() fallback = %q, %v", got, ok)
	}

	if _, ok := Key(models.JobRecord{Title: "only title"}); ok {
		t.Fatalf("expected invalid key")
	}
}

func TestDiff(t *testing.T) {
	newRecords := []models.JobRecord{
		{Title: "Senior Analyst", Company: "Acme", Link: "https://www.linkedin.com/jobs/view/1?refId=new"},
		{Title: "Senior Analyst", Company: "Acme", Link: "https://www.linkedin.com/jobs/view/1?refId=dupe"},
		{Title: "Platform Engineer", Company: "Beta", Link: "https://www.linkedin.com/jobs/view/2"},
		{Title: "", Company: "Invalid"},
	}
	seenRecords := []models.JobRecord{
		{Title: "senior analyst", Company: "acme", Link: "https://linkedin.com/jobs/view/1"},
		{Title: "No Company", Company: "   "},
	}

	unseen, stats := Diff(newRecords, seenRecords)

	if len(unseen) != 1 || unseen[0].Title != "Platform Engineer" {
		t.Fatalf("unexpected unseen records: %+v", unseen)
	}
	if stats.TotalNew != 4 || stats.TotalSeen != 2 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.InvalidNew != 1 || stats.InvalidSeen != 1 || stats.InvalidSkipped() != 2 {
		t.Fatalf("unexpected invalid counts: %+v", stats)
	}
	if stats.Unseen != 1 {
		t.Fatalf("Unseen = %d, want 1", stats.Unseen)
	}
}

func TestMergeAndIdempotency(t *testing.T) {
	existing := []models.JobRecord{
		{Title: "Senior Analyst", Company: "Acme", Link: "https://example.com/seen-1"},
		{Title: "", Company: "Unknown"},
	}
	input := []models.JobRecord{
		{Title: "Changed Title", Company: "Acme", Link: "https://example.com/seen-1?utm=x"},
		{Title: "Platform Engineer", Company: "Beta", Link: "https://example.com/new-2"},
		{Title: "", Company: "Broken"},
	}

	merged, stats := Merge(existing, input)
	if len(merged) != 3 {
		t.Fatalf("expected merged len=3, got %d", len(merged))
	}
	if merged[0].Title != "Senior Analyst" {
		t.Fatalf("existing entry should win collisions: %+v", merged[0])
	}
	if stats.Added != 1 || stats.InvalidSeen != 1 || stats.InvalidInput != 1 || stats.TotalOut != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	mergedAgain, statsAgain := Merge(merged, input)
	if len(mergedAgain) != len(merged) {
		t.Fatalf("expected idempotent merge length %d, got %d", len(merged), len(mergedAgain))
	}
	if statsAgain.Added != 0 {
		t.Fatalf("expected second merge Added=0, got %d", statsAgain.Added)
	}
}
