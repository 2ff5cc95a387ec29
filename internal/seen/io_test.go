package seen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jimezsa/jobscrape/internal/models"
)

func TestReadWriteRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")

	records := []models.JobRecord{{Title: "Analyst", Company: "Acme", Link: "https://example.com/1", Source: models.SourceLinkedIn}}
	if err := WriteRecords(path, records); err != nil {
		t.Fatalf("WriteRecords() error = %v", err)
	}

	got, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords() error = %v", err)
	}
	if len(got) != 1 || got[0].Link != records[0].Link || got[0].Source != models.SourceLinkedIn {
		t.Fatalf("unexpected records read back: %+v", got)
	}
}

func TestReadRecordsAllowMissing(t *testing.T) {
	got, err := ReadRecordsAllowMissing(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("ReadRecordsAllowMissing() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty history for missing file, got %d", len(got))
	}
}

func TestReadRecordsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := ReadRecordsAllowMissing(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
