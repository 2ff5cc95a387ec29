package seen

import (
	"net/url"
	"strings"

	"github.com/jimezsa/jobscrape/internal/models"
)

const keySeparator = "::"

// DiffStats captures stats for A-B unseen filtering.
type DiffStats struct {
	TotalNew    int
	TotalSeen   int
	InvalidNew  int
	InvalidSeen int
	Unseen      int
}

// InvalidSkipped returns the total invalid records skipped during comparison.
func (s DiffStats) InvalidSkipped() int {
	return s.InvalidNew + s.InvalidSeen
}

// MergeStats captures stats for seen history updates.
type MergeStats struct {
	TotalSeen    int
	TotalInput   int
	InvalidSeen  int
	InvalidInput int
	Added        int
	TotalOut     int
}

func (s MergeStats) InvalidSkipped() int {
	return s.InvalidSeen + s.InvalidInput
}

// Normalize lowercases and collapses whitespace.
func Normalize(value string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(value)))
	return strings.Join(fields, " ")
}

// NormalizeLink reduces a posting link to scheme-less host and path. Search
// pages decorate links with per-request tracking parameters, so the query and
// fragment are dropped.
func NormalizeLink(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return host + strings.TrimRight(u.Path, "/")
}

// Key identifies a record across runs: its normalized link, or title and
// company when the link is missing.
func Key(rec models.JobRecord) (string, bool) {
	if link := NormalizeLink(rec.Link); link != "" {
		return link, true
	}
	title := Normalize(rec.Title)
	company := Normalize(rec.Company)
	if title == "" || company == "" {
		return "", false
	}
	return title + keySeparator + company, true
}

// Diff returns records from newRecords whose key is not in seenRecords.
func Diff(newRecords []models.JobRecord, seenRecords []models.JobRecord) ([]models.JobRecord, DiffStats) {
	stats := DiffStats{
		TotalNew:  len(newRecords),
		TotalSeen: len(seenRecords),
	}

	seenKeys := make(map[string]struct{}, len(seenRecords))
	for _, rec := range seenRecords {
		key, ok := Key(rec)
		if !ok {
			stats.InvalidSeen++
			continue
		}
		seenKeys[key] = struct{}{}
	}

	newKeys := make(map[string]struct{}, len(newRecords))
	unseen := make([]models.JobRecord, 0, len(newRecords))
	for _, rec := range newRecords {
		key, ok := Key(rec)
		if !ok {
			stats.InvalidNew++
			continue
		}
		if _, exists := newKeys[key]; exists {
			continue
		}
		newKeys[key] = struct{}{}
		if _, exists := seenKeys[key]; exists {
			continue
		}
		unseen = append(unseen, rec)
	}

	stats.Unseen = len(unseen)
	return unseen, stats
}

// Merge appends unique input records to the seen history.
// Existing seen entries win collisions.
func Merge(existingSeen []models.JobRecord, input []models.JobRecord) ([]models.JobRecord, MergeStats) {
	stats := MergeStats{
		TotalSeen:  len(existingSeen),
		TotalInput: len(input),
	}

	keys := make(map[string]struct{}, len(existingSeen)+len(input))
	out := make([]models.JobRecord, 0, len(existingSeen)+len(input))

	for _, rec := range existingSeen {
		key, ok := Key(rec)
		if !ok {
			stats.InvalidSeen++
			out = append(out, rec)
			continue
		}
		if _, exists := keys[key]; exists {
			continue
		}
		keys[key] = struct{}{}
		out = append(out, rec)
	}

	for _, rec := range input {
		key, ok := Key(rec)
		if !ok {
			stats.InvalidInput++
			continue
		}
		if _, exists := keys[key]; exists {
			continue
		}
		keys[key] = struct{}{}
		out = append(out, rec)
		stats.Added++
	}

	stats.TotalOut = len(out)
	return out, stats
}
