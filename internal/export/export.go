package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jimezsa/jobscrape/internal/models"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
)

type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatTSV      Format = "tsv"
)

// TimestampLayout is used for date_scraped, in local time.
const TimestampLayout = "2006-01-02 15:04:05"

type WriteOptions struct {
	ColorEnabled bool
	Hyperlinks   bool
	LinkStyle    LinkStyle
}

type LinkStyle string

const (
	LinkStyleShort LinkStyle = "short"
	LinkStyleFull  LinkStyle = "full"
)

func WriteRecords(w io.Writer, records []models.JobRecord, format Format, opts WriteOptions) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, records)
	case FormatCSV:
		return writeCSV(w, records, ',')
	case FormatTSV:
		return writeCSV(w, records, '\t')
	case FormatMarkdown:
		return writeMarkdown(w, records)
	default:
		return writeTable(w, records, opts)
	}
}

// DefaultFilename names an output file after the run time.
func DefaultFilename(now time.Time, format Format) string {
	ext := string(format)
	if format == FormatTable || ext == "" {
		ext = string(FormatCSV)
	}
	return fmt.Sprintf("job_listings_%s.%s", now.Format("20060102_150405"), ext)
}

// SaveFile writes records to path. With no records nothing is written and
// saved is false.
func SaveFile(path string, records []models.JobRecord, format Format, logger zerolog.Logger) (saved bool, err error) {
	if len(records) == 0 {
		logger.Warn().Str("path", path).Msg("no jobs to save")
		return false, nil
	}
	if format == FormatTable {
		format = FormatCSV
	}

	file, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteRecords(file, records, format, WriteOptions{}); err != nil {
		_ = file.Close()
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return false, fmt.Errorf("close %s: %w", path, err)
	}

	logger.Info().Int("records", len(records)).Str("path", path).Msg("saved jobs")
	return true, nil
}

func writeJSON(w io.Writer, records []models.JobRecord) error {
	if records == nil {
		records = []models.JobRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func writeCSV(w io.Writer, records []models.JobRecord, delim rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = delim
	if err := writer.Write(csvHeader()); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writer.Write(csvRow(rec)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeTable(w io.Writer, records []models.JobRecord, opts WriteOptions) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(tableHeader(), "\t"))
	output := termenv.NewOutput(w)
	for _, rec := range records {
		fmt.Fprintln(tw, strings.Join(tableRow(rec, output, opts), "\t"))
	}
	return tw.Flush()
}

func writeMarkdown(w io.Writer, records []models.JobRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}
	for _, rec := range records {
		lines := []string{
			fmt.Sprintf("- **%s** (%s)", safe(rec.Title), safe(rec.Company)),
			fmt.Sprintf("  Location: %s", safe(rec.Location)),
			fmt.Sprintf("  Source: %s", safe(string(rec.Source))),
			fmt.Sprintf("  URL: [Open listing](<%s>)", safe(rec.Link)),
		}
		if posted := postedString(rec); posted != "" {
			lines = append(lines, fmt.Sprintf("  Posted: %s", posted))
		}
		lines = append(lines, fmt.Sprintf("  Scraped: %s", scrapedString(rec)))
		if rec.Description != "" && rec.Description != models.NoDescription {
			lines = append(lines, fmt.Sprintf("  Description: %s", truncate(safe(rec.Description), 280)))
		}
		for _, line := range lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func csvHeader() []string {
	return []string{
		"title",
		"company",
		"location",
		"job_link",
		"date_posted",
		"description",
		"source",
		"date_scraped",
	}
}

func csvRow(rec models.JobRecord) []string {
	return []string{
		rec.Title,
		rec.Company,
		rec.Location,
		rec.Link,
		postedString(rec),
		rec.Description,
		string(rec.Source),
		scrapedString(rec),
	}
}

func postedString(rec models.JobRecord) string {
	if rec.PostedAtRaw != "" {
		return rec.PostedAtRaw
	}
	if !rec.PostedAt.IsZero() {
		return rec.PostedAt.Format("2006-01-02")
	}
	return ""
}

func scrapedString(rec models.JobRecord) string {
	if rec.ScrapedAt.IsZero() {
		return ""
	}
	return rec.ScrapedAt.Local().Format(TimestampLayout)
}

func safe(value string) string {
	return strings.TrimSpace(value)
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}

func tableHeader() []string {
	return []string{
		"title",
		"company",
		"location",
		"url",
	}
}

func tableRow(rec models.JobRecord, output *termenv.Output, opts WriteOptions) []string {
	const linkColor = "#87CEEB"

	link := safe(rec.Link)
	displayURL := link
	if opts.LinkStyle == LinkStyleShort && opts.Hyperlinks {
		displayURL = shortURLLabel(link)
	}
	if opts.ColorEnabled {
		displayURL = output.String(displayURL).Foreground(output.Color(linkColor)).String()
	}
	if opts.Hyperlinks {
		displayURL = hyperlink(link, displayURL)
	}
	return []string{
		safe(rec.Title),
		safe(rec.Company),
		safe(rec.Location),
		displayURL,
	}
}

func hyperlink(url string, text string) string {
	const esc = "\x1b"
	return esc + "]8;;" + url + esc + "\\" + text + esc + "]8;;" + esc + "\\"
}

func shortURLLabel(raw string) string {
	const maxLen = 60
	label := strings.TrimSpace(raw)
	if parsed, err := url.Parse(raw); err == nil {
		host := strings.TrimPrefix(parsed.Host, "www.")
		if host != "" {
			label = host + parsed.Path
		}
	}
	if label == "" {
		label = raw
	}
	if len(label) > maxLen {
		label = label[:maxLen-3] + "..."
	}
	return label
}
