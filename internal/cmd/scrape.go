package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jimezsa/jobscrape/internal/config"
	"github.com/jimezsa/jobscrape/internal/export"
	"github.com/jimezsa/jobscrape/internal/models"
	"github.com/jimezsa/jobscrape/internal/network"
	"github.com/jimezsa/jobscrape/internal/scraper"
	"github.com/jimezsa/jobscrape/internal/seen"
	"github.com/jimezsa/jobscrape/internal/store"
	"github.com/muesli/termenv"
)

type ScrapeCmd struct {
	Position string `arg:"" optional:"" help:"Job position keywords. Prompted for when omitted."`
	Sites    string `help:"Comma-separated list of sites (default: all)." default:"all"`
	ScrapeOptions
}

type SiteCmd struct {
	Position string `arg:"" optional:"" help:"Job position keywords. Prompted for when omitted."`
	ScrapeOptions
	Site string `kong:"-"`
}

type ScrapeOptions struct {
	Location   string `help:"Job location. Prompted for when omitted and no default is configured."`
	Format     string `help:"Output format: csv, json, md, tsv." enum:",csv,json,md,tsv" default:""`
	Links      string `help:"Table link display: short or full." enum:"short,full" default:"full"`
	Output     string `name:"output" short:"o" help:"Write results to this file (default: job_listings_<timestamp>.csv in the output directory)."`
	Stdout     bool   `help:"Write results to stdout instead of a file."`
	Proxies    string `help:"Comma-separated proxy URLs."`
	DB         string `name:"db" help:"Also store records in this SQLite database."`
	Seen       string `help:"Path to seen jobs JSON file."`
	NewOnly    bool   `help:"Output only unseen jobs (requires --seen)."`
	NewOut     string `help:"Write unseen jobs JSON to a file (requires --seen)."`
	SeenUpdate bool   `help:"Merge unseen jobs into the --seen history after the scrape (requires --seen)."`
}

func (s *ScrapeCmd) Run(ctx *Context) error {
	return runScrape(ctx, s.Position, s.Sites, s.ScrapeOptions)
}

func (s *SiteCmd) Run(ctx *Context) error {
	return runScrape(ctx, s.Position, s.Site, s.ScrapeOptions)
}

func runScrape(ctx *Context, position string, sitesArg string, opts ScrapeOptions) error {
	if err := validateSeenFlags(opts); err != nil {
		return err
	}

	params, err := resolveParams(ctx, position, opts.Location)
	if err != nil {
		return err
	}

	scrapers, err := buildScrapers(ctx, sitesArg, opts.Proxies)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx.context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return executeScrape(runCtx, ctx, scrapers, params, opts)
}

func validateSeenFlags(opts ScrapeOptions) error {
	seenSet := strings.TrimSpace(opts.Seen) != ""
	if opts.NewOnly && !seenSet {
		return fmt.Errorf("--new-only requires --seen")
	}
	if strings.TrimSpace(opts.NewOut) != "" && !seenSet {
		return fmt.Errorf("--new-out requires --seen")
	}
	if opts.SeenUpdate && !seenSet {
		return fmt.Errorf("--seen-update requires --seen")
	}
	return nil
}

// resolveParams fills position and location from flags, the configured
// default location, and finally an interactive prompt.
func resolveParams(ctx *Context, position string, location string) (models.SearchParams, error) {
	params := models.SearchParams{
		Position: strings.TrimSpace(position),
		Location: strings.TrimSpace(firstNonEmpty(location, ctx.Config.DefaultLocation)),
	}

	var err error
	if params.Position == "" {
		if params.Position, err = prompt(ctx, "Enter job position"); err != nil {
			return params, err
		}
	}
	if params.Location == "" {
		if params.Location, err = prompt(ctx, "Enter location"); err != nil {
			return params, err
		}
	}

	if params.Position == "" {
		return params, fmt.Errorf("a job position is required")
	}
	if params.Location == "" {
		return params, fmt.Errorf("a location is required")
	}
	return params, nil
}

func prompt(ctx *Context, label string) (string, error) {
	if ctx.In == nil || ctx.UI == nil {
		return "", nil
	}
	value, err := ctx.UI.Prompt(ctx.In, label)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return value, nil
}

func buildScrapers(ctx *Context, sitesArg string, proxiesFlag string) ([]scraper.Scraper, error) {
	cfg := ctx.Config

	proxies, err := config.LoadProxies(proxiesFlag)
	if err != nil {
		return nil, err
	}
	pool, err := network.NewIdentityPool(cfg.UserAgents, proxies, cfg.ProxyBanDuration())
	if err != nil {
		return nil, err
	}
	pacer, err := network.NewPacer(network.PacerOptions{
		Intervals:    cfg.Intervals(),
		MaxPerSecond: cfg.MaxRequestsPerSec,
	}, ctx.Logger)
	if err != nil {
		return nil, err
	}
	client, err := network.NewClient(cfg.Timeout())
	if err != nil {
		return nil, err
	}

	ctx.Logger.Debug().
		Int("user_agents", len(cfg.UserAgents)).
		Int("proxies", len(proxies)).
		Dur("timeout", cfg.Timeout()).
		Msg("transport ready")

	registry := scraper.Registry(scraper.Deps{
		Pacer:      pacer,
		Identities: pool,
		Fetcher:    network.NewFetcher(client, pool, ctx.Logger),
		Logger:     ctx.Logger,
	}, map[string]string{scraper.SiteLinkedIn: cfg.BaseURL})

	return selectScrapers(registry, sitesArg)
}

func executeScrape(runCtx context.Context, ctx *Context, scrapers []scraper.Scraper, params models.SearchParams, opts ScrapeOptions) error {
	stopIndicator := startScrapeIndicator(ctx)

	var records []models.JobRecord
	for _, sc := range scrapers {
		found, err := sc.Search(runCtx, params)
		records = mergeUniqueRecords(records, found)
		if err != nil {
			ctx.Logger.Warn().Err(err).Str("site", sc.Name()).Int("records", len(records)).Msg("scrape interrupted")
			break
		}
	}

	if stopIndicator != nil {
		stopIndicator()
	}

	var unseenRecords []models.JobRecord
	if strings.TrimSpace(opts.Seen) != "" {
		seenRecords, err := seen.ReadRecordsAllowMissing(opts.Seen)
		if err != nil {
			return fmt.Errorf("read --seen: %w", err)
		}
		unseenRecords, _ = seen.Diff(records, seenRecords)
	}

	outputRecords := records
	if opts.NewOnly {
		outputRecords = unseenRecords
	}

	outputPath := strings.TrimSpace(opts.Output)
	if strings.TrimSpace(opts.NewOut) != "" && pathsEqual(outputPath, opts.NewOut) {
		return fmt.Errorf("--new-out path must differ from --output")
	}
	if strings.TrimSpace(opts.Seen) != "" && pathsEqual(outputPath, opts.Seen) {
		return fmt.Errorf("--output path must differ from --seen")
	}
	if strings.TrimSpace(opts.NewOut) != "" && pathsEqual(opts.NewOut, opts.Seen) {
		return fmt.Errorf("--new-out path must differ from --seen")
	}

	if strings.TrimSpace(opts.NewOut) != "" {
		if err := seen.WriteRecords(opts.NewOut, unseenRecords); err != nil {
			return fmt.Errorf("write --new-out: %w", err)
		}
	}

	toStdout := outputPath == "" && (opts.Stdout || ctx.JSONOutput || ctx.PlainText)
	format, err := resolveFormat(ctx, opts, outputPath, toStdout)
	if err != nil {
		return err
	}

	if toStdout {
		if err := writeStdout(ctx, outputRecords, format, opts); err != nil {
			return err
		}
	} else {
		if outputPath == "" {
			outputPath = filepath.Join(ctx.Config.OutputDir, export.DefaultFilename(time.Now(), format))
		}
		saved, err := export.SaveFile(outputPath, outputRecords, format, ctx.Logger)
		if err != nil {
			return err
		}
		if ctx.UI != nil {
			if saved {
				ctx.UI.Successf("Saved %d jobs to %s", len(outputRecords), outputPath)
			} else {
				ctx.UI.Warnf("No jobs to save")
			}
		}
	}

	// Stored under the parent context: an interrupted run still persists.
	if strings.TrimSpace(opts.DB) != "" {
		if err := storeRecords(ctx, opts.DB, records); err != nil {
			return err
		}
	}

	if opts.SeenUpdate {
		if err := updateSeenHistory(opts.Seen, unseenRecords); err != nil {
			return err
		}
	}

	summaryRecords := records
	if strings.TrimSpace(opts.Seen) != "" {
		summaryRecords = unseenRecords
	}
	printScrapeSummary(ctx, summaryRecords)

	return nil
}

func writeStdout(ctx *Context, records []models.JobRecord, format export.Format, opts ScrapeOptions) error {
	colorEnabled := ctx.UI != nil && ctx.UI.ColorEnabled
	linkStyle := export.LinkStyleShort
	if strings.EqualFold(opts.Links, string(export.LinkStyleFull)) {
		linkStyle = export.LinkStyleFull
	}
	return export.WriteRecords(ctx.Out, records, format, export.WriteOptions{
		ColorEnabled: colorEnabled,
		Hyperlinks:   colorEnabled && isTTY(ctx.Out),
		LinkStyle:    linkStyle,
	})
}

func storeRecords(ctx *Context, path string, records []models.JobRecord) error {
	db, err := store.Open(ctx.context(), path)
	if err != nil {
		return fmt.Errorf("open --db: %w", err)
	}
	defer db.Close()

	added, err := db.InsertRecords(ctx.context(), records)
	if err != nil {
		return fmt.Errorf("write --db: %w", err)
	}
	ctx.Logger.Info().Str("path", path).Int("added", added).Int("records", len(records)).Msg("stored jobs")
	return nil
}

func pathsEqual(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA == nil && errB == nil {
		return absA == absB
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

func updateSeenHistory(seenPath string, input []models.JobRecord) error {
	seenRecords, err := seen.ReadRecordsAllowMissing(seenPath)
	if err != nil {
		return fmt.Errorf("read --seen: %w", err)
	}

	merged, _ := seen.Merge(seenRecords, input)
	if err := seen.WriteRecords(seenPath, merged); err != nil {
		return fmt.Errorf("write --seen: %w", err)
	}

	return nil
}

func printScrapeSummary(ctx *Context, records []models.JobRecord) {
	if ctx == nil || ctx.Err == nil {
		return
	}
	_, _ = fmt.Fprintf(ctx.Err, "%s\n", formatScrapeSummary(records))
}

func formatScrapeSummary(records []models.JobRecord) string {
	counts := countRecordsBySource(records)
	if len(counts) == 0 {
		return "summary: jobs=0 by_source=none"
	}

	parts := make([]string, 0, len(counts))
	for _, count := range counts {
		parts = append(parts, fmt.Sprintf("%s:%d", count.source, count.total))
	}

	return fmt.Sprintf("summary: jobs=%d by_source=%s", len(records), strings.Join(parts, ", "))
}

type sourceCount struct {
	source string
	total  int
}

func countRecordsBySource(records []models.JobRecord) []sourceCount {
	totals := make(map[string]int, len(records))
	for _, rec := range records {
		source := strings.ToLower(strings.TrimSpace(string(rec.Source)))
		if source == "" {
			source = "unknown"
		}
		totals[source]++
	}

	counts := make([]sourceCount, 0, len(totals))
	for source, total := range totals {
		counts = append(counts, sourceCount{source: source, total: total})
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].source < counts[j].source
	})
	return counts
}

func mergeUniqueRecords(existing []models.JobRecord, incoming []models.JobRecord) []models.JobRecord {
	if len(incoming) == 0 {
		return existing
	}

	keys := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make([]models.JobRecord, 0, len(existing)+len(incoming))

	for _, rec := range existing {
		merged = append(merged, rec)
		if key, ok := seen.Key(rec); ok {
			keys[key] = struct{}{}
		}
	}

	for _, rec := range incoming {
		key, ok := seen.Key(rec)
		if !ok {
			merged = append(merged, rec)
			continue
		}
		if _, exists := keys[key]; exists {
			continue
		}
		keys[key] = struct{}{}
		merged = append(merged, rec)
	}

	return merged
}

func resolveFormat(ctx *Context, opts ScrapeOptions, outputPath string, toStdout bool) (export.Format, error) {
	if ctx.JSONOutput {
		return export.FormatJSON, nil
	}
	if ctx.PlainText {
		return export.FormatTSV, nil
	}
	if opts.Format != "" {
		return parseFormat(opts.Format)
	}

	if !toStdout {
		switch strings.ToLower(filepath.Ext(outputPath)) {
		case ".json":
			return export.FormatJSON, nil
		case ".md":
			return export.FormatMarkdown, nil
		case ".tsv":
			return export.FormatTSV, nil
		default:
			return export.FormatCSV, nil
		}
	}

	if isTTY(ctx.Out) {
		return export.FormatTable, nil
	}
	return export.FormatCSV, nil
}

func parseFormat(value string) (export.Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "csv":
		return export.FormatCSV, nil
	case "json":
		return export.FormatJSON, nil
	case "md", "markdown":
		return export.FormatMarkdown, nil
	case "tsv":
		return export.FormatTSV, nil
	case "table", "":
		return export.FormatTable, nil
	default:
		return "", fmt.Errorf("unknown format: %s", value)
	}
}

func selectScrapers(registry map[string]scraper.Scraper, sitesArg string) ([]scraper.Scraper, error) {
	requested := scraper.NormalizeSites(strings.Split(sitesArg, ","))
	if len(requested) == 0 || (len(requested) == 1 && requested[0] == "all") {
		requested = make([]string, 0, len(registry))
		for site := range registry {
			requested = append(requested, site)
		}
		sort.Strings(requested)
	}

	selected := make([]scraper.Scraper, 0, len(requested))
	for _, site := range requested {
		sc, ok := registry[site]
		if !ok {
			return nil, fmt.Errorf("unknown site: %s", site)
		}
		selected = append(selected, sc)
	}

	return selected, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func isTTY(out io.Writer) bool {
	output := termenv.NewOutput(out)
	return output.ColorProfile() != termenv.Ascii
}

func startScrapeIndicator(ctx *Context) func() {
	if ctx == nil || ctx.Err == nil || ctx.UI == nil {
		return nil
	}
	if !isTTY(ctx.Err) {
		return nil
	}

	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		start := time.Now()
		frames := []string{"|", "/", "-", "\\"}
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		index := 0

		for {
			select {
			case <-done:
				fmt.Fprint(ctx.Err, "\r\033[2K")
				return
			case <-ticker.C:
				seconds := int(time.Since(start).Seconds())
				frame := frames[index%len(frames)]
				fmt.Fprintf(ctx.Err, "\r\033[2KScraping... %ds %s", seconds, frame)
				index++
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}
