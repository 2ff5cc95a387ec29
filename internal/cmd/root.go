package cmd

import (
	"github.com/alecthomas/kong"
	"github.com/jimezsa/jobscrape/internal/scraper"
)

type CLI struct {
	Color      string `help:"Color output: auto, always, never." enum:"auto,always,never" default:"auto"`
	JSON       bool   `help:"JSON output to stdout; disables colors."`
	Plain      bool   `help:"TSV output to stdout; disables colors."`
	Verbose    bool   `help:"Enable debug logging."`
	LogConsole bool   `name:"log-console" help:"Human-readable log lines instead of JSON."`

	VersionFlag kong.VersionFlag `help:"Print version."`

	Version  VersionCmd `cmd:"" help:"Print version."`
	Config   ConfigCmd  `cmd:"" help:"Manage configuration."`
	Scrape   ScrapeCmd  `cmd:"" help:"Scrape job postings for a position and location."`
	LinkedIn SiteCmd    `cmd:"" name:"linkedin" help:"Scrape LinkedIn."`
	Seen     SeenCmd    `cmd:"" help:"Seen jobs utilities."`
	Proxies  ProxiesCmd `cmd:"" help:"Proxy utilities."`
}

func NewCLI() *CLI {
	return &CLI{
		LinkedIn: SiteCmd{Site: scraper.SiteLinkedIn},
	}
}
