package scraper

import (
	"strings"
)

const SiteLinkedIn = "linkedin"

// Registry builds one pipeline per supported site.
func Registry(deps Deps, baseURLs map[string]string) map[string]Scraper {
	return map[string]Scraper{
		SiteLinkedIn: NewPipeline(NewLinkedIn(baseURLs[SiteLinkedIn]), deps),
	}
}

func NormalizeSites(sites []string) []string {
	out := make([]string, 0, len(sites))
	for _, site := range sites {
		site = strings.ToLower(strings.TrimSpace(site))
		if site == "" {
			continue
		}
		site = strings.TrimPrefix(site, "www.")
		site = strings.TrimSuffix(site, ".com")
		out = append(out, site)
	}
	return out
}
