package models

// SearchParams captures the free-text inputs of one scrape run.
type SearchParams struct {
	Position string
	Location string
}
