package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jimezsa/jobscrape/internal/models"
)

// Rule pulls one value out of a selection. ok is false when the rule found
// nothing usable.
type Rule func(s *goquery.Selection) (value string, ok bool)

// Text matches the first element for selector and returns its visible text
// with whitespace collapsed.
func Text(selector string) Rule {
	return func(s *goquery.Selection) (string, bool) {
		node := s.Find(selector).First()
		if node.Length() == 0 {
			return "", false
		}
		text := cleanText(node.Text())
		return text, text != ""
	}
}

// Attr matches the first element for selector and returns attr.
func Attr(selector string, attr string) Rule {
	return func(s *goquery.Selection) (string, bool) {
		node := s.Find(selector).First()
		if node.Length() == 0 {
			return "", false
		}
		value, ok := node.Attr(attr)
		value = strings.TrimSpace(value)
		return value, ok && value != ""
	}
}

// Field is an ordered list of rules for one logical value; the first rule
// that matches wins.
type Field struct {
	Name     string
	Required bool
	Rules    []Rule
}

func (f Field) Extract(s *goquery.Selection) (string, bool) {
	for _, rule := range f.Rules {
		if value, ok := rule(s); ok {
			return value, true
		}
	}
	return "", false
}

// extractFields runs every field against s. A missing required field stops
// extraction with a *models.FieldError; missing optional fields are left out
// of the result.
func extractFields(s *goquery.Selection, fields []Field) (map[string]string, error) {
	values := make(map[string]string, len(fields))
	for _, field := range fields {
		value, ok := field.Extract(s)
		if !ok {
			if field.Required {
				return nil, &models.FieldError{Field: field.Name, Index: -1}
			}
			continue
		}
		values[field.Name] = value
	}
	return values, nil
}
