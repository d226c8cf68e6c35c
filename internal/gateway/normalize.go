package gateway

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/neurobridge/matchcore/internal/cache"
)

// stripHTML extracts the visible text of a description that arrived with
// markup. Postings pasted from rich editors routinely carry HTML.
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// normalizeDescription prepares free text for prompting and cache keying.
func normalizeDescription(s string) string {
	return cache.NormalizeText(stripHTML(s))
}
