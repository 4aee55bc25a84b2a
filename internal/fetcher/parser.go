package fetcher

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/fernglade/rankcrawl/internal/urlmodel"
)

// extractLinks retrieves every anchor/canonical-link href in doc, resolved
// against page's host, and tallies occurrences. Directly adapted from the
// teacher's GoqueryParser.extractLinks (crawler/fetcher/parser.go), with
// the "seen" dedupe dropped — occurrence counting needs every hit, not
// just the first (spec.md's Link edge "occurrences" field).
func extractLinks(doc *goquery.Document, page urlmodel.URL, opts urlmodel.Options) map[urlmodel.URL]int {
	links := make(map[urlmodel.URL]int)
	if doc == nil {
		return links
	}

	doc.Find("a,link").FilterFunction(func(i int, s *goquery.Selection) bool {
		_, hrefExists := s.Attr("href")
		linkType, linkExists := s.Attr("rel")
		return hrefExists && (s.Is("a") || (linkExists && linkType == "canonical"))
	}).Each(func(i int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		target, err := urlmodel.Parse(href, &page, opts)
		if err != nil {
			return
		}
		links[target]++
	})

	return links
}
