package crawler

import (
	"embed"
	"fmt"
)

//go:embed fixtures/*.html
var fixtureFS embed.FS

// fixtureRoutes maps recorded page URLs to their snapshot files. Search pages
// are keyed without a query so any company name reaches them.
var fixtureRoutes = map[string]string{
	"https://www.g2.com/search":                          "g2_search.html",
	"https://www.g2.com/products/slack/reviews":          "g2_slack_reviews_1.html",
	"https://www.g2.com/products/slack/reviews?page=2":   "g2_slack_reviews_2.html",
	"https://www.capterra.com/search/":                   "capterra_search.html",
	"https://www.capterra.com/p/135003/Slack/reviews/":   "capterra_slack_reviews.html",
	"https://www.trustradius.com/search":                 "trustradius_search.html",
	"https://www.trustradius.com/products/slack/reviews": "trustradius_slack_reviews.html",
}

// FixturePages returns the recorded pages used when fixture data is enabled
func FixturePages() (map[string]string, error) {
	pages := make(map[string]string, len(fixtureRoutes))
	for url, file := range fixtureRoutes {
		b, err := fixtureFS.ReadFile("fixtures/" + file)
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", file, err)
		}
		pages[url] = string(b)
	}
	return pages, nil
}
