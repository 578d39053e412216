package crawler

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dealmungchi/reviewcrawler/internal/extract"
	"github.com/dealmungchi/reviewcrawler/logger"
)

// Supported source names
const (
	SourceG2          = "g2"
	SourceCapterra    = "capterra"
	SourceTrustRadius = "trustradius"
)

// commonBlockedMarkers appear on bot-challenge interstitials
var commonBlockedMarkers = []string{
	"cf-browser-verification",
	"cf-chl-",
	"challenge-platform",
	"px-captcha",
	"captcha-delivery.com",
	"Attention Required! | Cloudflare",
}

// Registry maps source names to their configuration
type Registry map[string]Source

// Lookup finds a source by case-insensitive name
func (r Registry) Lookup(name string) (Source, bool) {
	src, ok := r[strings.ToLower(strings.TrimSpace(name))]
	return src, ok
}

// Names returns the registered source names, sorted
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultSources returns the built-in source configurations
func DefaultSources() Registry {
	configurations := []Source{
		{
			// G2 source configuration
			Name:    SourceG2,
			BaseURL: "https://www.g2.com",
			Search: SearchConfig{
				URL:             "https://www.g2.com/search?query={query}",
				ResultSelectors: []string{"div.product-listing", "[data-testid='search-result']"},
				TitleSelectors:  []string{".product-listing__product-name", "[itemprop='name']"},
				LinkSelectors:   []string{"a.product-listing__product-name", "a[href*='/products/']"},
				ReviewsPath:     "/reviews",
			},
			ReviewContainerSelectors: []string{"div[itemprop='review']", "article.review-card", "div.paper--box"},
			Fields: FieldRules{
				Title: []extract.FieldRule{
					{Selector: "[data-testid='review-title']"},
					{Selector: "h3.review-title"},
				},
				Rating: []extract.FieldRule{
					{Selector: "meta[itemprop='ratingValue']", Attr: "content"},
					{Selector: "[data-testid='rating']", Attr: "data-rating"},
				},
				Text: []extract.FieldRule{
					{Selector: "[itemprop='reviewBody']"},
					{Selector: ".formatted-text"},
				},
				Date: []extract.FieldRule{
					{Selector: "meta[itemprop='datePublished']", Attr: "content"},
					{Selector: "time", Attr: "datetime"},
					{Selector: ".time-stamp"},
				},
				ReviewerName: []extract.FieldRule{
					{Selector: "[itemprop='author'] [itemprop='name']"},
					{Selector: ".reviewer-name"},
				},
				ReviewerInfo: []extract.FieldRule{
					{Selector: ".reviewer-details"},
					{Selector: ".mt-4th"},
				},
			},
			NextPageSelectors: []string{"a[rel='next']", "a.pagination__named-link[aria-label='Next']", "li.next a"},
			RatingDivisor:     1,
			BlockedMarkers:    commonBlockedMarkers,
		},
		{
			// Capterra source configuration
			Name:    SourceCapterra,
			BaseURL: "https://www.capterra.com",
			Search: SearchConfig{
				URL:             "https://www.capterra.com/search/?query={query}",
				ResultSelectors: []string{"[data-testid='search-product-card']", "div.search-result", "div.product-card"},
				TitleSelectors:  []string{"[data-testid='product-name']", "h2", "h3"},
				LinkSelectors:   []string{"a[data-testid='product-card-link']", "a[href*='/p/']"},
				ReviewsPath:     "/reviews/",
			},
			ReviewContainerSelectors: []string{"[data-test-id='review-card']", "[data-testid='review-card']", "div.review-card"},
			Fields: FieldRules{
				Title: []extract.FieldRule{
					{Selector: "h3"},
					{Selector: ".review-card-title"},
				},
				Rating: []extract.FieldRule{
					{Selector: "[data-testid='rating']", Attr: "data-rating"},
					{Selector: ".star-rating-label"},
				},
				Text: []extract.FieldRule{
					{Selector: "[data-testid='review-body']"},
					{Selector: ".review-text"},
					{Selector: "p"},
				},
				Date: []extract.FieldRule{
					{Selector: "[data-testid='review-date']"},
					{Selector: ".review-date"},
				},
				ReviewerName: []extract.FieldRule{
					{Selector: "[data-testid='reviewer-full-name']"},
					{Selector: ".reviewer-name"},
				},
				ReviewerInfo: []extract.FieldRule{
					{Selector: "[data-testid='reviewer-job-title']"},
					{Selector: ".reviewer-info"},
				},
			},
			NextPageSelectors: []string{"button[aria-label='Next page']", "a[aria-label='Next']", "[data-testid='pagination-next']"},
			RatingDivisor:     1,
			BlockedMarkers:    commonBlockedMarkers,
		},
		{
			// TrustRadius source configuration, scores are out of 10
			Name:    SourceTrustRadius,
			BaseURL: "https://www.trustradius.com",
			Search: SearchConfig{
				URL:             "https://www.trustradius.com/search?q={query}",
				ResultSelectors: []string{"[data-testid='product-result']", "div.search-result"},
				TitleSelectors:  []string{".product-name", "h3"},
				LinkSelectors:   []string{"a[href*='/products/']"},
				ReviewsPath:     "/reviews",
			},
			ReviewContainerSelectors: []string{"article.review", "[data-testid='review']", "div.review-card"},
			Fields: FieldRules{
				Title: []extract.FieldRule{
					{Selector: "h3.review-title"},
					{Selector: "h3"},
				},
				Rating: []extract.FieldRule{
					{Selector: "[data-rating]", Attr: "data-rating"},
					{Selector: ".trust-score__score"},
				},
				Text: []extract.FieldRule{
					{Selector: ".review-body"},
					{Selector: "[data-testid='review-text']"},
				},
				Date: []extract.FieldRule{
					{Selector: "time", Attr: "datetime"},
					{Selector: ".review-date"},
				},
				ReviewerName: []extract.FieldRule{
					{Selector: ".reviewer-name"},
				},
				ReviewerInfo: []extract.FieldRule{
					{Selector: ".reviewer-position"},
					{Selector: ".reviewer-company"},
				},
			},
			NextPageSelectors: []string{"a[rel='next']", "li.pagination-next a", "button.next"},
			RatingDivisor:     2,
			BlockedMarkers:    commonBlockedMarkers,
		},
	}

	registry := make(Registry, len(configurations))
	for _, src := range configurations {
		registry[src.Name] = src
	}
	return registry
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// LoadSources returns the built-in sources overlaid with the definitions in
// path. A source in the file replaces the built-in one with the same name.
// An empty path returns the defaults.
func LoadSources(path string) (Registry, error) {
	registry := DefaultSources()
	if path == "" {
		return registry, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}

	for _, src := range file.Sources {
		src.Name = strings.ToLower(strings.TrimSpace(src.Name))
		if src.RatingDivisor == 0 {
			src.RatingDivisor = 1
		}
		if err := src.Validate(); err != nil {
			return nil, err
		}
		if _, exists := registry[src.Name]; exists {
			logger.ForSource(src.Name).Info().Str("file", path).Msg("Overriding built-in source definition")
		}
		registry[src.Name] = src
	}

	return registry, nil
}
