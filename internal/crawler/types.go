package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dealmungchi/reviewcrawler/internal/extract"
)

// Review represents a scraped review
type Review struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Rating      float64  `json:"rating"`
	Reviewer    Reviewer `json:"reviewer"`
	Source      string   `json:"source"`
}

// Reviewer identifies the author of a review
type Reviewer struct {
	Name string `json:"name"`
	Info string `json:"info"`
}

// QueryPlaceholder is replaced by the escaped company name in search URLs
const QueryPlaceholder = "{query}"

// SearchConfig describes how to find a company's review page on a source
type SearchConfig struct {
	URL             string   `yaml:"url"`
	ResultSelectors []string `yaml:"result_selectors"`
	TitleSelectors  []string `yaml:"title_selectors"`
	LinkSelectors   []string `yaml:"link_selectors"`
	ReviewsPath     string   `yaml:"reviews_path"`
}

// FieldRules lists ordered candidates for each review field. The first rule
// producing a non-empty value wins.
type FieldRules struct {
	Title        []extract.FieldRule `yaml:"title"`
	Rating       []extract.FieldRule `yaml:"rating"`
	Text         []extract.FieldRule `yaml:"text"`
	Date         []extract.FieldRule `yaml:"date"`
	ReviewerName []extract.FieldRule `yaml:"reviewer_name"`
	ReviewerInfo []extract.FieldRule `yaml:"reviewer_info"`
}

// Source contains the configuration of one review site. Sites are data; a
// single Driver handles all of them.
type Source struct {
	Name                     string       `yaml:"name"`
	BaseURL                  string       `yaml:"base_url"`
	Search                   SearchConfig `yaml:"search"`
	ReviewContainerSelectors []string     `yaml:"review_container_selectors"`
	Fields                   FieldRules   `yaml:"fields"`
	NextPageSelectors        []string     `yaml:"next_page_selectors"`
	RatingDivisor            float64      `yaml:"rating_divisor"`
	BlockedMarkers           []string     `yaml:"blocked_markers"`
}

// CacheKey is the rate-limit key for the source
func (s Source) CacheKey() string {
	return s.Name + "_rate_limited"
}

// SearchURL renders the search URL for company
func (s Source) SearchURL(company string) string {
	return strings.ReplaceAll(s.Search.URL, QueryPlaceholder, url.QueryEscape(strings.TrimSpace(company)))
}

// Validate checks that the source can drive a run
func (s Source) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("source name is required")
	}
	if _, err := url.ParseRequestURI(s.BaseURL); err != nil {
		return fmt.Errorf("source %s: invalid base_url: %w", s.Name, err)
	}
	if !strings.Contains(s.Search.URL, QueryPlaceholder) {
		return fmt.Errorf("source %s: search url must contain %s", s.Name, QueryPlaceholder)
	}
	if len(s.Search.ResultSelectors) == 0 || len(s.Search.LinkSelectors) == 0 {
		return fmt.Errorf("source %s: search result and link selectors are required", s.Name)
	}
	if len(s.ReviewContainerSelectors) == 0 {
		return fmt.Errorf("source %s: review_container_selectors is required", s.Name)
	}
	if s.RatingDivisor < 0 {
		return fmt.Errorf("source %s: rating_divisor must not be negative", s.Name)
	}
	return nil
}

// rules converts plain selectors into text rules
func rules(selectors []string, attr string) []extract.FieldRule {
	out := make([]extract.FieldRule, 0, len(selectors))
	for _, sel := range selectors {
		out = append(out, extract.FieldRule{Selector: sel, Attr: attr})
	}
	return out
}
