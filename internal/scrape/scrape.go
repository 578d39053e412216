// Package scrape extracts items from a single page, either with a selector
// mapping or heuristically.
package scrape

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dealmungchi/reviewcrawler/helpers"
	"github.com/dealmungchi/reviewcrawler/internal/browser"
	"github.com/dealmungchi/reviewcrawler/internal/extract"
	"github.com/dealmungchi/reviewcrawler/logger"
	"github.com/dealmungchi/reviewcrawler/pkg/errors"
)

const source = "scrape"

// Request asks for one page. Selectors nil or empty means auto extraction.
type Request struct {
	URL       string                    `json:"url"`
	Selectors *extract.FieldSelectorMap `json:"selectors,omitempty"`
}

// Validate checks the URL
func (r Request) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return errors.NewValidation(source, "url is required")
	}
	if !helpers.IsHTTPURL(r.URL) {
		return errors.NewValidation(source, fmt.Sprintf("url must be an absolute http(s) URL, got %q", r.URL))
	}
	return nil
}

func (r Request) auto() bool {
	return r.Selectors == nil || r.Selectors.IsZero()
}

// Result is the outcome of one scrape
type Result struct {
	Success bool                    `json:"success"`
	Data    []extract.ExtractedItem `json:"data"`
	Error   string                  `json:"error,omitempty"`

	Err error `json:"-"`
}

func failure(err error) Result {
	return Result{Success: false, Error: err.Error(), Err: err}
}

// Scraper runs single page requests, one session each
type Scraper struct {
	Launcher    browser.Launcher
	WaitTimeout time.Duration
}

// New creates a scraper
func New(launcher browser.Launcher, waitTimeout time.Duration) *Scraper {
	return &Scraper{Launcher: launcher, WaitTimeout: waitTimeout}
}

// Run scrapes req.URL. An empty result is still a success; callers decide
// how to report it.
func (s *Scraper) Run(ctx context.Context, req Request) (result Result) {
	log := logger.ForComponent(source).WithStr("url", req.URL)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Scrape panicked")
			result = failure(errors.NewExtraction(source, "internal error", fmt.Errorf("panic: %v", r)))
		}
	}()

	if err := req.Validate(); err != nil {
		return failure(err)
	}
	if s.Launcher == nil {
		return failure(errors.NewConfiguration("no browser launcher configured", nil))
	}

	session, err := s.Launcher.NewSession(ctx)
	if err != nil {
		log.Error().Err(err).Str("engine", s.Launcher.Name()).Msg("Failed to start browser session")
		return failure(errors.NewSession(source, "failed to start browser session", err))
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close browser session")
		}
	}()

	if err := session.Navigate(ctx, req.URL); err != nil {
		return failure(errors.NewNavigation(source, "failed to load "+req.URL, err))
	}

	if !req.auto() && strings.TrimSpace(req.Selectors.Root) != "" {
		if _, err := session.WaitForAny(ctx, []string{req.Selectors.Root}, s.WaitTimeout); err != nil {
			log.Debug().Err(err).Str("root", req.Selectors.Root).Msg("Root selector did not appear")
		}
	}

	html, err := session.HTML(ctx)
	if err != nil {
		return failure(errors.NewExtraction(source, "failed to read page", err))
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return failure(errors.NewExtraction(source, "failed to parse page", err))
	}

	var items []extract.ExtractedItem
	if req.auto() {
		items = extract.ExtractAuto(doc)
	} else {
		items = extract.Extract(doc, *req.Selectors)
	}

	if items == nil {
		items = []extract.ExtractedItem{}
	}

	log.Info().Int("items", len(items)).Bool("auto", req.auto()).Msg("Scrape finished")
	return Result{Success: true, Data: items}
}
