// Package review runs a review collection request end to end: validation,
// one browser session, the paginated driver and the date filter.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dealmungchi/reviewcrawler/internal/browser"
	"github.com/dealmungchi/reviewcrawler/internal/crawler"
	"github.com/dealmungchi/reviewcrawler/internal/dateparse"
	"github.com/dealmungchi/reviewcrawler/logger"
	"github.com/dealmungchi/reviewcrawler/pkg/errors"
	"github.com/dealmungchi/reviewcrawler/services/cache"
	"github.com/dealmungchi/reviewcrawler/services/publisher"
	"github.com/dealmungchi/reviewcrawler/services/storage"
)

// Result is the outcome of one run
type Result struct {
	Success bool             `json:"success"`
	Data    []crawler.Review `json:"data"`
	Count   int              `json:"count"`
	Error   string           `json:"error,omitempty"`

	// Err keeps the typed failure for status mapping
	Err error `json:"-"`
}

func failure(err error) Result {
	return Result{Success: false, Error: err.Error(), Err: err}
}

// ResultStore persists successful results
type ResultStore interface {
	Save(name string, v any) (string, error)
}

// Options configures a Pipeline
type Options struct {
	// UseFixtureData serves recorded pages instead of driving a browser
	UseFixtureData bool
	Driver         crawler.Options
}

// Pipeline wires sources, a session launcher and the optional side outputs
type Pipeline struct {
	Sources   crawler.Registry
	Launcher  browser.Launcher
	Fixtures  browser.Launcher
	Cache     cache.CacheService
	Store     ResultStore
	Publisher publisher.Publisher
	Options   Options

	// Normalizer parses review dates; nil uses the default chain
	Normalizer *dateparse.Normalizer

	// Now stamps result file names; nil uses time.Now
	Now func() time.Time
}

// Run executes req. It never panics and always releases the session it
// acquired.
func (p *Pipeline) Run(ctx context.Context, req Request) (result Result) {
	log := logger.ForSource(req.Source).WithStr("company", req.CompanyName)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Review run panicked")
			result = failure(errors.NewExtraction(req.Source, "internal error", fmt.Errorf("panic: %v", r)))
		}
	}()

	dateRange, err := req.Validate(p.Sources)
	if err != nil {
		log.Debug().Err(err).Msg("Rejected review request")
		return failure(err)
	}
	src, _ := p.Sources.Lookup(req.Source)

	launcher, err := p.launcher()
	if err != nil {
		return failure(err)
	}

	started := time.Now()
	session, err := launcher.NewSession(ctx)
	if err != nil {
		log.Error().Err(err).Str("engine", launcher.Name()).Msg("Failed to start browser session")
		return failure(errors.NewSession(src.Name, "failed to start browser session", err))
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close browser session")
		}
	}()

	reviews, err := crawler.NewDriver(src, session, p.Cache, p.Options.Driver).Run(ctx, req.CompanyName)
	if err != nil {
		log.Warn().Err(err).Msg("Review collection failed")
		return failure(err)
	}

	filtered := FilterByDate(reviews, dateRange, p.normalizer(), src.Name)

	log.Info().
		Int("collected", len(reviews)).
		Int("in_range", len(filtered)).
		Dur("elapsed", time.Since(started)).
		Msg("Review collection finished")

	if filtered == nil {
		filtered = []crawler.Review{}
	}
	result = Result{Success: true, Data: filtered, Count: len(filtered)}
	if result.Count > 0 {
		p.persist(ctx, req, src.Name, result)
	}
	return result
}

func (p *Pipeline) launcher() (browser.Launcher, error) {
	if p.Options.UseFixtureData {
		if p.Fixtures == nil {
			return nil, errors.NewConfiguration("fixture data requested but no fixture launcher configured", nil)
		}
		return p.Fixtures, nil
	}
	if p.Launcher == nil {
		return nil, errors.NewConfiguration("no browser launcher configured", nil)
	}
	return p.Launcher, nil
}

func (p *Pipeline) normalizer() *dateparse.Normalizer {
	if p.Normalizer != nil {
		return p.Normalizer
	}
	return dateparse.New()
}

// persist writes the result file and publishes it. Failures are logged;
// the caller already has its data.
func (p *Pipeline) persist(ctx context.Context, req Request, source string, result Result) {
	log := logger.ForSource(source)

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	if p.Store != nil {
		name := storage.ResultName(req.CompanyName, source, now())
		if path, err := p.Store.Save(name, result); err != nil {
			log.Error().Err(err).Msg("Failed to save result file")
		} else {
			log.Info().Str("path", path).Msg("Saved result file")
		}
	}

	if p.Publisher != nil {
		payload, err := json.Marshal(struct {
			CompanyName string           `json:"companyName"`
			Source      string           `json:"source"`
			StartDate   string           `json:"startDate"`
			EndDate     string           `json:"endDate"`
			Count       int              `json:"count"`
			Data        []crawler.Review `json:"data"`
		}{req.CompanyName, source, req.StartDate, req.EndDate, result.Count, result.Data})
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode result for publishing")
			return
		}
		if err := p.Publisher.Publish(ctx, source, payload); err != nil {
			log.Error().Err(err).Msg("Failed to publish result")
		}
	}
}

// FilterByDate keeps reviews whose date parses and falls inside r, in
// their original order. Unparseable dates are excluded.
func FilterByDate(reviews []crawler.Review, r DateRange, n *dateparse.Normalizer, source string) []crawler.Review {
	log := logger.ForSource(source)
	filtered := make([]crawler.Review, 0, len(reviews))
	for _, rv := range reviews {
		t, ok := n.Parse(rv.Date)
		if !ok {
			log.Debug().Err(errors.NewUnparseableDate(source, rv.Date)).Str("title", rv.Title).Msg("Excluding review")
			continue
		}
		if r.Contains(t) {
			filtered = append(filtered, rv)
		}
	}
	return filtered
}
