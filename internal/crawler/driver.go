package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"

	"github.com/dealmungchi/reviewcrawler/helpers"
	"github.com/dealmungchi/reviewcrawler/internal/browser"
	"github.com/dealmungchi/reviewcrawler/internal/extract"
	"github.com/dealmungchi/reviewcrawler/logger"
	"github.com/dealmungchi/reviewcrawler/pkg/errors"
	"github.com/dealmungchi/reviewcrawler/services/cache"
)

// DefaultPageCap bounds the number of review pages one run visits
const DefaultPageCap = 10

// Options tunes a Driver run
type Options struct {
	PageCap        int
	WaitTimeout    time.Duration
	ScrollDelay    time.Duration
	LocateCacheTTL time.Duration
	BlockTime      time.Duration
}

// Driver collects reviews for one company from one source: it locates the
// company's review page, then extracts and paginates until there is no next
// page or the page cap is reached.
type Driver struct {
	source  Source
	session browser.Session
	cache   cache.CacheService
	opts    Options
	log     *logger.Logger
}

// NewDriver creates a driver. cacheSvc may be nil.
func NewDriver(source Source, session browser.Session, cacheSvc cache.CacheService, opts Options) *Driver {
	if opts.PageCap <= 0 {
		opts.PageCap = DefaultPageCap
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	return &Driver{
		source:  source,
		session: session,
		cache:   cacheSvc,
		opts:    opts,
		log:     logger.ForSource(source.Name),
	}
}

// Run locates company and collects its reviews. Errors before the first
// review page is loaded are returned; later navigation failures end the run
// with the reviews gathered so far.
func (d *Driver) Run(ctx context.Context, company string) ([]Review, error) {
	if err := d.checkBlocked(); err != nil {
		return nil, err
	}

	reviewsURL, err := d.Locate(ctx, company)
	if err != nil {
		return nil, err
	}

	return d.Collect(ctx, reviewsURL)
}

// checkBlocked fails fast while the source's rate-limit key is set
func (d *Driver) checkBlocked() error {
	if d.cache == nil {
		return nil
	}
	if _, err := d.cache.Get(d.source.CacheKey()); err == nil {
		return errors.NewRateLimit(d.source.Name, d.opts.BlockTime)
	}
	return nil
}

// markBlocked sets the source's rate-limit key for BlockTime
func (d *Driver) markBlocked() {
	if d.cache == nil || d.opts.BlockTime <= 0 {
		return
	}
	value := []byte(fmt.Sprintf("%d", int(d.opts.BlockTime/time.Second)))
	if err := d.cache.Set(d.source.CacheKey(), value, d.opts.BlockTime); err != nil {
		d.log.Warn().Err(err).Msg("Failed to set rate limit key")
	}
}

// navigationError classifies a failed load. A 429 from the source sets the
// rate-limit key like a challenge page does.
func (d *Driver) navigationError(message string, err error) error {
	if stderrors.Is(err, helpers.ErrRateLimited) {
		d.log.Warn().Err(err).Dur("block_time", d.opts.BlockTime).Msg("Source rate limited us")
		d.markBlocked()
		return errors.NewRateLimit(d.source.Name, d.opts.BlockTime)
	}
	return errors.NewNavigation(d.source.Name, message, err)
}

func (d *Driver) locateKey(company string) string {
	key := "locate_" + d.source.Name + "_" + helpers.SanitizeFilename(helpers.NormalizeName(company))
	if len(key) > 200 {
		key = key[:200]
	}
	return key
}

// Locate resolves the URL of company's review listing on the source
func (d *Driver) Locate(ctx context.Context, company string) (string, error) {
	key := d.locateKey(company)
	if d.cache != nil {
		if cached, err := d.cache.Get(key); err == nil && len(cached) > 0 {
			d.log.Debug().Str("company", company).Str("url", string(cached)).Msg("Locate cache hit")
			return string(cached), nil
		}
	}

	searchURL := d.source.SearchURL(company)
	if err := d.session.Navigate(ctx, searchURL); err != nil {
		return "", d.navigationError("failed to load search page", err)
	}

	doc, err := d.snapshot(ctx)
	if err != nil {
		return "", err
	}

	results, _, ok := extract.FirstMatch(doc.Selection, d.source.Search.ResultSelectors)
	if !ok {
		return "", errors.NewNotFound(d.source.Name, fmt.Sprintf("no search results for %q", company))
	}

	target := helpers.NormalizeName(company)
	titleRules := rules(d.source.Search.TitleSelectors, "")
	linkRules := rules(d.source.Search.LinkSelectors, "href")

	var (
		bestLink  string
		bestScore = -1.0
	)
	results.Each(func(_ int, result *goquery.Selection) {
		title := helpers.NormalizeName(extract.FirstText(result, titleRules))
		if title == "" || !strings.Contains(title, target) {
			return
		}
		link := extract.FirstText(result, linkRules)
		if link == "" {
			return
		}
		if score := matchr.JaroWinkler(title, target, false); score > bestScore {
			bestScore = score
			bestLink = link
		}
	})

	if bestLink == "" {
		return "", errors.NewNotFound(d.source.Name, fmt.Sprintf("company %q not found", company))
	}

	base := d.currentURL(ctx, searchURL)
	reviewsURL, err := d.reviewsURL(base, bestLink)
	if err != nil {
		return "", errors.NewNavigation(d.source.Name, "invalid listing link", err)
	}

	d.log.Info().
		Str("company", company).
		Str("url", reviewsURL).
		Float64("similarity", bestScore).
		Msg("Located review page")

	if d.cache != nil && d.opts.LocateCacheTTL > 0 {
		if err := d.cache.Set(key, []byte(reviewsURL), d.opts.LocateCacheTTL); err != nil {
			d.log.Debug().Err(err).Msg("Failed to cache located URL")
		}
	}

	return reviewsURL, nil
}

// reviewsURL resolves link and appends the source's reviews path when the
// listing points at the product overview.
func (d *Driver) reviewsURL(base, link string) (string, error) {
	resolved, err := helpers.ResolveURL(base, link)
	if err != nil {
		return "", err
	}
	suffix := d.source.Search.ReviewsPath
	if suffix == "" {
		return resolved, nil
	}
	u, err := url.Parse(resolved)
	if err != nil {
		return "", err
	}
	trimmed := strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(trimmed, strings.TrimSuffix(suffix, "/")) {
		u.Path = trimmed + suffix
	}
	return u.String(), nil
}

// Collect extracts reviews starting at reviewsURL and follows pagination
func (d *Driver) Collect(ctx context.Context, reviewsURL string) ([]Review, error) {
	if err := d.session.Navigate(ctx, reviewsURL); err != nil {
		return nil, d.navigationError("failed to load review page", err)
	}
	d.settle(ctx)

	var reviews []Review
	visited := map[string]bool{d.currentURL(ctx, reviewsURL): true}

	for page := 1; ; page++ {
		doc, err := d.snapshot(ctx)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			d.log.Warn().Err(err).Int("page", page).Msg("Stopping pagination, returning partial results")
			break
		}

		found := d.extractPage(doc)
		d.log.Debug().Int("page", page).Int("reviews", len(found)).Msg("Extracted page")
		reviews = append(reviews, found...)

		if page >= d.opts.PageCap {
			d.log.Info().Int("cap", d.opts.PageCap).Msg("Page cap reached")
			break
		}

		advanced, err := d.nextPage(ctx, doc, visited)
		if err != nil {
			d.log.Warn().Err(err).Int("page", page).Msg("Pagination failed, returning partial results")
			break
		}
		if !advanced {
			break
		}
		d.settle(ctx)
	}

	return reviews, nil
}

// nextPage follows the first enabled next-page control. It reports false
// when there is none or it leads back to a page already seen.
func (d *Driver) nextPage(ctx context.Context, doc *goquery.Document, visited map[string]bool) (bool, error) {
	enabled := func(s *goquery.Selection) bool { return !extract.IsDisabled(s) }
	matches, selector, ok := extract.FirstMatchFunc(doc.Selection, d.source.NextPageSelectors, enabled)
	if !ok {
		return false, nil
	}
	next := matches.First()

	if href, ok := next.Attr("href"); ok && isFollowable(href) {
		current := d.currentURL(ctx, d.source.BaseURL)
		target, err := helpers.ResolveURL(current, href)
		if err != nil {
			return false, errors.NewNavigation(d.source.Name, "invalid next page link", err)
		}
		if visited[target] {
			return false, nil
		}
		visited[target] = true
		if err := d.session.Navigate(ctx, target); err != nil {
			return false, d.navigationError("failed to load next page", err)
		}
		return true, nil
	}

	index := doc.Find(selector).IndexOfSelection(next)
	if err := d.session.Click(ctx, selector, index); err != nil {
		return false, errors.NewNavigation(d.source.Name, "failed to click next page", err)
	}
	return true, nil
}

func isFollowable(href string) bool {
	href = strings.TrimSpace(href)
	return href != "" && href != "#" && !strings.HasPrefix(strings.ToLower(href), "javascript:")
}

// settle waits for review containers, then scrolls to trigger lazy loading.
// A wait timeout is not fatal; the page may simply have no reviews.
func (d *Driver) settle(ctx context.Context) {
	if _, err := d.session.WaitForAny(ctx, d.source.ReviewContainerSelectors, d.opts.WaitTimeout); err != nil {
		d.log.Debug().Err(err).Msg("Review containers did not appear")
	}
	if err := d.session.ScrollToBottom(ctx); err != nil {
		d.log.Debug().Err(err).Msg("Scroll failed")
	}
	if d.opts.ScrollDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(d.opts.ScrollDelay):
		}
	}
}

// snapshot parses the current DOM and checks it for bot challenges
func (d *Driver) snapshot(ctx context.Context) (*goquery.Document, error) {
	html, err := d.session.HTML(ctx)
	if err != nil {
		return nil, errors.NewNavigation(d.source.Name, "failed to read page", err)
	}
	if marker, blocked := d.blockedBy(html); blocked {
		d.log.Warn().Str("marker", marker).Dur("block_time", d.opts.BlockTime).Msg("Source served a challenge page")
		d.markBlocked()
		return nil, errors.NewRateLimit(d.source.Name, d.opts.BlockTime)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.NewExtraction(d.source.Name, "failed to parse page", err)
	}
	return doc, nil
}

func (d *Driver) blockedBy(html string) (string, bool) {
	lower := strings.ToLower(html)
	for _, marker := range d.source.BlockedMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return marker, true
		}
	}
	return "", false
}

// extractPage reads every review container on the page in DOM order.
// Containers with neither title nor text are skipped.
func (d *Driver) extractPage(doc *goquery.Document) []Review {
	containers, _, ok := extract.FirstMatch(doc.Selection, d.source.ReviewContainerSelectors)
	if !ok {
		return nil
	}

	fields := d.source.Fields
	reviews := make([]Review, 0, containers.Length())
	containers.Each(func(_ int, c *goquery.Selection) {
		review := Review{
			Title:       extract.FirstText(c, fields.Title),
			Description: extract.FirstText(c, fields.Text),
			Date:        extract.FirstText(c, fields.Date),
			Rating:      ParseRating(extract.FirstText(c, fields.Rating), d.source.RatingDivisor),
			Reviewer: Reviewer{
				Name: extract.FirstText(c, fields.ReviewerName),
				Info: extract.FirstText(c, fields.ReviewerInfo),
			},
			Source: d.source.Name,
		}
		if review.Title == "" && review.Description == "" {
			return
		}
		reviews = append(reviews, review)
	})
	return reviews
}

func (d *Driver) currentURL(ctx context.Context, fallback string) string {
	if u, err := d.session.URL(ctx); err == nil && u != "" {
		return u
	}
	return fallback
}
