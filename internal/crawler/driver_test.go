package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealmungchi/reviewcrawler/internal/browser"
	"github.com/dealmungchi/reviewcrawler/internal/extract"
	"github.com/dealmungchi/reviewcrawler/pkg/errors"
	"github.com/dealmungchi/reviewcrawler/services/cache"
)

const (
	testSearchPage  = "https://reviews.test/search"
	testReviewsPage = "https://reviews.test/acme/reviews"
)

func testSource() Source {
	return Source{
		Name:    "testsrc",
		BaseURL: "https://reviews.test",
		Search: SearchConfig{
			URL:             "https://reviews.test/search?q={query}",
			ResultSelectors: []string{".missing", ".hit"},
			TitleSelectors:  []string{".name"},
			LinkSelectors:   []string{"a"},
			ReviewsPath:     "/reviews",
		},
		ReviewContainerSelectors: []string{".review"},
		Fields: FieldRules{
			Title:        []extract.FieldRule{{Selector: ".t"}},
			Text:         []extract.FieldRule{{Selector: ".body"}},
			Date:         []extract.FieldRule{{Selector: ".date"}},
			Rating:       []extract.FieldRule{{Selector: ".stars", Attr: "data-score"}},
			ReviewerName: []extract.FieldRule{{Selector: ".who"}},
			ReviewerInfo: []extract.FieldRule{{Selector: ".role"}},
		},
		NextPageSelectors: []string{"a.next"},
		RatingDivisor:     2,
		BlockedMarkers:    []string{"px-captcha"},
	}
}

const testSearchHTML = `
	<div class="hit"><a href="/acme-analytics"><span class="name">Acme Analytics</span></a></div>
	<div class="hit"><a href="/acme"><span class="name">ACME</span></a></div>
	<div class="hit"><a href="/globe"><span class="name">Globe</span></a></div>
`

func pageURL(i int) string {
	if i == 1 {
		return testReviewsPage
	}
	return fmt.Sprintf("%s?page=%d", testReviewsPage, i)
}

// paginatedPages builds n review pages with two reviews each
func paginatedPages(n int) map[string]string {
	pages := map[string]string{testSearchPage: testSearchHTML}
	for i := 1; i <= n; i++ {
		var b strings.Builder
		for j := 1; j <= 2; j++ {
			fmt.Fprintf(&b, `<div class="review">
				<h4 class="t">p%d-r%d</h4>
				<p class="body">review body %d/%d</p>
				<span class="date">2025-0%d-1%d</span>
				<span class="stars" data-score="8"></span>
				<span class="who">Reviewer %d</span>
				<span class="role">QA</span>
			</div>`, i, j, i, j, i, j, j)
		}
		if i < n {
			fmt.Fprintf(&b, `<a class="next" href="/acme/reviews?page=%d">Next</a>`, i+1)
		} else {
			b.WriteString(`<a class="next" aria-disabled="true">Next</a>`)
		}
		pages[pageURL(i)] = b.String()
	}
	return pages
}

func newTestDriver(t *testing.T, l *browser.FixtureLauncher, c cache.CacheService, opts Options) (*Driver, func()) {
	t.Helper()
	session, err := l.NewSession(context.Background())
	require.NoError(t, err)
	if opts.WaitTimeout == 0 {
		opts.WaitTimeout = 10 * time.Millisecond
	}
	return NewDriver(testSource(), session, c, opts), func() { session.Close() }
}

func titles(reviews []Review) []string {
	out := make([]string, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, r.Title)
	}
	return out
}

func TestDriver_CollectsEveryPage(t *testing.T) {
	l := browser.NewFixtureLauncher(paginatedPages(5))
	d, done := newTestDriver(t, l, nil, Options{})
	defer done()

	reviews, err := d.Run(context.Background(), "Acme")
	require.NoError(t, err)
	require.Len(t, reviews, 10)
	assert.Equal(t, "p1-r1", reviews[0].Title)
	assert.Equal(t, "p5-r2", reviews[9].Title)

	first := reviews[0]
	assert.Equal(t, "review body 1/1", first.Description)
	assert.Equal(t, "2025-01-11", first.Date)
	assert.Equal(t, 4.0, first.Rating)
	assert.Equal(t, Reviewer{Name: "Reviewer 1", Info: "QA"}, first.Reviewer)
	assert.Equal(t, "testsrc", first.Source)
}

func TestDriver_PageCap(t *testing.T) {
	l := browser.NewFixtureLauncher(paginatedPages(5))
	d, done := newTestDriver(t, l, nil, Options{PageCap: 2})
	defer done()

	reviews, err := d.Run(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1-r1", "p1-r2", "p2-r1", "p2-r2"}, titles(reviews))
	assert.Equal(t, []string{
		"https://reviews.test/search?q=Acme",
		pageURL(1),
		pageURL(2),
	}, l.Visited())
}

func TestDriver_NavigationFailureKeepsEarlierPages(t *testing.T) {
	l := browser.NewFixtureLauncher(paginatedPages(5))
	l.FailOn(pageURL(3), stderrors.New("net::ERR_TIMED_OUT"))
	d, done := newTestDriver(t, l, nil, Options{})
	defer done()

	reviews, err := d.Run(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1-r1", "p1-r2", "p2-r1", "p2-r2"}, titles(reviews))
}

func TestDriver_FirstPageFailureIsAnError(t *testing.T) {
	l := browser.NewFixtureLauncher(paginatedPages(2))
	l.FailOn(pageURL(1), stderrors.New("net::ERR_CONNECTION_REFUSED"))
	d, done := newTestDriver(t, l, nil, Options{})
	defer done()

	reviews, err := d.Run(context.Background(), "Acme")
	assert.Nil(t, reviews)
	assert.Equal(t, errors.ErrorTypeNavigation, errors.TypeOf(err))
}

func TestDriver_SearchPageFailure(t *testing.T) {
	l := browser.NewFixtureLauncher(map[string]string{})
	d, done := newTestDriver(t, l, nil, Options{})
	defer done()

	_, err := d.Run(context.Background(), "Acme")
	assert.Equal(t, errors.ErrorTypeNavigation, errors.TypeOf(err))
}

func TestDriver_LocateNotFound(t *testing.T) {
	l := browser.NewFixtureLauncher(paginatedPages(1))
	d, done := newTestDriver(t, l, nil, Options{})
	defer done()

	_, err := d.Locate(context.Background(), "Initech")
	assert.True(t, errors.Is(err, errors.ErrorTypeNotFound))

	l2 := browser.NewFixtureLauncher(map[string]string{testSearchPage: "<p>No results</p>"})
	d2, done2 := newTestDriver(t, l2, nil, Options{})
	defer done2()

	_, err = d2.Locate(context.Background(), "Acme")
	assert.True(t, errors.Is(err, errors.ErrorTypeNotFound))
}

func TestDriver_LocatePrefersClosestName(t *testing.T) {
	l := browser.NewFixtureLauncher(paginatedPages(1))
	d, done := newTestDriver(t, l, nil, Options{})
	defer done()

	got, err := d.Locate(context.Background(), "  acme ")
	require.NoError(t, err)
	assert.Equal(t, testReviewsPage, got)

	got, err = d.Locate(context.Background(), "Acme Analytics")
	require.NoError(t, err)
	assert.Equal(t, "https://reviews.test/acme-analytics/reviews", got)
}

func TestDriver_LocateIsCached(t *testing.T) {
	c := cache.NewMemoryCache()
	l := browser.NewFixtureLauncher(paginatedPages(1))
	d, done := newTestDriver(t, l, c, Options{LocateCacheTTL: time.Hour})
	defer done()

	_, err := d.Locate(context.Background(), "Acme")
	require.NoError(t, err)

	// a second run never touches the search page
	l2 := browser.NewFixtureLauncher(map[string]string{pageURL(1): paginatedPages(1)[pageURL(1)]})
	d2, done2 := newTestDriver(t, l2, c, Options{LocateCacheTTL: time.Hour})
	defer done2()

	reviews, err := d2.Run(context.Background(), "acme")
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
	assert.Equal(t, []string{pageURL(1)}, l2.Visited())
}

func TestDriver_BlockedPageSetsRateLimit(t *testing.T) {
	c := cache.NewMemoryCache()
	pages := paginatedPages(1)
	pages[pageURL(1)] = `<html><body><div id="px-captcha"></div></body></html>`
	l := browser.NewFixtureLauncher(pages)
	d, done := newTestDriver(t, l, c, Options{BlockTime: 10 * time.Minute})
	defer done()

	_, err := d.Run(context.Background(), "Acme")
	assert.Equal(t, errors.ErrorTypeRateLimit, errors.TypeOf(err))

	_, err = c.Get("testsrc_rate_limited")
	require.NoError(t, err)

	// while blocked, runs fail before navigating
	l2 := browser.NewFixtureLauncher(paginatedPages(1))
	d2, done2 := newTestDriver(t, l2, c, Options{BlockTime: 10 * time.Minute})
	defer done2()

	_, err = d2.Run(context.Background(), "Acme")
	assert.Equal(t, errors.ErrorTypeRateLimit, errors.TypeOf(err))
	assert.Empty(t, l2.Visited())
}

func TestDriver_TooManyRequestsSetsRateLimit(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"search page": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "600")
			w.WriteHeader(http.StatusTooManyRequests)
		},
		"review page": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/search" {
				fmt.Fprint(w, testSearchHTML)
				return
			}
			w.WriteHeader(http.StatusTooManyRequests)
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(handler)
			defer server.Close()

			src := testSource()
			src.BaseURL = server.URL
			src.Search.URL = server.URL + "/search?q={query}"

			session, err := browser.NewHTTPLauncher(browser.Options{NavigationTimeout: 5 * time.Second}).NewSession(context.Background())
			require.NoError(t, err)
			defer session.Close()

			c := cache.NewMemoryCache()
			d := NewDriver(src, session, c, Options{WaitTimeout: time.Millisecond, BlockTime: 10 * time.Minute})

			_, err = d.Run(context.Background(), "Acme")
			assert.Equal(t, errors.ErrorTypeRateLimit, errors.TypeOf(err), "%v", err)

			_, err = c.Get(src.CacheKey())
			assert.NoError(t, err, "rate limit key must be set")
		})
	}
}

func TestDriver_ClickPagination(t *testing.T) {
	pages := map[string]string{
		testSearchPage: testSearchHTML,
		pageURL(1): `<div class="review"><h4 class="t">one</h4></div>
			<button class="next" disabled>Prev</button>
			<button class="next" data-href="/acme/reviews?page=2">Next</button>`,
		pageURL(2): `<div class="review"><h4 class="t">two</h4></div>`,
	}
	src := testSource()
	src.NextPageSelectors = []string{"a.next", "button.next"}

	l := browser.NewFixtureLauncher(pages)
	session, _ := l.NewSession(context.Background())
	defer session.Close()
	d := NewDriver(src, session, nil, Options{WaitTimeout: time.Millisecond})

	reviews, err := d.Run(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, titles(reviews))
}

func TestDriver_StopsOnRepeatedPage(t *testing.T) {
	pages := map[string]string{
		testSearchPage: testSearchHTML,
		pageURL(1):     `<div class="review"><h4 class="t">only</h4></div><a class="next" href="/acme/reviews">Next</a>`,
	}
	l := browser.NewFixtureLauncher(pages)
	d, done := newTestDriver(t, l, nil, Options{})
	defer done()

	reviews, err := d.Run(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, titles(reviews))
	assert.Len(t, l.Visited(), 2)
}

func TestDriver_SkipsEmptyContainers(t *testing.T) {
	pages := map[string]string{
		testSearchPage: testSearchHTML,
		pageURL(1): `<div class="review"><span class="who">ghost</span></div>
			<div class="review"><p class="body">text only</p><span class="stars" data-score="n/a"></span></div>`,
	}
	l := browser.NewFixtureLauncher(pages)
	d, done := newTestDriver(t, l, nil, Options{})
	defer done()

	reviews, err := d.Run(context.Background(), "Acme")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "text only", reviews[0].Description)
	assert.Zero(t, reviews[0].Rating)
}

func TestDriver_EmbeddedFixtures(t *testing.T) {
	pages, err := FixturePages()
	require.NoError(t, err)
	sources := DefaultSources()

	cases := []struct {
		source string
		count  int
	}{
		{SourceG2, 5},
		{SourceCapterra, 2},
		{SourceTrustRadius, 3},
	}
	for _, tc := range cases {
		t.Run(tc.source, func(t *testing.T) {
			l := browser.NewFixtureLauncher(pages)
			session, _ := l.NewSession(context.Background())
			defer session.Close()

			src, ok := sources.Lookup(tc.source)
			require.True(t, ok)
			d := NewDriver(src, session, nil, Options{WaitTimeout: time.Millisecond})

			reviews, err := d.Run(context.Background(), "Slack")
			require.NoError(t, err)
			require.Len(t, reviews, tc.count)
			for _, r := range reviews {
				assert.NotEmpty(t, r.Title)
				assert.NotEmpty(t, r.Date)
				assert.NotEmpty(t, r.Reviewer.Name)
				assert.Greater(t, r.Rating, 0.0)
				assert.Equal(t, tc.source, r.Source)
			}
		})
	}
}

func TestDriver_TrustRadiusScoresAreHalved(t *testing.T) {
	pages, err := FixturePages()
	require.NoError(t, err)
	l := browser.NewFixtureLauncher(pages)
	session, _ := l.NewSession(context.Background())
	defer session.Close()

	src, ok := DefaultSources().Lookup(SourceTrustRadius)
	require.True(t, ok)
	d := NewDriver(src, session, nil, Options{WaitTimeout: time.Millisecond})

	reviews, err := d.Run(context.Background(), "Slack")
	require.NoError(t, err)
	require.Len(t, reviews, 3)

	ratings := make([]float64, 0, len(reviews))
	for _, r := range reviews {
		ratings = append(ratings, r.Rating)
	}
	assert.Equal(t, []float64{4.5, 3.5, 3}, ratings)
	assert.Equal(t, "2025-05-14", reviews[0].Date)
	assert.Equal(t, "Engineering Manager", reviews[0].Reviewer.Info)
	// falls back to the company line
	assert.Equal(t, "Healthcare, 51-200 employees", reviews[2].Reviewer.Info)
	assert.Equal(t, []string{
		"https://www.trustradius.com/search?q=Slack",
		"https://www.trustradius.com/products/slack/reviews",
	}, l.Visited())
}
