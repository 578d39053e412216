package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/dealmungchi/reviewcrawler/helpers"
)

// ErrNoDocument is returned when a static session is read before Navigate
var ErrNoDocument = errors.New("no document loaded")

// loadFunc fetches url and returns its HTML and the final URL after redirects
type loadFunc func(ctx context.Context, url string) (html string, finalURL string, err error)

// staticSession serves already-rendered HTML. Nothing executes scripts, so
// waiting is a single check and scrolling does nothing. Clicking follows the
// element's href or data-href.
type staticSession struct {
	load    loadFunc
	html    string
	url     string
	onClose func()
}

func (s *staticSession) Navigate(ctx context.Context, url string) error {
	html, final, err := s.load(ctx, url)
	if err != nil {
		return err
	}
	s.html = html
	s.url = final
	return nil
}

func (s *staticSession) document() (*goquery.Document, error) {
	if s.url == "" {
		return nil, ErrNoDocument
	}
	return goquery.NewDocumentFromReader(strings.NewReader(s.html))
}

func (s *staticSession) WaitForAny(_ context.Context, selectors []string, _ time.Duration) (string, error) {
	doc, err := s.document()
	if err != nil {
		return "", err
	}
	for _, sel := range selectors {
		if doc.Find(sel).Length() > 0 {
			return sel, nil
		}
	}
	return "", ErrWaitTimeout
}

func (s *staticSession) ScrollToBottom(context.Context) error { return nil }

func (s *staticSession) Click(ctx context.Context, selector string, index int) error {
	doc, err := s.document()
	if err != nil {
		return err
	}
	el := doc.Find(selector).Eq(index)
	if el.Length() == 0 {
		return fmt.Errorf("click %s[%d]: element not found", selector, index)
	}
	target, ok := el.Attr("href")
	if !ok || strings.TrimSpace(target) == "" {
		target, ok = el.Attr("data-href")
	}
	if !ok || strings.TrimSpace(target) == "" {
		return fmt.Errorf("click %s[%d]: no link target without a script engine", selector, index)
	}
	next, err := helpers.ResolveURL(s.url, target)
	if err != nil {
		return err
	}
	return s.Navigate(ctx, next)
}

func (s *staticSession) HTML(context.Context) (string, error) {
	if s.url == "" {
		return "", ErrNoDocument
	}
	return s.html, nil
}

func (s *staticSession) URL(context.Context) (string, error) {
	return s.url, nil
}

func (s *staticSession) Close() error {
	if s.onClose != nil {
		s.onClose()
		s.onClose = nil
	}
	return nil
}

// HTTPLauncher fetches pages without a browser. Pages that render their
// content with JavaScript come back empty of items.
type HTTPLauncher struct {
	client    *resty.Client
	userAgent string
}

// NewHTTPLauncher creates a launcher backed by a plain HTTP client
func NewHTTPLauncher(opts Options) *HTTPLauncher {
	timeout := opts.NavigationTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &HTTPLauncher{
		client:    helpers.NewClient(timeout),
		userAgent: opts.UserAgent,
	}
}

func (l *HTTPLauncher) Name() string { return "http" }

func (l *HTTPLauncher) NewSession(context.Context) (Session, error) {
	return &staticSession{
		load: func(ctx context.Context, url string) (string, string, error) {
			page, err := helpers.Fetch(ctx, l.client, url, l.userAgent)
			if err != nil {
				return "", "", err
			}
			return string(page.Body), page.FinalURL, nil
		},
	}, nil
}
