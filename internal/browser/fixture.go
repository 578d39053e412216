package browser

import (
	"context"
	"fmt"
	"net/url"
	"sync"
)

// FixtureLauncher serves canned pages keyed by URL. A URL without an exact
// entry falls back to the entry for the same URL minus its query string.
type FixtureLauncher struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string]error
	visited  []string
	opened   int
	closed   int
}

// NewFixtureLauncher creates a launcher over pages (url -> html)
func NewFixtureLauncher(pages map[string]string) *FixtureLauncher {
	copied := make(map[string]string, len(pages))
	for k, v := range pages {
		copied[k] = v
	}
	return &FixtureLauncher{
		pages:    copied,
		failures: make(map[string]error),
	}
}

func (l *FixtureLauncher) Name() string { return "fixture" }

// FailOn makes every navigation to url fail with err
func (l *FixtureLauncher) FailOn(url string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[url] = err
}

// Visited lists every URL navigated to, in order
func (l *FixtureLauncher) Visited() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.visited...)
}

// Open reports how many sessions are currently not closed
func (l *FixtureLauncher) Open() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opened - l.closed
}

func (l *FixtureLauncher) NewSession(context.Context) (Session, error) {
	l.mu.Lock()
	l.opened++
	l.mu.Unlock()

	return &staticSession{
		load: l.load,
		onClose: func() {
			l.mu.Lock()
			l.closed++
			l.mu.Unlock()
		},
	}, nil
}

func (l *FixtureLauncher) load(ctx context.Context, raw string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.visited = append(l.visited, raw)
	if err, ok := l.failures[raw]; ok {
		return "", "", err
	}
	if html, ok := l.pages[raw]; ok {
		return html, raw, nil
	}
	if u, err := url.Parse(raw); err == nil && u.RawQuery != "" {
		u.RawQuery = ""
		if html, ok := l.pages[u.String()]; ok {
			return html, raw, nil
		}
	}
	return "", "", fmt.Errorf("no fixture for %s", raw)
}
