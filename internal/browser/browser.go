// Package browser provides navigable page sessions backed by a headless
// browser, a plain HTTP client or in-memory fixtures.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrWaitTimeout is returned by WaitForAny when no selector appeared in time
var ErrWaitTimeout = errors.New("timed out waiting for selector")

// Session is one page in one browser context. It is not safe for concurrent
// use; callers own it for the duration of a request and must Close it.
type Session interface {
	// Navigate loads url and returns once the document is loaded
	Navigate(ctx context.Context, url string) error

	// WaitForAny blocks until any of selectors matches an element or the
	// timeout elapses. It returns the selector that matched.
	WaitForAny(ctx context.Context, selectors []string, timeout time.Duration) (string, error)

	// ScrollToBottom scrolls the viewport to the end of the document
	ScrollToBottom(ctx context.Context) error

	// Click clicks the index-th element matching selector and waits a
	// bounded time for the resulting navigation or DOM update, if any.
	Click(ctx context.Context, selector string, index int) error

	// HTML returns the current serialized DOM
	HTML(ctx context.Context) (string, error)

	// URL returns the current document URL
	URL(ctx context.Context) (string, error)

	Close() error
}

// Launcher creates sessions for one engine
type Launcher interface {
	Name() string
	NewSession(ctx context.Context) (Session, error)
}

// Options configures launchers
type Options struct {
	Headless          bool
	UserAgent         string
	RemoteURL         string
	NavigationTimeout time.Duration
}

// pollInterval is the cadence of selector polling in live browsers
const pollInterval = 200 * time.Millisecond

// poll calls check until it reports true, ctx is done or timeout elapses
func poll(ctx context.Context, timeout time.Duration, check func(context.Context) (bool, error)) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := check(waitCtx)
		if err != nil && waitCtx.Err() == nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrWaitTimeout
		case <-ticker.C:
		}
	}
}

// NewLauncher returns the launcher for engine ("chromedp", "rod" or "http")
func NewLauncher(engine string, opts Options) (Launcher, error) {
	switch engine {
	case "", "chromedp":
		return NewChromeLauncher(opts), nil
	case "rod":
		return NewRodLauncher(opts), nil
	case "http":
		return NewHTTPLauncher(opts), nil
	}
	return nil, fmt.Errorf("unknown browser engine %q", engine)
}
