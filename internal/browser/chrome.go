package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/dealmungchi/reviewcrawler/logger"
)

// ChromeLauncher starts a Chrome instance per session through chromedp, or
// attaches to a running one when RemoteURL is set.
type ChromeLauncher struct {
	opts Options
}

// NewChromeLauncher creates a chromedp backed launcher
func NewChromeLauncher(opts Options) *ChromeLauncher {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 45 * time.Second
	}
	return &ChromeLauncher{opts: opts}
}

func (l *ChromeLauncher) Name() string { return "chromedp" }

// NewSession allocates a browser and opens one tab
func (l *ChromeLauncher) NewSession(ctx context.Context) (Session, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if l.opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), l.opts.RemoteURL)
	} else {
		chromeOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", l.opts.Headless),
			chromedp.NoSandbox,
			chromedp.DisableGPU,
			chromedp.WindowSize(1366, 900),
		)
		if l.opts.UserAgent != "" {
			chromeOpts = append(chromeOpts, chromedp.UserAgent(l.opts.UserAgent))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.WithoutCancel(ctx), chromeOpts...)
	}

	log := logger.ForSession(l.Name())
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		log.Debug().Msgf(format, args...)
	}))

	// the first Run starts the browser
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &chromeSession{
		ctx:        tabCtx,
		cancel:     func() { tabCancel(); allocCancel() },
		navTimeout: l.opts.NavigationTimeout,
	}, nil
}

type chromeSession struct {
	ctx        context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.navTimeout, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) WaitForAny(ctx context.Context, selectors []string, timeout time.Duration) (string, error) {
	var matched string
	err := poll(ctx, timeout, func(pctx context.Context) (bool, error) {
		for _, sel := range selectors {
			var found bool
			if err := s.run(pctx, timeout, chromedp.Evaluate(querySelectorJS(sel), &found)); err != nil {
				return false, nil
			}
			if found {
				matched = sel
				return true, nil
			}
		}
		return false, nil
	})
	return matched, err
}

func (s *chromeSession) ScrollToBottom(ctx context.Context) error {
	return s.run(ctx, s.navTimeout, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
}

func (s *chromeSession) Click(ctx context.Context, selector string, index int) error {
	token := clickToken()
	if err := s.run(ctx, s.navTimeout, chromedp.Evaluate(clickWatchJS(token), nil)); err != nil {
		return fmt.Errorf("click %s[%d]: %w", selector, index, err)
	}

	var clicked bool
	if err := s.run(ctx, s.navTimeout, chromedp.Evaluate(clickJS(selector, index), &clicked)); err != nil {
		return fmt.Errorf("click %s[%d]: %w", selector, index, err)
	}
	if !clicked {
		return fmt.Errorf("click %s[%d]: element not found", selector, index)
	}

	timeout := settleTimeout(s.navTimeout)
	if _, err := awaitClick(ctx, timeout, func(pctx context.Context) (string, error) {
		var state string
		err := s.run(pctx, timeout, chromedp.Evaluate(clickStateJS(token), &state))
		return state, err
	}); err != nil {
		return err
	}
	return s.run(ctx, s.navTimeout, chromedp.WaitReady("body", chromedp.ByQuery))
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.navTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

func (s *chromeSession) URL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, s.navTimeout, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}

func querySelectorJS(selector string) string {
	quoted, _ := json.Marshal(selector)
	return fmt.Sprintf(`(() => { try { return document.querySelector(%s) !== null } catch (e) { return false } })()`, quoted)
}

func clickJS(selector string, index int) string {
	quoted, _ := json.Marshal(selector)
	return fmt.Sprintf(`(() => { const el = document.querySelectorAll(%s)[%d]; if (!el) return false; el.click(); return true })()`, quoted, index)
}
