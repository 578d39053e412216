package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodLauncher drives Chromium through go-rod. Each session gets its own
// browser process unless RemoteURL points at a running DevTools endpoint.
type RodLauncher struct {
	opts Options
}

// NewRodLauncher creates a go-rod backed launcher
func NewRodLauncher(opts Options) *RodLauncher {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 45 * time.Second
	}
	return &RodLauncher{opts: opts}
}

func (l *RodLauncher) Name() string { return "rod" }

// NewSession starts (or connects to) a browser and opens a blank page
func (l *RodLauncher) NewSession(ctx context.Context) (Session, error) {
	controlURL := l.opts.RemoteURL
	var local *launcher.Launcher
	if controlURL == "" {
		local = launcher.New().
			Headless(l.opts.Headless).
			NoSandbox(true).
			Set("disable-gpu")
		u, err := local.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch chromium: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if local != nil {
			local.Kill()
		}
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		if local != nil {
			local.Kill()
		}
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if l.opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: l.opts.UserAgent}); err != nil {
			_ = browser.Close()
			if local != nil {
				local.Kill()
			}
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	return &rodSession{
		browser:    browser,
		page:       page,
		local:      local,
		navTimeout: l.opts.NavigationTimeout,
	}, nil
}

type rodSession struct {
	browser    *rod.Browser
	page       *rod.Page
	local      *launcher.Launcher
	navTimeout time.Duration
}

// bound returns the page scoped to ctx and the navigation timeout
func (s *rodSession) bound(ctx context.Context) *rod.Page {
	return s.page.Context(ctx).Timeout(s.navTimeout)
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p := s.bound(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *rodSession) WaitForAny(ctx context.Context, selectors []string, timeout time.Duration) (string, error) {
	var matched string
	err := poll(ctx, timeout, func(pctx context.Context) (bool, error) {
		p := s.page.Context(pctx)
		for _, sel := range selectors {
			has, _, err := p.Has(sel)
			if err != nil {
				continue
			}
			if has {
				matched = sel
				return true, nil
			}
		}
		return false, nil
	})
	return matched, err
}

func (s *rodSession) ScrollToBottom(ctx context.Context) error {
	_, err := s.bound(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (s *rodSession) Click(ctx context.Context, selector string, index int) error {
	p := s.bound(ctx)
	els, err := p.Elements(selector)
	if err != nil {
		return fmt.Errorf("click %s[%d]: %w", selector, index, err)
	}
	if index < 0 || index >= len(els) {
		return fmt.Errorf("click %s[%d]: element not found", selector, index)
	}

	token := clickToken()
	if _, err := p.Eval(`() => ` + clickWatchJS(token)); err != nil {
		return fmt.Errorf("click %s[%d]: %w", selector, index, err)
	}
	if err := els[index].Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s[%d]: %w", selector, index, err)
	}

	outcome, err := awaitClick(ctx, settleTimeout(s.navTimeout), func(pctx context.Context) (string, error) {
		res, err := s.page.Context(pctx).Eval(`() => ` + clickStateJS(token))
		if err != nil {
			return "", err
		}
		return res.Value.Str(), nil
	})
	if err != nil {
		return err
	}
	if outcome == clickMoved || outcome == clickReplaced {
		if err := p.WaitLoad(); err != nil {
			return fmt.Errorf("click %s[%d]: %w", selector, index, err)
		}
	}
	return nil
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	html, err := s.bound(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

func (s *rodSession) URL(ctx context.Context) (string, error) {
	info, err := s.bound(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (s *rodSession) Close() error {
	err := s.browser.Close()
	if s.local != nil {
		s.local.Kill()
		s.local.Cleanup()
	}
	return err
}
