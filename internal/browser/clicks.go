package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	// clickSettleTimeout caps the wait after a click. Client-side pagination
	// fires no navigation, so the wait ends on DOM quiet instead.
	clickSettleTimeout = 8 * time.Second

	// clickQuietPeriod is how long the DOM must stay unchanged after a
	// mutation before a click counts as settled
	clickQuietPeriod = 500 * time.Millisecond
)

// Click outcomes reported by clickStateJS
const (
	clickPending  = ""
	clickMoved    = "moved"
	clickReplaced = "replaced"
	clickSettled  = "settled"
)

func settleTimeout(navTimeout time.Duration) time.Duration {
	if navTimeout > 0 && navTimeout < clickSettleTimeout {
		return navTimeout
	}
	return clickSettleTimeout
}

func clickToken() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}

// clickWatchJS records the location and starts counting DOM mutations
func clickWatchJS(token string) string {
	quoted, _ := json.Marshal(token)
	return fmt.Sprintf(`(() => {
	const prev = window.__reviewcrawlerClick;
	if (prev && prev.observer) prev.observer.disconnect();
	const s = { token: %s, href: location.href, last: 0, observer: null };
	s.observer = new MutationObserver(() => { s.last = Date.now(); });
	s.observer.observe(document.documentElement, { childList: true, subtree: true, characterData: true });
	window.__reviewcrawlerClick = s;
	return true;
})()`, quoted)
}

// clickStateJS reports what happened since clickWatchJS ran
func clickStateJS(token string) string {
	quoted, _ := json.Marshal(token)
	return fmt.Sprintf(`(() => {
	const s = window.__reviewcrawlerClick;
	if (!s || s.token !== %s) return %q;
	if (location.href !== s.href) return %q;
	if (s.last > 0 && Date.now() - s.last >= %d) { s.observer.disconnect(); return %q; }
	return %q;
})()`, quoted, clickReplaced, clickMoved, clickQuietPeriod.Milliseconds(), clickSettled, clickPending)
}

// awaitClick polls state until the click navigated, replaced the document or
// the DOM went quiet. Running out of time is not an error: the click may
// simply have changed nothing. It returns the last observed outcome.
func awaitClick(ctx context.Context, timeout time.Duration, state func(context.Context) (string, error)) (string, error) {
	outcome := clickPending
	err := poll(ctx, timeout, func(pctx context.Context) (bool, error) {
		s, err := state(pctx)
		if err != nil {
			// mid-navigation evaluation failures are expected
			return false, nil
		}
		outcome = s
		return s != clickPending, nil
	})
	if errors.Is(err, ErrWaitTimeout) {
		return outcome, nil
	}
	return outcome, err
}
