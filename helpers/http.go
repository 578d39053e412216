package helpers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"slices"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"
)

// ErrRateLimited is wrapped into Fetch errors for 429/430 responses
var ErrRateLimited = errors.New("rate limited")

// HTTP header configurations
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	}

	referers = []string{
		"https://www.google.com/",
		"https://www.bing.com/",
		"https://duckduckgo.com/",
	}
)

// Page is a fetched document decoded to UTF-8
type Page struct {
	Body       []byte
	FinalURL   string
	StatusCode int
}

// NewClient returns a resty client configured for page fetches
func NewClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
}

// RandomUserAgent returns one of the built-in browser user agents
func RandomUserAgent() string {
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	return userAgents[rnd.Intn(len(userAgents))]
}

// Fetch sends a GET request with browser-like headers and returns the body
// converted to UTF-8. An empty userAgent picks a random one.
func Fetch(ctx context.Context, client *resty.Client, url, userAgent string) (*Page, error) {
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	if userAgent == "" {
		userAgent = userAgents[rnd.Intn(len(userAgents))]
	}

	resp, err := client.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"User-Agent":                userAgent,
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.9",
			"Cache-Control":             "no-cache",
			"Referer":                   referers[rnd.Intn(len(referers))],
			"Pragma":                    "no-cache",
			"Upgrade-Insecure-Requests": "1",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "cross-site",
			"Sec-Fetch-User":            "?1",
		}).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	// Check for rate limiting
	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode()) {
		return nil, fmt.Errorf("%w; retry after %s", ErrRateLimited, resp.Header().Get("Retry-After"))
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetch %s unexpected status code: %d", url, resp.StatusCode())
	}

	body, err := ToUTF8(resp.Body(), resp.Header().Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	finalURL := url
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}

	return &Page{Body: body, FinalURL: finalURL, StatusCode: resp.StatusCode()}, nil
}

// ToUTF8 converts body to UTF-8 using the Content-Type header and the
// document's own meta tags.
func ToUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)

	// If already UTF-8, return as is
	if name == "utf-8" || name == "UTF-8" {
		return body, nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}

	return buf.Bytes(), nil
}
