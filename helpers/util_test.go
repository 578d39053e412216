package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveURL(t *testing.T) {
	got, err := ResolveURL("https://www.g2.com/search?query=slack", "/products/slack/reviews")
	assert.NoError(t, err)
	assert.Equal(t, "https://www.g2.com/products/slack/reviews", got)

	got, err = ResolveURL("https://www.g2.com/products/slack/reviews", "?page=2")
	assert.NoError(t, err)
	assert.Equal(t, "https://www.g2.com/products/slack/reviews?page=2", got)

	got, err = ResolveURL("https://a.example", "https://b.example/x")
	assert.NoError(t, err)
	assert.Equal(t, "https://b.example/x", got)

	_, err = ResolveURL("https://a.example", "  ")
	assert.Error(t, err)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "slack technologies", NormalizeName("  Slack   Technologies "))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "Acme_Corp", SanitizeFilename("Acme Corp"))
	assert.Equal(t, "a_b_c", SanitizeFilename("a/b\\c"))
	assert.Equal(t, "unnamed", SanitizeFilename("../"))
	assert.Equal(t, "Monday.com", SanitizeFilename("Monday.com"))
}

func TestIsHTTPURL(t *testing.T) {
	assert.True(t, IsHTTPURL("https://example.com/page"))
	assert.True(t, IsHTTPURL("http://localhost:8080"))
	assert.False(t, IsHTTPURL("ftp://example.com"))
	assert.False(t, IsHTTPURL("example.com"))
	assert.False(t, IsHTTPURL(""))
}
