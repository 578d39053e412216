package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtract_ScopedPerRoot(t *testing.T) {
	doc := parseHTML(t, `
		<div class="card">
			<h2>First</h2>
			<p class="body">  one  </p>
			<span class="date">2025-03-01</span>
		</div>
		<div class="card">
			<p class="body">two</p>
		</div>
		<div class="card">
			<h2>Third</h2>
			<p class="body">three</p>
			<span class="rating">4</span>
		</div>
	`)

	got := Extract(doc, FieldSelectorMap{
		Root:        ".card",
		Title:       "h2",
		Description: ".body",
		Date:        ".date",
		Rating:      ".rating",
	})

	want := []ExtractedItem{
		{Title: "First", Description: "one", Date: "2025-03-01"},
		{Title: "", Description: "two"},
		{Title: "Third", Description: "three", Rating: "4"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_NoBleedBetweenSiblings(t *testing.T) {
	doc := parseHTML(t, `
		<ul>
			<li class="row"><b>Alpha</b></li>
			<li class="row"><i>no bold here</i></li>
		</ul>
	`)

	got := Extract(doc, FieldSelectorMap{Root: ".row", Title: "b", Description: "i"})
	require.Len(t, got, 2)
	assert.Equal(t, "Alpha", got[0].Title)
	assert.Empty(t, got[0].Description)
	assert.Empty(t, got[1].Title, "title must not be taken from the first row")
	assert.Equal(t, "no bold here", got[1].Description)
}

func TestExtract_DropsEmptyItems(t *testing.T) {
	doc := parseHTML(t, `
		<div class="c"><img class="pic" src="/a.png"></div>
		<div class="c"><h3>kept</h3><img class="pic" src="/b.png"></div>
	`)

	got := Extract(doc, FieldSelectorMap{Root: ".c", Title: "h3", Image: ".pic"})
	require.Len(t, got, 1)
	assert.Equal(t, ExtractedItem{Title: "kept", Image: "/b.png"}, got[0])
}

func TestExtract_ImplicitRoot(t *testing.T) {
	doc := parseHTML(t, `<h1>Page</h1><p>Body text</p>`)

	got := Extract(doc, FieldSelectorMap{Title: "h1", Description: "p"})
	assert.Equal(t, []ExtractedItem{{Title: "Page", Description: "Body text"}}, got)
}

func TestExtract_ZeroRootsAndBadSelectors(t *testing.T) {
	doc := parseHTML(t, `<div class="x"><h2>t</h2></div>`)

	assert.Empty(t, Extract(doc, FieldSelectorMap{Root: ".missing", Title: "h2"}))
	assert.NotPanics(t, func() {
		assert.Empty(t, Extract(doc, FieldSelectorMap{Root: "div[[", Title: "h2"}))
		got := Extract(doc, FieldSelectorMap{Root: ".x", Title: "::nope(", Description: "h2"})
		assert.Equal(t, []ExtractedItem{{Description: "t"}}, got)
	})
	assert.Nil(t, Extract(nil, FieldSelectorMap{}))
}

func TestExtractAuto_LengthThreshold(t *testing.T) {
	short := strings.Repeat("s", 40)
	long := strings.Repeat("l", 81)
	exact := strings.Repeat("e", 80)

	doc := parseHTML(t, "<p>"+short+"</p><p>  "+long+"  </p><p>"+exact+"</p>")

	got := ExtractAuto(doc)
	assert.Equal(t, []ExtractedItem{{Description: long}}, got)
}

func TestExtractAuto_HeadingsAreTitles(t *testing.T) {
	heading := strings.Repeat("H", 90)
	para := strings.Repeat("ü", 85)

	doc := parseHTML(t, "<h2>"+heading+"</h2><article><p>"+para+"</p></article>")

	got := ExtractAuto(doc)
	want := []ExtractedItem{
		{Title: heading},
		{Description: para}, // article
		{Description: para}, // nested p, no dedup
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExtractAuto() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractAuto_MultibyteCountsRunes(t *testing.T) {
	// 50 runes but 150 bytes
	doc := parseHTML(t, "<p>"+strings.Repeat("한", 50)+"</p>")
	assert.Empty(t, ExtractAuto(doc))
}
