// Package extract turns rendered HTML into structured items, either from a
// caller supplied selector mapping or from tag/length heuristics.
package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/dealmungchi/reviewcrawler/logger"
)

// MinAutoTextLength is the rune count a block must exceed to be kept by
// ExtractAuto. Navigation links and buttons stay below it.
const MinAutoTextLength = 80

// autoCandidates is the tag set ExtractAuto scans, in one document-order pass
const autoCandidates = "p, div, article, h1, h2, h3"

// Extract maps selectors onto every root element of doc. Field selectors are
// resolved inside each root only, so sibling items never share values.
// Items with neither title nor description are dropped.
func Extract(doc *goquery.Document, selectors FieldSelectorMap) []ExtractedItem {
	if doc == nil {
		return nil
	}

	roots := doc.Selection
	if root := strings.TrimSpace(selectors.Root); root != "" {
		roots = doc.Find(root)
		if roots.Length() == 0 {
			logger.ForComponent("extract").Warn().
				Str("root", root).
				Msg("Root selector matched no elements")
			return nil
		}
	}

	items := make([]ExtractedItem, 0, roots.Length())
	roots.Each(func(_ int, root *goquery.Selection) {
		item := ExtractedItem{
			Title:       scopedText(root, selectors.Title),
			Description: scopedText(root, selectors.Description),
			Date:        scopedText(root, selectors.Date),
			Rating:      scopedText(root, selectors.Rating),
			Image:       scopedAttr(root, selectors.Image, "src"),
		}
		if item.Empty() {
			return
		}
		items = append(items, item)
	})

	return items
}

// ExtractAuto collects long text blocks without any selector mapping.
// Headings become titles, everything else descriptions. Nested blocks are
// reported once per matching node; no deduplication happens.
func ExtractAuto(doc *goquery.Document) []ExtractedItem {
	if doc == nil {
		return nil
	}

	var items []ExtractedItem
	doc.Find(autoCandidates).Each(func(_ int, s *goquery.Selection) {
		text := CleanText(s.Text())
		if utf8.RuneCountInString(text) <= MinAutoTextLength {
			return
		}
		if isHeading(goquery.NodeName(s)) {
			items = append(items, ExtractedItem{Title: text})
		} else {
			items = append(items, ExtractedItem{Description: text})
		}
	})

	return items
}

func isHeading(tag string) bool {
	switch tag {
	case "h1", "h2", "h3":
		return true
	}
	return false
}

func scopedText(root *goquery.Selection, selector string) string {
	if strings.TrimSpace(selector) == "" {
		return ""
	}
	return ReadField(root, FieldRule{Selector: selector})
}

func scopedAttr(root *goquery.Selection, selector, attr string) string {
	if strings.TrimSpace(selector) == "" {
		return ""
	}
	return ReadField(root, FieldRule{Selector: selector, Attr: attr})
}
