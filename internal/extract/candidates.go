package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FirstMatch evaluates candidates in order and returns the selection of the
// first selector matching at least one element under scope.
func FirstMatch(scope *goquery.Selection, candidates []string) (*goquery.Selection, string, bool) {
	return FirstMatchFunc(scope, candidates, nil)
}

// FirstMatchFunc is FirstMatch restricted to elements accepted by keep.
// The returned selection holds only the accepted elements of the winning
// selector. A nil keep accepts everything.
func FirstMatchFunc(scope *goquery.Selection, candidates []string, keep func(*goquery.Selection) bool) (*goquery.Selection, string, bool) {
	if scope == nil {
		return nil, "", false
	}
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		found := scope.Find(candidate)
		if keep != nil {
			found = found.FilterFunction(func(_ int, s *goquery.Selection) bool {
				return keep(s)
			})
		}
		if found.Length() > 0 {
			return found, candidate, true
		}
	}
	return nil, "", false
}

// FirstText applies rules in order inside scope and returns the first
// non-empty value.
func FirstText(scope *goquery.Selection, rules []FieldRule) string {
	for _, rule := range rules {
		if v := ReadField(scope, rule); v != "" {
			return v
		}
	}
	return ""
}

// ReadField reads a single rule inside scope. An empty selector reads scope
// itself.
func ReadField(scope *goquery.Selection, rule FieldRule) string {
	if scope == nil {
		return ""
	}
	target := scope
	if strings.TrimSpace(rule.Selector) != "" {
		target = scope.Find(rule.Selector).First()
	}
	if target.Length() == 0 {
		return ""
	}
	if rule.Attr != "" {
		v, _ := target.Attr(rule.Attr)
		return strings.TrimSpace(v)
	}
	return CleanText(target.Text())
}

// CleanText trims and collapses whitespace runs to single spaces
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// IsDisabled reports whether a control is rendered as disabled
func IsDisabled(s *goquery.Selection) bool {
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	if v, _ := s.Attr("aria-disabled"); strings.EqualFold(strings.TrimSpace(v), "true") {
		return true
	}
	return s.HasClass("disabled") || s.HasClass("is-disabled")
}
