// Package dateparse normalizes the date strings review sites print into
// comparable instants.
package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DisplayLayout is the layout used by Format
const DisplayLayout = "2006-01-02"

// Strategy turns one family of date representations into an instant.
// now is the reference instant for relative expressions.
type Strategy interface {
	Name() string
	Parse(raw string, now time.Time) (time.Time, bool)
}

// Normalizer tries its strategies in order and returns the first success.
type Normalizer struct {
	Strategies []Strategy
	Now        func() time.Time
}

// New returns a normalizer with the default strategy chain:
// native layouts, relative "N units ago", month names, year-first
// numeric, then day-first numeric.
func New() *Normalizer {
	return &Normalizer{
		Strategies: DefaultStrategies(),
		Now:        time.Now,
	}
}

// DefaultStrategies returns the strategy chain in priority order
func DefaultStrategies() []Strategy {
	return []Strategy{
		NativeStrategy{},
		RelativeStrategy{},
		MonthNameStrategy{},
		YearFirstStrategy{},
		DayFirstStrategy{},
	}
}

// Parse normalizes raw. ok is false when no strategy matched; callers must
// treat that as "exclude", never as "include".
func (n *Normalizer) Parse(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	ref := now()
	for _, s := range n.Strategies {
		if t, ok := s.Parse(raw, ref); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

var defaultNormalizer = New()

// Parse normalizes raw with the default chain and the wall clock
func Parse(raw string) (time.Time, bool) {
	return defaultNormalizer.Parse(raw)
}

// InRange reports start <= t <= end, both bounds inclusive
func InRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// Format renders t as zero-padded YYYY-MM-DD
func Format(t time.Time) string {
	return t.Format(DisplayLayout)
}

// NativeStrategy accepts unambiguous machine formats (ISO 8601 / RFC style).
// Slash-separated numeric dates are deliberately absent; see DayFirstStrategy.
type NativeStrategy struct{}

var nativeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RFC822Z,
	time.RFC822,
	time.ANSIC,
	time.UnixDate,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006",
	"02 Jan 2006",
}

func (NativeStrategy) Name() string { return "native" }

func (NativeStrategy) Parse(raw string, _ time.Time) (time.Time, bool) {
	for _, layout := range nativeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// RelativeStrategy handles "<N> day(s)|week(s)|month(s)|year(s) ago".
// "a"/"an" count as one.
type RelativeStrategy struct{}

var relativeRegex = regexp.MustCompile(`(?i)^(\d+|an?)\s+(day|days|week|weeks|month|months|year|years)\s+ago$`)

func (RelativeStrategy) Name() string { return "relative" }

func (RelativeStrategy) Parse(raw string, now time.Time) (time.Time, bool) {
	m := relativeRegex.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, false
	}
	n := 1
	if !strings.HasPrefix(strings.ToLower(m[1]), "a") {
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		n = v
	}
	switch strings.TrimSuffix(strings.ToLower(m[2]), "s") {
	case "day":
		return now.AddDate(0, 0, -n), true
	case "week":
		return now.AddDate(0, 0, -7*n), true
	case "month":
		return now.AddDate(0, -n, 0), true
	case "year":
		return now.AddDate(-n, 0, 0), true
	}
	return time.Time{}, false
}

// MonthNameStrategy handles "March 4, 2025", "Mar 4 2025", "Sept. 4, 2025".
type MonthNameStrategy struct{}

var monthNameRegex = regexp.MustCompile(`^([A-Za-z]{3,9})\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})$`)

var referenceMonths = [12]string{
	"january",
	"february",
	"march",
	"april",
	"may",
	"june",
	"july",
	"august",
	"september",
	"october",
	"november",
	"december",
}

// LookupMonth resolves a full or abbreviated (3+ letters) month name
func LookupMonth(name string) (time.Month, bool) {
	name = strings.ToLower(name)
	if len(name) < 3 {
		return 0, false
	}
	for i, month := range referenceMonths {
		if strings.HasPrefix(month, name) {
			return time.January + time.Month(i), true
		}
	}
	return 0, false
}

func (MonthNameStrategy) Name() string { return "month-name" }

func (MonthNameStrategy) Parse(raw string, _ time.Time) (time.Time, bool) {
	m := monthNameRegex.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, false
	}
	month, ok := LookupMonth(m[1])
	if !ok {
		return time.Time{}, false
	}
	return buildDate(m[3], int(month), m[2])
}

// YearFirstStrategy handles YYYY-M-D and YYYY/M/D
type YearFirstStrategy struct{}

var yearFirstRegex = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})$`)

func (YearFirstStrategy) Name() string { return "year-first" }

func (YearFirstStrategy) Parse(raw string, _ time.Time) (time.Time, bool) {
	m := yearFirstRegex.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, false
	}
	return buildDate(m[1], month, m[3])
}

// DayFirstStrategy handles D-M-YYYY and D/M/YYYY. Month-first inputs such
// as 03/04/2025 are read day-first (3 April); locale is not detected.
type DayFirstStrategy struct{}

var dayFirstRegex = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{4})$`)

func (DayFirstStrategy) Name() string { return "day-first" }

func (DayFirstStrategy) Parse(raw string, _ time.Time) (time.Time, bool) {
	m := dayFirstRegex.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, false
	}
	return buildDate(m[3], month, m[1])
}

// buildDate assembles a UTC midnight and rejects out-of-range fields
// instead of letting time.Date roll them over.
func buildDate(yearStr string, month int, dayStr string) (time.Time, bool) {
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}
