package crawler

import (
	"regexp"
	"strconv"
	"strings"
)

var ratingNumberRegex = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// ParseRating reads the first number in raw and divides it by divisor.
// Anything unreadable yields 0.
func ParseRating(raw string, divisor float64) float64 {
	m := ratingNumberRegex.FindString(raw)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	if divisor > 0 {
		v /= divisor
	}
	return v
}
