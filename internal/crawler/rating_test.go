package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRating(t *testing.T) {
	cases := []struct {
		raw     string
		divisor float64
		want    float64
	}{
		{"4.5", 1, 4.5},
		{"5", 1, 5},
		{"4,5 out of 5", 1, 4.5},
		{"Rated 9 out of 10", 2, 4.5},
		{"stars-8", 2, 4},
		{"3", 0, 3},
		{"", 1, 0},
		{"n/a", 1, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseRating(tc.raw, tc.divisor), tc.raw)
	}
}
