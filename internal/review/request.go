package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/dealmungchi/reviewcrawler/internal/crawler"
	"github.com/dealmungchi/reviewcrawler/internal/dateparse"
	"github.com/dealmungchi/reviewcrawler/pkg/errors"
)

// Request asks for one company's reviews on one source within a date range
type Request struct {
	CompanyName string `json:"companyName"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Source      string `json:"source"`
}

// DateRange is an inclusive instant range
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range, bounds included
func (r DateRange) Contains(t time.Time) bool {
	return dateparse.InRange(t, r.Start, r.End)
}

// Validate checks the request against the known sources and returns the
// date range it covers. The end date covers its whole day. An inverted range
// is accepted and matches nothing.
func (r Request) Validate(sources crawler.Registry) (DateRange, error) {
	source := strings.TrimSpace(r.Source)
	if strings.TrimSpace(r.CompanyName) == "" {
		return DateRange{}, errors.NewValidation(source, "companyName is required")
	}
	if source == "" {
		return DateRange{}, errors.NewValidation(source, "source is required")
	}
	if _, ok := sources.Lookup(source); !ok {
		return DateRange{}, errors.NewValidation(source,
			fmt.Sprintf("unsupported source %q (supported: %s)", source, strings.Join(sources.Names(), ", ")))
	}

	start, err := parseDay("startDate", r.StartDate)
	if err != nil {
		return DateRange{}, errors.NewValidation(source, err.Error())
	}
	end, err := parseDay("endDate", r.EndDate)
	if err != nil {
		return DateRange{}, errors.NewValidation(source, err.Error())
	}

	return DateRange{Start: start, End: end.Add(24*time.Hour - time.Nanosecond)}, nil
}

func parseDay(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	t, err := time.Parse(dateparse.DisplayLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD, got %q", field, value)
	}
	return t, nil
}
