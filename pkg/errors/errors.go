package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeValidation represents malformed or missing request fields
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents an unresolved company/product or an empty result
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeNavigation represents page load or pagination failures
	ErrorTypeNavigation ErrorType = "navigation"
	// ErrorTypeUnparseableDate represents a review date no strategy understood
	ErrorTypeUnparseableDate ErrorType = "unparseable_date"
	// ErrorTypeRateLimit represents a source that blocked us recently
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeSession represents browser session acquisition failures
	ErrorTypeSession ErrorType = "session"
	// ErrorTypeExtraction represents failures while reading a rendered page
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ScrapeError represents a scrape-specific error
type ScrapeError struct {
	Type    ErrorType
	Source  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type)
	if e.Source != "" {
		prefix += " " + e.Source + ":"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s - %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether trying again later could succeed.
func (e *ScrapeError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNavigation, ErrorTypeSession:
		return true
	default:
		return false
	}
}

// New creates a new ScrapeError
func New(errType ErrorType, source, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewValidation creates a new validation error
func NewValidation(source, message string) *ScrapeError {
	return New(ErrorTypeValidation, source, message, nil)
}

// NewNotFound creates a new not found error
func NewNotFound(source, message string) *ScrapeError {
	return New(ErrorTypeNotFound, source, message, nil)
}

// NewNavigation creates a new navigation error
func NewNavigation(source, message string, err error) *ScrapeError {
	return New(ErrorTypeNavigation, source, message, err)
}

// NewUnparseableDate creates a new unparseable date error
func NewUnparseableDate(source, raw string) *ScrapeError {
	return New(ErrorTypeUnparseableDate, source, fmt.Sprintf("cannot parse date %q", raw), nil)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(source string, duration time.Duration) *ScrapeError {
	return New(ErrorTypeRateLimit, source, fmt.Sprintf("rate limited for %v", duration), nil)
}

// NewSession creates a new session error
func NewSession(source, message string, err error) *ScrapeError {
	return New(ErrorTypeSession, source, message, err)
}

// NewExtraction creates a new extraction error
func NewExtraction(source, message string, err error) *ScrapeError {
	return New(ErrorTypeExtraction, source, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// TypeOf returns the ErrorType of the first ScrapeError in err's chain, or
// an empty ErrorType when there is none.
func TypeOf(err error) ErrorType {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.Type
	}
	return ""
}

// Is reports whether err carries a ScrapeError of the given type.
func Is(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}
