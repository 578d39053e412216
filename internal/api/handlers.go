package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealmungchi/reviewcrawler/internal/review"
	"github.com/dealmungchi/reviewcrawler/internal/scrape"
	"github.com/dealmungchi/reviewcrawler/pkg/errors"
)

// ReviewRunner runs review requests
type ReviewRunner interface {
	Run(ctx context.Context, req review.Request) review.Result
}

// PageScraper runs single page scrapes
type PageScraper interface {
	Run(ctx context.Context, req scrape.Request) scrape.Result
}

type failureBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Handler serves the scrape and review endpoints
type Handler struct {
	reviews ReviewRunner
	scraper PageScraper
	timeout time.Duration
}

// NewHandler creates a handler. timeout <= 0 means no per-request deadline.
func NewHandler(reviews ReviewRunner, scraper PageScraper, timeout time.Duration) *Handler {
	return &Handler{reviews: reviews, scraper: scraper, timeout: timeout}
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// Scrape handles POST /api/scrape
func (h *Handler) Scrape(c *gin.Context) {
	var req scrape.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failureBody{Error: "invalid request body: " + err.Error()})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result := h.scraper.Run(ctx, req)
	if !result.Success {
		if result.Err != nil {
			_ = c.Error(result.Err)
		}
		c.JSON(statusFor(result.Err), failureBody{Error: result.Error})
		return
	}
	if len(result.Data) == 0 {
		c.JSON(http.StatusNotFound, failureBody{Error: "no items extracted from page"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Reviews handles POST /api/reviews
func (h *Handler) Reviews(c *gin.Context) {
	var req review.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failureBody{Error: "invalid request body: " + err.Error()})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result := h.reviews.Run(ctx, req)
	if !result.Success {
		if result.Err != nil {
			_ = c.Error(result.Err)
		}
		c.JSON(statusFor(result.Err), failureBody{Error: result.Error})
		return
	}
	if result.Count == 0 {
		c.JSON(http.StatusNotFound, failureBody{Error: "no reviews found in the requested date range"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Health handles GET /healthz
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func statusFor(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeValidation:
		return http.StatusBadRequest
	case errors.ErrorTypeNotFound:
		return http.StatusNotFound
	case errors.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case errors.ErrorTypeNavigation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
