// Package api exposes the scraper and the review pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealmungchi/reviewcrawler/logger"
)

// Server owns the gin router and the http.Server around it
type Server struct {
	router *gin.Engine
	server *http.Server
}

// NewRouter builds the router with middleware and routes
func NewRouter(h *Handler, debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())

	router.GET("/healthz", h.Health)
	v := router.Group("/api")
	v.POST("/scrape", h.Scrape)
	v.POST("/reviews", h.Reviews)

	return router
}

// NewServer creates a server listening on addr. writeTimeout should cover the
// longest review run.
func NewServer(addr string, h *Handler, debug bool, writeTimeout time.Duration) *Server {
	router := NewRouter(h, debug)
	return &Server{
		router: router,
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       2 * time.Minute,
		},
	}
}

// Router returns the gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) Start() error {
	logger.ForServer().Info().Str("address", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	logger.ForServer().Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
