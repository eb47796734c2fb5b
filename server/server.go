// Package server serves the extraction pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tsawler/intelliparse"
	"github.com/tsawler/intelliparse/metrics"
)

// DefaultMaxUploadBytes caps request bodies.
const DefaultMaxUploadBytes = 64 << 20

const requestIDHeader = "X-Request-ID"

// Options configure a Server.
type Options struct {
	// Pipeline handles every request.
	Pipeline *intelliparse.Pipeline
	// Assisted handles requests with ai=true; nil rejects them.
	Assisted *intelliparse.Pipeline
	Metrics  *metrics.Metrics
	// Gatherer backs /metrics; nil means the default registry.
	Gatherer       prometheus.Gatherer
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Server holds the state for the REST API server.
type Server struct {
	pipeline  *intelliparse.Pipeline
	assisted  *intelliparse.Pipeline
	maxUpload int64
	log       *slog.Logger
	router    *gin.Engine
}

// New creates a Server and its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(opts.Logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Handler())
	}

	s := &Server{
		pipeline:  opts.Pipeline,
		assisted:  opts.Assisted,
		maxUpload: opts.MaxUploadBytes,
		log:       opts.Logger,
		router:    r,
	}
	s.setupRoutes(opts.Gatherer)
	return s
}

func (s *Server) setupRoutes(g prometheus.Gatherer) {
	s.router.GET("/healthz", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/v1", s.limitBody)
	v1.POST("/extract", s.handleExtract)
	v1.POST("/sniff", s.handleSniff)
	v1.POST("/schema", s.handleSchema)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.log.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// Health check
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// limitBody caps the request body at the upload limit.
func (s *Server) limitBody(c *gin.Context) {
	if c.Request.ContentLength > s.maxUpload {
		handleError(c, http.StatusRequestEntityTooLarge, fmt.Errorf("request larger than %d bytes", s.maxUpload))
		c.Abort()
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	c.Next()
}

// requestID tags every request with an ID, reusing the caller's when set.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
			"request_id", c.GetString("request_id"),
		)
	}
}

func handleError(c *gin.Context, code int, err error) {
	c.JSON(code, gin.H{"error": err.Error(), "request_id": c.GetString("request_id")})
}
