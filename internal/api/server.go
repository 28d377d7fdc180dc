// Package api exposes the trading pipeline over HTTP: the synchronous and
// asynchronous cycle triggers, the receipt log and the health and metrics
// endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/sakatrade/saka/internal/models"
	"github.com/sakatrade/saka/internal/orchestrator"
)

// Cycles is the orchestrator surface consumed by the handlers
type Cycles interface {
	RunCycle(ctx context.Context, req models.AnalysisRequest) (*orchestrator.CycleResult, error)
	Submit(req models.AnalysisRequest) (models.Ack, error)
}

// ReceiptReader serves the receipt log queries
type ReceiptReader interface {
	ListByAsset(ctx context.Context, asset string, limit int) ([]*models.Receipt, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Receipt, error)
}

// HealthChecker reports readiness of a backing dependency
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server represents the REST API server
type Server struct {
	router   *gin.Engine
	cycles   Cycles
	receipts ReceiptReader
	db       HealthChecker
	addr     string
	server   *http.Server
}

// Config contains server configuration
type Config struct {
	Host           string
	Port           int
	InternalAPIKey string
	Cycles         Cycles
	Receipts       ReceiptReader
	DB             HealthChecker
}

// NewServer creates a new API server
func NewServer(config Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", HeaderInternalAPIKey},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	server := &Server{
		router:   router,
		cycles:   config.Cycles,
		receipts: config.Receipts,
		db:       config.DB,
		addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
	}
	server.setupRoutes(config.InternalAPIKey)
	return server
}

func (s *Server) setupRoutes(apiKey string) {
	// Probes and metrics stay open; everything else requires the shared key
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/health/ready", s.handleReady)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := s.router.Group("/", AuthMiddleware(apiKey))
	authed.POST("/trigger_decision_cycle_sync", s.handleTriggerSync)
	authed.POST("/trigger_decision_cycle", s.handleTriggerAsync)
	authed.GET("/receipts", s.handleListReceipts)
}

// Router exposes the gin engine for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // the sync trigger waits for a full cycle
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping API server")
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
	}
	return nil
}

// LoggerMiddleware is a custom logging middleware for Gin
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		logEvent := log.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP())

		if len(c.Errors) > 0 {
			logEvent.Str("errors", c.Errors.String())
		}
		logEvent.Msg("API request")
	}
}
