// Package api exposes the latest scan results over HTTP. The server is
// read-mostly: the only mutation is triggering a scan cycle.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"crypto-gap-scanner/internal/scanner"
	"crypto-gap-scanner/internal/strategy"
)

// ScanService is the scanner surface the server needs.
type ScanService interface {
	GetLastResult() *scanner.ScanResult
	SignalFor(symbol string) (*strategy.TradeSignal, bool)
	Scan() *scanner.ScanResult
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	AllowedOrigins string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	scans      ScanService
	config     ServerConfig
}

// NewServer creates the API server and registers its routes.
func NewServer(cfg ServerConfig, scans ScanService) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "" || cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router: router,
		scans:  scans,
		config: cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/scan/latest", s.handleLatestScan)
		v1.GET("/signals/:symbol", s.handleSignal)
		v1.POST("/scan", s.handleTriggerScan)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleLatestScan(c *gin.Context) {
	result := s.scans.GetLastResult()
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no scan completed yet"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSignal(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	signal, ok := s.scans.SignalFor(symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no signal for %s", symbol)})
		return
	}
	c.JSON(http.StatusOK, signal)
}

func (s *Server) handleTriggerScan(c *gin.Context) {
	result := s.scans.Scan()
	c.JSON(http.StatusOK, gin.H{
		"scan_id": result.ScanID,
		"signals": len(result.Signals),
		"errors":  len(result.Errors),
	})
}

// Router returns the underlying handler, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server. Blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("http server starting")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
