// Package server exposes bot state over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalBot/internal/memory"
	"github.com/Alias1177/SignalBot/internal/pipeline"
	"github.com/Alias1177/SignalBot/internal/store"
)

// Trigger runs one decision cycle on demand.
type Trigger func(ctx context.Context) (pipeline.Result, error)

// Config configures the status server.
type Config struct {
	Addr    string
	Panel   []string
	Store   store.Store
	Metrics http.Handler
	Trigger Trigger
}

// Server is the HTTP status server.
type Server struct {
	cfg        Config
	router     *gin.Engine
	httpServer *http.Server
	logger     zerolog.Logger
}

// New builds the router.
func New(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:    cfg,
		router: gin.New(),
		logger: log.With().Str("component", "server").Logger(),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/signal/last", s.handleLast)
	s.router.GET("/ledger", s.handleLedger)
	s.router.GET("/weights", s.handleWeights)
	if s.cfg.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.cfg.Metrics))
	}
	if s.cfg.Trigger != nil {
		s.router.POST("/cycle", s.handleCycle)
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("Status server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleLast(c *gin.Context) {
	last, err := s.cfg.Store.GetLast(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no committed signal"})
		return
	}
	c.JSON(http.StatusOK, last)
}

func (s *Server) handleLedger(c *gin.Context) {
	read := s.cfg.Store.Ledger
	if c.Query("pending") == "true" {
		read = s.cfg.Store.Pending
	}
	records, err := read(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(records), "records": records})
}

func (s *Server) handleWeights(c *gin.Context) {
	records, err := s.cfg.Store.Ledger(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"voters": memory.Analyze(records, s.cfg.Panel)})
}

func (s *Server) handleCycle(c *gin.Context) {
	res, err := s.cfg.Trigger(c.Request.Context())
	if errors.Is(err, pipeline.ErrCycleInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   res.Status,
		"reason":   res.Reason,
		"proposal": res.Proposal,
		"votes":    res.Votes,
	})
}

func (s *Server) fail(c *gin.Context, err error) {
	s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
