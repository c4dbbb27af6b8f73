package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/isdmx/coderunner/config"
	"github.com/isdmx/coderunner/sandbox"
)

// ExecuteRequest is the body of POST /api/execute
type ExecuteRequest struct {
	Code     string `json:"code" binding:"required"`
	Language string `json:"language" binding:"required"`
	Stdin    string `json:"stdin"`
}

// ErrorResponse is returned for requests that produced no execution result
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server is the REST transport in front of the sandbox executor
type Server struct {
	logger      *zap.Logger
	sandboxExec sandbox.SandboxExecutor
	router      *gin.Engine
	httpServer  *http.Server
}

// New creates the REST server and registers its routes
func New(cfg *config.Config, logger *zap.Logger, sandboxExec sandbox.SandboxExecutor) *Server {
	s := &Server{
		logger:      logger,
		sandboxExec: sandboxExec,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	api := router.Group("/api")
	api.POST("/execute", s.handleExecute)
	api.GET("/languages", s.handleLanguages)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router = router

	// a request may wait out the whole outer timeout plus cleanup
	writeTimeout := cfg.GetTimeout() + cfg.GetCleanupTimeout() + 5*time.Second
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed gin engine
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server is shut down
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting REST server", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, waiting for in-flight executions
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleExecute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "code and language are required"})
		return
	}

	result, err := s.sandboxExec.Execute(c.Request.Context(), sandbox.ExecuteRequest{
		Language: req.Language,
		Code:     req.Code,
		Stdin:    req.Stdin,
	})
	if err != nil {
		if sandbox.IsClientError(err) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		if errors.Is(err, sandbox.ErrNoExecutionSlot) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: sandbox.ErrNoExecutionSlot.Error()})
			return
		}
		s.logger.Error("sandbox execution failed", zap.String("language", req.Language), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: sandbox.Sanitize(err.Error())})
		return
	}

	c.JSON(http.StatusOK, result.Response())
}

func (s *Server) handleLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": s.sandboxExec.Languages()})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		s.logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
