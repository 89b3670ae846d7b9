// Package api exposes Orbit over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/thomasluizon/orbit-api-sub001/internal/auth"
	"github.com/thomasluizon/orbit-api-sub001/internal/bulk"
	"github.com/thomasluizon/orbit-api-sub001/internal/chat"
	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
	"github.com/thomasluizon/orbit-api-sub001/internal/facts"
	"github.com/thomasluizon/orbit-api-sub001/internal/habits"
	"github.com/thomasluizon/orbit-api-sub001/internal/logger"
	"github.com/thomasluizon/orbit-api-sub001/internal/utils"
)

// Deps are the services behind the routes.
type Deps struct {
	Auth          *auth.Service
	Habits        *habits.Service
	Chat          *chat.Engine
	Bulk          *bulk.Gateway
	Facts         *facts.Service
	MaxImageBytes int64
}

type Server struct {
	deps   Deps
	router *gin.Engine
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("timezone", func(fl validator.FieldLevel) bool {
			return utils.ValidateTimezone(fl.Field().String())
		})
	}
}

// NewServer builds the router.
func NewServer(deps Deps) *Server {
	if deps.MaxImageBytes <= 0 {
		deps.MaxImageBytes = constants.DefaultMaxImageBytes
	}
	s := &Server{deps: deps, router: gin.New()}
	s.router.Use(gin.Recovery(), requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router.Group("/api")
	r.GET("/health", s.health)
	r.POST("/auth/register", s.register)
	r.POST("/auth/login", s.login)

	protected := r.Group("/")
	protected.Use(s.authenticate())
	{
		protected.POST("/chat", s.chat)

		protected.GET("/habits", s.listHabits)
		protected.POST("/habits", s.createHabit)
		protected.GET("/habits/:id", s.getHabit)
		protected.PUT("/habits/:id", s.updateHabit)
		protected.DELETE("/habits/:id", s.deleteHabit)
		protected.POST("/habits/:id/logs", s.logHabit)
		protected.DELETE("/habits/:id/logs/:logId", s.unlogHabit)
		protected.PUT("/habits/:id/parent", s.setParent)
		protected.PUT("/habits/:id/position", s.reorderHabit)
		protected.PUT("/habits/:id/tags", s.setHabitTags)
		protected.GET("/habits/:id/metrics", s.habitMetrics)
		protected.GET("/habits/:id/trends", s.habitTrends)

		protected.POST("/bulk/habits", s.bulkCreate)
		protected.DELETE("/bulk/habits", s.bulkDelete)

		protected.GET("/tags", s.listTags)
		protected.POST("/tags", s.createTag)
		protected.DELETE("/tags/:id", s.deleteTag)

		protected.GET("/facts", s.listFacts)
		protected.PUT("/facts/:id", s.updateFact)
		protected.DELETE("/facts/:id", s.deleteFact)
	}
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("Shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": constants.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
