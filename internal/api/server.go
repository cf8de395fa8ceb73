// Package api exposes read-only access to the users and status relations
// for reporting and export. It never writes; the poller is the only writer.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"presence-archive/internal/store"
)

type Server struct {
	log      *slog.Logger
	store    *store.Store
	router   *gin.Engine
	limiters *ipLimiters
}

func NewServer(log *slog.Logger, st *store.Store) *Server {
	// must precede gin.New, which snapshots the mode
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		log:      log,
		store:    st,
		router:   gin.New(),
		limiters: newIPLimiters(60, 10*time.Minute), // 60 req/min per client
	}

	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.loggingMiddleware())
	r.Use(s.rateLimitMiddleware())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", s.health)
		v1.GET("/users", s.listUsers)
		v1.GET("/users/:id", s.getUser)
		v1.GET("/users/:id/history", s.statusHistory)
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}
