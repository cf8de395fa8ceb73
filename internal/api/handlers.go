package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "store unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listUsers(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		s.log.Error("list_users_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal", "message": "failed to list users"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

func (s *Server) getUser(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		s.log.Error("get_user_failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal", "message": "failed to load user"}})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_found", "message": "user not tracked"}})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) statusHistory(c *gin.Context) {
	userID, ok := s.userID(c)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_limit", "message": "limit must be a positive integer"}})
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	records, err := s.store.StatusHistory(ctx, userID, limit)
	if err != nil {
		s.log.Error("status_history_failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal", "message": "failed to load history"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "history": records, "count": len(records)})
}

func (s *Server) userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_user_id", "message": "user id must be a positive integer"}})
		return 0, false
	}
	return id, true
}
