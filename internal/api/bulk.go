package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thomasluizon/orbit-api-sub001/internal/habits"
)

// Only the envelope is validated here. Item contents go through the gateway
// so that one bad item is reported instead of rejecting the whole batch.
type bulkCreateRequest struct {
	Habits []habits.Spec `json:"items"`
}

type bulkDeleteRequest struct {
	HabitIDs []string `json:"habitIds"`
}

func (s *Server) bulkCreate(c *gin.Context) {
	var req bulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	results, err := s.deps.Bulk.Create(c.Request.Context(), currentUser(c), req.Habits)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) bulkDelete(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	results, err := s.deps.Bulk.Delete(c.Request.Context(), currentUser(c), req.HabitIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
