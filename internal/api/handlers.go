package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/thomasluizon/orbit-api-sub001/internal/habits"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Timezone string `json:"timezone" binding:"omitempty,timezone"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, token, err := s.deps.Auth.Register(c.Request.Context(), req.Email, req.Password, req.Timezone)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, token, err := s.deps.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (s *Server) listHabits(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.Query("include_inactive"))
	list, err := s.deps.Habits.List(c.Request.Context(), currentUser(c), includeInactive)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []models.Habit{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createHabit(c *gin.Context) {
	var spec habits.Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		badRequest(c, err)
		return
	}
	h, err := s.deps.Habits.Create(c.Request.Context(), currentUser(c), spec)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h)
}

func (s *Server) getHabit(c *gin.Context) {
	h, err := s.deps.Habits.Get(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) updateHabit(c *gin.Context) {
	var spec habits.Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		badRequest(c, err)
		return
	}
	h, err := s.deps.Habits.Update(c.Request.Context(), currentUser(c), c.Param("id"), spec)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) deleteHabit(c *gin.Context) {
	if err := s.deps.Habits.Deactivate(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type logRequest struct {
	Date  string   `json:"date"`
	Note  string   `json:"note"`
	Value *float64 `json:"value"`
}

func (s *Server) logHabit(c *gin.Context) {
	var req logRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	entry, err := s.deps.Habits.Log(c.Request.Context(), currentUser(c), c.Param("id"), models.LogInput{
		Date:  req.Date,
		Note:  req.Note,
		Value: req.Value,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) unlogHabit(c *gin.Context) {
	if err := s.deps.Habits.Unlog(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("logId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type parentRequest struct {
	ParentHabitID *string `json:"parentHabitId"`
}

func (s *Server) setParent(c *gin.Context) {
	var req parentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h, err := s.deps.Habits.SetParent(c.Request.Context(), currentUser(c), c.Param("id"), req.ParentHabitID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

type positionRequest struct {
	Position *int `json:"position" binding:"required"`
}

func (s *Server) reorderHabit(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h, err := s.deps.Habits.Reorder(c.Request.Context(), currentUser(c), c.Param("id"), *req.Position)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

type tagsRequest struct {
	TagIDs []string `json:"tagIds"`
}

func (s *Server) setHabitTags(c *gin.Context) {
	var req tagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h, err := s.deps.Habits.SetTags(c.Request.Context(), currentUser(c), c.Param("id"), req.TagIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) habitMetrics(c *gin.Context) {
	m, err := s.deps.Habits.Metrics(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) habitTrends(c *gin.Context) {
	t, err := s.deps.Habits.Trends(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type tagRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

func (s *Server) listTags(c *gin.Context) {
	tags, err := s.deps.Habits.ListTags(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	c.JSON(http.StatusOK, tags)
}

func (s *Server) createTag(c *gin.Context) {
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tag, err := s.deps.Habits.CreateTag(c.Request.Context(), currentUser(c), req.Name, req.Color)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

func (s *Server) deleteTag(c *gin.Context) {
	if err := s.deps.Habits.DeleteTag(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type factRequest struct {
	Text     string `json:"text" binding:"required"`
	Category string `json:"category"`
}

func (s *Server) listFacts(c *gin.Context) {
	list, err := s.deps.Facts.List(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []models.UserFact{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) updateFact(c *gin.Context) {
	var req factRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	f, err := s.deps.Facts.Update(c.Request.Context(), currentUser(c), c.Param("id"), req.Text, req.Category)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) deleteFact(c *gin.Context) {
	if err := s.deps.Facts.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
