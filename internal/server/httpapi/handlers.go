package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/internal/errs"
	"github.com/taskhive/taskhive/internal/model"
)

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "TaskHive API",
		"version": "1.0.0",
		"health":  "/health",
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: "healthy", Service: "taskhive"})
}

func (s *Server) dbHealth(c *gin.Context) {
	if err := s.pinger.Ping(c.Request.Context()); err != nil {
		msg := err.Error()
		c.JSON(http.StatusOK, dbHealthResponse{Status: "unhealthy", Database: "disconnected", Error: &msg})
		return
	}
	c.JSON(http.StatusOK, dbHealthResponse{Status: "healthy", Database: "connected"})
}

// --- Tasks ---

func (s *Server) listTasks(c *gin.Context) {
	filter := model.ParseStatusFilter(c.Query("status"))
	tasks, err := s.tasks.List(c.Request.Context(), c.Param("ownerId"), filter)
	if err != nil {
		s.taskError(c, "", err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) createTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	draft := model.TaskDraft{Title: req.Title, Description: req.Description}
	t, err := s.tasks.Create(c.Request.Context(), c.Param("ownerId"), draft)
	if err != nil {
		s.taskError(c, "", err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) getTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	t, err := s.tasks.Get(c.Request.Context(), c.Param("ownerId"), id)
	if err != nil {
		s.taskError(c, c.Param("id"), err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) updateTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	patch := model.TaskPatch{Title: req.Title, Description: req.Description}
	t, err := s.tasks.Update(c.Request.Context(), c.Param("ownerId"), id, patch)
	if err != nil {
		s.taskError(c, c.Param("id"), err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) deleteTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	if err := s.tasks.Delete(c.Request.Context(), c.Param("ownerId"), id); err != nil {
		s.taskError(c, c.Param("id"), err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) toggleTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	t, err := s.tasks.ToggleComplete(c.Request.Context(), c.Param("ownerId"), id)
	if err != nil {
		s.taskError(c, c.Param("id"), err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// taskID parses the :id path segment. An unparseable id gets the same 404 as
// a missing row, so probing ids reveals nothing.
func taskID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.Param("id")
	id, err := uuid.FromString(raw)
	if err != nil {
		writeError(c, http.StatusNotFound, "Task with id "+raw+" not found")
		return uuid.Nil, false
	}
	return id, true
}

// taskError maps service failures onto the wire contract. Unexpected errors
// stay in the log; the response carries only a generic detail.
func (s *Server) taskError(c *gin.Context, id string, err error) {
	var ve *errs.ValidationError
	switch {
	case errors.As(err, &ve):
		writeValidation(c, ve)
	case errors.Is(err, errs.ErrNotFound):
		writeError(c, http.StatusNotFound, "Task with id "+id+" not found")
	default:
		s.log.Error("task operation failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		writeError(c, http.StatusInternalServerError, "Internal server error")
	}
}
