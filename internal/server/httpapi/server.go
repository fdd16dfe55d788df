// Package httpapi exposes the TaskHive REST API handlers.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/internal/service"
	"github.com/taskhive/taskhive/internal/token"
)

// Pinger reports storage reachability for the database health endpoint.
// Implemented by *postgres.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the task service into HTTP handlers.
type Server struct {
	tasks    service.TaskService
	verifier *token.Verifier
	pinger   Pinger
	log      *zap.Logger
	origins  []string
}

// New constructs a server with injected dependencies. corsOrigins lists the
// browser origins allowed to call the API.
func New(tasks service.TaskService, verifier *token.Verifier, pinger Pinger, log *zap.Logger, corsOrigins []string) *Server {
	gin.EnableJsonDecoderDisallowUnknownFields()
	return &Server{tasks: tasks, verifier: verifier, pinger: pinger, log: log, origins: corsOrigins}
}

// Router builds the gin engine with middleware and all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(s.log), Recovery(s.log))
	// No configured origins means no cross-origin access at all.
	if len(s.origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/", s.root)
	r.GET("/health", s.health)
	r.GET("/health/db", s.dbHealth)

	api := r.Group("/api", RequireAuth(s.verifier))
	owner := api.Group("/:ownerId", RequireOwner())
	{
		owner.GET("/tasks", s.listTasks)
		owner.POST("/tasks", s.createTask)
		owner.GET("/tasks/:id", s.getTask)
		owner.PUT("/tasks/:id", s.updateTask)
		owner.DELETE("/tasks/:id", s.deleteTask)
		owner.PATCH("/tasks/:id/complete", s.toggleTask)
	}

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "Not found")
	})
	return r
}
