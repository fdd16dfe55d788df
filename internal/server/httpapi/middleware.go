package httpapi

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/internal/access"
	"github.com/taskhive/taskhive/internal/model"
	"github.com/taskhive/taskhive/internal/token"
)

// identityKey stores the verified caller in the request context between
// RequireAuth and the handlers.
const identityKey = "identity"

// RequestLogger logs one line per request. Metadata only, no payloads.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		log.Info("http",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// Recovery converts panics into a generic 500 response.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Detail: "Internal server error"})
			}
		}()
		c.Next()
	}
}

// RequireAuth verifies the bearer credential and stores the resulting
// identity in the context. Every failure mode ends the request with 401 and
// a WWW-Authenticate challenge; which check failed is not revealed.
func RequireAuth(verifier *token.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		if raw == "" {
			challenge(c, "Not authenticated")
			return
		}
		id, err := verifier.Verify(raw)
		if err != nil {
			challenge(c, "Invalid or expired token")
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireOwner rejects requests whose path owner differs from the verified
// caller. Runs after RequireAuth and before any handler touches storage.
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identityFrom(c)
		if !ok {
			challenge(c, "Not authenticated")
			return
		}
		if err := access.Check(c.Param("ownerId"), id); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{
				Detail: "Access denied: You can only access your own resources",
			})
			return
		}
		c.Next()
	}
}

func challenge(c *gin.Context, detail string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Detail: detail})
}

func identityFrom(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return model.Identity{}, false
	}
	id, ok := v.(model.Identity)
	return id, ok
}
