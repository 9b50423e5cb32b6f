package server

import (
	"crypto/subtle"
	"strings"

	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/auditcontext"
	"github.com/gin-gonic/gin"
)

// adminAuth guards operator routes with the static admin token.
func (s *Server) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("Authorization"))
		token = strings.TrimPrefix(token, "Bearer ")

		expected := s.cfg.AdminToken
		if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := auditcontext.WithActor(c.Request.Context(), "admin", "admin_token")
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// webhookRateLimit keys the limiter by provider and source address so
// one noisy provider cannot starve the rest.
func (s *Server) webhookRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("provider") + ":" + c.ClientIP()
		if !s.webhookLimiter.Allow(key) {
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
