package logger

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/auditcontext"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	// SkipPaths lists exact paths that are never logged (health checks).
	SkipPaths []string
}

// GinMiddleware assigns a request ID, propagates it via header and
// context, and logs one masked entry per request.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = struct{}{}
	}

	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader("X-Request-Id"))
		if requestID == "" {
			requestID = newRequestID()
		}
		c.Header("X-Request-Id", requestID)
		c.Set("request_id", requestID)

		ctx := auditcontext.WithRequestID(c.Request.Context(), requestID)
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		if _, skipped := skip[c.Request.URL.Path]; skipped {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		FromContext(c.Request.Context()).Info("http request",
			zap.String("request_id", requestID),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Any("request", SafeFieldsFromRequest(c.Request)),
		)
	}
}

func newRequestID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf)
}
