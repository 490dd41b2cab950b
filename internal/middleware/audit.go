package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/stem-dashboard-api/pkg/middleware/requestid"
)

const auditPrefix = "audit."

// Audit writes one audit log line per request to a data-changing route,
// naming the caller, the action and the outcome.
func Audit(logger *zap.Logger, action string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("audit")

	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		fields := []zap.Field{
			zap.String("action", action),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.GetHeader("User-Agent")),
		}
		if claims, ok := CurrentUser(c); ok {
			fields = append(fields,
				zap.String("user_id", claims.UserID),
				zap.String("email", claims.Email),
				zap.String("role", string(claims.Role)),
			)
		}
		if reqID := requestid.Value(c); reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}
		for key, value := range c.Keys {
			if name, ok := strings.CutPrefix(key, auditPrefix); ok {
				fields = append(fields, zap.Any(name, value))
			}
		}

		logger.Info("audit", fields...)
	}
}

// AuditDetail attaches a field to the audit line of the current request.
func AuditDetail(c *gin.Context, key string, value interface{}) {
	c.Set(auditPrefix+key, value)
}
