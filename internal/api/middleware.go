// internal/api/middleware.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	apperrors "filing-automation/internal/common/errors"
	"filing-automation/internal/common/logger"
	"filing-automation/internal/common/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	requestIDKey    = "requestId"
)

type ctxKey struct{}

// RequestID reuses the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(HeaderRequestID, requestID)
		c.Set(requestIDKey, requestID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKey{}, requestID))
		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID, if any.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestIDFromContext returns the request id carried by ctx.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Logging logs every request once it completes, at a level matching its status.
func Logging(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()

		fields := map[string]interface{}{
			"status":    status,
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"latencyMs": time.Since(start).Milliseconds(),
			"clientIp":  c.ClientIP(),
			"requestId": GetRequestID(c),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields["query"] = q
		}
		switch {
		case status >= 500:
			log.Error("request completed", fields)
		case status >= 400:
			log.Warn("request completed", fields)
		default:
			log.Info("request completed", fields)
		}
	}
}

// Recovery turns handler panics into 500 responses.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic recovered", map[string]interface{}{
					"error":     fmt.Sprint(rec),
					"requestId": GetRequestID(c),
					"method":    c.Request.Method,
					"path":      c.Request.URL.Path,
					"stack":     string(debug.Stack()),
				})
				respondError(c, http.StatusInternalServerError, string(apperrors.ErrCodeInternalError), "Internal server error", nil)
			}
		}()
		c.Next()
	}
}
