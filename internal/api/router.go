// internal/api/router.go
package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"filing-automation/internal/common/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// RouterConfig wires the HTTP surface.
// Checks are run by /ready, keyed by dependency name.
type RouterConfig struct {
	Mode    string
	Handler *Handler
	Checks  map[string]Check
	Logger  logger.Logger
}

const readyTimeout = 2 * time.Second

// NewRouter builds the gin engine with middleware and routes registered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = logger.ForComponent(log, "http")

	r := gin.New()
	r.Use(RequestID(), Logging(log), Recovery(log))

	r.GET("/health", func(c *gin.Context) {
		respondJSON(c, http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", readiness(cfg.Checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := cfg.Handler
	v1 := r.Group("/api/v1/automation")
	v1.POST("/jobs", h.StartJob)
	v1.GET("/submissions/:submissionId/status", h.Status)
	v1.GET("/submissions/:submissionId/logs", h.Logs)
	v1.GET("/submissions/:submissionId/record", h.Record)
	if h.failures != nil {
		v1.GET("/failures", h.Failures)
	}
	return r
}

func readiness(checks map[string]Check) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(names))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		ready := "ready"
		if status != http.StatusOK {
			ready = "not ready"
		}
		respondJSON(c, status, gin.H{"status": ready, "checks": results})
	}
}
