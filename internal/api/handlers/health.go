package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/stockcast/internal/services"
)

var startTime = time.Now()

// HealthChecker is implemented by the Postgres and Redis connections.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	checkers map[string]HealthChecker
	guard    *services.ResourceGuard
	version  string
	source   string
}

type HealthResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Services   map[string]string          `json:"services"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
	DataSource string                     `json:"data_source"`
	Resources  *services.ResourceSnapshot `json:"resources,omitempty"`
}

// NewHealthHandler creates a health handler. Only configured components belong in checkers.
func NewHealthHandler(checkers map[string]HealthChecker, guard *services.ResourceGuard, source, version string) *HealthHandler {
	if checkers == nil {
		checkers = map[string]HealthChecker{}
	}
	return &HealthHandler{
		checkers: checkers,
		guard:    guard,
		version:  version,
		source:   source,
	}
}

func (h *HealthHandler) check(ctx context.Context) (map[string]string, bool) {
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := h.checkers[name].HealthCheck(ctx); err != nil {
			statuses[name] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			statuses[name] = "healthy"
		}
	}
	return statuses, healthy
}

// HealthCheck reports every configured component
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	statuses, healthy := h.check(ctx)
	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now(),
		Services:   statuses,
		Version:    h.version,
		Uptime:     time.Since(startTime).String(),
		DataSource: h.source,
	}
	if h.guard != nil {
		snapshot := h.guard.Snapshot()
		response.Resources = &snapshot
	}

	status := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}

// ReadinessCheck for Kubernetes-style deployments
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	statuses, healthy := h.check(c.Request.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"ready":    healthy,
		"services": statuses,
	})
}

// LivenessCheck for container restarts
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
