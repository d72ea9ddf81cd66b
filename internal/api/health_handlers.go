package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/annnsvm/contactsd/internal/clients"
)

type healthService interface {
	DeepCheck(ctx context.Context) map[string]clients.ProbeResult
	Ready() bool
}

// Health handles GET /health. It always returns 200; this is the
// liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"mode":   "shallow",
	})
}

// DeepHealth handles GET /health/deep. It probes the backing services and
// returns 200 only when every probe is OK.
func (h *Handler) DeepHealth(c *gin.Context) {
	probes := h.health.DeepCheck(c.Request.Context())

	allOK := true
	for _, p := range probes {
		if !p.OK {
			allOK = false
			break
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !allOK {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":       status,
		"dependencies": probes,
	})
}

// Ready handles GET /ready. It returns 200 only after the database answered
// its readiness poll and migrations ran; 503 otherwise.
func (h *Handler) Ready(c *gin.Context) {
	if h.health.Ready() {
		c.JSON(http.StatusOK, gin.H{"ready": true})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
}
