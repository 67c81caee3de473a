package rest

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NotCoffee418/power-control-center/internal/application/planner"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/logger"
)

// PirHandlers provides the motion-sensor ingress endpoints.
type PirHandlers struct {
	driver  *planner.Driver
	devices map[string]bool
	logger  *logger.Logger

	mu        sync.Mutex
	lastAlive map[string]time.Time
}

// NewPirHandlers creates a new PirHandlers instance.
func NewPirHandlers(driver *planner.Driver, devices []string, log *logger.Logger) *PirHandlers {
	known := make(map[string]bool, len(devices))
	for _, d := range devices {
		known[d] = true
	}
	return &PirHandlers{
		driver:    driver,
		devices:   known,
		logger:    log,
		lastAlive: make(map[string]time.Time),
	}
}

// HandleDetect handles POST /api/pir/detect?device=<name>: the unit is
// turned off immediately and the lockout window starts.
func (h *PirHandlers) HandleDetect(c *gin.Context) {
	device := c.Query("device")
	if !h.devices[device] {
		respondError(c, http.StatusNotFound, "unknown device")
		return
	}

	h.logger.Info("pir detection", "device", device)
	h.driver.PirDetect(c.Request.Context(), device)
	respondJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// HandleAlive handles POST /api/pir/alive?device=<name>: a liveness
// beacon only.
func (h *PirHandlers) HandleAlive(c *gin.Context) {
	device := c.Query("device")
	if !h.devices[device] {
		respondError(c, http.StatusNotFound, "unknown device")
		return
	}

	h.mu.Lock()
	h.lastAlive[device] = time.Now()
	h.mu.Unlock()

	respondJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// LastAlive returns the latest beacon per device.
func (h *PirHandlers) LastAlive() map[string]time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]time.Time, len(h.lastAlive))
	for k, v := range h.lastAlive {
		out[k] = v
	}
	return out
}
