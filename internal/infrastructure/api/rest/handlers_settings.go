package rest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/NotCoffee418/power-control-center/internal/application/planner"
	"github.com/NotCoffee418/power-control-center/internal/domain/repository"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/logger"
)

// SettingHandlers exposes the user-facing settings: the user-is-home
// override and the per-device automatic-mode switch.
type SettingHandlers struct {
	settings repository.SettingsRepository
	driver   *planner.Driver
	devices  map[string]bool
	logger   *logger.Logger
}

// NewSettingHandlers creates a new SettingHandlers instance.
func NewSettingHandlers(settings repository.SettingsRepository, driver *planner.Driver, devices []string, log *logger.Logger) *SettingHandlers {
	known := make(map[string]bool, len(devices))
	for _, d := range devices {
		known[d] = true
	}
	return &SettingHandlers{
		settings: settings,
		driver:   driver,
		devices:  known,
		logger:   log,
	}
}

// HandleSetUserHomeOverride handles PUT /api/settings/user-home:
// {"until_unix": <ts>} with 0 clearing the override.
func (h *SettingHandlers) HandleSetUserHomeOverride(c *gin.Context) {
	var req struct {
		UntilUnix int64 `json:"until_unix"`
	}
	if !bindJSON(c, &req) {
		return
	}

	value := strconv.FormatInt(req.UntilUnix, 10)
	if err := h.settings.Set(c.Request.Context(), repository.SettingUserIsHomeOverride, value); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// HandleSetAutoMode handles PUT /api/settings/auto-mode/:device with
// {"enabled": bool}. Re-enabling triggers an immediate reevaluation;
// the executor turns the flip into a full state resend.
func (h *SettingHandlers) HandleSetAutoMode(c *gin.Context) {
	device := c.Param("device")
	if !h.devices[device] {
		respondError(c, http.StatusNotFound, "unknown device")
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !bindJSON(c, &req) {
		return
	}

	value := "0"
	if req.Enabled {
		value = "1"
	}
	if err := h.settings.Set(c.Request.Context(), repository.SettingAutoModePrefix+device, value); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	if req.Enabled {
		go h.driver.EvaluateNow(context.WithoutCancel(c.Request.Context()), device)
	}
	respondJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// HandleStatus handles GET /api/status: last evaluation errors per
// device for the dashboard.
func (h *SettingHandlers) HandleStatus(c *gin.Context) {
	respondJSON(c, http.StatusOK, gin.H{
		"last_errors": h.driver.LastErrors(),
	})
}
