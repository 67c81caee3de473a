package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/NotCoffee418/power-control-center/internal/domain/repository"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/logger"
)

// ActionHandlers serves the append-only command journal.
type ActionHandlers struct {
	actions repository.ActionRepository
	logger  *logger.Logger
}

// NewActionHandlers creates a new ActionHandlers instance.
func NewActionHandlers(actions repository.ActionRepository, log *logger.Logger) *ActionHandlers {
	return &ActionHandlers{actions: actions, logger: log}
}

// HandleList handles GET /api/actions with reverse-chronological
// pagination: ?device=, ?limit=, ?before= (row id cursor).
func (h *ActionHandlers) HandleList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	before, _ := strconv.ParseInt(c.DefaultQuery("before", "0"), 10, 64)
	device := c.Query("device")

	records, cursor, err := h.actions.List(c.Request.Context(), device, limit, before)
	if err != nil {
		h.logger.Error("failed to list action records", "error", err)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(c, http.StatusOK, gin.H{
		"records":     records,
		"next_cursor": cursor,
	})
}
