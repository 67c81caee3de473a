package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NotCoffee418/power-control-center/internal/application/causes"
	"github.com/NotCoffee418/power-control-center/internal/application/observer"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/logger"
	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// CauseHandlers provides the cause-reasons editor endpoints.
type CauseHandlers struct {
	registry *causes.Registry
	events   *observer.Manager
	logger   *logger.Logger
}

// NewCauseHandlers creates a new CauseHandlers instance.
func NewCauseHandlers(registry *causes.Registry, events *observer.Manager, log *logger.Logger) *CauseHandlers {
	return &CauseHandlers{
		registry: registry,
		events:   events,
		logger:   log,
	}
}

// HandleList handles GET /api/causes. ?include_hidden=true includes
// hidden reasons (needed by the history view).
func (h *CauseHandlers) HandleList(c *gin.Context) {
	includeHidden := c.Query("include_hidden") == "true"
	respondJSON(c, http.StatusOK, h.registry.List(includeHidden))
}

// HandleCreate handles POST /api/causes: a new user reason.
func (h *CauseHandlers) HandleCreate(c *gin.Context) {
	var req struct {
		Label       string `json:"label" binding:"required"`
		Description string `json:"description"`
	}
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.registry.Create(c.Request.Context(), req.Label, req.Description)
	if err != nil {
		h.logger.Error("failed to create cause reason", "error", err)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	h.notifyChanged(c)
	respondJSON(c, http.StatusCreated, created)
}

// HandleUpdate handles PUT /api/causes/:id. System reasons are not
// editable.
func (h *CauseHandlers) HandleUpdate(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid cause id")
		return
	}

	var req struct {
		Label       string `json:"label" binding:"required"`
		Description string `json:"description"`
		IsHidden    bool   `json:"is_hidden"`
	}
	if !bindJSON(c, &req) {
		return
	}

	err = h.registry.Update(c.Request.Context(), models.CauseReason{
		ID:          id,
		Label:       req.Label,
		Description: req.Description,
		IsHidden:    req.IsHidden,
	})
	if errors.Is(err, models.ErrCauseNotFound) {
		respondError(c, http.StatusNotFound, "cause reason not found")
		return
	}
	if errors.Is(err, models.ErrCauseNotEditable) {
		respondError(c, http.StatusForbidden, "system cause reasons are not editable")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	h.notifyChanged(c)
	respondJSON(c, http.StatusOK, gin.H{"status": "updated"})
}

func (h *CauseHandlers) notifyChanged(c *gin.Context) {
	h.events.Notify(c.Request.Context(), observer.Event{
		Type:      observer.EventCausesUpdated,
		Timestamp: time.Now(),
	})
}
