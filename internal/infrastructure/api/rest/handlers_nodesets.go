package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/NotCoffee418/power-control-center/internal/application/engine"
	"github.com/NotCoffee418/power-control-center/internal/application/observer"
	"github.com/NotCoffee418/power-control-center/internal/application/planner"
	"github.com/NotCoffee418/power-control-center/internal/domain/repository"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/logger"
	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// NodesetHandlers provides CRUD and activation for saved graphs.
type NodesetHandlers struct {
	nodesets repository.NodesetRepository
	settings repository.SettingsRepository
	registry *engine.Registry
	driver   *planner.Driver
	events   *observer.Manager
	validate *validator.Validate
	logger   *logger.Logger
}

// NewNodesetHandlers creates a new NodesetHandlers instance.
func NewNodesetHandlers(
	nodesets repository.NodesetRepository,
	settings repository.SettingsRepository,
	registry *engine.Registry,
	driver *planner.Driver,
	events *observer.Manager,
	log *logger.Logger,
) *NodesetHandlers {
	return &NodesetHandlers{
		nodesets: nodesets,
		settings: settings,
		registry: registry,
		driver:   driver,
		events:   events,
		validate: validator.New(),
		logger:   log,
	}
}

// saveNodesetRequest is the save payload: a full graph.
type saveNodesetRequest struct {
	ID    string              `json:"id"`
	Name  string              `json:"name" validate:"required,max=255"`
	Nodes []*models.GraphNode `json:"nodes" validate:"required,min=1"`
	Edges []*models.Edge      `json:"edges"`
}

// HandleList handles GET /api/nodesets.
func (h *NodesetHandlers) HandleList(c *gin.Context) {
	graphs, err := h.nodesets.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list nodesets", "error", err)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(c, http.StatusOK, graphs)
}

// HandleGet handles GET /api/nodesets/:id.
func (h *NodesetHandlers) HandleGet(c *gin.Context) {
	graph, err := h.nodesets.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, models.ErrNodesetNotFound) {
		respondError(c, http.StatusNotFound, "nodeset not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(c, http.StatusOK, graph)
}

// HandleSave handles POST /api/nodesets: create or replace. The graph
// must compile against the current registry before it is persisted.
func (h *NodesetHandlers) HandleSave(c *gin.Context) {
	var req saveNodesetRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	graph := &models.Graph{
		ID:    req.ID,
		Name:  req.Name,
		Nodes: req.Nodes,
		Edges: req.Edges,
	}

	if _, err := engine.Compile(graph, h.registry); err != nil {
		var graphErr *models.GraphError
		if errors.As(err, &graphErr) {
			respondJSON(c, http.StatusBadRequest, gin.H{
				"error":  "graph does not compile",
				"issues": graphErr.Issues,
			})
			return
		}
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.nodesets.Save(c.Request.Context(), graph); err != nil {
		h.logger.Error("failed to save nodeset", "error", err, "nodeset_id", graph.ID)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	h.driver.InvalidateProgram()
	h.events.Notify(c.Request.Context(), observer.Event{
		Type:      observer.EventNodesetSaved,
		Timestamp: time.Now(),
		NodesetID: graph.ID,
	})

	respondJSON(c, http.StatusOK, graph)
}

// HandleDelete handles DELETE /api/nodesets/:id. The active nodeset
// cannot be deleted.
func (h *NodesetHandlers) HandleDelete(c *gin.Context) {
	id := c.Param("id")

	active, err := h.settings.Get(c.Request.Context(), repository.SettingActiveNodeset)
	if err == nil && active == id {
		respondError(c, http.StatusConflict, "cannot delete the active nodeset")
		return
	}

	err = h.nodesets.Delete(c.Request.Context(), id)
	if errors.Is(err, models.ErrNodesetNotFound) {
		respondError(c, http.StatusNotFound, "nodeset not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"status": "deleted"})
}

// HandleActivate handles POST /api/nodesets/:id/activate.
func (h *NodesetHandlers) HandleActivate(c *gin.Context) {
	id := c.Param("id")

	graph, err := h.nodesets.GetByID(c.Request.Context(), id)
	if errors.Is(err, models.ErrNodesetNotFound) {
		respondError(c, http.StatusNotFound, "nodeset not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	if _, err := engine.Compile(graph, h.registry); err != nil {
		respondError(c, http.StatusConflict, "nodeset does not compile: "+err.Error())
		return
	}

	if err := h.settings.Set(c.Request.Context(), repository.SettingActiveNodeset, id); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	h.driver.InvalidateProgram()
	h.events.Notify(c.Request.Context(), observer.Event{
		Type:      observer.EventNodesetActivated,
		Timestamp: time.Now(),
		NodesetID: id,
	})

	respondJSON(c, http.StatusOK, gin.H{"status": "activated"})
}
