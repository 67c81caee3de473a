package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NotCoffee418/power-control-center/internal/application/acexec"
	"github.com/NotCoffee418/power-control-center/internal/application/engine"
	"github.com/NotCoffee418/power-control-center/internal/application/snapshot"
	"github.com/NotCoffee418/power-control-center/internal/domain/repository"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/logger"
	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// EvaluateHandlers exposes the evaluator RPC used by the simulator and
// the editor's dry-run.
type EvaluateHandlers struct {
	registry *engine.Registry
	eval     *engine.Evaluator
	provider *snapshot.Provider
	nodesets repository.NodesetRepository
	settings repository.SettingsRepository
	logger   *logger.Logger
}

// NewEvaluateHandlers creates a new EvaluateHandlers instance.
func NewEvaluateHandlers(
	registry *engine.Registry,
	provider *snapshot.Provider,
	nodesets repository.NodesetRepository,
	settings repository.SettingsRepository,
	log *logger.Logger,
) *EvaluateHandlers {
	return &EvaluateHandlers{
		registry: registry,
		eval:     engine.NewEvaluator(log),
		provider: provider,
		nodesets: nodesets,
		settings: settings,
		logger:   log,
	}
}

// evaluateRequest is the RPC body. Inputs defaults to the live
// snapshot; inline nodes/edges replace the active program for this
// call only.
type evaluateRequest struct {
	Device        string              `json:"device" binding:"required"`
	Inputs        *models.LiveInputs  `json:"inputs,omitempty"`
	Nodes         []*models.GraphNode `json:"nodes,omitempty"`
	Edges         []*models.Edge      `json:"edges,omitempty"`
	ActiveCommand *models.AcCommand   `json:"active_command,omitempty"`
}

// evaluateResponse carries the plan and, for on-plans, the mapped
// device state. Errors carry the offending node ids for the editor.
type evaluateResponse struct {
	Plan    *models.Plan        `json:"plan,omitempty"`
	AcState *models.AcCommand   `json:"ac_state,omitempty"`
	Error   string              `json:"error,omitempty"`
	Issues  []models.GraphIssue `json:"issues,omitempty"`
}

// HandleEvaluate handles POST /api/evaluate.
func (h *EvaluateHandlers) HandleEvaluate(c *gin.Context) {
	var req evaluateRequest
	if !bindJSON(c, &req) {
		return
	}

	prog, errResp := h.resolveProgram(c, &req)
	if errResp != nil {
		respondJSON(c, http.StatusOK, errResp)
		return
	}
	if prog == nil {
		return
	}

	in := req.Inputs
	if in == nil {
		in = h.provider.Snapshot(req.Device)
	}
	in.Device = req.Device
	if req.ActiveCommand != nil {
		in.ActiveCommand = req.ActiveCommand
	}

	plan, err := h.eval.Evaluate(prog, in)
	if err != nil {
		resp := &evaluateResponse{Error: err.Error()}
		if evalErr, ok := err.(*models.EvalError); ok {
			resp.Issues = []models.GraphIssue{{NodeID: evalErr.NodeID, Reason: evalErr.Message}}
		}
		respondJSON(c, http.StatusOK, resp)
		return
	}

	respondJSON(c, http.StatusOK, &evaluateResponse{
		Plan:    plan,
		AcState: acexec.PlanToState(plan),
	})
}

// resolveProgram compiles the inline graph when one is supplied, or
// the active nodeset otherwise. Compile failures come back as a
// response payload so the editor can highlight nodes.
func (h *EvaluateHandlers) resolveProgram(c *gin.Context, req *evaluateRequest) (*engine.Program, *evaluateResponse) {
	var graph *models.Graph

	if len(req.Nodes) > 0 {
		graph = &models.Graph{
			ID:    "inline",
			Name:  "inline",
			Nodes: req.Nodes,
			Edges: req.Edges,
		}
	} else {
		nodesetID, err := h.settings.Get(c.Request.Context(), repository.SettingActiveNodeset)
		if err != nil || nodesetID == "" {
			respondError(c, http.StatusConflict, models.ErrNoActiveNodeset.Error())
			return nil, nil
		}
		graph, err = h.nodesets.GetByID(c.Request.Context(), nodesetID)
		if err != nil {
			respondError(c, http.StatusNotFound, err.Error())
			return nil, nil
		}
	}

	prog, err := engine.Compile(graph, h.registry)
	if err != nil {
		resp := &evaluateResponse{Error: err.Error()}
		if graphErr, ok := err.(*models.GraphError); ok {
			resp.Issues = graphErr.Issues
		}
		return nil, resp
	}
	return prog, nil
}
