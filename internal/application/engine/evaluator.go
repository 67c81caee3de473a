package engine

import (
	"fmt"

	"github.com/expr-lang/expr/vm"

	"github.com/NotCoffee418/power-control-center/internal/infrastructure/logger"
	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// Evaluator runs compiled programs against live input snapshots. It is
// stateless; all per-evaluation state lives in the evalContext, so one
// Evaluator serves every device.
type Evaluator struct {
	log *logger.Logger
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(log *logger.Logger) *Evaluator {
	return &Evaluator{log: log}
}

// Evaluate walks the execution flow from the entry node and returns the
// plan the graph decided for the device in the snapshot. If no SetPlan
// node executes, the result is an Undefined NoChange plan. Runtime
// failures return an *models.EvalError naming the offending node.
func (e *Evaluator) Evaluate(prog *Program, in *models.LiveInputs) (*models.Plan, error) {
	ec := &evalContext{
		prog:     prog,
		in:       in,
		memo:     make(map[string]any),
		onStack:  make(map[string]bool),
		inBranch: make(map[string]bool),
	}

	if err := ec.execFlow(prog.entry); err != nil {
		return nil, err
	}

	if ec.plan == nil {
		plan := &models.Plan{Mode: models.PlanNoChange, CauseID: models.CauseUndefined}
		if cause, ok := prog.registry.CauseByID(models.CauseUndefined); ok {
			plan.CauseLabel = cause.Label
			plan.CauseDescription = cause.Description
		}
		return plan, nil
	}
	return ec.plan, nil
}

// evalContext is the per-evaluation state: the memo table (invariant:
// each data node output computed at most once per tick), the on-stack
// set for data-cycle detection and the visited set guarding static
// flow cycles. It is reset on every tick and never shared.
type evalContext struct {
	prog     *Program
	in       *models.LiveInputs
	memo     map[string]any
	onStack  map[string]bool
	inBranch map[string]bool
	plan     *models.Plan
}

// execFlow executes one flow node and recurses along its outgoing flow
// edges in declaration order. The walk stops as soon as a plan is
// recorded: whichever SetPlan fires first wins.
func (ec *evalContext) execFlow(n *CompiledNode) error {
	if ec.plan != nil {
		return nil
	}
	// A flow cycle only re-enters a node within the same branch; a
	// branch fires each node once per tick.
	if ec.inBranch[n.Node.ID] {
		return nil
	}
	if n.Def.execFlow == nil {
		return &models.EvalError{
			NodeID:  n.Node.ID,
			Kind:    models.EvalTypeMismatch,
			Message: fmt.Sprintf("node type %q cannot appear in the execution flow", n.Def.NodeType),
		}
	}

	ec.inBranch[n.Node.ID] = true
	defer delete(ec.inBranch, n.Node.ID)

	next, err := n.Def.execFlow(ec, n)
	if err != nil {
		return err
	}

	for _, edge := range next {
		if ec.plan != nil {
			return nil
		}
		target, ok := ec.prog.nodes[edge.Target]
		if !ok {
			return &models.EvalError{
				NodeID:  edge.Target,
				Kind:    models.EvalMissingInput,
				Message: fmt.Sprintf("flow edge %s targets a missing node", edge.ID),
			}
		}
		if err := ec.execFlow(target); err != nil {
			return err
		}
	}
	return nil
}

// pull lazily evaluates one output pin of a data node, memoizing the
// result for the rest of the evaluation. A node found on the pull
// stack is a data cycle.
func (ec *evalContext) pull(nodeID, pinID string) (any, error) {
	key := nodeID + "\x1f" + pinID
	if v, ok := ec.memo[key]; ok {
		return v, nil
	}

	if ec.onStack[nodeID] {
		return nil, &models.EvalError{
			NodeID:  nodeID,
			Kind:    models.EvalCycleDetected,
			Message: "data path loops back into this node",
		}
	}

	n, ok := ec.prog.nodes[nodeID]
	if !ok {
		return nil, &models.EvalError{
			NodeID:  nodeID,
			Kind:    models.EvalMissingInput,
			Message: "data edge references a missing node",
		}
	}
	if n.Def.evalData == nil {
		return nil, &models.EvalError{
			NodeID:  nodeID,
			Kind:    models.EvalTypeMismatch,
			Message: fmt.Sprintf("node type %q produces no data", n.Def.NodeType),
		}
	}

	ec.onStack[nodeID] = true
	v, err := n.Def.evalData(ec, n, pinID)
	delete(ec.onStack, nodeID)
	if err != nil {
		return nil, err
	}

	ec.memo[key] = v
	return v, nil
}

// input resolves a pin's incoming edge and pulls the source value.
// The second return reports whether the pin is connected at all.
func (ec *evalContext) input(n *CompiledNode, pinID string) (any, bool, error) {
	edge, ok := n.incoming[pinID]
	if !ok {
		return nil, false, nil
	}
	v, err := ec.pull(edge.Source, edge.SourceHandle)
	return v, true, err
}

// requireInput is input for required pins: unconnected is an error.
func (ec *evalContext) requireInput(n *CompiledNode, pinID string) (any, error) {
	v, connected, err := ec.input(n, pinID)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, &models.EvalError{
			NodeID:  n.Node.ID,
			Kind:    models.EvalMissingInput,
			Message: fmt.Sprintf("required input %q is not connected", pinID),
		}
	}
	return v, nil
}

func (ec *evalContext) boolInput(n *CompiledNode, pinID string) (bool, error) {
	v, err := ec.requireInput(n, pinID)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, ec.coerceError(n, pinID, v, "boolean")
	}
	return b, nil
}

// floatInput pulls a numeric input, promoting integers to float for
// the caller's comparison or arithmetic only.
func (ec *evalContext) floatInput(n *CompiledNode, pinID string) (float64, error) {
	v, err := ec.requireInput(n, pinID)
	if err != nil {
		return 0, err
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, ec.coerceError(n, pinID, v, "number")
	}
	return f, nil
}

func (ec *evalContext) stringInput(n *CompiledNode, pinID string) (string, error) {
	v, err := ec.requireInput(n, pinID)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", ec.coerceError(n, pinID, v, "string")
	}
	return s, nil
}

// enumInput resolves an enum-typed pin. An unconnected pin falls back
// to the enum value stored on the node instance, so operators and
// similar selections can be edited inline without a constant node.
func (ec *evalContext) enumInput(n *CompiledNode, pinID string) (string, error) {
	v, connected, err := ec.input(n, pinID)
	if err != nil {
		return "", err
	}
	if !connected {
		if n.Node.Data.EnumValue != nil {
			return *n.Node.Data.EnumValue, nil
		}
		return "", &models.EvalError{
			NodeID:  n.Node.ID,
			Kind:    models.EvalMissingInput,
			Message: fmt.Sprintf("required input %q is not connected and no value is selected", pinID),
		}
	}
	s, ok := v.(string)
	if !ok {
		return "", ec.coerceError(n, pinID, v, "enum value")
	}
	return s, nil
}

func (ec *evalContext) causeInput(n *CompiledNode, pinID string) (models.CauseReason, error) {
	v, err := ec.requireInput(n, pinID)
	if err != nil {
		return models.CauseReason{}, err
	}
	c, ok := v.(models.CauseReason)
	if !ok {
		return models.CauseReason{}, ec.coerceError(n, pinID, v, "cause reason")
	}
	return c, nil
}

func (ec *evalContext) coerceError(n *CompiledNode, pinID string, v any, want string) error {
	return &models.EvalError{
		NodeID:  n.Node.ID,
		Kind:    models.EvalTypeMismatch,
		Message: fmt.Sprintf("input %q: expected %s, got %T", pinID, want, v),
	}
}

// toFloat promotes any runtime numeric value to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// looseEqual compares two runtime values, promoting mixed numerics.
// Cause reasons compare by id.
func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	if ac, ok := a.(models.CauseReason); ok {
		bc, ok := b.(models.CauseReason)
		return ok && ac.ID == bc.ID
	}
	return a == b
}

// evalExpression runs a precompiled expression node against an
// environment assembled from the snapshot. Each snapshot field is
// exposed under its wire name; missing values surface as nil.
func evalExpression(ec *evalContext, n *CompiledNode, _ string) (any, error) {
	if n.expr == nil {
		return nil, &models.EvalError{
			NodeID:  n.Node.ID,
			Kind:    models.EvalExpression,
			Message: "expression was not compiled",
		}
	}

	out, err := vm.Run(n.expr, expressionEnv(ec.in))
	if err != nil {
		return nil, &models.EvalError{
			NodeID:  n.Node.ID,
			Kind:    models.EvalExpression,
			Message: err.Error(),
		}
	}

	switch v := out.(type) {
	case bool, float64, int64, string:
		return v, nil
	case int:
		return int64(v), nil
	case float32:
		return float64(v), nil
	case nil:
		return nil, &models.EvalError{
			NodeID:  n.Node.ID,
			Kind:    models.EvalStaleInput,
			Message: "expression referenced an input with no fresh value",
		}
	default:
		return nil, &models.EvalError{
			NodeID:  n.Node.ID,
			Kind:    models.EvalExpression,
			Message: fmt.Sprintf("expression produced unsupported type %T", out),
		}
	}
}

func expressionEnv(in *models.LiveInputs) map[string]any {
	env := map[string]any{
		"device": in.Device,
	}
	putFloat := func(key string, v *float64) {
		if v != nil {
			env[key] = *v
		} else {
			env[key] = nil
		}
	}
	putInt := func(key string, v *int) {
		if v != nil {
			env[key] = int64(*v)
		} else {
			env[key] = nil
		}
	}
	putBool := func(key string, v *bool) {
		if v != nil {
			env[key] = *v
		} else {
			env[key] = nil
		}
	}
	putFloat("indoor_temp", in.IndoorTemp)
	putFloat("outdoor_temp", in.OutdoorTemp)
	putFloat("avg_outdoor_next_24h", in.AvgOutdoorNext24h)
	putInt("solar_production_w", in.SolarProductionW)
	putInt("net_power_w", in.NetPowerW)
	putInt("pir_minutes_ago", in.PirMinutesAgo)
	putInt("last_change_minutes", in.LastChangeMinutes)
	putBool("user_is_home", in.UserIsHome)
	putBool("pir_detected", in.PirDetected)
	putBool("is_auto_mode", in.IsAutoMode)
	return env
}
