package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NotCoffee418/power-control-center/internal/infrastructure/logger"
	"github.com/NotCoffee418/power-control-center/pkg/models"
)

func evaluate(t *testing.T, g *models.Graph, in *models.LiveInputs) (*models.Plan, error) {
	t.Helper()
	prog, err := Compile(g, testRegistry())
	require.NoError(t, err)
	return NewEvaluator(logger.Default()).Evaluate(prog, in)
}

func requireEvalError(t *testing.T, err error) *models.EvalError {
	t.Helper()
	require.Error(t, err)
	var evalErr *models.EvalError
	require.True(t, errors.As(err, &evalErr), "expected *models.EvalError, got %T", err)
	return evalErr
}

// Scenario 1: the ice exception fires on the literal inputs.
func TestEvaluate_IceException(t *testing.T) {
	t.Parallel()

	plan, err := evaluate(t, iceExceptionGraph(), iceInputs())
	require.NoError(t, err)

	assert.Equal(t, models.PlanOff, plan.Mode)
	assert.Equal(t, models.CauseIceException, plan.CauseID)
	assert.Equal(t, "IceException", plan.CauseLabel)
}

func TestEvaluate_IceExceptionSuppressedBySolar(t *testing.T) {
	t.Parallel()

	in := iceInputs()
	in.SolarProductionW = iptr(2500)

	plan, err := evaluate(t, iceExceptionGraph(), in)
	require.NoError(t, err)

	// The exception branch is not taken; nothing else sets a plan.
	assert.Equal(t, models.PlanNoChange, plan.Mode)
	assert.Equal(t, models.CauseUndefined, plan.CauseID)
}

func TestEvaluate_NoSetPlanYieldsUndefinedNoChange(t *testing.T) {
	t.Parallel()

	g := newGraph().entry("entry").build()
	plan, err := evaluate(t, g, iceInputs())
	require.NoError(t, err)

	assert.Equal(t, models.PlanNoChange, plan.Mode)
	assert.Equal(t, models.CauseUndefined, plan.CauseID)
}

// Whichever SetPlan fires first wins: the walk follows outgoing edges
// in declaration order and stops at the first recorded plan.
func TestEvaluate_FirstSetPlanWins(t *testing.T) {
	t.Parallel()

	g := newGraph().
		entry("entry").
		enumConst("off_mode", NodeModeConst, "off").
		enumConst("colder_mode", NodeModeConst, "colder").
		causeConst("ice", 1).
		causeConst("solar", 6).
		node("plan_a", NodeSetPlan, models.NodeData{}).
		node("plan_b", NodeSetPlan, models.NodeData{}).
		edge("entry", PinExecOut, "plan_a", PinExecIn).
		edge("entry", PinExecOut, "plan_b", PinExecIn).
		edge("off_mode", PinValue, "plan_a", PinMode).
		edge("ice", PinValue, "plan_a", PinCause).
		edge("colder_mode", PinValue, "plan_b", PinMode).
		edge("solar", PinValue, "plan_b", PinCause).
		build()

	plan, err := evaluate(t, g, iceInputs())
	require.NoError(t, err)

	assert.Equal(t, models.PlanOff, plan.Mode)
	assert.Equal(t, models.CauseIceException, plan.CauseID)
}

// Scenario 6: a data cycle is detected at evaluation and attributed to
// the node the path loops back into.
func TestEvaluate_DataCycleDetected(t *testing.T) {
	t.Parallel()

	g := newGraph().
		entry("entry").
		boolConst("seed", true).
		node("all", NodeAnd, models.NodeData{}).
		node("inv", NodeNot, models.NodeData{}).
		node("gate", NodeBranch, models.NodeData{}).
		edge("seed", PinValue, "all", PinA).
		edge("inv", PinResult, "all", PinB).
		edge("all", PinResult, "inv", PinValue).
		edge("all", PinResult, "gate", PinCond).
		edge("entry", PinExecOut, "gate", PinExecIn).
		build()

	_, err := evaluate(t, g, iceInputs())
	evalErr := requireEvalError(t, err)

	assert.Equal(t, models.EvalCycleDetected, evalErr.Kind)
	assert.Equal(t, "all", evalErr.NodeID)
}

func TestEvaluate_MissingSensorFailsWithNodeID(t *testing.T) {
	t.Parallel()

	in := iceInputs()
	in.OutdoorTemp = nil // collector TTL exceeded

	_, err := evaluate(t, iceExceptionGraph(), in)
	evalErr := requireEvalError(t, err)

	assert.Equal(t, models.EvalStaleInput, evalErr.Kind)
	assert.Equal(t, "outdoor", evalErr.NodeID)
}

func TestEvaluate_NaNComparesFalse(t *testing.T) {
	t.Parallel()

	in := iceInputs()
	in.OutdoorTemp = fptr(math.NaN())

	plan, err := evaluate(t, iceExceptionGraph(), in)
	require.NoError(t, err)

	// outdoor < 2 is false for NaN, so the branch is not taken.
	assert.Equal(t, models.PlanNoChange, plan.Mode)
}

func TestEvaluate_IntegerFloatPromotion(t *testing.T) {
	t.Parallel()

	// 2.5 (float) > 2 (integer) promotes to float for the comparison.
	g := newGraph().
		entry("entry").
		floatConst("f", 2.5).
		intConst("i", 2).
		compare("cmp", ">").
		enumConst("mode", NodeModeConst, "colder").
		causeConst("cause", 6).
		node("gate", NodeBranch, models.NodeData{}).
		node("plan", NodeSetPlan, models.NodeData{}).
		edge("f", PinValue, "cmp", PinA).
		edge("i", PinValue, "cmp", PinB).
		edge("cmp", PinResult, "gate", PinCond).
		edge("entry", PinExecOut, "gate", PinExecIn).
		edge("gate", PinTrue, "plan", PinExecIn).
		edge("mode", PinValue, "plan", PinMode).
		edge("cause", PinValue, "plan", PinCause).
		build()

	plan, err := evaluate(t, g, iceInputs())
	require.NoError(t, err)
	assert.Equal(t, models.PlanColder, plan.Mode)
}

func TestEvaluate_SetPlanIntensity(t *testing.T) {
	t.Parallel()

	build := func(withIntensity bool) *models.Graph {
		b := newGraph().
			entry("entry").
			enumConst("mode", NodeModeConst, "colder").
			causeConst("cause", 6).
			node("plan", NodeSetPlan, models.NodeData{}).
			edge("entry", PinExecOut, "plan", PinExecIn).
			edge("mode", PinValue, "plan", PinMode).
			edge("cause", PinValue, "plan", PinCause)
		if withIntensity {
			b = b.enumConst("level", NodeIntensityConst, "high").
				edge("level", PinValue, "plan", PinIntensityIn)
		}
		return b.build()
	}

	plan, err := evaluate(t, build(true), iceInputs())
	require.NoError(t, err)
	assert.Equal(t, models.IntensityHigh, plan.Intensity)

	plan, err = evaluate(t, build(false), iceInputs())
	require.NoError(t, err)
	assert.Equal(t, models.IntensityMedium, plan.Intensity, "medium is the default intensity")
}

// A SetPlan scoped to another device is skipped for this one.
func TestEvaluate_SetPlanDeviceScope(t *testing.T) {
	t.Parallel()

	g := newGraph().
		entry("entry").
		enumConst("device", NodeDeviceConst, "bedroom").
		enumConst("mode", NodeModeConst, "off").
		causeConst("cause", 1).
		node("plan", NodeSetPlan, models.NodeData{}).
		edge("entry", PinExecOut, "plan", PinExecIn).
		edge("device", PinValue, "plan", PinDevice).
		edge("mode", PinValue, "plan", PinMode).
		edge("cause", PinValue, "plan", PinCause).
		build()

	plan, err := evaluate(t, g, iceInputs()) // device: living_room
	require.NoError(t, err)
	assert.Equal(t, models.PlanNoChange, plan.Mode)
}

func TestEvaluate_ExpressionNode(t *testing.T) {
	t.Parallel()

	g := newGraph().
		entry("entry").
		node("expr", NodeExpression, models.NodeData{
			Expression: "solar_production_w > 1000 && indoor_temp < 25.0",
		}).
		enumConst("mode", NodeModeConst, "colder").
		causeConst("cause", 6).
		node("gate", NodeBranch, models.NodeData{}).
		node("plan", NodeSetPlan, models.NodeData{}).
		edge("expr", PinValue, "gate", PinCond).
		edge("entry", PinExecOut, "gate", PinExecIn).
		edge("gate", PinTrue, "plan", PinExecIn).
		edge("mode", PinValue, "plan", PinMode).
		edge("cause", PinValue, "plan", PinCause).
		build()

	in := iceInputs()
	in.SolarProductionW = iptr(3500)
	in.IndoorTemp = fptr(22.5)

	plan, err := evaluate(t, g, in)
	require.NoError(t, err)
	assert.Equal(t, models.PlanColder, plan.Mode)
	assert.Equal(t, models.CauseExcessiveSolar, plan.CauseID)
}

// Each data node is evaluated at most once per evaluation: the Or
// node's result is pulled twice and the memo serves the second pull.
func TestEvaluate_Memoization(t *testing.T) {
	t.Parallel()

	prog, err := Compile(iceExceptionGraph(), testRegistry())
	require.NoError(t, err)

	ec := &evalContext{
		prog:     prog,
		in:       iceInputs(),
		memo:     make(map[string]any),
		onStack:  make(map[string]bool),
		inBranch: make(map[string]bool),
	}

	first, err := ec.pull("exceptions", PinResult)
	require.NoError(t, err)

	// Poison the memo entry; a second pull must return the memoized
	// value instead of recomputing.
	ec.memo["exceptions\x1fresult"] = !first.(bool)

	second, err := ec.pull("exceptions", PinResult)
	require.NoError(t, err)
	assert.Equal(t, !first.(bool), second.(bool))
}

func TestEvaluate_MathDivideByZero(t *testing.T) {
	t.Parallel()

	g := newGraph().
		entry("entry").
		floatConst("num", 10).
		floatConst("den", 0).
		node("div", NodeMath, models.NodeData{EnumValue: sptr("/")}).
		floatConst("limit", 1).
		compare("cmp", ">").
		node("gate", NodeBranch, models.NodeData{}).
		edge("num", PinValue, "div", PinA).
		edge("den", PinValue, "div", PinB).
		edge("div", PinResult, "cmp", PinA).
		edge("limit", PinValue, "cmp", PinB).
		edge("cmp", PinResult, "gate", PinCond).
		edge("entry", PinExecOut, "gate", PinExecIn).
		build()

	_, err := evaluate(t, g, iceInputs())
	evalErr := requireEvalError(t, err)
	assert.Equal(t, models.EvalDivideByZero, evalErr.Kind)
	assert.Equal(t, "div", evalErr.NodeID)
}

func TestEvaluate_HiddenCauseStillResolves(t *testing.T) {
	t.Parallel()

	g := newGraph().
		entry("entry").
		enumConst("mode", NodeModeConst, "off").
		causeConst("cause", 100). // hidden user reason
		node("plan", NodeSetPlan, models.NodeData{}).
		edge("entry", PinExecOut, "plan", PinExecIn).
		edge("mode", PinValue, "plan", PinMode).
		edge("cause", PinValue, "plan", PinCause).
		build()

	plan, err := evaluate(t, g, iceInputs())
	require.NoError(t, err)
	assert.Equal(t, 100, plan.CauseID)
	assert.Equal(t, "NightRate", plan.CauseLabel)
}
