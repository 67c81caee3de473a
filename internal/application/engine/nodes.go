package engine

import (
	"fmt"
	"math"

	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// Comparison operator labels for the evaluate_number node.
var compareOps = []string{"<", "<=", "=", ">=", ">"}

// Arithmetic operator labels for the math node.
var mathOps = []string{"+", "-", "*", "/"}

// Plan mode and intensity enum labels, matching pkg/models constants.
var (
	planModeValues  = []string{"colder", "warmer", "off", "no_change"}
	intensityValues = []string{"low", "medium", "high"}
)

func pin(id, label string, vt models.ValueType, required bool) models.NodePin {
	return models.NodePin{ID: id, Label: label, ValueType: vt, Required: required}
}

// registerBuiltins populates the full built-in node set. Colors and
// categories drive the editor palette.
func (r *Registry) registerBuiltins() {
	r.registerFlowNodes()
	r.registerLogicNodes()
	r.registerPrimitiveNodes()
	r.registerSensorNodes()
}

func (r *Registry) registerFlowNodes() {
	r.register(&Definition{
		NodeDefinition: models.NodeDefinition{
			NodeType:    NodeOnEvaluate,
			Name:        "On Evaluate",
			Description: "Entry point; emits the single execution token each tick.",
			Category:    "flow",
			Color:       "#8b5cf6",
			Outputs:     []models.NodePin{pin(PinExecOut, "Then", models.ExecutionType(), false)},
		},
		execFlow: func(ec *evalContext, n *CompiledNode) ([]*models.Edge, error) {
			return n.outgoing[PinExecOut], nil
		},
	})

	r.register(&Definition{
		NodeDefinition: models.NodeDefinition{
			NodeType:    NodeBranch,
			Name:        "Branch",
			Description: "Follows the true or false output based on the condition.",
			Category:    "flow",
			Color:       "#8b5cf6",
			Inputs: []models.NodePin{
				pin(PinExecIn, "Run", models.ExecutionType(), true),
				pin(PinCond, "Condition", models.BooleanType(), true),
			},
			Outputs: []models.NodePin{
				pin(PinTrue, "True", models.ExecutionType(), false),
				pin(PinFalse, "False", models.ExecutionType(), false),
			},
		},
		execFlow: func(ec *evalContext, n *CompiledNode) ([]*models.Edge, error) {
			cond, err := ec.boolInput(n, PinCond)
			if err != nil {
				return nil, err
			}
			if cond {
				return n.outgoing[PinTrue], nil
			}
			return n.outgoing[PinFalse], nil
		},
	})

	r.register(&Definition{
		NodeDefinition: models.NodeDefinition{
			NodeType:    NodeSetPlan,
			Name:        "Set Plan",
			Description: "Terminal action: records the plan for the device under evaluation.",
			Category:    "flow",
			Color:       "#f59e0b",
			Inputs: []models.NodePin{
				pin(PinExecIn, "Run", models.ExecutionType(), true),
				pin(PinMode, "Mode", models.EnumType(planModeValues...), true),
				pin(PinIntensityIn, "Intensity", models.EnumType(intensityValues...), false),
				pin(PinDevice, "Device", models.StringType(), false),
				pin(PinCause, "Cause", models.CauseReasonType(nil), true),
			},
		},
		execFlow: execSetPlan,
	})
}

func execSetPlan(ec *evalContext, n *CompiledNode) ([]*models.Edge, error) {
	// An explicit device input scopes the action in multi-device
	// graphs; unconnected means "the device under evaluation".
	if _, connected := n.incoming[PinDevice]; connected {
		device, err := ec.stringInput(n, PinDevice)
		if err != nil {
			return nil, err
		}
		if device != ec.in.Device {
			return nil, nil
		}
	}

	modeLabel, err := ec.enumInput(n, PinMode)
	if err != nil {
		return nil, err
	}
	mode, err := planModeFromLabel(n, modeLabel)
	if err != nil {
		return nil, err
	}

	intensity := models.IntensityMedium
	if _, connected := n.incoming[PinIntensityIn]; connected {
		label, err := ec.enumInput(n, PinIntensityIn)
		if err != nil {
			return nil, err
		}
		intensity = models.Intensity(label)
	}

	cause, err := ec.causeInput(n, PinCause)
	if err != nil {
		return nil, err
	}

	ec.plan = &models.Plan{
		Mode:             mode,
		Intensity:        intensity,
		CauseID:          cause.ID,
		CauseLabel:       cause.Label,
		CauseDescription: cause.Description,
	}
	return nil, nil
}

func planModeFromLabel(n *CompiledNode, label string) (models.PlanMode, error) {
	switch models.PlanMode(label) {
	case models.PlanColder, models.PlanWarmer, models.PlanOff, models.PlanNoChange:
		return models.PlanMode(label), nil
	}
	return "", &models.EvalError{
		NodeID:  n.Node.ID,
		Kind:    models.EvalTypeMismatch,
		Message: fmt.Sprintf("unknown plan mode %q", label),
	}
}

func (r *Registry) registerLogicNodes() {
	for _, lt := range []struct {
		nodeType string
		name     string
		combine  func(acc, v bool) bool
		initial  bool
		finish   func(acc bool) bool
	}{
		{NodeAnd, "And", func(a, v bool) bool { return a && v }, true, nil},
		{NodeOr, "Or", func(a, v bool) bool { return a || v }, false, nil},
		{NodeNand, "Nand", func(a, v bool) bool { return a && v }, true, func(a bool) bool { return !a }},
	} {
		lt := lt
		r.register(&Definition{
			NodeDefinition: models.NodeDefinition{
				NodeType:    lt.nodeType,
				Name:        lt.name,
				Description: "Boolean combinator; additional inputs may be added.",
				Category:    "logic",
				Color:       "#10b981",
				IsDynamic:   true,
				Inputs: []models.NodePin{
					pin(PinA, "A", models.BooleanType(), true),
					pin(PinB, "B", models.BooleanType(), true),
				},
				Outputs: []models.NodePin{pin(PinResult, "Result", models.BooleanType(), false)},
			},
			evalData: func(ec *evalContext, n *CompiledNode, _ string) (any, error) {
				acc := lt.initial
				for _, in := range n.Inputs {
					v, err := ec.boolInput(n, in.ID)
					if err != nil {
						return nil, err
					}
					acc = lt.combine(acc, v)
				}
				if lt.finish != nil {
					acc = lt.finish(acc)
				}
				return acc, nil
			},
		})
	}

	r.register(&Definition{
		NodeDefinition: models.NodeDefinition{
			NodeType: NodeNot,
			Name:     "Not",
			Category: "logic",
			Color:    "#10b981",
			Inputs:   []models.NodePin{pin(PinValue, "Value", models.BooleanType(), true)},
			Outputs:  []models.NodePin{pin(PinResult, "Result", models.BooleanType(), false)},
		},
		evalData: func(ec *evalContext, n *CompiledNode, _ string) (any, error) {
			v, err := ec.boolInput(n, PinValue)
			if err != nil {
				return nil, err
			}
			return !v, nil
		},
	})

	r.register(&Definition{
		NodeDefinition: models.NodeDefinition{
			NodeType:    NodeEquals,
			Name:        "Equals",
			Description: "Compares two values of one shared type.",
			Category:    "logic",
			Color:       "#10b981",
			Inputs: []models.NodePin{
				pin(PinA, "A", models.AnyType(), true),
				pin(PinB, "B", models.AnyType(), true),
			},
			Outputs: []models.NodePin{pin(PinResult, "Result", models.BooleanType(), false)},
		},
		UnifyGroup: []string{PinA, PinB},
		evalData: func(ec *evalContext, n *CompiledNode, _ string) (any, error) {
			a, err := ec.requireInput(n, PinA)
			if err != nil {
				return nil, err
			}
			b, err := ec.requireInput(n, PinB)
			if err != nil {
				return nil, err
			}
			return looseEqual(a, b), nil
		},
	})

	r.register(&Definition{
		NodeDefinition: models.NodeDefinition{
			NodeType:    NodeEvaluateNumber,
			Name:        "Evaluate Number",
			Description: "Numeric comparison with strict IEEE semantics.",
			Category:    "logic",
			Color:       "#10b981",
			Inputs: []models.NodePin{
				pin(PinA, "A", models.AnyType(), true),
				pin(PinOperator, "Operator", models.EnumType(compareOps...), true),
				pin(PinB, "B", models.AnyType(), true),
			},
			Outputs: []models.NodePin{pin(PinResult, "Result", models.BooleanType(), false)},
		},
		AllowedAny: map[string][]models.ValueKind{
			PinA: {models.KindFloat, models.KindInteger},
			PinB: {models.KindFloat, models.KindInteger},
		},
		evalData: func(ec *evalContext, n *CompiledNode, _ string) (any, error) {
			a, err := ec.floatInput(n, PinA)
			if err != nil {
				return nil, err
			}
			b, err := ec.floatInput(n, PinB)
			if err != nil {
				return nil, err
			}
			op, err := ec.enumInput(n, PinOperator)
			if err != nil {
				return nil, err
			}
			return compareFloats(n, a, op, b)
		},
	})

	r.register(&Definition{
		NodeDefinition: models.NodeDefinition{
			NodeType:    NodeMath,
			Name:        "Math",
			Description: "Arithmetic on two numbers; result is a float.",
			Category:    "logic",
			Color:       "#10b981",
			Inputs: []models.NodePin{
				pin(PinA, "A", models.AnyType(), true),
				pin(PinOperator, "Operator", models.EnumType(mathOps...), true),
				pin(PinB, "B", models.AnyType(), true),
			},
			Outputs: []models.NodePin{pin(PinResult, "Result", models.FloatType(), false)},
		},
		AllowedAny: map[string][]models.ValueKind{
			PinA: {models.KindFloat, models.KindInteger},
			PinB: {models.KindFloat, models.KindInteger},
		},
		evalData: func(ec *evalContext, n *CompiledNode, _ string) (any, error) {
			a, err := ec.floatInput(n, PinA)
			if err != nil {
				return nil, err
			}
			b, err := ec.floatInput(n, PinB)
			if err != nil {
				return nil, err
			}
			op, err := ec.enumInput(n, PinOperator)
			if err != nil {
				return nil, err
			}
			switch op {
			case "+":
				return a + b, nil
			case "-":
				return a - b, nil
			case "*":
				return a * b, nil
			case "/":
				if b == 0 {
					return nil, &models.EvalError{
						NodeID:  n.Node.ID,
						Kind:    models.EvalDivideByZero,
						Message: "division by zero",
					}
				}
				return a / b, nil
			}
			return nil, &models.EvalError{
				NodeID:  n.Node.ID,
				Kind:    models.EvalTypeMismatch,
				Message: fmt.Sprintf("unknown operator %q", op),
			}
		},
	})

	r.register(&Definition{
		NodeDefinition: models.NodeDefinition{
			NodeType:    NodeSelect,
			Name:        "Select",
			Description: "Picks one of two values of a shared type.",
			Category:    "logic",
			Color:       "#10b981",
			Inputs: []models.NodePin{
				pin(PinCond, "Condition", models.BooleanType(), true),
				pin(PinThen, "Then", models.AnyType(), true),
				pin(PinElse, "Else", models.AnyType(), true),
			},
			Outputs: []models.NodePin{pin(PinValue, "Value", models.AnyType(), false)},
		},
		UnifyGroup: []string{PinThen, PinElse, PinValue},
		evalData: func(ec *evalContext, n *CompiledNode, _ string) (any, error) {
			cond, err := ec.boolInput(n, PinCond)
			if err != nil {
				return nil, err
			}
			if cond {
				return ec.requireInput(n, PinThen)
			}
			return ec.requireInput(n, PinElse)
		},
	})

	r.register(&Definition{
		NodeDefinition: models.NodeDefinition{
			NodeType:    NodeExpression,
			Name:        "Expression",
			Description: "Evaluates an expression over the live inputs.",
			Category:    "logic",
			Color:       "#10b981",
			Outputs:     []models.NodePin{pin(PinValue, "Value", models.AnyType(), false)},
		},
		AllowedAny: map[string][]models.ValueKind{
			PinValue: {models.KindBoolean, models.KindInteger, models.KindFloat, models.KindString},
		},
		evalData: evalExpression,
	})
}

func compareFloats(n *CompiledNode, a float64, op string, b float64) (bool, error) {
	// NaN compares false under every operator.
	if math.IsNaN(a) || math.IsNaN(b) {
		return false, nil
	}
	switch op {
	case "<":
		return a < b, nil
	case "<=":
		return a <= b, nil
	case "=":
		return a == b, nil
	case ">=":
		return a >= b, nil
	case ">":
		return a > b, nil
	}
	return false, &models.EvalError{
		NodeID:  n.Node.ID,
		Kind:    models.EvalTypeMismatch,
		Message: fmt.Sprintf("unknown operator %q", op),
	}
}

func (r *Registry) registerPrimitiveNodes() {
	floatKind := models.KindFloat
	intKind := models.KindInteger
	boolKind := models.KindBoolean

	r.register(&Definition{
		NodeDefinition: models.NodeDefinition{
			NodeType:      NodeFloatConst,
			Name:          "Float",
			Category:      "primitive",
			Color:         "#3b82f6",
			PrimitiveKind: &floatKind,
			Outputs:       []models.NodePin{pin(PinValue, "Value", models.FloatType(), false)},
		},
		evalData: func(ec *evalContext, n *CompiledNode, _ string) (any, error) {
			return primitiveFloat(n)
		},
	})

	r.register(&Definition{
		NodeDefinition: models.NodeDefinition{
			NodeType:      NodeIntegerConst,
			Name:          "Integer",
			Category:      "primitive",
			Color:         "#3b82f6",
			PrimitiveKind: &intKind,
			Outputs:       []models.NodePin{pin(PinValue, "Value", models.IntegerType(), false)},
		},
		evalData: func(ec *evalContext, n *CompiledNode, _ string) (any, error) {
			f, err := primitiveFloat(n)
			if err != nil {
				return nil, err
			}
			return int64(f), nil
		},
	})

	r.register(&Definition{
		NodeDefinition: models.NodeDefinition{
			NodeType:      NodeBooleanConst,
			Name:          "Boolean",
			Category:      "primitive",
			Color:         "#3b82f6",
			PrimitiveKind: &boolKind,
			Outputs:       []models.NodePin{pin(PinValue, "Value", models.BooleanType(), false)},
		},
		evalData: func(ec *evalContext, n *CompiledNode, _ string) (any, error) {
			b, ok := n.Node.Data.PrimitiveValue.(bool)
			if !ok {
				return nil, &models.EvalError{
					NodeID:  n.Node.ID,
					Kind:    models.EvalMissingInput,
					Message: "boolean constant has no value",
				}
			}
			return b, nil
		},
	})

	causeType := models.CauseReasonType(nil)
	r.register(&Definition{
		NodeDefinition: models.NodeDefinition{
			NodeType: NodeCauseConst,
			Name:     "Cause Reason",
			Category: "primitive",
			Color:    "#f97316",
			EnumKind: &causeType,
			Outputs:  []models.NodePin{pin(PinValue, "Value", models.CauseReasonType(nil), false)},
		},
		evalData: func(ec *evalContext, n *CompiledNode, _ string) (any, error) {
			f, err := primitiveFloat(n)
			if err != nil {
				return nil, err
			}
			cause, ok := ec.prog.registry.CauseByID(int(f))
			if !ok {
				return nil, &models.EvalError{
					NodeID:  n.Node.ID,
					Kind:    models.EvalMissingInput,
					Message: fmt.Sprintf("cause reason %d does not exist", int(f)),
				}
			}
			return cause, nil
		},
	})

	r.register(&Definition{
		NodeDefinition: models.NodeDefinition{
			NodeType: NodeDeviceConst,
			Name:     "Device",
			Category: "primitive",
			Color:    "#3b82f6",
			Outputs:  []models.NodePin{pin(PinValue, "Value", models.StringType(), false)},
		},
		evalData: enumConstData,
	})

	intensityType := models.EnumType(intensityValues...)
	r.register(&Definition{
		NodeDefinition: models.NodeDefinition{
			NodeType: NodeIntensityConst,
			Name:     "Intensity",
			Category: "primitive",
			Color:    "#3b82f6",
			EnumKind: &intensityType,
			Outputs:  []models.NodePin{pin(PinValue, "Value", intensityType, false)},
		},
		evalData: enumConstData,
	})

	modeType := models.EnumType(planModeValues...)
	r.register(&Definition{
		NodeDefinition: models.NodeDefinition{
			NodeType: NodeModeConst,
			Name:     "Plan Mode",
			Category: "primitive",
			Color:    "#3b82f6",
			EnumKind: &modeType,
			Outputs:  []models.NodePin{pin(PinValue, "Value", modeType, false)},
		},
		evalData: enumConstData,
	})
}

func primitiveFloat(n *CompiledNode) (float64, error) {
	switch v := n.Node.Data.PrimitiveValue.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, &models.EvalError{
		NodeID:  n.Node.ID,
		Kind:    models.EvalMissingInput,
		Message: "constant has no numeric value",
	}
}

func enumConstData(ec *evalContext, n *CompiledNode, _ string) (any, error) {
	if n.Node.Data.EnumValue == nil {
		return nil, &models.EvalError{
			NodeID:  n.Node.ID,
			Kind:    models.EvalMissingInput,
			Message: "no value selected",
		}
	}
	return *n.Node.Data.EnumValue, nil
}

// sensorSpec binds a sensor node to one LiveInputs field.
type sensorSpec struct {
	nodeType string
	name     string
	vt       models.ValueType
	read     func(in *models.LiveInputs) (any, bool)
}

func (r *Registry) registerSensorNodes() {
	sensors := []sensorSpec{
		{NodeIndoorTemp, "Indoor Temperature", models.FloatType(), func(in *models.LiveInputs) (any, bool) {
			if in.IndoorTemp == nil {
				return nil, false
			}
			return *in.IndoorTemp, true
		}},
		{NodeOutdoorTemp, "Outdoor Temperature", models.FloatType(), func(in *models.LiveInputs) (any, bool) {
			if in.OutdoorTemp == nil {
				return nil, false
			}
			return *in.OutdoorTemp, true
		}},
		{NodeAvgOutdoor24h, "Avg Outdoor Next 24h", models.FloatType(), func(in *models.LiveInputs) (any, bool) {
			if in.AvgOutdoorNext24h == nil {
				return nil, false
			}
			return *in.AvgOutdoorNext24h, true
		}},
		{NodeSolarW, "Solar Production (W)", models.IntegerType(), func(in *models.LiveInputs) (any, bool) {
			if in.SolarProductionW == nil {
				return nil, false
			}
			return int64(*in.SolarProductionW), true
		}},
		{NodeNetPowerW, "Net Power (W)", models.IntegerType(), func(in *models.LiveInputs) (any, bool) {
			if in.NetPowerW == nil {
				return nil, false
			}
			return int64(*in.NetPowerW), true
		}},
		{NodeUserIsHome, "User Is Home", models.BooleanType(), func(in *models.LiveInputs) (any, bool) {
			if in.UserIsHome == nil {
				return nil, false
			}
			return *in.UserIsHome, true
		}},
		{NodePirDetected, "PIR Detected", models.BooleanType(), func(in *models.LiveInputs) (any, bool) {
			if in.PirDetected == nil {
				return nil, false
			}
			return *in.PirDetected, true
		}},
		{NodePirMinutesAgo, "PIR Minutes Ago", models.IntegerType(), func(in *models.LiveInputs) (any, bool) {
			if in.PirMinutesAgo == nil {
				return nil, false
			}
			return int64(*in.PirMinutesAgo), true
		}},
		{NodeLastChange, "Last Change Minutes", models.IntegerType(), func(in *models.LiveInputs) (any, bool) {
			if in.LastChangeMinutes == nil {
				return nil, false
			}
			return int64(*in.LastChangeMinutes), true
		}},
		{NodeIsAutoMode, "Is Auto Mode", models.BooleanType(), func(in *models.LiveInputs) (any, bool) {
			if in.IsAutoMode == nil {
				return nil, false
			}
			return *in.IsAutoMode, true
		}},
	}

	for _, s := range sensors {
		s := s
		r.register(&Definition{
			NodeDefinition: models.NodeDefinition{
				NodeType: s.nodeType,
				Name:     s.name,
				Category: "sensor",
				Color:    "#06b6d4",
				Outputs:  []models.NodePin{pin(PinValue, "Value", s.vt, false)},
			},
			evalData: func(ec *evalContext, n *CompiledNode, _ string) (any, error) {
				v, ok := s.read(ec.in)
				if !ok {
					return nil, &models.EvalError{
						NodeID:  n.Node.ID,
						Kind:    models.EvalStaleInput,
						Message: fmt.Sprintf("%s has no fresh value", s.nodeType),
					}
				}
				return v, nil
			},
		})
	}

	r.register(&Definition{
		NodeDefinition: models.NodeDefinition{
			NodeType:    NodeActiveCommand,
			Name:        "Active Command",
			Description: "Fields of the last command the executor believes is on the device.",
			Category:    "sensor",
			Color:       "#06b6d4",
			Outputs: []models.NodePin{
				pin(PinIsOn, "Is On", models.BooleanType(), false),
				pin(PinMode, "Mode", models.IntegerType(), false),
				pin(PinTemperature, "Temperature", models.FloatType(), false),
				pin(PinFanSpeed, "Fan Speed", models.IntegerType(), false),
				pin(PinSwing, "Swing", models.IntegerType(), false),
				pin(PinPowerful, "Powerful", models.BooleanType(), false),
			},
		},
		evalData: func(ec *evalContext, n *CompiledNode, pinID string) (any, error) {
			cmd := ec.in.ActiveCommand
			if cmd == nil {
				return nil, &models.EvalError{
					NodeID:  n.Node.ID,
					Kind:    models.EvalStaleInput,
					Message: "no active command is known for the device",
				}
			}
			switch pinID {
			case PinIsOn:
				return cmd.IsOn, nil
			case PinMode:
				return int64(cmd.Mode), nil
			case PinTemperature:
				return cmd.Temperature, nil
			case PinFanSpeed:
				return int64(cmd.FanSpeed), nil
			case PinSwing:
				return int64(cmd.Swing), nil
			case PinPowerful:
				return cmd.Powerful, nil
			}
			return nil, &models.EvalError{
				NodeID:  n.Node.ID,
				Kind:    models.EvalMissingInput,
				Message: fmt.Sprintf("unknown output pin %q", pinID),
			}
		},
	})
}
