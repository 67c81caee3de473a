package engine

import (
	"fmt"

	"github.com/NotCoffee418/power-control-center/pkg/models"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }
func bptr(v bool) *bool       { return &v }
func sptr(v string) *string   { return &v }

func testCauses() []models.CauseReason {
	return []models.CauseReason{
		{ID: models.CauseUndefined, Label: "Undefined"},
		{ID: models.CauseIceException, Label: "IceException"},
		{ID: models.CausePirDetection, Label: "PirDetection"},
		{ID: models.CauseExcessiveSolar, Label: "ExcessiveSolar"},
		{ID: 100, Label: "NightRate", IsHidden: true, IsEditable: true},
	}
}

func testRegistry() *Registry {
	return NewRegistry([]string{"living_room", "bedroom"}, testCauses())
}

// graphBuilder assembles test graphs with generated edge ids.
type graphBuilder struct {
	g     *models.Graph
	edges int
}

func newGraph() *graphBuilder {
	return &graphBuilder{
		g: &models.Graph{ID: "test", Name: "test"},
	}
}

// entry adds the OnEvaluate node under the given id.
func (b *graphBuilder) entry(id string) *graphBuilder {
	return b.node(id, NodeOnEvaluate, models.NodeData{IsDefault: true})
}

func (b *graphBuilder) node(id, nodeType string, data models.NodeData) *graphBuilder {
	b.g.Nodes = append(b.g.Nodes, &models.GraphNode{ID: id, Type: nodeType, Data: data})
	return b
}

func (b *graphBuilder) floatConst(id string, v float64) *graphBuilder {
	return b.node(id, NodeFloatConst, models.NodeData{PrimitiveValue: v})
}

func (b *graphBuilder) intConst(id string, v float64) *graphBuilder {
	return b.node(id, NodeIntegerConst, models.NodeData{PrimitiveValue: v})
}

func (b *graphBuilder) boolConst(id string, v bool) *graphBuilder {
	return b.node(id, NodeBooleanConst, models.NodeData{PrimitiveValue: v})
}

func (b *graphBuilder) causeConst(id string, causeID float64) *graphBuilder {
	return b.node(id, NodeCauseConst, models.NodeData{PrimitiveValue: causeID})
}

func (b *graphBuilder) enumConst(id, nodeType, value string) *graphBuilder {
	return b.node(id, nodeType, models.NodeData{EnumValue: sptr(value)})
}

// compare adds an evaluate_number node with its operator selected on
// the instance.
func (b *graphBuilder) compare(id, op string) *graphBuilder {
	return b.node(id, NodeEvaluateNumber, models.NodeData{EnumValue: sptr(op)})
}

func (b *graphBuilder) edge(src, srcPin, dst, dstPin string) *graphBuilder {
	b.edges++
	b.g.Edges = append(b.g.Edges, &models.Edge{
		ID:           fmt.Sprintf("e%d", b.edges),
		Source:       src,
		SourceHandle: srcPin,
		Target:       dst,
		TargetHandle: dstPin,
	})
	return b
}

func (b *graphBuilder) build() *models.Graph {
	return b.g
}

// iceExceptionGraph is the reference scenario: if outdoor < 2 and not
// (indoor < 12 or solar > 1000), plan Off with the ice cause.
func iceExceptionGraph() *models.Graph {
	return newGraph().
		entry("entry").
		node("outdoor", NodeOutdoorTemp, models.NodeData{}).
		node("indoor", NodeIndoorTemp, models.NodeData{}).
		node("solar", NodeSolarW, models.NodeData{}).
		floatConst("two", 2).
		floatConst("twelve", 12).
		intConst("thousand", 1000).
		compare("outdoor_cold", "<").
		compare("indoor_cold", "<").
		compare("solar_high", ">").
		node("exceptions", NodeOr, models.NodeData{}).
		node("no_exception", NodeNot, models.NodeData{}).
		node("ice_risk", NodeAnd, models.NodeData{}).
		node("gate", NodeBranch, models.NodeData{}).
		enumConst("off_mode", NodeModeConst, "off").
		causeConst("ice_cause", 1).
		node("plan", NodeSetPlan, models.NodeData{}).
		edge("outdoor", PinValue, "outdoor_cold", PinA).
		edge("two", PinValue, "outdoor_cold", PinB).
		edge("indoor", PinValue, "indoor_cold", PinA).
		edge("twelve", PinValue, "indoor_cold", PinB).
		edge("solar", PinValue, "solar_high", PinA).
		edge("thousand", PinValue, "solar_high", PinB).
		edge("indoor_cold", PinResult, "exceptions", PinA).
		edge("solar_high", PinResult, "exceptions", PinB).
		edge("exceptions", PinResult, "no_exception", PinValue).
		edge("outdoor_cold", PinResult, "ice_risk", PinA).
		edge("no_exception", PinResult, "ice_risk", PinB).
		edge("ice_risk", PinResult, "gate", PinCond).
		edge("entry", PinExecOut, "gate", PinExecIn).
		edge("gate", PinTrue, "plan", PinExecIn).
		edge("off_mode", PinValue, "plan", PinMode).
		edge("ice_cause", PinValue, "plan", PinCause).
		build()
}

// iceInputs is the literal scenario input set.
func iceInputs() *models.LiveInputs {
	return &models.LiveInputs{
		Device:           "living_room",
		OutdoorTemp:      fptr(1.0),
		IndoorTemp:       fptr(19.0),
		SolarProductionW: iptr(200),
		IsAutoMode:       bptr(true),
		UserIsHome:       bptr(true),
	}
}
