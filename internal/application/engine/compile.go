package engine

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// Program is a compiled, executable form of a graph. It is immutable
// and safe for concurrent evaluation.
type Program struct {
	Graph    *models.Graph
	registry *Registry
	nodes    map[string]*CompiledNode
	entry    *CompiledNode
}

// Node returns the compiled node with the given id.
func (p *Program) Node(id string) (*CompiledNode, bool) {
	n, ok := p.nodes[id]
	return n, ok
}

// CompiledNode is one graph node with its definition resolved, its
// effective pin inventory computed and its edges indexed.
type CompiledNode struct {
	Node *models.GraphNode
	Def  *Definition

	// Inputs is the effective input inventory: definition inputs plus
	// any dynamic inputs carried by the instance.
	Inputs []models.NodePin

	incoming     map[string]*models.Edge   // data pin -> single incoming edge
	incomingFlow map[string][]*models.Edge // execution pin -> fan-in edges
	outgoing     map[string][]*models.Edge // pin -> outgoing edges, declaration order
	expr         *vm.Program
}

func (n *CompiledNode) inputPin(id string) (models.NodePin, bool) {
	for _, p := range n.Inputs {
		if p.ID == id {
			return p, true
		}
	}
	return models.NodePin{}, false
}

func (n *CompiledNode) outputPin(id string) (models.NodePin, bool) {
	for _, p := range n.Def.Outputs {
		if p.ID == id {
			return p, true
		}
	}
	return models.NodePin{}, false
}

// Compile turns a persisted graph into a Program, validating structure
// and types. On failure it returns a *models.GraphError whose issues
// name the offending node, pin and edge ids for the editor highlight.
func Compile(graph *models.Graph, reg *Registry) (*Program, error) {
	c := &compiler{
		graph:   graph,
		reg:     reg,
		nodes:   make(map[string]*CompiledNode, len(graph.Nodes)),
		unifier: newUnifier(),
	}

	c.indexNodes()
	c.checkEntry()
	c.indexEdges()
	c.compileExpressions()

	if len(c.issues) > 0 {
		return nil, &models.GraphError{Issues: c.issues}
	}

	return &Program{
		Graph:    graph,
		registry: reg,
		nodes:    c.nodes,
		entry:    c.entry,
	}, nil
}

type compiler struct {
	graph   *models.Graph
	reg     *Registry
	nodes   map[string]*CompiledNode
	entry   *CompiledNode
	unifier *unifier
	issues  []models.GraphIssue
}

func (c *compiler) issue(i models.GraphIssue) {
	c.issues = append(c.issues, i)
}

// indexNodes resolves definitions, rejects duplicate ids and computes
// the effective pin inventory of every node.
func (c *compiler) indexNodes() {
	for _, node := range c.graph.Nodes {
		if _, dup := c.nodes[node.ID]; dup {
			c.issue(models.GraphIssue{NodeID: node.ID, Reason: "duplicate node id"})
			continue
		}

		def, ok := c.reg.Get(node.Type)
		if !ok {
			c.issue(models.GraphIssue{NodeID: node.ID, Reason: fmt.Sprintf("unknown node type %q", node.Type)})
			continue
		}

		cn := &CompiledNode{
			Node:         node,
			Def:          def,
			Inputs:       append([]models.NodePin(nil), def.Inputs...),
			incoming:     make(map[string]*models.Edge),
			incomingFlow: make(map[string][]*models.Edge),
			outgoing:     make(map[string][]*models.Edge),
		}

		if len(node.Data.DynamicInputs) > 0 {
			if !def.IsDynamic {
				c.issue(models.GraphIssue{NodeID: node.ID, Reason: "node type does not accept dynamic inputs"})
			} else {
				c.addDynamicInputs(cn)
			}
		}

		if def.IsDynamic && c.countDataInputs(cn) < 2 {
			c.issue(models.GraphIssue{NodeID: node.ID, Reason: "dynamic-arity node must retain at least 2 inputs"})
		}

		// Bidirectional constraint pins share one unification class.
		if len(def.UnifyGroup) > 1 {
			first := c.unifier.varFor(node.ID, def.UnifyGroup[0], def.AllowedAny[def.UnifyGroup[0]])
			for _, pinID := range def.UnifyGroup[1:] {
				v := c.unifier.varFor(node.ID, pinID, def.AllowedAny[pinID])
				if err := c.unifier.union(first, v); err != nil {
					c.issue(models.GraphIssue{NodeID: node.ID, PinID: pinID, Reason: err.Error()})
				}
			}
		}

		c.nodes[node.ID] = cn
	}
}

// addDynamicInputs validates and appends instance-level extra inputs.
// Logic nodes only grow homogeneous Boolean pins.
func (c *compiler) addDynamicInputs(cn *CompiledNode) {
	seen := make(map[string]bool, len(cn.Inputs))
	for _, p := range cn.Inputs {
		seen[p.ID] = true
	}
	for _, p := range cn.Node.Data.DynamicInputs {
		if seen[p.ID] {
			c.issue(models.GraphIssue{NodeID: cn.Node.ID, PinID: p.ID, Reason: "duplicate dynamic input id"})
			continue
		}
		if p.ValueType.Kind != models.KindBoolean {
			c.issue(models.GraphIssue{NodeID: cn.Node.ID, PinID: p.ID, Reason: "dynamic inputs must be boolean"})
			continue
		}
		seen[p.ID] = true
		cn.Inputs = append(cn.Inputs, p)
	}
}

func (c *compiler) countDataInputs(cn *CompiledNode) int {
	count := 0
	for _, p := range cn.Inputs {
		if p.ValueType.Kind != models.KindExecution {
			count++
		}
	}
	return count
}

// checkEntry enforces invariant I3: exactly one OnEvaluate node owning
// the execution flow's single source.
func (c *compiler) checkEntry() {
	for _, cn := range c.nodes {
		if cn.Def.NodeType != NodeOnEvaluate {
			continue
		}
		if c.entry != nil {
			c.issue(models.GraphIssue{NodeID: cn.Node.ID, Reason: "graph contains more than one entry node"})
			continue
		}
		c.entry = cn
	}
	if c.entry == nil {
		c.issue(models.GraphIssue{Reason: "graph contains no entry node"})
	}
}

// indexEdges validates every edge and records it in the per-node edge
// maps. Fail-fast semantics: a dangling edge is reported with the
// offending edge and node ids.
func (c *compiler) indexEdges() {
	for _, edge := range c.graph.Edges {
		src, ok := c.nodes[edge.Source]
		if !ok {
			c.issue(models.GraphIssue{EdgeID: edge.ID, NodeID: edge.Source, Reason: "edge source node does not exist"})
			continue
		}
		dst, ok := c.nodes[edge.Target]
		if !ok {
			c.issue(models.GraphIssue{EdgeID: edge.ID, NodeID: edge.Target, Reason: "edge target node does not exist"})
			continue
		}

		srcPin, ok := src.outputPin(edge.SourceHandle)
		if !ok {
			c.issue(models.GraphIssue{EdgeID: edge.ID, NodeID: src.Node.ID, PinID: edge.SourceHandle, Reason: "edge source pin does not exist"})
			continue
		}
		dstPin, ok := dst.inputPin(edge.TargetHandle)
		if !ok {
			c.issue(models.GraphIssue{EdgeID: edge.ID, NodeID: dst.Node.ID, PinID: edge.TargetHandle, Reason: "edge target pin does not exist"})
			continue
		}

		srcExec := srcPin.ValueType.Kind == models.KindExecution
		dstExec := dstPin.ValueType.Kind == models.KindExecution
		if srcExec != dstExec {
			c.issue(models.GraphIssue{EdgeID: edge.ID, NodeID: dst.Node.ID, PinID: dstPin.ID, Reason: "execution pins only connect to execution pins"})
			continue
		}

		if srcExec {
			// Flow edge: fan-in is allowed so several branches can
			// trigger the same action.
			src.outgoing[srcPin.ID] = append(src.outgoing[srcPin.ID], edge)
			dst.incomingFlow[dstPin.ID] = append(dst.incomingFlow[dstPin.ID], edge)
			continue
		}

		if _, taken := dst.incoming[dstPin.ID]; taken {
			c.issue(models.GraphIssue{EdgeID: edge.ID, NodeID: dst.Node.ID, PinID: dstPin.ID, Reason: "input already has an incoming edge"})
			continue
		}

		if err := c.unifyEdge(src, srcPin, dst, dstPin); err != nil {
			c.issue(models.GraphIssue{EdgeID: edge.ID, NodeID: dst.Node.ID, PinID: dstPin.ID, Reason: err.Error()})
			continue
		}

		src.outgoing[srcPin.ID] = append(src.outgoing[srcPin.ID], edge)
		dst.incoming[dstPin.ID] = edge
	}
}

// unifyEdge applies the type unification rules of one data edge.
func (c *compiler) unifyEdge(src *CompiledNode, srcPin models.NodePin, dst *CompiledNode, dstPin models.NodePin) error {
	st, dt := srcPin.ValueType, dstPin.ValueType
	srcAny := st.Kind == models.KindAny
	dstAny := dt.Kind == models.KindAny

	switch {
	case !srcAny && !dstAny:
		return c.checkConcrete(st, dt)

	case srcAny && !dstAny:
		if dt.Kind == models.KindObject {
			return nil
		}
		v := c.unifier.varFor(src.Node.ID, srcPin.ID, src.Def.AllowedAny[srcPin.ID])
		return c.unifier.bind(v, dt)

	case !srcAny && dstAny:
		v := c.unifier.varFor(dst.Node.ID, dstPin.ID, dst.Def.AllowedAny[dstPin.ID])
		return c.unifier.bind(v, st)

	default:
		sv := c.unifier.varFor(src.Node.ID, srcPin.ID, src.Def.AllowedAny[srcPin.ID])
		dv := c.unifier.varFor(dst.Node.ID, dstPin.ID, dst.Def.AllowedAny[dstPin.ID])
		return c.unifier.union(sv, dv)
	}
}

// checkConcrete validates a concrete-to-concrete connection. Object is
// a top type as a target; CauseReason only connects to CauseReason and
// never to Enum; enums unify by value-set equality.
func (c *compiler) checkConcrete(st, dt models.ValueType) error {
	if dt.Kind == models.KindObject {
		return nil
	}
	if st.Kind == models.KindCauseReason || dt.Kind == models.KindCauseReason {
		if st.Kind != dt.Kind {
			return fmt.Errorf("cause reason pins only connect to cause reason pins")
		}
		return nil
	}
	if !st.Equal(dt) {
		return fmt.Errorf("type %s is not compatible with %s", st, dt)
	}
	return nil
}

// compileExpressions precompiles every expression node. Compile errors
// are graph issues naming the node, keeping the editor feedback loop
// ahead of the first evaluation.
func (c *compiler) compileExpressions() {
	for _, cn := range c.nodes {
		if cn.Def.NodeType != NodeExpression {
			continue
		}
		if cn.Node.Data.Expression == "" {
			c.issue(models.GraphIssue{NodeID: cn.Node.ID, Reason: "expression node has no expression"})
			continue
		}
		prog, err := expr.Compile(cn.Node.Data.Expression, expr.AllowUndefinedVariables())
		if err != nil {
			c.issue(models.GraphIssue{NodeID: cn.Node.ID, Reason: fmt.Sprintf("expression does not compile: %v", err)})
			continue
		}
		cn.expr = prog
	}
}
