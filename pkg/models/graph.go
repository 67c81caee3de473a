package models

import (
	"encoding/json"
	"fmt"
)

// NodePin describes one input or output connector of a node. The ID is
// unique within its node among inputs (resp. outputs).
type NodePin struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Description string    `json:"description,omitempty"`
	ValueType   ValueType `json:"value_type"`
	Required    bool      `json:"required,omitempty"`
	Color       string    `json:"color,omitempty"`
}

// NodeDefinition is a registry entry describing a node type: its pins,
// editor metadata and dynamic-arity behavior.
type NodeDefinition struct {
	NodeType    string     `json:"node_type"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category"`
	Inputs      []NodePin  `json:"inputs"`
	Outputs     []NodePin  `json:"outputs"`
	Color       string     `json:"color,omitempty"`
	IsDynamic   bool       `json:"is_dynamic,omitempty"`
	PrimitiveKind *ValueKind `json:"primitive_kind,omitempty"`
	EnumKind      *ValueType `json:"enum_kind,omitempty"`
}

// Position is the visual position of a node in the editor.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData holds the per-instance payload of a graph node.
type NodeData struct {
	PrimitiveValue any       `json:"primitive_value,omitempty"`
	EnumValue      *string   `json:"enum_value,omitempty"`
	Expression     string    `json:"expression,omitempty"`
	DynamicInputs  []NodePin `json:"dynamic_inputs,omitempty"`
	IsDefault      bool      `json:"is_default,omitempty"`
}

// GraphNode is a node instance placed in a graph. IsDefault marks the
// unique OnEvaluate entry node, which may not be deleted.
type GraphNode struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge connects a source pin to a target pin. Execution-typed inputs
// may have multiple incoming edges; every other input at most one.
type Edge struct {
	ID           string         `json:"id"`
	Source       string         `json:"source"`
	SourceHandle string         `json:"source_handle"`
	Target       string         `json:"target"`
	TargetHandle string         `json:"target_handle"`
	Animated     bool           `json:"animated,omitempty"`
	Style        map[string]any `json:"style,omitempty"`
}

// Graph is a persisted visual program. It is stored as a single JSON
// blob per nodeset; the active nodeset is identified by a setting.
type Graph struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Nodes []*GraphNode `json:"nodes"`
	Edges []*Edge      `json:"edges"`
}

// Validate checks the structural invariants that do not require the
// node registry: unique node ids and edges with existing endpoints.
// Type checking happens at compile time.
func (g *Graph) Validate() error {
	if g.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}

	nodeIDs := make(map[string]bool, len(g.Nodes))
	for _, node := range g.Nodes {
		if node.ID == "" {
			return &ValidationError{Field: "nodes", Message: "node ID is required"}
		}
		if node.Type == "" {
			return &ValidationError{Field: "nodes", Message: fmt.Sprintf("node %s has no type", node.ID)}
		}
		if nodeIDs[node.ID] {
			return &ValidationError{Field: "nodes", Message: fmt.Sprintf("duplicate node ID: %s", node.ID)}
		}
		nodeIDs[node.ID] = true
	}

	for _, edge := range g.Edges {
		if edge.ID == "" {
			return &ValidationError{Field: "edges", Message: "edge ID is required"}
		}
		if !nodeIDs[edge.Source] {
			return &ValidationError{Field: "edges", Message: fmt.Sprintf("edge %s references non-existent source node: %s", edge.ID, edge.Source)}
		}
		if !nodeIDs[edge.Target] {
			return &ValidationError{Field: "edges", Message: fmt.Sprintf("edge %s references non-existent target node: %s", edge.ID, edge.Target)}
		}
	}

	return nil
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(nodeID string) (*GraphNode, error) {
	for _, node := range g.Nodes {
		if node.ID == nodeID {
			return node, nil
		}
	}
	return nil, ErrNodeNotFound
}

// EntryNode returns the node marked as the evaluation entry point.
func (g *Graph) EntryNode() (*GraphNode, error) {
	var entry *GraphNode
	for _, node := range g.Nodes {
		if node.Data.IsDefault {
			if entry != nil {
				return nil, &ValidationError{Field: "nodes", Message: "multiple entry nodes marked as default"}
			}
			entry = node
		}
	}
	if entry == nil {
		return nil, &ValidationError{Field: "nodes", Message: "no entry node present"}
	}
	return entry, nil
}

// Clone creates a deep copy of the graph.
func (g *Graph) Clone() (*Graph, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}

	var clone Graph
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, err
	}

	return &clone, nil
}
