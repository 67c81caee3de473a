package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() *Graph {
	enumValue := "colder"
	return &Graph{
		ID:   "ns-1",
		Name: "sample",
		Nodes: []*GraphNode{
			{ID: "entry", Type: "on_evaluate", Position: Position{X: 10, Y: 20}, Data: NodeData{IsDefault: true}},
			{ID: "mode", Type: "plan_mode", Position: Position{X: 40, Y: 20}, Data: NodeData{EnumValue: &enumValue}},
			{ID: "temp", Type: "float", Position: Position{X: 40, Y: 60}, Data: NodeData{PrimitiveValue: 21.5}},
		},
		Edges: []*Edge{
			{ID: "e1", Source: "entry", SourceHandle: "exec_out", Target: "mode", TargetHandle: "exec_in"},
		},
	}
}

func TestGraphValidate(t *testing.T) {
	t.Parallel()

	t.Run("valid graph", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, sampleGraph().Validate())
	})

	t.Run("duplicate node id", func(t *testing.T) {
		t.Parallel()
		g := sampleGraph()
		g.Nodes = append(g.Nodes, &GraphNode{ID: "entry", Type: "float"})
		assert.Error(t, g.Validate())
	})

	t.Run("dangling edge source", func(t *testing.T) {
		t.Parallel()
		g := sampleGraph()
		g.Edges = append(g.Edges, &Edge{ID: "e2", Source: "ghost", Target: "mode", TargetHandle: "exec_in"})
		assert.Error(t, g.Validate())
	})

	t.Run("missing name", func(t *testing.T) {
		t.Parallel()
		g := sampleGraph()
		g.Name = ""
		assert.Error(t, g.Validate())
	})
}

// Saving, loading and saving a nodeset again must produce identical
// JSON so the editor never sees phantom diffs.
func TestGraphJSONRoundTrip(t *testing.T) {
	t.Parallel()

	first, err := json.Marshal(sampleGraph())
	require.NoError(t, err)

	var loaded Graph
	require.NoError(t, json.Unmarshal(first, &loaded))

	second, err := json.Marshal(&loaded)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestGraphEntryNode(t *testing.T) {
	t.Parallel()

	g := sampleGraph()
	entry, err := g.EntryNode()
	require.NoError(t, err)
	assert.Equal(t, "entry", entry.ID)

	g.Nodes[0].Data.IsDefault = false
	_, err = g.EntryNode()
	assert.Error(t, err)
}

func TestGraphClone(t *testing.T) {
	t.Parallel()

	g := sampleGraph()
	clone, err := g.Clone()
	require.NoError(t, err)

	clone.Nodes[0].ID = "changed"
	assert.Equal(t, "entry", g.Nodes[0].ID)
}
