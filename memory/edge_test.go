package memory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rand/loop/types"
)

func TestNewHyperEdge(t *testing.T) {
	edge, err := NewHyperEdge("relates_to")
	require.NoError(t, err)

	assert.NoError(t, edge.ID.Validate())
	assert.Equal(t, "relates_to", edge.EdgeType)
	assert.Equal(t, 1.0, edge.Weight)
	assert.Empty(t, edge.NodeIDs)
	assert.False(t, edge.CreatedAt.IsZero())
}

func TestNewHyperEdgeValidation(t *testing.T) {
	_, err := NewHyperEdge("")
	assert.Equal(t, ErrCodeValidationFailed, types.ErrorCodeOf(err))

	_, err = NewHyperEdge(string([]byte{0xff, 0xfe}))
	assert.Equal(t, ErrCodeValidationFailed, types.ErrorCodeOf(err))
}

func TestBinaryEdge(t *testing.T) {
	subject := types.NewID()
	object := types.NewID()

	edge, err := BinaryEdge("depends_on", subject, object, "runtime dependency")
	require.NoError(t, err)

	require.Len(t, edge.NodeIDs, 2)
	assert.Equal(t, subject, edge.NodeIDs[0], "subject comes first")
	assert.Equal(t, object, edge.NodeIDs[1])
	assert.Equal(t, "runtime dependency", edge.Label)
	assert.Equal(t, 1.0, edge.Weight)
}

func TestEdgeMembership(t *testing.T) {
	edge, err := NewHyperEdge("groups")
	require.NoError(t, err)

	a, b, c := types.NewID(), types.NewID(), types.NewID()
	edge.AddMember(a)
	edge.AddMember(b)

	assert.True(t, edge.Contains(a))
	assert.True(t, edge.Contains(b))
	assert.False(t, edge.Contains(c))
	assert.Equal(t, []types.ID{a, b}, edge.NodeIDs, "membership order is preserved")
}

func TestEdgeClone(t *testing.T) {
	edge, err := BinaryEdge("links", types.NewID(), types.NewID(), "")
	require.NoError(t, err)

	clone := edge.Clone()
	clone.NodeIDs[0] = types.NewID()
	clone.Weight = 0.5

	assert.NotEqual(t, clone.NodeIDs[0], edge.NodeIDs[0])
	assert.Equal(t, 1.0, edge.Weight)
}

func TestEdgeValidate(t *testing.T) {
	valid := func() *HyperEdge {
		edge, err := BinaryEdge("links", types.NewID(), types.NewID(), "label")
		require.NoError(t, err)
		return edge
	}

	tests := []struct {
		name   string
		mutate func(*HyperEdge)
	}{
		{"invalid id", func(e *HyperEdge) { e.ID = "bad" }},
		{"empty type", func(e *HyperEdge) { e.EdgeType = "" }},
		{"no members", func(e *HyperEdge) { e.NodeIDs = nil }},
		{"negative weight", func(e *HyperEdge) { e.Weight = -1 }},
		{"invalid member id", func(e *HyperEdge) { e.NodeIDs[0] = "bad" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edge := valid()
			tt.mutate(edge)
			err := edge.Validate()
			assert.Equal(t, ErrCodeValidationFailed, types.ErrorCodeOf(err))
		})
	}

	assert.NoError(t, valid().Validate())
}

func TestEdgeJSONRoundTrip(t *testing.T) {
	edge, err := BinaryEdge("depends_on", types.NewID(), types.NewID(), "link")
	require.NoError(t, err)
	edge.Weight = 0.4

	data, err := json.Marshal(edge)
	require.NoError(t, err)

	var decoded HyperEdge
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, edge.ID, decoded.ID)
	assert.Equal(t, edge.EdgeType, decoded.EdgeType)
	assert.Equal(t, edge.Label, decoded.Label)
	assert.Equal(t, edge.Weight, decoded.Weight)
	assert.Equal(t, edge.NodeIDs, decoded.NodeIDs)
}

func TestEdgeJSONWeightDefault(t *testing.T) {
	edge, err := BinaryEdge("links", types.NewID(), types.NewID(), "")
	require.NoError(t, err)

	payload := stripField(t, mustMarshal(t, edge), "weight")

	var decoded HyperEdge
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Equal(t, 1.0, decoded.Weight)
}

func TestEdgeJSONDecodeErrors(t *testing.T) {
	edge, err := BinaryEdge("links", types.NewID(), types.NewID(), "")
	require.NoError(t, err)
	validJSON := mustMarshal(t, edge)

	tests := []struct {
		name    string
		payload string
	}{
		{"missing id", stripField(t, validJSON, "id")},
		{"missing edge_type", stripField(t, validJSON, "edge_type")},
		{"missing created_at", stripField(t, validJSON, "created_at")},
		{"empty membership", replaceField(t, validJSON, "node_ids", []string{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var decoded HyperEdge
			err := json.Unmarshal([]byte(tt.payload), &decoded)
			assert.Equal(t, ErrCodeValidationFailed, types.ErrorCodeOf(err))
		})
	}
}
