package memory

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rand/loop/types"
)

func TestNewNodeDefaults(t *testing.T) {
	node := NewNode(NodeFact, "the scheduler runs every hour")

	assert.NoError(t, node.ID.Validate())
	assert.Equal(t, NodeFact, node.NodeType)
	assert.Equal(t, TierTask, node.Tier)
	assert.Equal(t, 1.0, node.Confidence)
	assert.Equal(t, uint64(0), node.AccessCount)
	assert.False(t, node.CreatedAt.IsZero())
	assert.Equal(t, node.CreatedAt, node.LastAccessed)
	assert.NoError(t, node.Validate())
}

func TestNodeBuilders(t *testing.T) {
	node := NewNode(NodeDecision, "use sqlite for persistence").
		WithTier(TierSession).
		WithConfidence(0.8).
		WithSubtype("architecture").
		WithMetadata("author", "planner")

	assert.Equal(t, TierSession, node.Tier)
	assert.Equal(t, 0.8, node.Confidence)
	assert.Equal(t, "architecture", node.Subtype)
	assert.Equal(t, "planner", node.Metadata["author"])
}

func TestWithConfidenceClamps(t *testing.T) {
	assert.Equal(t, 1.0, NewNode(NodeFact, "x").WithConfidence(2.5).Confidence)
	assert.Equal(t, 0.0, NewNode(NodeFact, "x").WithConfidence(-0.5).Confidence)
}

func TestSetConfidenceRejectsOutOfRange(t *testing.T) {
	node := NewNode(NodeFact, "x")

	require.NoError(t, node.SetConfidence(0.5))
	assert.Equal(t, 0.5, node.Confidence)

	err := node.SetConfidence(1.1)
	assert.Equal(t, ErrCodeValidationFailed, types.ErrorCodeOf(err))
	assert.Equal(t, 0.5, node.Confidence, "rejected value must not stick")

	assert.Error(t, node.SetConfidence(-0.1))
}

func TestNodeRecordAccess(t *testing.T) {
	node := NewNode(NodeExperience, "tests passed after fix")
	before := node.LastAccessed

	time.Sleep(time.Millisecond)
	node.RecordAccess()
	node.RecordAccess()

	assert.Equal(t, uint64(2), node.AccessCount)
	assert.True(t, node.LastAccessed.After(before))
}

func TestIsDecayed(t *testing.T) {
	node := NewNode(NodeFact, "x").WithConfidence(0.3)
	assert.True(t, node.IsDecayed(0.5))
	assert.False(t, node.IsDecayed(0.3), "floor comparison is strict")
	assert.False(t, node.IsDecayed(0.1))
}

func TestNodeClone(t *testing.T) {
	node := NewNode(NodeFact, "original").WithMetadata("k", "v")
	clone := node.Clone()

	clone.Content = "changed"
	clone.Metadata["k"] = "other"

	assert.Equal(t, "original", node.Content)
	assert.Equal(t, "v", node.Metadata["k"])
}

func TestNodeValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Node)
	}{
		{"invalid id", func(n *Node) { n.ID = "nope" }},
		{"unknown type", func(n *Node) { n.NodeType = NodeType(99) }},
		{"unknown tier", func(n *Node) { n.Tier = Tier(99) }},
		{"confidence above one", func(n *Node) { n.Confidence = 1.5 }},
		{"negative confidence", func(n *Node) { n.Confidence = -0.2 }},
		{"invalid utf8 content", func(n *Node) { n.Content = string([]byte{0xff, 0xfe}) }},
		{"zero created_at", func(n *Node) { n.CreatedAt = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := NewNode(NodeFact, "valid content")
			tt.mutate(node)
			err := node.Validate()
			assert.Equal(t, ErrCodeValidationFailed, types.ErrorCodeOf(err))
		})
	}
}

// Content is an arbitrary payload; the empty string is a legal node.
func TestNodeValidateAllowsEmptyContent(t *testing.T) {
	node := NewNode(NodeFact, "")
	assert.NoError(t, node.Validate())
}

func TestNodeJSONRoundTrip(t *testing.T) {
	node := NewNode(NodeSnippet, "func main() {}").
		WithTier(TierLongTerm).
		WithConfidence(0.75).
		WithSubtype("go").
		WithMetadata("source", "repl")
	node.RecordAccess()

	data, err := json.Marshal(node)
	require.NoError(t, err)

	var decoded Node
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, node.ID, decoded.ID)
	assert.Equal(t, node.NodeType, decoded.NodeType)
	assert.Equal(t, node.Subtype, decoded.Subtype)
	assert.Equal(t, node.Content, decoded.Content)
	assert.Equal(t, node.Tier, decoded.Tier)
	assert.Equal(t, node.Confidence, decoded.Confidence)
	assert.Equal(t, node.AccessCount, decoded.AccessCount)
	assert.True(t, node.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, "repl", decoded.Metadata["source"])
}

func TestNodeJSONDecodeErrors(t *testing.T) {
	valid := NewNode(NodeFact, "content")
	validJSON, err := json.Marshal(valid)
	require.NoError(t, err)

	// a top-level syntax error is reported by encoding/json itself,
	// before the custom decoder runs
	var node Node
	assert.Error(t, json.Unmarshal([]byte(`{not json`), &node))

	tests := []struct {
		name    string
		payload string
	}{
		{"missing id", stripField(t, validJSON, "id")},
		{"missing node_type", stripField(t, validJSON, "node_type")},
		{"missing content", stripField(t, validJSON, "content")},
		{"missing tier", stripField(t, validJSON, "tier")},
		{"missing confidence", stripField(t, validJSON, "confidence")},
		{"missing created_at", stripField(t, validJSON, "created_at")},
		{"unknown enum", replaceField(t, validJSON, "node_type", "opinion")},
		{"confidence out of range", replaceField(t, validJSON, "confidence", 3.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var node Node
			err := json.Unmarshal([]byte(tt.payload), &node)
			assert.Equal(t, ErrCodeValidationFailed, types.ErrorCodeOf(err))
		})
	}
}

func TestNodeJSONIgnoresUnknownFields(t *testing.T) {
	valid := NewNode(NodeFact, "content")
	payload := replaceField(t, mustMarshal(t, valid), "extra_field", "surprise")

	var node Node
	require.NoError(t, json.Unmarshal([]byte(payload), &node))
	assert.Equal(t, valid.ID, node.ID)
}

func TestNodeJSONDefaultsLastAccessed(t *testing.T) {
	valid := NewNode(NodeFact, "content")
	payload := stripField(t, mustMarshal(t, valid), "last_accessed")

	var node Node
	require.NoError(t, json.Unmarshal([]byte(payload), &node))
	assert.True(t, node.LastAccessed.Equal(node.CreatedAt))
}

// stripField removes a top-level key from a JSON object.
func stripField(t *testing.T, data []byte, field string) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))
	delete(m, field)
	out, err := json.Marshal(m)
	require.NoError(t, err)
	return string(out)
}

// replaceField sets a top-level key in a JSON object.
func replaceField(t *testing.T, data []byte, field string, value any) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))
	raw, err := json.Marshal(value)
	require.NoError(t, err)
	m[field] = raw
	out, err := json.Marshal(m)
	require.NoError(t, err)
	return string(out)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
