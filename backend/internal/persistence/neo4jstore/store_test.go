package neo4jstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"thinkflow/backend/internal/persistence"
	"thinkflow/backend/internal/state"
	apperrors "thinkflow/backend/pkg/errors"
)

func sampleSnapshot() *state.Snapshot {
	ts := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	return &state.Snapshot{
		Nodes: []*state.Node{
			{ID: "g", Title: "Group", Color: "#ffffff", IsRoot: true, IsComposite: true, Expanded: true,
				ParentIDs: []string{}, ChildrenIDs: []string{"m"}, CompositeChildren: []string{"m"},
				Tags: []string{"idea"}, CreatedAt: ts, UpdatedAt: ts},
			{ID: "m", Title: "Member", Summary: "s", Color: "#e3f2fd", Position: state.Position{X: 200, Y: -12.5},
				ParentIDs: []string{"g"}, ChildrenIDs: []string{}, CompositeParent: "g", ConversationID: "c",
				CreatedAt: ts, UpdatedAt: ts},
		},
		Relations: []*state.Relation{
			{ID: "r1", SourceID: "g", TargetID: "m", Type: state.RelationParentChild, CreatedAt: ts},
			{ID: "r2", SourceID: "m", TargetID: "g", Type: state.RelationReferences, Description: "cites", CreatedAt: ts},
		},
		Conversations: []*state.Conversation{
			{ID: "c", NodeID: "m", Messages: []state.Message{
				{ID: "1", Role: state.RoleUser, Content: "why?", Timestamp: ts},
				{ID: "2", Role: state.RoleAssistant, Content: "because", Timestamp: ts},
			}},
		},
	}
}

// asReturned mimics how the driver hands back stored properties: lists
// arrive as []any and maps as map[string]any.
func asReturned(params []any) []map[string]any {
	out := make([]map[string]any, 0, len(params))
	for _, p := range params {
		m := map[string]any{}
		for k, v := range p.(map[string]any) {
			if list, ok := v.([]string); ok {
				items := make([]any, len(list))
				for i, s := range list {
					items[i] = s
				}
				v = items
			}
			m[k] = v
		}
		out = append(out, m)
	}
	return out
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	snap := sampleSnapshot()

	nodes, relations, conversations, err := toParams(snap)
	require.NoError(t, err)

	gotNodes, err := nodesFrom(asReturned(nodes))
	require.NoError(t, err)
	gotConvs, err := conversationsFrom(asReturned(conversations))
	require.NoError(t, err)

	assert.Equal(t, snap.Nodes, gotNodes)
	assert.Equal(t, snap.Relations, relationsFrom(asReturned(relations)))
	assert.Equal(t, snap.Conversations, gotConvs)
}

func TestToParams_FlattensForNeo4j(t *testing.T) {
	nodes, _, conversations, err := toParams(sampleSnapshot())
	require.NoError(t, err)

	first := nodes[0].(map[string]any)
	assert.Equal(t, 0, first["ordinal"])
	assert.Equal(t, "2025-05-01T09:30:00Z", first["created_at"])
	assert.IsType(t, "", conversations[0].(map[string]any)["messages"])

	for _, n := range nodes {
		for k, v := range n.(map[string]any) {
			assert.NotNil(t, v, "property %s must not be nil", k)
			_, nested := v.(map[string]any)
			assert.False(t, nested, "property %s must not be a map", k)
		}
	}
}

func TestNodesFrom_Defaults(t *testing.T) {
	got, err := nodesFrom([]map[string]any{{"id": "x"}, {"title": "no id"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, state.DefaultNodeColor, got[0].Color)
	assert.Equal(t, []string{}, got[0].ParentIDs)
	assert.Nil(t, got[0].Tags)
}

// TestStore_Integration requires a running Neo4j instance.
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD environment variables.
func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		t.Skip("NEO4J_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := Connect(ctx, uri, os.Getenv("NEO4J_USER"), os.Getenv("NEO4J_PASSWORD"))
	if err != nil {
		t.Skipf("Neo4j unreachable: %v", err)
	}
	defer store.Close()
	require.NoError(t, store.EnsureSchema(ctx))

	mapID := "test-map-" + uuid.New().String()
	ts := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	doc := &persistence.Document{
		Map:      persistence.MapRecord{ID: mapID, Title: "Integration", CreatedAt: ts, UpdatedAt: ts},
		Snapshot: sampleSnapshot(),
	}
	defer store.Delete(context.Background(), mapID)

	require.NoError(t, store.Save(ctx, doc))
	// saving twice replaces rather than duplicates
	require.NoError(t, store.Save(ctx, doc))

	got, err := store.Load(ctx, mapID)
	require.NoError(t, err)
	assert.Equal(t, doc.Map, got.Map)
	assert.Equal(t, doc.Snapshot, got.Snapshot)

	records, err := store.List(ctx)
	require.NoError(t, err)
	var found bool
	for _, r := range records {
		found = found || r.ID == mapID
	}
	assert.True(t, found)

	require.NoError(t, store.Delete(ctx, mapID))
	_, err = store.Load(ctx, mapID)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeReference))
}
