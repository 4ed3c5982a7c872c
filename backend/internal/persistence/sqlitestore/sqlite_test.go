package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"thinkflow/backend/internal/persistence"
	"thinkflow/backend/internal/state"
	apperrors "thinkflow/backend/pkg/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "thinkflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDoc(id string, updated time.Time) *persistence.Document {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &persistence.Document{
		Map: persistence.MapRecord{ID: id, Title: "Map " + id, Description: "desc", CreatedAt: ts, UpdatedAt: updated},
		Snapshot: &state.Snapshot{
			Nodes: []*state.Node{
				{ID: "r", Title: "Root", Color: "#ffffff", IsRoot: true, ParentIDs: []string{}, ChildrenIDs: []string{"c"}, ConversationID: "conv", CreatedAt: ts, UpdatedAt: ts},
				{ID: "c", Title: "Child", Color: "#ffffff", Position: state.Position{X: 1.5, Y: -2}, ParentIDs: []string{"r"}, ChildrenIDs: []string{}, CreatedAt: ts, UpdatedAt: ts},
			},
			Relations: []*state.Relation{
				{ID: "rel", SourceID: "r", TargetID: "c", Type: state.RelationParentChild, CreatedAt: ts},
			},
			Conversations: []*state.Conversation{
				{ID: "conv", NodeID: "r", Messages: []state.Message{{ID: "m", Role: state.RoleUser, Content: "hi", Timestamp: ts}}},
			},
		},
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	doc := sampleDoc("a", time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC))

	require.NoError(t, s.Save(ctx, doc))
	got, err := s.Load(ctx, "a")
	require.NoError(t, err)

	assert.Equal(t, doc.Map, got.Map)
	assert.Equal(t, doc.Snapshot, got.Snapshot)
}

func TestStore_SaveUpserts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	doc := sampleDoc("a", time.Now().UTC())
	require.NoError(t, s.Save(ctx, doc))

	doc.Map.Title = "Renamed"
	doc.Snapshot.Nodes = doc.Snapshot.Nodes[:1]
	require.NoError(t, s.Save(ctx, doc))

	got, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Map.Title)
	assert.Len(t, got.Snapshot.Nodes, 1)

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestStore_ListOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, sampleDoc("old", base)))
	require.NoError(t, s.Save(ctx, sampleDoc("new", base.Add(90*time.Minute))))

	records, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "new", records[0].ID)
	assert.Equal(t, "old", records[1].ID)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Load(ctx, "missing")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeReference))
	assert.True(t, apperrors.IsErrorType(s.Delete(ctx, "missing"), apperrors.ErrorTypeReference))
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Save(ctx, sampleDoc("a", time.Now().UTC())))

	require.NoError(t, s.Delete(ctx, "a"))

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleDoc("a", time.Now().UTC())))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Load(ctx, "a")
	assert.NoError(t, err)
}

func TestStore_ImplementsBackend(t *testing.T) {
	var _ persistence.Backend = openTestStore(t)
}
