package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"thinkflow/backend/internal/graph"
	"thinkflow/backend/internal/persistence"
	"thinkflow/backend/internal/state"
	"thinkflow/backend/internal/workspace"
)

func TestSeed(t *testing.T) {
	ctx := context.Background()
	backend := persistence.NewMemory()
	ws := workspace.New(backend)

	record, err := seed(ctx, ws, demoTitle)
	require.NoError(t, err)

	doc, err := backend.Load(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, demoTitle, doc.Map.Title)
	assert.Len(t, doc.Snapshot.Nodes, 8)
	assert.Len(t, doc.Snapshot.Relations, 9)
	assert.Len(t, doc.Snapshot.Conversations, 2)

	found, ok, err := findByTitle(ctx, ws, demoTitle)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, record.ID, found.ID)

	_, ok, err = findByTitle(ctx, ws, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSeed_RecommendationContext(t *testing.T) {
	ctx := context.Background()
	ws := workspace.New(nil)
	record, err := seed(ctx, ws, demoTitle)
	require.NoError(t, err)

	err = ws.View(ctx, record.ID, func(s *graph.Store) error {
		var verdict string
		for _, n := range s.Nodes() {
			if n.Title == "Recommendation" {
				verdict = n.ID
			}
		}
		require.NotEmpty(t, verdict)

		msgs := s.Context(verdict)
		require.NotEmpty(t, msgs)
		assert.Equal(t, state.RoleSystem, msgs[0].Role)
		assert.Contains(t, msgs[0].Content, "Pilot study results")
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteByTitle(t *testing.T) {
	ctx := context.Background()
	ws := workspace.New(nil)

	_, err := seed(ctx, ws, demoTitle)
	require.NoError(t, err)
	_, err = seed(ctx, ws, demoTitle)
	require.NoError(t, err)
	other, err := ws.Create(ctx, "keep me", "")
	require.NoError(t, err)

	removed, err := deleteByTitle(ctx, ws, demoTitle)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	records, err := ws.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, other.ID, records[0].ID)
}
