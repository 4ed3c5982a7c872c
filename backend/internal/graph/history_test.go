package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"thinkflow/backend/internal/state"
)

func TestHistory_PushUndoRedo(t *testing.T) {
	h := NewHistory(10)
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())
	assert.Equal(t, -1, h.Index())

	h.Push(state.HistoryRecord{ID: "1"})
	h.Push(state.HistoryRecord{ID: "2"})

	rec, ok := h.Undo()
	require.True(t, ok)
	assert.Equal(t, "2", rec.ID)
	assert.True(t, h.CanRedo())

	rec, ok = h.Redo()
	require.True(t, ok)
	assert.Equal(t, "2", rec.ID)
	_, ok = h.Redo()
	assert.False(t, ok)
}

func TestHistory_PushTruncatesRedoBranch(t *testing.T) {
	h := NewHistory(10)
	h.Push(state.HistoryRecord{ID: "1"})
	h.Push(state.HistoryRecord{ID: "2"})
	h.Undo()

	h.Push(state.HistoryRecord{ID: "3"})

	assert.False(t, h.CanRedo())
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, "3", h.Records()[1].ID)
}

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Push(state.HistoryRecord{ID: fmt.Sprint(i)})
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 2, h.Index())
	ids := []string{}
	for _, r := range h.Records() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"3", "4", "5"}, ids)

	for i := 0; i < 3; i++ {
		_, ok := h.Undo()
		assert.True(t, ok)
	}
	_, ok := h.Undo()
	assert.False(t, ok)
}

func TestHistory_RecordsOmitSnapshots(t *testing.T) {
	h := NewHistory(2)
	h.Push(state.HistoryRecord{ID: "1", Before: &state.Snapshot{}, After: &state.Snapshot{}})

	recs := h.Records()
	assert.Nil(t, recs[0].Before)
	assert.Nil(t, recs[0].After)
}

func TestStore_UndoRedoInverse(t *testing.T) {
	tests := []struct {
		name string
		op   func(t *testing.T, s *Store, ids map[string]string)
	}{
		{"create root", func(t *testing.T, s *Store, _ map[string]string) { s.CreateRootNode("new") }},
		{"create child", func(t *testing.T, s *Store, ids map[string]string) { mustChild(t, s, ids["a"], "new") }},
		{"update node", func(t *testing.T, s *Store, ids map[string]string) {
			title := "renamed"
			require.NoError(t, s.UpdateNode(ids["b"], NodeUpdate{Title: &title}))
		}},
		{"move node", func(t *testing.T, s *Store, ids map[string]string) {
			require.NoError(t, s.MoveNode(ids["b"], state.Position{X: 9, Y: 9}))
		}},
		{"delete node", func(t *testing.T, s *Store, ids map[string]string) { require.NoError(t, s.DeleteNode(ids["a"])) }},
		{"add relation", func(t *testing.T, s *Store, ids map[string]string) {
			_, err := s.AddRelation(ids["c"], ids["b"], state.RelationPrerequisite, "")
			require.NoError(t, err)
		}},
		{"delete relation", func(t *testing.T, s *Store, ids map[string]string) {
			require.NoError(t, s.DeleteRelation(s.Relations()[0].ID))
		}},
		{"append messages", func(t *testing.T, s *Store, ids map[string]string) { say(t, s, ids["c"], "hi") }},
		{"create composite", func(t *testing.T, s *Store, ids map[string]string) {
			_, err := s.CreateCompositeNode("group", []string{ids["b"], ids["c"]})
			require.NoError(t, err)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore()
			ids := map[string]string{"a": s.CreateRootNode("A")}
			ids["b"] = mustChild(t, s, ids["a"], "B")
			ids["c"] = s.CreateRootNode("C")
			say(t, s, ids["b"], "existing")

			before := s.Export()
			tt.op(t, s, ids)
			after := s.Export()
			require.NotEqual(t, before, after)

			require.True(t, s.Undo())
			assert.Equal(t, before, s.Export())
			assertConsistent(t, s)

			require.True(t, s.Redo())
			assert.Equal(t, after, s.Export())
			assertConsistent(t, s)
		})
	}
}

func TestStore_UndoPastStartAndNewActionClearsRedo(t *testing.T) {
	s := newTestStore(WithHistory(NewHistory(3)))
	for i := 0; i < 5; i++ {
		s.CreateRootNode(fmt.Sprintf("n%d", i))
	}
	assert.Equal(t, 3, s.History().Len())

	for i := 0; i < 3; i++ {
		require.True(t, s.Undo())
	}
	assert.False(t, s.Undo())
	assert.Equal(t, 2, s.NodeCount(), "only the last three creations are reversible")

	s.CreateRootNode("fresh")
	assert.False(t, s.Redo())
	assert.Equal(t, 3, s.NodeCount())
}

func TestStore_UndoRestoresRelationIndex(t *testing.T) {
	s := newTestStore()
	x := s.CreateRootNode("X")
	y := s.CreateRootNode("Y")
	_, err := s.AddRelation(x, y, state.RelationSupports, "")
	require.NoError(t, err)

	require.True(t, s.Undo())
	assert.Empty(t, s.RelationsForNode(y))

	require.True(t, s.Redo())
	assert.Len(t, s.RelationsForNode(y), 1)
}
