package graph

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"thinkflow/backend/internal/state"
)

// newTestStore returns a store with sequential ids and a fixed clock
func newTestStore(opts ...Option) *Store {
	seq := 0
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	defaults := []Option{
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		}),
		WithClock(func() time.Time { return base }),
	}
	return NewStore(append(defaults, opts...)...)
}

// assertConsistent checks parent/child symmetry against parent-child
// relations and that no relation references a missing node
func assertConsistent(t *testing.T, s *Store) {
	t.Helper()

	pairs := make(map[[2]string]int)
	for _, r := range s.Relations() {
		_, srcOK := s.Node(r.SourceID)
		_, dstOK := s.Node(r.TargetID)
		require.True(t, srcOK, "relation %s has dangling source %s", r.ID, r.SourceID)
		require.True(t, dstOK, "relation %s has dangling target %s", r.ID, r.TargetID)
		if r.Type == state.RelationParentChild {
			pairs[[2]string{r.SourceID, r.TargetID}]++
		}
	}

	links := 0
	for _, n := range s.Nodes() {
		for _, c := range n.ChildrenIDs {
			child, ok := s.Node(c)
			require.True(t, ok, "node %s lists missing child %s", n.ID, c)
			assert.Contains(t, child.ParentIDs, n.ID)
			assert.Equal(t, 1, pairs[[2]string{n.ID, c}], "link %s->%s needs exactly one relation", n.ID, c)
			links++
		}
		for _, p := range n.ParentIDs {
			parent, ok := s.Node(p)
			require.True(t, ok, "node %s lists missing parent %s", n.ID, p)
			assert.Contains(t, parent.ChildrenIDs, n.ID)
		}
		assert.False(t, s.IsAncestor(n.ID, n.ID), "node %s is its own ancestor", n.ID)
	}
	assert.Equal(t, len(pairs), links)
}

func mustChild(t *testing.T, s *Store, parentID, title string) string {
	t.Helper()
	id, err := s.CreateChildNode(parentID, title)
	require.NoError(t, err)
	return id
}

func say(t *testing.T, s *Store, nodeID string, texts ...string) {
	t.Helper()
	msgs := make([]state.Message, 0, len(texts))
	for _, txt := range texts {
		msgs = append(msgs, state.Message{Role: state.RoleUser, Content: txt})
	}
	require.NoError(t, s.AppendMessages(nodeID, msgs...))
}

func contents(msgs []state.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}
