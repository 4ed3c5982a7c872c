package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"thinkflow/backend/internal/persistence"
	"thinkflow/backend/internal/state"
)

func TestMarkdown(t *testing.T) {
	snap := &state.Snapshot{
		Nodes: []*state.Node{
			{ID: "r", Title: "Root", IsRoot: true, ChildrenIDs: []string{"a", "b"}},
			{ID: "a", Title: "Alpha", ParentIDs: []string{"r"}, ChildrenIDs: []string{"a1"}},
			{ID: "a1", Title: "Deep", ParentIDs: []string{"a"}},
			{ID: "b", Title: "Beta", ParentIDs: []string{"r"}},
			{ID: "loose", Title: "Loose"},
		},
		Conversations: []*state.Conversation{
			{NodeID: "a", Messages: []state.Message{
				{Role: state.RoleUser, Content: "what?"},
				{Role: state.RoleAssistant, Content: "this"},
			}},
		},
	}

	got := Markdown(persistence.MapRecord{Title: "Plan", Description: "Quarterly thinking"}, snap)

	want := strings.Join([]string{
		"# Plan",
		"",
		"Quarterly thinking",
		"",
		"- **Root**",
		"  - **Alpha**",
		"    user: what?",
		"    assistant: this",
		"    - **Deep**",
		"  - **Beta**",
		"",
		"- **Loose**",
		"",
		"",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestMarkdown_NoDescriptionAndSharedChild(t *testing.T) {
	snap := &state.Snapshot{
		Nodes: []*state.Node{
			{ID: "p1", Title: "P1", IsRoot: true, ChildrenIDs: []string{"c"}},
			{ID: "p2", Title: "P2", IsRoot: true, ChildrenIDs: []string{"c"}},
			{ID: "c", Title: "Shared", ParentIDs: []string{"p1", "p2"}},
		},
	}

	got := Markdown(persistence.MapRecord{Title: "T"}, snap)

	assert.True(t, strings.HasPrefix(got, "# T\n\n- **P1**"))
	assert.Equal(t, 1, strings.Count(got, "Shared"))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 100))
	assert.Equal(t, "one line", Preview("one\n  line", 100))

	long := strings.Repeat("思", 120)
	got := Preview(long, 100)
	assert.Equal(t, strings.Repeat("思", 100)+"...", got)
}
