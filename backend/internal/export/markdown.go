package export

import (
	"strings"

	"thinkflow/backend/internal/constants"
	"thinkflow/backend/internal/persistence"
	"thinkflow/backend/internal/state"
)

// Markdown renders a mind map as a heading, its description and one nested
// bullet list per root node. Each node lists previews of its messages;
// children are indented two spaces per level. A node reachable from several
// parents is rendered once, under the first parent visited.
func Markdown(record persistence.MapRecord, snap *state.Snapshot) string {
	nodes := make(map[string]*state.Node, len(snap.Nodes))
	for _, n := range snap.Nodes {
		nodes[n.ID] = n
	}
	convs := make(map[string]*state.Conversation, len(snap.Conversations))
	for _, c := range snap.Conversations {
		convs[c.NodeID] = c
	}

	var b strings.Builder
	b.WriteString("# " + record.Title + "\n\n")
	if record.Description != "" {
		b.WriteString(record.Description + "\n\n")
	}

	visited := make(map[string]bool, len(nodes))
	var render func(n *state.Node, level int)
	render = func(n *state.Node, level int) {
		if visited[n.ID] {
			return
		}
		visited[n.ID] = true

		indent := strings.Repeat("  ", level)
		b.WriteString(indent + "- **" + n.Title + "**\n")
		if c, ok := convs[n.ID]; ok {
			for _, m := range c.Messages {
				if m.Role == state.RoleSystem {
					continue
				}
				b.WriteString(indent + "  " + string(m.Role) + ": " + Preview(m.Content, constants.MarkdownPreviewRunes) + "\n")
			}
		}
		for _, cid := range n.ChildrenIDs {
			if child, ok := nodes[cid]; ok {
				render(child, level+1)
			}
		}
	}

	for _, n := range snap.Nodes {
		if n.IsRoot || len(n.ParentIDs) == 0 {
			if visited[n.ID] {
				continue
			}
			render(n, 0)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Preview returns the first limit runes of s on one line, with "..." appended
// when s was cut
func Preview(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
