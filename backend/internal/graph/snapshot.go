package graph

import (
	"go.uber.org/zap"
	"thinkflow/backend/internal/state"
	apperrors "thinkflow/backend/pkg/errors"
)

// Export captures the whole graph as a deep-copied snapshot. Nodes and
// relations keep creation order; conversations follow their node's order.
func (s *Store) Export() *state.Snapshot {
	snap := &state.Snapshot{
		Nodes:         make([]*state.Node, 0, len(s.nodeOrder)),
		Relations:     make([]*state.Relation, 0, len(s.relationOrder)),
		Conversations: make([]*state.Conversation, 0, len(s.conversations)),
	}
	for _, id := range s.nodeOrder {
		snap.Nodes = append(snap.Nodes, s.nodes[id].Clone())
		if c, ok := s.conversations[id]; ok {
			snap.Conversations = append(snap.Conversations, c.Clone())
		}
	}
	for _, id := range s.relationOrder {
		snap.Relations = append(snap.Relations, s.relations[id].Clone())
	}
	return snap
}

// restore replaces the graph with a copy of snap. snap is assumed consistent
// (it came from Export or was sanitized by Import); no history is recorded.
func (s *Store) restore(snap *state.Snapshot) {
	snap = snap.Clone()
	s.nodes = make(map[string]*state.Node, len(snap.Nodes))
	s.nodeOrder = make([]string, 0, len(snap.Nodes))
	s.relations = make(map[string]*state.Relation, len(snap.Relations))
	s.relationOrder = make([]string, 0, len(snap.Relations))
	s.conversations = make(map[string]*state.Conversation, len(snap.Conversations))

	for _, n := range snap.Nodes {
		s.insertNode(n)
	}
	for _, r := range snap.Relations {
		s.relations[r.ID] = r
		s.relationOrder = append(s.relationOrder, r.ID)
	}
	s.index.Rebuild(snap.Relations)
	for _, c := range snap.Conversations {
		s.conversations[c.NodeID] = c
	}
}

// ImportReport summarizes what Import kept and repaired
type ImportReport struct {
	Nodes                int `json:"nodes"`
	Relations            int `json:"relations"`
	Conversations        int `json:"conversations"`
	DroppedRelations     int `json:"dropped_relations"`
	SynthesizedLinks     int `json:"synthesized_links"`
	DroppedConversations int `json:"dropped_conversations"`
	DroppedMessages      int `json:"dropped_messages"`
}

type link struct{ parent, child string }

// Import replaces the graph with snap after repairing it: malformed or
// dangling relations are dropped, parent/child lists are made symmetric with
// the parent-child relations (synthesizing a relation for a link that lacks
// one), links that would form a cycle are dropped, and composite and
// conversation back-references are reconciled. History is cleared.
func (s *Store) Import(snap *state.Snapshot) (*ImportReport, error) {
	if snap == nil {
		return nil, apperrors.NewValidationFailed("snapshot", "cannot be nil")
	}
	report := &ImportReport{}

	nodes := make(map[string]*state.Node, len(snap.Nodes))
	var order []string
	for _, n := range snap.Nodes {
		if n == nil || n.ID == "" || nodes[n.ID] != nil {
			continue
		}
		c := n.Clone()
		nodes[c.ID] = c
		order = append(order, c.ID)
	}

	// Collect relations and candidate parent-child links in a stable order
	var relations []*state.Relation
	relIDs := make(map[string]bool)
	pcRelation := make(map[link]*state.Relation)
	var links []link
	seenLink := make(map[link]bool)
	addLink := func(l link) {
		if l.parent == l.child || nodes[l.parent] == nil || nodes[l.child] == nil || seenLink[l] {
			return
		}
		seenLink[l] = true
		links = append(links, l)
	}

	for _, r := range snap.Relations {
		if r.Validate() != nil || relIDs[r.ID] || nodes[r.SourceID] == nil || nodes[r.TargetID] == nil {
			report.DroppedRelations++
			continue
		}
		if r.Type.IsStructural() {
			l := link{parent: r.SourceID, child: r.TargetID}
			if pcRelation[l] != nil || l.parent == l.child {
				report.DroppedRelations++
				continue
			}
			pcRelation[l] = r.Clone()
			addLink(l)
			relIDs[r.ID] = true
			continue
		}
		relIDs[r.ID] = true
		relations = append(relations, r.Clone())
	}
	for _, id := range order {
		n := nodes[id]
		for _, p := range n.ParentIDs {
			addLink(link{parent: p, child: id})
		}
		for _, c := range n.ChildrenIDs {
			addLink(link{parent: id, child: c})
		}
		n.ParentIDs = []string{}
		n.ChildrenIDs = []string{}
	}

	// Rebuild links into a scratch store so the cycle check sees only accepted links
	scratch := &Store{nodes: nodes}
	var structural []*state.Relation
	for _, l := range links {
		if scratch.IsAncestor(l.child, l.parent) {
			if pcRelation[l] != nil {
				report.DroppedRelations++
			}
			continue
		}
		nodes[l.parent].ChildrenIDs = append(nodes[l.parent].ChildrenIDs, l.child)
		nodes[l.child].ParentIDs = append(nodes[l.child].ParentIDs, l.parent)
		rel := pcRelation[l]
		if rel == nil {
			rel = s.newRelation(l.parent, l.child, state.RelationParentChild, "")
			report.SynthesizedLinks++
		}
		structural = append(structural, rel)
	}

	// Keep the original relation order where possible: structural first as they
	// appear in links, then semantic relations as they appeared in snap
	out := &state.Snapshot{Nodes: make([]*state.Node, 0, len(order))}
	out.Relations = append(structural, relations...)

	for _, id := range order {
		n := nodes[id]
		if n.IsComposite {
			var members []string
			for _, m := range n.CompositeChildren {
				if member := nodes[m]; member != nil && m != id && !member.IsComposite {
					members = append(members, m)
				}
			}
			n.CompositeChildren = members
		}
		if n.CompositeParent != "" {
			owner := nodes[n.CompositeParent]
			if owner == nil || !owner.IsComposite || !contains(owner.CompositeChildren, id) {
				n.CompositeParent = ""
				n.Hidden = false
			}
		}
		n.ConversationID = ""
		out.Nodes = append(out.Nodes, n)
	}
	owned := make(map[string]bool)
	for _, id := range order {
		n := nodes[id]
		if !n.IsComposite {
			n.CompositeChildren = nil
			continue
		}
		members := n.CompositeChildren[:0]
		for _, m := range n.CompositeChildren {
			if owned[m] {
				continue
			}
			owned[m] = true
			nodes[m].CompositeParent = id
			members = append(members, m)
		}
		n.CompositeChildren = members
	}
	for _, id := range order {
		if n := nodes[id]; n.CompositeParent != "" && !owned[id] {
			n.CompositeParent = ""
			n.Hidden = false
		}
	}

	claimed := make(map[string]bool)
	for _, c := range snap.Conversations {
		if c == nil || nodes[c.NodeID] == nil || claimed[c.NodeID] {
			report.DroppedConversations++
			continue
		}
		cp := c.Clone()
		if cp.ID == "" {
			cp.ID = s.newID()
		}
		kept := cp.Messages[:0]
		for _, m := range cp.Messages {
			if !m.Role.IsValid() {
				report.DroppedMessages++
				continue
			}
			kept = append(kept, m)
		}
		cp.Messages = kept
		claimed[cp.NodeID] = true
		nodes[cp.NodeID].ConversationID = cp.ID
		out.Conversations = append(out.Conversations, cp)
	}

	s.restore(out)
	s.history.Clear()

	report.Nodes = len(out.Nodes)
	report.Relations = len(out.Relations)
	report.Conversations = len(out.Conversations)
	s.logger.Info("Graph imported",
		zap.Int("nodes", report.Nodes),
		zap.Int("relations", report.Relations),
		zap.Int("conversations", report.Conversations),
		zap.Int("dropped_relations", report.DroppedRelations),
		zap.Int("synthesized_links", report.SynthesizedLinks),
		zap.Int("dropped_messages", report.DroppedMessages),
	)
	return report, nil
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
