package graph

import (
	"fmt"

	"thinkflow/backend/internal/constants"
	"thinkflow/backend/internal/state"
)

// ContextResolver computes the ordered conversation context injected before a
// new chat turn on a node. It reads the store on every call; nothing is cached.
type ContextResolver struct {
	store    *Store
	maxDepth int
}

// NewContextResolver creates a resolver bounded by MaxContextDepth
func NewContextResolver(store *Store) *ContextResolver {
	return &ContextResolver{store: store, maxDepth: constants.MaxContextDepth}
}

// contextWalk is the state of one post-order traversal
type contextWalk struct {
	visited map[string]bool
	via     map[string]state.RelationType
	order   []string
}

// Order returns the node ids whose conversations contribute context, every
// prerequisite before its dependents and nodeID last. Parents are visited
// before semantic sources; both in stored order, so the result depends only on
// graph state.
func (r *ContextResolver) Order(nodeID string) []string {
	return r.walk(nodeID).order
}

func (r *ContextResolver) walk(nodeID string) *contextWalk {
	w := &contextWalk{
		visited: make(map[string]bool),
		via:     make(map[string]state.RelationType),
	}
	r.visit(w, nodeID, 0, "")
	return w
}

func (r *ContextResolver) visit(w *contextWalk, nodeID string, depth int, via state.RelationType) {
	if w.visited[nodeID] || depth > r.maxDepth {
		return
	}
	n, ok := r.store.nodes[nodeID]
	if !ok {
		return
	}
	w.visited[nodeID] = true
	w.via[nodeID] = via

	if !n.SkipParentContext {
		for _, p := range n.ParentIDs {
			r.visit(w, p, depth+1, state.RelationParentChild)
		}
	}
	for _, rid := range r.store.index.For(nodeID) {
		rel := r.store.relations[rid]
		if rel.TargetID != nodeID {
			continue
		}
		if n.SkipParentContext && rel.Type == state.RelationParentChild {
			continue
		}
		r.visit(w, rel.SourceID, depth+1, rel.Type)
	}
	w.order = append(w.order, nodeID)
}

// Resolve returns, for every node in Order that has messages, a system marker
// naming the node followed by its messages in stored order.
func (r *ContextResolver) Resolve(nodeID string) []state.Message {
	w := r.walk(nodeID)
	var out []state.Message
	for _, id := range w.order {
		conv, ok := r.store.conversations[id]
		if !ok || len(conv.Messages) == 0 {
			continue
		}
		out = append(out, state.Message{Role: state.RoleSystem, Content: r.marker(id, nodeID, w.via[id])})
		out = append(out, conv.Messages...)
	}
	return out
}

func (r *ContextResolver) marker(id, target string, via state.RelationType) string {
	title := r.store.nodes[id].Title
	if id == target {
		return fmt.Sprintf("Current node %q", title)
	}
	return fmt.Sprintf("Context from %s %q", via.Describe(), title)
}

// Context is shorthand for NewContextResolver(s).Resolve(nodeID)
func (s *Store) Context(nodeID string) []state.Message {
	return NewContextResolver(s).Resolve(nodeID)
}
