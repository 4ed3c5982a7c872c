package graph

import "thinkflow/backend/internal/state"

// RelationIndex maps a node id to the ids of every relation touching it, in
// insertion order. Lookup is bidirectional even though relations are directed.
type RelationIndex struct {
	byNode map[string][]string
}

// NewRelationIndex creates an empty index
func NewRelationIndex() *RelationIndex {
	return &RelationIndex{byNode: make(map[string][]string)}
}

// Add indexes a relation under both endpoints
func (ix *RelationIndex) Add(r *state.Relation) {
	ix.byNode[r.SourceID] = append(ix.byNode[r.SourceID], r.ID)
	if r.TargetID != r.SourceID {
		ix.byNode[r.TargetID] = append(ix.byNode[r.TargetID], r.ID)
	}
}

// Remove drops a relation from both endpoints
func (ix *RelationIndex) Remove(r *state.Relation) {
	ix.drop(r.SourceID, r.ID)
	if r.TargetID != r.SourceID {
		ix.drop(r.TargetID, r.ID)
	}
}

// Rebuild discards the index and re-indexes relations in the given order
func (ix *RelationIndex) Rebuild(relations []*state.Relation) {
	ix.byNode = make(map[string][]string, len(relations))
	for _, r := range relations {
		ix.Add(r)
	}
}

// For returns the relation ids touching nodeID
func (ix *RelationIndex) For(nodeID string) []string {
	ids := ix.byNode[nodeID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Degree returns how many relations touch nodeID
func (ix *RelationIndex) Degree(nodeID string) int {
	return len(ix.byNode[nodeID])
}

func (ix *RelationIndex) drop(nodeID, relID string) {
	ids := ix.byNode[nodeID]
	for i, id := range ids {
		if id == relID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(ix.byNode, nodeID)
		return
	}
	ix.byNode[nodeID] = ids
}
