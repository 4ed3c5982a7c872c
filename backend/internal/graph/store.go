package graph

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"thinkflow/backend/internal/constants"
	"thinkflow/backend/internal/state"
	"thinkflow/backend/pkg/logger"
	apperrors "thinkflow/backend/pkg/errors"
)

// Store owns the canonical node, relation and conversation collections of one
// thought graph. All mutation passes through it and every successful mutation
// pushes exactly one record onto its History.
//
// A Store is not safe for concurrent use; callers serialize access (see
// workspace.Workspace).
type Store struct {
	nodes         map[string]*state.Node
	nodeOrder     []string
	relations     map[string]*state.Relation
	relationOrder []string
	conversations map[string]*state.Conversation // keyed by node id

	index   *RelationIndex
	history *History

	newID      func() string
	now        func() time.Time
	onMutation func(state.HistoryAction)
	logger     *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithHistory replaces the default history manager
func WithHistory(h *History) Option {
	return func(s *Store) { s.history = h }
}

// WithIDGenerator overrides uuid-based id generation
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithClock overrides time.Now
func WithClock(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

// WithLogger sets the logger used for mutation tracing
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMutationHook registers a callback invoked after every recorded mutation
func WithMutationHook(fn func(state.HistoryAction)) Option {
	return func(s *Store) { s.onMutation = fn }
}

// NewStore creates an empty graph store
func NewStore(opts ...Option) *Store {
	s := &Store{
		nodes:         make(map[string]*state.Node),
		relations:     make(map[string]*state.Relation),
		conversations: make(map[string]*state.Conversation),
		index:         NewRelationIndex(),
		newID:         func() string { return uuid.New().String() },
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.history == nil {
		s.history = NewHistory(constants.DefaultHistoryLimit)
	}
	if s.logger == nil {
		s.logger = logger.Named("graph")
	}
	return s
}

// History exposes the store's history manager
func (s *Store) History() *History {
	return s.history
}

// ============================================================================
// Structural operations
// ============================================================================

// CreateRootNode creates a parentless node placed to the right of existing roots
func (s *Store) CreateRootNode(title string) string {
	before := s.Export()

	pos := state.Position{X: constants.RootSpacing * float64(s.rootCount()), Y: 0}
	n := s.newNode(title, pos)
	n.IsRoot = true
	s.insertNode(n)

	s.record(state.ActionCreateNode, fmt.Sprintf("Create root node %q", title), before)
	return n.ID
}

// CreateChildNode creates a node under parentID, links it with a parent-child
// relation and fans all of the parent's children around it.
func (s *Store) CreateChildNode(parentID, title string) (string, error) {
	parent, ok := s.nodes[parentID]
	if !ok {
		return "", apperrors.NewNodeNotFound(parentID)
	}
	before := s.Export()

	n := s.newNode(title, parent.Position)
	n.ParentIDs = []string{parentID}
	s.insertNode(n)
	parent.ChildrenIDs = append(parent.ChildrenIDs, n.ID)
	parent.UpdatedAt = s.now()
	s.insertRelation(s.newRelation(parentID, n.ID, state.RelationParentChild, ""))

	s.fanChildren(parent)

	s.record(state.ActionCreateNode, fmt.Sprintf("Create child node %q", title), before)
	return n.ID, nil
}

// NodeUpdate carries the externally editable node fields; nil means unchanged.
// Parent/child links are absent: they change only through the
// structural operations.
type NodeUpdate struct {
	Title     *string  `json:"title,omitempty"`
	Summary   *string  `json:"summary,omitempty"`
	Color     *string  `json:"color,omitempty"`
	Hidden    *bool    `json:"hidden,omitempty"`
	Collapsed *bool    `json:"collapsed,omitempty"`
	Tags      []string `json:"tags,omitempty"`

	SkipParentContext *bool `json:"skip_parent_context,omitempty"`
}

// UpdateNode merges the given fields into a node and bumps UpdatedAt
func (s *Store) UpdateNode(id string, upd NodeUpdate) error {
	n, ok := s.nodes[id]
	if !ok {
		return apperrors.NewNodeNotFound(id)
	}
	// Member visibility follows the owning composite
	if upd.Hidden != nil && n.CompositeParent != "" {
		return apperrors.NewInvalidComposite(fmt.Sprintf("node %s is a member of composite %s; expand or collapse the composite instead", id, n.CompositeParent))
	}
	before := s.Export()

	if upd.Title != nil {
		n.Title = *upd.Title
	}
	if upd.Summary != nil {
		n.Summary = *upd.Summary
	}
	if upd.Color != nil {
		n.Color = *upd.Color
	}
	if upd.Hidden != nil {
		n.Hidden = *upd.Hidden
	}
	if upd.Collapsed != nil {
		n.Collapsed = *upd.Collapsed
	}
	if upd.Tags != nil {
		n.Tags = dedupe(upd.Tags)
	}
	if upd.SkipParentContext != nil {
		n.SkipParentContext = *upd.SkipParentContext
	}
	n.UpdatedAt = s.now()

	s.record(state.ActionUpdateNode, fmt.Sprintf("Update node %q", n.Title), before)
	return nil
}

// MoveNode sets a node's canvas position
func (s *Store) MoveNode(id string, pos state.Position) error {
	n, ok := s.nodes[id]
	if !ok {
		return apperrors.NewNodeNotFound(id)
	}
	before := s.Export()

	n.Position = pos
	n.UpdatedAt = s.now()

	s.record(state.ActionMoveNode, fmt.Sprintf("Move node %q", n.Title), before)
	return nil
}

// DeleteNode removes a node, every node reachable through its children, their
// conversations and every relation touching a removed node.
func (s *Store) DeleteNode(id string) error {
	root, ok := s.nodes[id]
	if !ok {
		return apperrors.NewNodeNotFound(id)
	}
	before := s.Export()
	title := root.Title

	doomed := s.descendants(id)
	gone := make(map[string]bool, len(doomed))
	for _, d := range doomed {
		gone[d] = true
	}

	for _, d := range doomed {
		n := s.nodes[d]
		for _, p := range n.ParentIDs {
			if parent, ok := s.nodes[p]; ok && !gone[p] {
				parent.ChildrenIDs = remove(parent.ChildrenIDs, d)
				parent.UpdatedAt = s.now()
			}
		}
		if n.IsComposite {
			for _, m := range n.CompositeChildren {
				if member, ok := s.nodes[m]; ok && !gone[m] {
					member.CompositeParent = ""
					member.Hidden = false
				}
			}
		}
		if n.CompositeParent != "" && !gone[n.CompositeParent] {
			if owner, ok := s.nodes[n.CompositeParent]; ok {
				owner.CompositeChildren = remove(owner.CompositeChildren, d)
			}
		}
		delete(s.conversations, d)
	}

	kept := s.relationOrder[:0]
	for _, rid := range s.relationOrder {
		rel := s.relations[rid]
		if gone[rel.SourceID] || gone[rel.TargetID] {
			s.index.Remove(rel)
			delete(s.relations, rid)
			continue
		}
		kept = append(kept, rid)
	}
	s.relationOrder = kept

	order := s.nodeOrder[:0]
	for _, nid := range s.nodeOrder {
		if gone[nid] {
			delete(s.nodes, nid)
			continue
		}
		order = append(order, nid)
	}
	s.nodeOrder = order

	s.record(state.ActionDeleteNode, fmt.Sprintf("Delete node %q and %d descendants", title, len(doomed)-1), before)
	return nil
}

// AddRelation connects source to target. The same pair may carry several
// relation types; a parent-child relation additionally links ownership, is
// rejected when it would form a cycle, and is merged with an existing
// parent-child relation between the same pair.
func (s *Store) AddRelation(sourceID, targetID string, relType state.RelationType, description string) (string, error) {
	if !relType.IsValid() {
		return "", apperrors.NewInvalidRelationType(string(relType))
	}
	source, ok := s.nodes[sourceID]
	if !ok {
		return "", apperrors.NewNodeNotFound(sourceID)
	}
	target, ok := s.nodes[targetID]
	if !ok {
		return "", apperrors.NewNodeNotFound(targetID)
	}

	if relType.IsStructural() {
		if existing := s.findRelation(sourceID, targetID, state.RelationParentChild); existing != nil {
			return existing.ID, nil
		}
		if sourceID == targetID || s.IsAncestor(targetID, sourceID) {
			return "", apperrors.NewCycleDetected(sourceID, targetID)
		}
	}
	before := s.Export()

	rel := s.newRelation(sourceID, targetID, relType, description)
	s.insertRelation(rel)
	if relType.IsStructural() {
		source.ChildrenIDs = appendUnique(source.ChildrenIDs, targetID)
		target.ParentIDs = appendUnique(target.ParentIDs, sourceID)
		source.UpdatedAt = s.now()
		target.UpdatedAt = s.now()
	}

	s.record(state.ActionCreateRelation,
		fmt.Sprintf("Connect %q to %q (%s)", source.Title, target.Title, relType), before)
	return rel.ID, nil
}

// DeleteRelation removes a relation, unlinking ownership for parent-child
func (s *Store) DeleteRelation(id string) error {
	rel, ok := s.relations[id]
	if !ok {
		return apperrors.NewRelationNotFound(id)
	}
	before := s.Export()

	if rel.Type.IsStructural() {
		if source, ok := s.nodes[rel.SourceID]; ok {
			source.ChildrenIDs = remove(source.ChildrenIDs, rel.TargetID)
			source.UpdatedAt = s.now()
		}
		if target, ok := s.nodes[rel.TargetID]; ok {
			target.ParentIDs = remove(target.ParentIDs, rel.SourceID)
			target.UpdatedAt = s.now()
		}
	}
	s.index.Remove(rel)
	delete(s.relations, id)
	s.relationOrder = remove(s.relationOrder, id)

	s.record(state.ActionDeleteRelation, fmt.Sprintf("Delete %s relation", rel.Type), before)
	return nil
}

// AppendMessages adds messages to a node's conversation, creating the
// conversation on first use. All messages form a single history record.
func (s *Store) AppendMessages(nodeID string, msgs ...state.Message) error {
	n, ok := s.nodes[nodeID]
	if !ok {
		return apperrors.NewNodeNotFound(nodeID)
	}
	if len(msgs) == 0 {
		return nil
	}
	for i, m := range msgs {
		if !m.Role.IsValid() {
			return apperrors.NewValidationFailed(fmt.Sprintf("messages[%d].role", i), fmt.Sprintf("unknown role %q", m.Role))
		}
	}
	before := s.Export()

	conv, ok := s.conversations[nodeID]
	if !ok {
		conv = &state.Conversation{ID: s.newID(), NodeID: nodeID}
		s.conversations[nodeID] = conv
		n.ConversationID = conv.ID
	}
	for _, m := range msgs {
		if m.ID == "" {
			m.ID = s.newID()
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = s.now()
		}
		conv.Messages = append(conv.Messages, m)
	}
	n.UpdatedAt = s.now()

	s.record(state.ActionUpdateConversation,
		fmt.Sprintf("Add %d message(s) to %q", len(msgs), n.Title), before)
	return nil
}

// ============================================================================
// Undo / redo
// ============================================================================

// Undo restores the state before the most recent recorded mutation
func (s *Store) Undo() bool {
	rec, ok := s.history.Undo()
	if !ok {
		return false
	}
	s.restore(rec.Before)
	s.logger.Debug("Undo", zap.String("action", string(rec.Action)), zap.String("description", rec.Description))
	return true
}

// Redo reapplies the most recently undone mutation
func (s *Store) Redo() bool {
	rec, ok := s.history.Redo()
	if !ok {
		return false
	}
	s.restore(rec.After)
	s.logger.Debug("Redo", zap.String("action", string(rec.Action)), zap.String("description", rec.Description))
	return true
}

// ============================================================================
// Queries
// ============================================================================

// Node returns a copy of a node
func (s *Store) Node(id string) (*state.Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// Nodes returns copies of all nodes in creation order
func (s *Store) Nodes() []*state.Node {
	out := make([]*state.Node, 0, len(s.nodeOrder))
	for _, id := range s.nodeOrder {
		out = append(out, s.nodes[id].Clone())
	}
	return out
}

// NodeCount returns the number of nodes
func (s *Store) NodeCount() int {
	return len(s.nodes)
}

// Relation returns a copy of a relation
func (s *Store) Relation(id string) (*state.Relation, bool) {
	r, ok := s.relations[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Relations returns copies of all relations in creation order
func (s *Store) Relations() []*state.Relation {
	out := make([]*state.Relation, 0, len(s.relationOrder))
	for _, id := range s.relationOrder {
		out = append(out, s.relations[id].Clone())
	}
	return out
}

// RelationsForNode returns every relation with nodeID as source or target
func (s *Store) RelationsForNode(nodeID string) []*state.Relation {
	ids := s.index.For(nodeID)
	out := make([]*state.Relation, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.relations[id].Clone())
	}
	return out
}

// Conversation returns a copy of the conversation owned by nodeID
func (s *Store) Conversation(nodeID string) (*state.Conversation, bool) {
	c, ok := s.conversations[nodeID]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// IsAncestor reports whether candidate is reachable from nodeID by walking
// parent links upward.
func (s *Store) IsAncestor(candidate, nodeID string) bool {
	visited := make(map[string]bool)
	stack := []string{nodeID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := s.nodes[id]
		if !ok {
			continue
		}
		for _, p := range n.ParentIDs {
			if p == candidate {
				return true
			}
			if !visited[p] {
				visited[p] = true
				stack = append(stack, p)
			}
		}
	}
	return false
}

// ============================================================================
// Internals
// ============================================================================

func (s *Store) record(action state.HistoryAction, description string, before *state.Snapshot) {
	s.history.Push(state.HistoryRecord{
		ID:          s.newID(),
		Action:      action,
		Description: description,
		Before:      before,
		After:       s.Export(),
		Timestamp:   s.now(),
	})
	if s.onMutation != nil {
		s.onMutation(action)
	}
	s.logger.Debug("Graph mutation",
		zap.String("action", string(action)),
		zap.String("description", description),
		zap.Int("nodes", len(s.nodes)),
		zap.Int("relations", len(s.relations)),
	)
}

func (s *Store) newNode(title string, pos state.Position) *state.Node {
	now := s.now()
	return &state.Node{
		ID:          s.newID(),
		Title:       title,
		Color:       state.DefaultNodeColor,
		Position:    pos,
		ParentIDs:   []string{},
		ChildrenIDs: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *Store) newRelation(sourceID, targetID string, relType state.RelationType, description string) *state.Relation {
	return &state.Relation{
		ID:          s.newID(),
		SourceID:    sourceID,
		TargetID:    targetID,
		Type:        relType,
		Description: description,
		CreatedAt:   s.now(),
	}
}

func (s *Store) insertNode(n *state.Node) {
	s.nodes[n.ID] = n
	s.nodeOrder = append(s.nodeOrder, n.ID)
}

func (s *Store) insertRelation(r *state.Relation) {
	s.relations[r.ID] = r
	s.relationOrder = append(s.relationOrder, r.ID)
	s.index.Add(r)
}

func (s *Store) findRelation(sourceID, targetID string, relType state.RelationType) *state.Relation {
	for _, id := range s.index.For(sourceID) {
		r := s.relations[id]
		if r.SourceID == sourceID && r.TargetID == targetID && r.Type == relType {
			return r
		}
	}
	return nil
}

func (s *Store) rootCount() int {
	count := 0
	for _, n := range s.nodes {
		if n.IsRoot {
			count++
		}
	}
	return count
}

// descendants lists id and everything reachable through ChildrenIDs, depth-first
func (s *Store) descendants(id string) []string {
	var out []string
	visited := make(map[string]bool)
	var walk func(string)
	walk = func(nid string) {
		n, ok := s.nodes[nid]
		if !ok || visited[nid] {
			return
		}
		visited[nid] = true
		out = append(out, nid)
		for _, c := range n.ChildrenIDs {
			walk(c)
		}
	}
	walk(id)
	return out
}

func (s *Store) fanChildren(parent *state.Node) {
	positions := FanLayout(parent.Position, len(parent.ChildrenIDs))
	for i, cid := range parent.ChildrenIDs {
		if child, ok := s.nodes[cid]; ok {
			child.Position = positions[i]
		}
	}
}

func appendUnique(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}

func remove(list []string, id string) []string {
	out := list[:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, v := range list {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
