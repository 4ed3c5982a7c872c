package state

import (
	"fmt"
	"time"
)

// Position is a node's 2D canvas coordinate
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DefaultNodeColor is the fill used for new nodes
const DefaultNodeColor = "#ffffff"

// Node is a vertex in the thought graph. Every cross-reference is an id
// resolved through the store, never a pointer to another node.
type Node struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Summary  string   `json:"summary,omitempty"`
	Color    string   `json:"color,omitempty"`
	Position Position `json:"position"`

	IsRoot      bool `json:"is_root"`
	IsComposite bool `json:"is_composite"`
	Hidden      bool `json:"hidden"`
	Expanded    bool `json:"expanded"`
	Collapsed   bool `json:"collapsed"`

	// SkipParentContext stops chat context from flowing down parent links
	// into this node. Semantic relations still contribute.
	SkipParentContext bool `json:"skip_parent_context,omitempty"`

	ParentIDs   []string `json:"parent_ids"`
	ChildrenIDs []string `json:"children_ids"`

	CompositeChildren []string `json:"composite_children,omitempty"`
	CompositeParent   string   `json:"composite_parent,omitempty"`

	ConversationID string   `json:"conversation_id,omitempty"`
	Tags           []string `json:"tags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the node
func (n *Node) Clone() *Node {
	c := *n
	c.ParentIDs = cloneStrings(n.ParentIDs)
	c.ChildrenIDs = cloneStrings(n.ChildrenIDs)
	c.CompositeChildren = cloneStrings(n.CompositeChildren)
	c.Tags = cloneStrings(n.Tags)
	return &c
}

// Relation is a typed directed edge between two nodes
type Relation struct {
	ID          string       `json:"id"`
	SourceID    string       `json:"source_id"`
	TargetID    string       `json:"target_id"`
	Type        RelationType `json:"type"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Clone returns a copy of the relation
func (r *Relation) Clone() *Relation {
	c := *r
	return &c
}

// Touches reports whether the relation has nodeID as either endpoint
func (r *Relation) Touches(nodeID string) bool {
	return r.SourceID == nodeID || r.TargetID == nodeID
}

// Role is the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// IsValid reports whether r is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single chat turn
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// ReasoningContent is the model's thinking output for assistant replies
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// Conversation is the chat history owned by exactly one node
type Conversation struct {
	ID       string    `json:"id"`
	NodeID   string    `json:"node_id"`
	Messages []Message `json:"messages"`
}

// Clone returns a deep copy of the conversation
func (c *Conversation) Clone() *Conversation {
	cp := *c
	if c.Messages != nil {
		cp.Messages = make([]Message, len(c.Messages))
		copy(cp.Messages, c.Messages)
	}
	return &cp
}

// Snapshot is a full capture of a graph: the unit of export, import and undo
type Snapshot struct {
	Nodes         []*Node         `json:"nodes"`
	Relations     []*Relation     `json:"relations"`
	Conversations []*Conversation `json:"conversations"`
}

// Clone returns a deep copy of the snapshot
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	cp := &Snapshot{
		Nodes:         make([]*Node, 0, len(s.Nodes)),
		Relations:     make([]*Relation, 0, len(s.Relations)),
		Conversations: make([]*Conversation, 0, len(s.Conversations)),
	}
	for _, n := range s.Nodes {
		cp.Nodes = append(cp.Nodes, n.Clone())
	}
	for _, r := range s.Relations {
		cp.Relations = append(cp.Relations, r.Clone())
	}
	for _, c := range s.Conversations {
		cp.Conversations = append(cp.Conversations, c.Clone())
	}
	return cp
}

// Validate checks the shape of a snapshot without repairing it
func (s *Snapshot) Validate() error {
	seen := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		if n == nil || n.ID == "" {
			return ErrInvalidSnapshot{Field: fmt.Sprintf("nodes[%d].id", i), Reason: "cannot be empty"}
		}
		if seen[n.ID] {
			return ErrInvalidSnapshot{Field: fmt.Sprintf("nodes[%d].id", i), Reason: "duplicate id " + n.ID}
		}
		seen[n.ID] = true
	}
	for i, r := range s.Relations {
		if err := r.Validate(); err != nil {
			return ErrInvalidSnapshot{Field: fmt.Sprintf("relations[%d]", i), Reason: err.Error()}
		}
	}
	return nil
}

// Validate checks that a relation carries every required field
func (r *Relation) Validate() error {
	if r == nil {
		return fmt.Errorf("relation is nil")
	}
	if r.ID == "" || r.SourceID == "" || r.TargetID == "" {
		return fmt.Errorf("id, source and target are required")
	}
	if !r.Type.IsValid() {
		return fmt.Errorf("unknown type %q", r.Type)
	}
	return nil
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Errors

type ErrInvalidSnapshot struct {
	Field  string
	Reason string
}

func (e ErrInvalidSnapshot) Error() string {
	return fmt.Sprintf("invalid snapshot: %s - %s", e.Field, e.Reason)
}
