package state

import "time"

// HistoryAction tags what kind of mutation a history record captures
type HistoryAction string

const (
	ActionCreateNode         HistoryAction = "create_node"
	ActionUpdateNode         HistoryAction = "update_node"
	ActionDeleteNode         HistoryAction = "delete_node"
	ActionCreateRelation     HistoryAction = "create_relation"
	ActionDeleteRelation     HistoryAction = "delete_relation"
	ActionMoveNode           HistoryAction = "move_node"
	ActionUpdateConversation HistoryAction = "update_conversation"
)

// HistoryRecord is one reversible mutation. Before/After are whole-graph
// snapshots so that restoring never has to reconcile partial state.
type HistoryRecord struct {
	ID          string        `json:"id"`
	Action      HistoryAction `json:"action"`
	Description string        `json:"description"`
	Before      *Snapshot     `json:"before,omitempty"`
	After       *Snapshot     `json:"after,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Summary returns the record without its snapshots
func (r HistoryRecord) Summary() HistoryRecord {
	r.Before = nil
	r.After = nil
	return r
}
