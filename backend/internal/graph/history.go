package graph

import "thinkflow/backend/internal/state"

// History is a bounded linear undo/redo stack. index points at the most
// recently applied record; -1 means before any recorded action.
type History struct {
	records []state.HistoryRecord
	index   int
	limit   int
}

// NewHistory creates a history keeping at most limit records
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = 1
	}
	return &History{index: -1, limit: limit}
}

// Push discards the redo branch, appends rec and evicts from the front when
// the limit is exceeded.
func (h *History) Push(rec state.HistoryRecord) {
	h.records = append(h.records[:h.index+1], rec)
	h.index++
	if overflow := len(h.records) - h.limit; overflow > 0 {
		h.records = append([]state.HistoryRecord(nil), h.records[overflow:]...)
		h.index -= overflow
	}
}

// Undo returns the record at the current index and steps back
func (h *History) Undo() (state.HistoryRecord, bool) {
	if h.index < 0 {
		return state.HistoryRecord{}, false
	}
	rec := h.records[h.index]
	h.index--
	return rec, true
}

// Redo steps forward and returns the record now current
func (h *History) Redo() (state.HistoryRecord, bool) {
	if h.index >= len(h.records)-1 {
		return state.HistoryRecord{}, false
	}
	h.index++
	return h.records[h.index], true
}

// CanUndo reports whether Undo would do anything
func (h *History) CanUndo() bool { return h.index >= 0 }

// CanRedo reports whether Redo would do anything
func (h *History) CanRedo() bool { return h.index < len(h.records)-1 }

// Index returns the position of the most recently applied record
func (h *History) Index() int { return h.index }

// Len returns the number of stored records
func (h *History) Len() int { return len(h.records) }

// Limit returns the maximum number of stored records
func (h *History) Limit() int { return h.limit }

// Records returns the stored records without their snapshots
func (h *History) Records() []state.HistoryRecord {
	out := make([]state.HistoryRecord, len(h.records))
	for i, r := range h.records {
		out[i] = r.Summary()
	}
	return out
}

// Clear drops every record
func (h *History) Clear() {
	h.records = nil
	h.index = -1
}
