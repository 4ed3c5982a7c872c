package persistence

import (
	"context"
	"time"

	"thinkflow/backend/internal/state"
)

// MapRecord describes a stored mind map without its graph
type MapRecord struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Document is the unit of persistence: one mind map and its full graph
type Document struct {
	Map      MapRecord       `json:"map"`
	Snapshot *state.Snapshot `json:"snapshot"`
}

// Clone returns a deep copy of the document
func (d *Document) Clone() *Document {
	return &Document{Map: d.Map, Snapshot: d.Snapshot.Clone()}
}

// Backend stores mind map documents. Load and Delete of an unknown id return
// an ErrMindMapNotFound; List orders by most recently updated first.
type Backend interface {
	Name() string
	Save(ctx context.Context, doc *Document) error
	Load(ctx context.Context, id string) (*Document, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]MapRecord, error)
	Close() error
}
