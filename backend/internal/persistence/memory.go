package persistence

import (
	"context"
	"sort"
	"sync"

	apperrors "thinkflow/backend/pkg/errors"
)

// Memory is a process-local Backend. Documents are copied on the way in and
// out so callers never share state with the backend.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewMemory creates an empty in-memory backend
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]*Document)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Save(_ context.Context, doc *Document) error {
	if doc == nil || doc.Map.ID == "" {
		return apperrors.NewValidationFailed("document.map.id", "cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.Map.ID] = doc.Clone()
	return nil
}

func (m *Memory) Load(_ context.Context, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, apperrors.NewMindMapNotFound(id)
	}
	return doc.Clone(), nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return apperrors.NewMindMapNotFound(id)
	}
	delete(m.docs, id)
	return nil
}

func (m *Memory) List(_ context.Context) ([]MapRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MapRecord, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d.Map)
	}
	SortRecords(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }

// SortRecords orders records by UpdatedAt descending, then by id
func SortRecords(records []MapRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].UpdatedAt.Equal(records[j].UpdatedAt) {
			return records[i].UpdatedAt.After(records[j].UpdatedAt)
		}
		return records[i].ID < records[j].ID
	})
}
