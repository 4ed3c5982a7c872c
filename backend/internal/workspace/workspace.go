package workspace

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"thinkflow/backend/internal/constants"
	"thinkflow/backend/internal/graph"
	"thinkflow/backend/internal/metrics"
	"thinkflow/backend/internal/persistence"
	"thinkflow/backend/internal/state"
	apperrors "thinkflow/backend/pkg/errors"
	"thinkflow/backend/pkg/logger"
)

// MindMap is one named graph. Its store is only touched while mu is held.
type MindMap struct {
	mu      sync.Mutex
	record  persistence.MapRecord
	store   *graph.Store
	version uint64
}

// Record returns the map's metadata
func (m *MindMap) Record() persistence.MapRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record
}

// Workspace holds every open mind map and writes them through to a backend
type Workspace struct {
	mu   sync.RWMutex
	maps map[string]*MindMap

	backend      persistence.Backend
	autosave     bool
	historyLimit int
	now          func() time.Time
	logger       *zap.Logger
}

// Option configures a Workspace
type Option func(*Workspace)

// WithAutosave toggles saving after every mutation
func WithAutosave(enabled bool) Option {
	return func(w *Workspace) { w.autosave = enabled }
}

// WithHistoryLimit bounds the undo history of every map
func WithHistoryLimit(limit int) Option {
	return func(w *Workspace) { w.historyLimit = limit }
}

// WithClock overrides time.Now for map timestamps
func WithClock(fn func() time.Time) Option {
	return func(w *Workspace) { w.now = fn }
}

// New creates a workspace over backend; a nil backend keeps maps in memory only
func New(backend persistence.Backend, opts ...Option) *Workspace {
	if backend == nil {
		backend = persistence.NewMemory()
	}
	w := &Workspace{
		maps:         make(map[string]*MindMap),
		backend:      backend,
		autosave:     true,
		historyLimit: constants.DefaultHistoryLimit,
		now:          time.Now,
		logger:       logger.Named("workspace"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Backend returns the persistence backend
func (w *Workspace) Backend() persistence.Backend {
	return w.backend
}

func (w *Workspace) newMindMap(record persistence.MapRecord) *MindMap {
	m := &MindMap{record: record}
	m.store = graph.NewStore(
		graph.WithHistory(graph.NewHistory(w.historyLimit)),
		graph.WithLogger(w.logger.With(zap.String("map_id", record.ID))),
		graph.WithMutationHook(func(action state.HistoryAction) {
			m.version++
			metrics.ObserveMutation(action)
		}),
	)
	return m
}

// Create registers a new empty mind map and persists it
func (w *Workspace) Create(ctx context.Context, title, description string) (persistence.MapRecord, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = constants.DefaultMindMapTitle
	}
	now := w.now()
	m := w.newMindMap(persistence.MapRecord{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := w.save(ctx, m); err != nil {
		return persistence.MapRecord{}, err
	}

	w.mu.Lock()
	w.maps[m.record.ID] = m
	w.mu.Unlock()

	w.logger.Info("Mind map created", zap.String("map_id", m.record.ID), zap.String("title", title))
	return m.record, nil
}

// Get returns an open map, loading it from the backend on first access
func (w *Workspace) Get(ctx context.Context, id string) (*MindMap, error) {
	w.mu.RLock()
	m, ok := w.maps[id]
	w.mu.RUnlock()
	if ok {
		return m, nil
	}

	doc, err := w.backend.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	m = w.newMindMap(doc.Map)
	if doc.Snapshot != nil {
		report, err := m.store.Import(doc.Snapshot)
		if err != nil {
			return nil, err
		}
		w.logger.Info("Mind map loaded",
			zap.String("map_id", id),
			zap.Int("nodes", report.Nodes),
			zap.Int("dropped_relations", report.DroppedRelations),
		)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	// another request may have loaded it meanwhile
	if existing, ok := w.maps[id]; ok {
		return existing, nil
	}
	w.maps[id] = m
	return m, nil
}

// List returns every map known to the backend plus any open map the backend
// has not seen yet, most recently updated first
func (w *Workspace) List(ctx context.Context) ([]persistence.MapRecord, error) {
	stored, err := w.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]persistence.MapRecord, len(stored))
	for _, r := range stored {
		byID[r.ID] = r
	}

	w.mu.RLock()
	open := make([]*MindMap, 0, len(w.maps))
	for _, m := range w.maps {
		open = append(open, m)
	}
	w.mu.RUnlock()
	for _, m := range open {
		r := m.Record()
		byID[r.ID] = r
	}

	out := make([]persistence.MapRecord, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	persistence.SortRecords(out)
	return out, nil
}

// Delete closes and removes a map from memory and the backend
func (w *Workspace) Delete(ctx context.Context, id string) error {
	w.mu.Lock()
	_, open := w.maps[id]
	delete(w.maps, id)
	w.mu.Unlock()

	err := w.backend.Delete(ctx, id)
	if err != nil && !(open && apperrors.IsErrorType(err, apperrors.ErrorTypeReference)) {
		return err
	}
	w.logger.Info("Mind map deleted", zap.String("map_id", id))
	return nil
}

// Rename updates a map's title and description
func (w *Workspace) Rename(ctx context.Context, id, title, description string) (persistence.MapRecord, error) {
	m, err := w.Get(ctx, id)
	if err != nil {
		return persistence.MapRecord{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := strings.TrimSpace(title); t != "" {
		m.record.Title = t
	}
	m.record.Description = description
	m.record.UpdatedAt = w.now()
	if !w.isOpen(m) {
		return persistence.MapRecord{}, apperrors.NewMindMapNotFound(id)
	}
	if err := w.save(ctx, m); err != nil {
		return persistence.MapRecord{}, err
	}
	return m.record, nil
}

// View runs fn with the map's store locked. fn must not retain the store.
func (w *Workspace) View(ctx context.Context, id string, fn func(*graph.Store) error) error {
	m, err := w.Get(ctx, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.store)
}

// Mutate runs fn with the map's store locked. When fn changed the graph the
// map's UpdatedAt is bumped and, with autosave on, the map is saved before
// the lock is released so saves of one map never reorder.
func (w *Workspace) Mutate(ctx context.Context, id string, fn func(*graph.Store) error) error {
	m, err := w.Get(ctx, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	version := m.version
	if err := fn(m.store); err != nil {
		return err
	}
	if m.version == version {
		return nil
	}
	return w.touch(ctx, m)
}

// Undo reverts the last mutation of a map; false means nothing to undo
func (w *Workspace) Undo(ctx context.Context, id string) (bool, error) {
	return w.step(ctx, id, "undo", (*graph.Store).Undo)
}

// Redo reapplies the last undone mutation; false means nothing to redo
func (w *Workspace) Redo(ctx context.Context, id string) (bool, error) {
	return w.step(ctx, id, "redo", (*graph.Store).Redo)
}

func (w *Workspace) step(ctx context.Context, id, op string, fn func(*graph.Store) bool) (bool, error) {
	m, err := w.Get(ctx, id)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	applied := fn(m.store)
	metrics.ObserveHistory(op, applied)
	if !applied {
		return false, nil
	}
	return true, w.touch(ctx, m)
}

// Import replaces a map's graph with snap
func (w *Workspace) Import(ctx context.Context, id string, snap *state.Snapshot) (*graph.ImportReport, error) {
	m, err := w.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	report, err := m.store.Import(snap)
	if err != nil {
		return nil, err
	}
	return report, w.touch(ctx, m)
}

// Save writes a map to the backend regardless of autosave
func (w *Workspace) Save(ctx context.Context, id string) error {
	m, err := w.Get(ctx, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return w.save(ctx, m)
}

// Flush saves every open map; used on shutdown
func (w *Workspace) Flush(ctx context.Context) error {
	w.mu.RLock()
	open := make([]*MindMap, 0, len(w.maps))
	for _, m := range w.maps {
		open = append(open, m)
	}
	w.mu.RUnlock()

	var firstErr error
	for _, m := range open {
		m.mu.Lock()
		var err error
		if w.isOpen(m) {
			err = w.save(ctx, m)
		}
		m.mu.Unlock()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// touch must be called with m.mu held. A map deleted while the caller held
// it is not written back.
func (w *Workspace) touch(ctx context.Context, m *MindMap) error {
	m.version++
	m.record.UpdatedAt = w.now()
	if !w.autosave || !w.isOpen(m) {
		return nil
	}
	return w.save(ctx, m)
}

// isOpen reports whether m is still the workspace's copy of its map
func (w *Workspace) isOpen(m *MindMap) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.maps[m.record.ID] == m
}

// save must be called with m.mu held
func (w *Workspace) save(ctx context.Context, m *MindMap) error {
	doc := &persistence.Document{Map: m.record, Snapshot: m.store.Export()}
	if err := w.backend.Save(ctx, doc); err != nil {
		w.logger.Error("Failed to save mind map", zap.String("map_id", m.record.ID), zap.Error(err))
		return err
	}
	return nil
}
