package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"thinkflow/backend/internal/persistence"
	"thinkflow/backend/internal/state"
	apperrors "thinkflow/backend/pkg/errors"
	"thinkflow/backend/pkg/logger"
)

const backendName = "sqlite"

// Store keeps one row per mind map with the graph stored as a JSON document
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path. WAL mode is enabled
// and the schema is migrated before returning.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, apperrors.NewPersistenceFailed(backendName, "open", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.NewPersistenceFailed(backendName, "ping", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, apperrors.NewPersistenceFailed(backendName, "enable WAL", err)
	}

	s := &Store{db: db, logger: logger.Named("sqlite")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, apperrors.NewPersistenceFailed(backendName, "migrate", err)
	}

	s.logger.Info("SQLite store opened", zap.String("path", path))
	return s, nil
}

func (s *Store) Name() string { return backendName }

// Close closes the underlying database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS mind_maps (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		snapshot JSON NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_mind_maps_updated_at ON mind_maps(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create mind_maps table: %w", err)
	}
	return nil
}

// Save inserts or replaces a mind map
func (s *Store) Save(ctx context.Context, doc *persistence.Document) error {
	if doc == nil || doc.Map.ID == "" {
		return apperrors.NewValidationFailed("document.map.id", "cannot be empty")
	}
	snap := doc.Snapshot
	if snap == nil {
		snap = &state.Snapshot{}
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return apperrors.NewPersistenceFailed(backendName, "encode snapshot", err)
	}

	query := `
	INSERT INTO mind_maps (id, title, description, created_at, updated_at, snapshot)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		updated_at = excluded.updated_at,
		snapshot = excluded.snapshot
	`
	_, err = s.db.ExecContext(ctx, query,
		doc.Map.ID,
		doc.Map.Title,
		doc.Map.Description,
		formatTime(doc.Map.CreatedAt),
		formatTime(doc.Map.UpdatedAt),
		string(payload),
	)
	if err != nil {
		return apperrors.NewPersistenceFailed(backendName, "save", err)
	}

	s.logger.Debug("Mind map saved",
		zap.String("map_id", doc.Map.ID),
		zap.Int("nodes", len(snap.Nodes)),
		zap.Int("bytes", len(payload)),
	)
	return nil
}

// Load reads a mind map and decodes its graph
func (s *Store) Load(ctx context.Context, id string) (*persistence.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, created_at, updated_at, snapshot FROM mind_maps WHERE id = ?`, id)

	var (
		rec     mapRow
		payload string
		snap    state.Snapshot
	)
	if err := row.Scan(&rec.ID, &rec.Title, &rec.Description, &rec.CreatedAt, &rec.UpdatedAt, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewMindMapNotFound(id)
		}
		return nil, apperrors.NewPersistenceFailed(backendName, "load", err)
	}
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, apperrors.NewPersistenceFailed(backendName, "decode snapshot", err)
	}

	return &persistence.Document{Map: rec.record(), Snapshot: &snap}, nil
}

// Delete removes a mind map
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mind_maps WHERE id = ?`, id)
	if err != nil {
		return apperrors.NewPersistenceFailed(backendName, "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewPersistenceFailed(backendName, "delete", err)
	}
	if n == 0 {
		return apperrors.NewMindMapNotFound(id)
	}
	return nil
}

// List returns every stored mind map, most recently updated first
func (s *Store) List(ctx context.Context) ([]persistence.MapRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, created_at, updated_at FROM mind_maps ORDER BY updated_at DESC, id ASC`)
	if err != nil {
		return nil, apperrors.NewPersistenceFailed(backendName, "list", err)
	}
	defer rows.Close()

	records := []persistence.MapRecord{}
	for rows.Next() {
		var rec mapRow
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Description, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, apperrors.NewPersistenceFailed(backendName, "list", err)
		}
		records = append(records, rec.record())
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistenceFailed(backendName, "list", err)
	}
	persistence.SortRecords(records)
	return records, nil
}

// mapRow is the column layout of mind_maps; timestamps are RFC 3339 text
type mapRow struct {
	ID          string
	Title       string
	Description string
	CreatedAt   string
	UpdatedAt   string
}

func (r mapRow) record() persistence.MapRecord {
	return persistence.MapRecord{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
