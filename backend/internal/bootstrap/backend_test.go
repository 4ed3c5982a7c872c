package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"thinkflow/backend/internal/persistence"
	"thinkflow/backend/pkg/config"
	apperrors "thinkflow/backend/pkg/errors"
)

func TestOpenBackend_Memory(t *testing.T) {
	b, err := OpenBackend(context.Background(), &config.Config{PersistenceBackend: config.BackendMemory})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, "memory", b.Name())
}

func TestOpenBackend_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "maps.db")
	b, err := OpenBackend(ctx, &config.Config{PersistenceBackend: config.BackendSQLite, SQLitePath: path})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, "sqlite", b.Name())
	require.NoError(t, b.Save(ctx, &persistence.Document{Map: persistence.MapRecord{ID: "m1", Title: "One"}}))
	records, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "One", records[0].Title)
}

func TestOpenBackend_Neo4jUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a closed port")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := OpenBackend(ctx, &config.Config{
		PersistenceBackend: config.BackendAll,
		SQLitePath:         filepath.Join(t.TempDir(), "maps.db"),
		Neo4jURI:           "bolt://127.0.0.1:1",
		Neo4jUser:          "neo4j",
		Neo4jPassword:      "secret",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypePersistence))
}

func TestOpenBackend_UnknownBackend(t *testing.T) {
	_, err := OpenBackend(context.Background(), &config.Config{PersistenceBackend: "redis"})
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
}
