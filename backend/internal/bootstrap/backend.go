package bootstrap

import (
	"context"

	"go.uber.org/zap"
	"thinkflow/backend/internal/persistence"
	"thinkflow/backend/internal/persistence/neo4jstore"
	"thinkflow/backend/internal/persistence/sqlitestore"
	"thinkflow/backend/pkg/config"
	apperrors "thinkflow/backend/pkg/errors"
	"thinkflow/backend/pkg/logger"
)

// OpenBackend builds the persistence backend selected by cfg. The result is
// always a Fanout, so persistence metrics look the same for every setup.
// SQLite comes first when both stores are enabled and serves reads.
func OpenBackend(ctx context.Context, cfg *config.Config) (*persistence.Fanout, error) {
	log := logger.Named("bootstrap")
	var backends []persistence.Backend
	closeAll := func() {
		for _, b := range backends {
			_ = b.Close()
		}
	}

	if cfg.PersistenceBackend == config.BackendMemory {
		backends = append(backends, persistence.NewMemory())
	}

	if cfg.UsesSQLite() {
		store, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		backends = append(backends, store)
	}

	if cfg.UsesNeo4j() {
		store, err := neo4jstore.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			closeAll()
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			log.Warn("Neo4j schema could not be applied", zap.Error(err))
		}
		backends = append(backends, store)
	}

	if len(backends) == 0 {
		return nil, apperrors.NewConfigValidationFailed("PERSISTENCE_BACKEND", "no backend selected")
	}
	fanout, err := persistence.NewFanout(backends...)
	if err != nil {
		closeAll()
		return nil, err
	}
	log.Info("Persistence ready", zap.String("backend", fanout.Name()))
	return fanout, nil
}
