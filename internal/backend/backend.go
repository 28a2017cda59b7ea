// Package backend opens the event store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dlcoracle/internal/config"
	"dlcoracle/internal/db"
	"dlcoracle/internal/logger"
	"dlcoracle/internal/models"
	"dlcoracle/internal/repository"
	gormrepository "dlcoracle/internal/repository/gorm"
	leveldbrepository "dlcoracle/internal/repository/leveldb"
	"dlcoracle/internal/repository/memory"
)

// Open builds the store named by cfg.Store.Backend. Relational backends are
// migrated before the nonce cursor is recovered.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (repository.Store, error) {
	storeLog := logger.Named(log, "store."+cfg.Store.Backend)

	switch cfg.Store.Backend {
	case config.BackendMemory:
		return memory.New(), nil

	case config.BackendPostgres, config.BackendSQLite:
		key, err := models.ParseXOnlyPublicKey(cfg.Store.OraclePublicKey)
		if err != nil {
			return nil, fmt.Errorf("store.oracle_public_key: %w", err)
		}
		conn, err := db.Open(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		if err := db.AutoMigrate(conn); err != nil {
			db.Close(conn)
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
		store, err := gormrepository.New(ctx, conn.Gorm, gormrepository.Options{
			OracleKey: key,
			OpTimeout: cfg.Store.OpTimeout,
			Logger:    storeLog,
		})
		if err != nil {
			db.Close(conn)
			return nil, err
		}
		return store, nil

	case config.BackendLevelDB:
		store, err := leveldbrepository.Open(cfg.LevelDB.Path, leveldbrepository.Options{Logger: storeLog})
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
