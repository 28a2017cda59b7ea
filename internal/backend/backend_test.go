package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dlcoracle/internal/config"
	gormrepository "dlcoracle/internal/repository/gorm"
	leveldbrepository "dlcoracle/internal/repository/leveldb"
	"dlcoracle/internal/repository/memory"
	"dlcoracle/internal/repository/repositorytest"
)

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), config.Config{Store: config.StoreConfig{Backend: config.BackendMemory}}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)
}

func TestOpenSQLite(t *testing.T) {
	cfg := config.Config{
		Store: config.StoreConfig{
			Backend:         config.BackendSQLite,
			OraclePublicKey: repositorytest.OracleKey.String(),
			OpTimeout:       time.Second,
		},
		DB: config.DBConfig{Driver: config.BackendSQLite, DSN: filepath.Join(t.TempDir(), "oracle.db")},
	}
	s, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &gormrepository.Store{}, s)

	ctx := context.Background()
	indexes, err := s.NextNonceIndexes(ctx, 1)
	require.NoError(t, err)
	_, err = s.SaveAnnouncement(ctx, repositorytest.EnumAnnouncement("wired", 1), indexes)
	assert.NoError(t, err)
}

func TestOpenSQLiteRejectsBadKey(t *testing.T) {
	cfg := config.Config{
		Store: config.StoreConfig{Backend: config.BackendSQLite, OraclePublicKey: "zz"},
		DB:    config.DBConfig{Driver: config.BackendSQLite, DSN: filepath.Join(t.TempDir(), "oracle.db")},
	}
	_, err := Open(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "oracle_public_key")
}

func TestOpenLevelDB(t *testing.T) {
	cfg := config.Config{
		Store:   config.StoreConfig{Backend: config.BackendLevelDB},
		LevelDB: config.LevelDBConfig{Path: filepath.Join(t.TempDir(), "oracle.ldb")},
	}
	s, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &leveldbrepository.Store{}, s)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open(context.Background(), config.Config{Store: config.StoreConfig{Backend: "etcd"}}, nil)
	assert.Error(t, err)
}
