package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsFromEnvOnly(t *testing.T) {
	cfg, err := Load("", true)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 10*time.Second, cfg.Store.OpTimeout)
	assert.Equal(t, ":8090", cfg.Server.HTTPAddr)
	assert.Equal(t, "data/oracle.ldb", cfg.LevelDB.Path)
	assert.Equal(t, "@every 30s", cfg.Stats.Schedule)
	assert.Empty(t, cfg.DB.Driver)
}

func TestLoadFileDerivesDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: SQLite
  oracle_public_key: "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
  op_timeout: 3s
db:
  dsn: /tmp/oracle.db
`), 0o600))

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, BackendSQLite, cfg.DB.Driver)
	assert.Equal(t, 3*time.Second, cfg.Store.OpTimeout)
	assert.Equal(t, 20, cfg.DB.MaxOpenConns)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: memory\n"), 0o600))
	t.Setenv("ORACLE_STORE_BACKEND", "leveldb")
	t.Setenv("ORACLE_LEVELDB_PATH", "/var/lib/oracle")
	t.Setenv("ORACLE_STORE_OP_TIMEOUT", "250ms")

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, BackendLevelDB, cfg.Store.Backend)
	assert.Equal(t, "/var/lib/oracle", cfg.LevelDB.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.OpTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{name: "memory", cfg: Config{Store: StoreConfig{Backend: BackendMemory}}, ok: true},
		{name: "postgres without dsn", cfg: Config{Store: StoreConfig{Backend: BackendPostgres, OraclePublicKey: "k"}}},
		{name: "postgres without key", cfg: Config{Store: StoreConfig{Backend: BackendPostgres}, DB: DBConfig{DSN: "postgres://"}}},
		{name: "postgres", cfg: Config{Store: StoreConfig{Backend: BackendPostgres, OraclePublicKey: "k"}, DB: DBConfig{DSN: "postgres://"}}, ok: true},
		{name: "backend and driver disagree", cfg: Config{Store: StoreConfig{Backend: BackendPostgres, OraclePublicKey: "k"}, DB: DBConfig{Driver: BackendSQLite, DSN: "/tmp/oracle.db"}}},
		{name: "backend and driver agree", cfg: Config{Store: StoreConfig{Backend: BackendSQLite, OraclePublicKey: "k"}, DB: DBConfig{Driver: "SQLite", DSN: "/tmp/oracle.db"}}, ok: true},
		{name: "leveldb without path", cfg: Config{Store: StoreConfig{Backend: BackendLevelDB}}},
		{name: "unknown backend", cfg: Config{Store: StoreConfig{Backend: "redis"}}},
		{name: "negative timeout", cfg: Config{Store: StoreConfig{Backend: BackendMemory, OpTimeout: -time.Second}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadRejectsDriverMismatch(t *testing.T) {
	t.Setenv("ORACLE_STORE_BACKEND", "postgres")
	t.Setenv("ORACLE_STORE_ORACLE_PUBLIC_KEY", "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	t.Setenv("ORACLE_DB_DSN", "/tmp/oracle.db")
	t.Setenv("ORACLE_DB_DRIVER", "sqlite")

	_, err := Load("", true)
	assert.ErrorContains(t, err, "conflicts with db.driver")
}
