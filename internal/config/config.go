package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendLevelDB  = "leveldb"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Store   StoreConfig   `mapstructure:"store"`
	DB      DBConfig      `mapstructure:"db"`
	LevelDB LevelDBConfig `mapstructure:"leveldb"`
	Stats   StatsConfig   `mapstructure:"stats"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type StoreConfig struct {
	// Backend is one of memory, postgres, sqlite, leveldb.
	Backend string `mapstructure:"backend"`
	// OraclePublicKey is the hex x-only key the relational backend rebuilds
	// announcements with.
	OraclePublicKey string        `mapstructure:"oracle_public_key"`
	OpTimeout       time.Duration `mapstructure:"op_timeout"`
}

type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type LevelDBConfig struct {
	Path string `mapstructure:"path"`
}

type StatsConfig struct {
	// Schedule is a cron spec (seconds field allowed) for refreshing the
	// store gauges. Empty disables the job.
	Schedule string `mapstructure:"schedule"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8090")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.oracle_public_key", "")
	v.SetDefault("store.op_timeout", "10s")
	v.SetDefault("db.driver", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("leveldb.path", "data/oracle.ldb")
	v.SetDefault("stats.schedule", "@every 30s")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if cfg.DB.Driver == "" && (cfg.Store.Backend == BackendPostgres || cfg.Store.Backend == BackendSQLite) {
		cfg.DB.Driver = cfg.Store.Backend
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres, BackendSQLite:
		if strings.TrimSpace(c.DB.DSN) == "" {
			return fmt.Errorf("store.backend %s requires db.dsn", c.Store.Backend)
		}
		if strings.TrimSpace(c.Store.OraclePublicKey) == "" {
			return fmt.Errorf("store.backend %s requires store.oracle_public_key", c.Store.Backend)
		}
		if driver := strings.ToLower(strings.TrimSpace(c.DB.Driver)); driver != "" && driver != c.Store.Backend {
			return fmt.Errorf("store.backend %s conflicts with db.driver %s", c.Store.Backend, c.DB.Driver)
		}
	case BackendLevelDB:
		if strings.TrimSpace(c.LevelDB.Path) == "" {
			return fmt.Errorf("store.backend leveldb requires leveldb.path")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if c.Store.OpTimeout < 0 {
		return fmt.Errorf("store.op_timeout must not be negative")
	}
	return nil
}
