package db

import (
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dlcoracle/internal/config"
)

func TestPostgresDSNCarriesTimezone(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		tz   string
		want string
	}{
		{name: "key value", dsn: "host=db user=oracle dbname=oracle", tz: "UTC", want: "host=db user=oracle dbname=oracle TimeZone=UTC"},
		{name: "key value keeps explicit", dsn: "host=db timezone=Europe/Berlin", tz: "UTC", want: "host=db timezone=Europe/Berlin"},
		{name: "quoted value", dsn: "host=db", tz: "America/New York", want: "host=db TimeZone='America/New York'"},
		{name: "empty zone", dsn: "host=db", tz: " ", want: "host=db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, postgresDSN(tt.dsn, tt.tz))
		})
	}
}

func TestPostgresURLCarriesTimezone(t *testing.T) {
	got := postgresDSN("postgres://oracle:secret@db:5432/oracle?sslmode=disable", "Asia/Tokyo")
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", u.Query().Get("timezone"))
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	assert.Equal(t, "db:5432", u.Host)

	explicit := "postgresql://db/oracle?TimeZone=UTC"
	assert.Equal(t, explicit, postgresDSN(explicit, "Asia/Tokyo"))
}

func TestOpenSQLiteUsesOneConnection(t *testing.T) {
	conn, err := Open(config.DBConfig{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "oracle.db"), MaxOpenConns: 20})
	require.NoError(t, err)
	defer Close(conn)

	assert.Equal(t, DriverSQLite, conn.Driver)
	assert.Equal(t, 1, conn.SQL.Stats().MaxOpenConnections)
	require.NoError(t, AutoMigrate(conn))
	assert.True(t, conn.Gorm.Migrator().HasTable("nonce_cursors"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DBConfig{Driver: "oracle"})
	assert.Error(t, err)
}
