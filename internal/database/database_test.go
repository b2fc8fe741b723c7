package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/treasurehunt/backend/internal/config"
	"github.com/treasurehunt/backend/internal/store"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DatabaseConfig{
		Host: "db", Port: "5433", User: "ledger", Password: "secret", Name: "treasure", SSLMode: "require",
	})
	assert.Equal(t, "host=db port=5433 user=ledger password=secret dbname=treasure sslmode=require", dsn)
}

func TestSQLiteDSN(t *testing.T) {
	dsn := SQLiteDSN("./data/../ledger.db")
	assert.True(t, strings.HasPrefix(dsn, "ledger.db?"))
	assert.Contains(t, dsn, "_pragma=foreign_keys(1)")
	assert.Contains(t, dsn, "_txlock=immediate")
}

func TestOpen_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	st, db, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", Path: path}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, store.SQLite, st.Dialect())

	// Migrations are idempotent.
	require.NoError(t, st.Migrate(context.Background()))

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, _, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql"}, zap.NewNop())
	assert.Error(t, err)
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	_, err := OpenSQLite("  ")
	assert.Error(t, err)
}
