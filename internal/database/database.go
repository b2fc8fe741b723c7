// Package database opens the configured SQL store and the redis client.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/treasurehunt/backend/internal/config"
	"github.com/treasurehunt/backend/internal/store"
)

// Open connects to the configured driver and applies the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*store.Store, *sql.DB, error) {
	var (
		db      *sql.DB
		dialect store.Dialect
		err     error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = OpenPostgres(cfg, logger)
		dialect = store.Postgres
	case "sqlite":
		db, err = OpenSQLite(cfg.Path)
		dialect = store.SQLite
		if err == nil {
			logger.Info("database connection established", zap.String("driver", "sqlite"), zap.String("path", cfg.Path))
		}
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, nil, err
	}

	st := store.New(db, dialect)
	if err := st.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return st, db, nil
}
