package store

import (
	"context"
	"embed"
	"fmt"
	"strings"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate creates the tables for the store's dialect if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	script, err := schemaFS.ReadFile(fmt.Sprintf("schema/%s.sql", s.dialect))
	if err != nil {
		return fmt.Errorf("read schema for %s: %w", s.dialect, err)
	}
	for _, stmt := range strings.Split(string(script), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
