package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// ApplySQLiteSchema creates the application tables on a SQLite connection.
// Postgres deployments use the goose migrations under pkg/migrate instead.
func (c *Client) ApplySQLiteSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(sqliteSchema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if err := c.Exec(ctx, stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
