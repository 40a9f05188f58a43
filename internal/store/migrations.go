package store

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// schemaFiles holds one schema file per SQL dialect.
//
//go:embed migrations/*.sql
var schemaFiles embed.FS

// schema returns the statements of the named dialect's schema file.
func schema(dialect string) ([]string, error) {
	data, err := schemaFiles.ReadFile("migrations/" + dialect + ".sql")
	if err != nil {
		return nil, fmt.Errorf("read %s schema: %w", dialect, err)
	}

	var stmts []string
	for _, stmt := range strings.Split(string(data), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

// RunMigrations applies the PostgreSQL schema. Every statement is idempotent.
func RunMigrations(ctx context.Context, databaseURL string) error {
	stmts, err := schema("postgres")
	if err != nil {
		return err
	}

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)

	for _, stmt := range stmts {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
