// Package migrations embeds the schema for both database backends.
// Every statement is idempotent, so the full set runs on each start.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed sqlite/*.sql postgres/*.sql
var schemaFS embed.FS

// RunSQLiteMigrations applies the SQLite schema in file order.
func RunSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	return run("sqlite", func(name, stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	})
}

// RunPostgresMigrations applies the Postgres schema in file order.
func RunPostgresMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	return run("postgres", func(name, stmt string) error {
		_, err := pool.Exec(ctx, stmt)
		return err
	})
}

// Files lists the up migrations for a backend, sorted.
func Files(backend string) ([]string, error) {
	entries, err := fs.ReadDir(schemaFS, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func run(backend string, exec func(name, stmt string) error) error {
	files, err := Files(backend)
	if err != nil {
		return err
	}

	for _, file := range files {
		stmt, err := schemaFS.ReadFile(backend + "/" + file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}
		if err := exec(file, string(stmt)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
	}
	return nil
}
