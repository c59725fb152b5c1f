package postgres

import (
	"context"
	"database/sql"
	_ "embed"

	"github.com/rotisserie/eris"
)

//go:embed schema.sql
var schema string

// RunMigrations applies the schema. Every statement is idempotent.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return eris.Wrap(err, "failed to execute schema")
	}
	return nil
}
