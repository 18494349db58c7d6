package schema

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

//go:embed *.sql
var fs embed.FS

// Apply runs the embedded DDL for the given dialect ("postgres" or "sqlite").
// Every statement is idempotent, so Apply is safe to run on each boot.
func Apply(ctx context.Context, db *sql.DB, dialect string) error {
	name := dialect + ".sql"
	code, err := fs.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read embedded schema %s: %w", name, err)
	}

	n := 0
	for _, stmt := range strings.Split(string(code), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		n++
	}
	zap.L().Info("schema applied", zap.String("file", name), zap.Int("statements", n))
	return nil
}
