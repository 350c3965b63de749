package database

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	sqlassets "github.com/ashaw315/hotdog-diaries-sub006/pkg/database/sql"
	"github.com/ashaw315/hotdog-diaries-sub006/pkg/logging"
)

// ApplySchema executes the embedded DDL files in lexical order. All
// statements are idempotent (CREATE ... IF NOT EXISTS), so this is safe
// to run on every startup.
func ApplySchema(ctx context.Context, db PostgresConn, logger logging.Logger) error {
	entries, err := fs.ReadDir(sqlassets.Content, "schema")
	if err != nil {
		return fmt.Errorf("read embedded schema: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		ddl, err := fs.ReadFile(sqlassets.Content, "schema/"+name)
		if err != nil {
			return fmt.Errorf("read schema file %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(ddl)); err != nil {
			return fmt.Errorf("apply schema file %s: %w", name, err)
		}
		logger.WithField("file", name).Debug("Applied schema file")
	}

	return nil
}
