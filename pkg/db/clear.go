package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearDocuments removes stored documents. An empty resourceName clears every
// resource; the schema is preserved.
func ClearDocuments(ctx context.Context, pool *pgxpool.Pool, resourceName string) (int64, error) {
	if resourceName == "" {
		slog.Info(fmt.Sprintf("%s - Clearing all documents", clearLogPrefix))
		if _, err := pool.Exec(ctx, `TRUNCATE TABLE resource_documents`); err != nil {
			return 0, fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
		}
		return -1, nil
	}

	slog.Info(fmt.Sprintf("%s - Clearing documents of %s", clearLogPrefix, resourceName))
	tag, err := pool.Exec(ctx, `DELETE FROM resource_documents WHERE resource = $1`, resourceName)
	if err != nil {
		return 0, fmt.Errorf("%s - delete failed: %w", clearLogPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Removed %d documents", clearLogPrefix, tag.RowsAffected()))
	return tag.RowsAffected(), nil
}
