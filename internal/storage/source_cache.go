package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	apperrors "github.com/lueurxax/cluster-eval-board/internal/core/errors"
)

const (
	getSourceDocumentSQL = `
SELECT body, fetched_at
FROM evaluation_source_cache
WHERE key = $1`

	upsertSourceDocumentSQL = `
INSERT INTO evaluation_source_cache (key, body, fetched_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE
SET body = EXCLUDED.body, fetched_at = EXCLUDED.fetched_at`

	deleteSourceDocumentSQL = `
DELETE FROM evaluation_source_cache
WHERE key = $1`

	deleteStaleSourceDocumentsSQL = `
DELETE FROM evaluation_source_cache
WHERE fetched_at < $1`
)

// GetDocument returns the cached body for key when it was fetched within maxAge.
func (db *DB) GetDocument(ctx context.Context, key string, maxAge time.Duration) ([]byte, error) {
	var (
		body      []byte
		fetchedAt pgtype.Timestamptz
	)

	err := db.Pool.QueryRow(ctx, getSourceDocumentSQL, key).Scan(&body, &fetchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrCacheNotFound
		}

		return nil, fmt.Errorf("get source document: %w", err)
	}

	if !isFresh(fromTimestamptz(fetchedAt), maxAge, time.Now()) {
		return nil, apperrors.ErrCacheExpired
	}

	return body, nil
}

// PutDocument stores body under key, replacing any previous entry.
func (db *DB) PutDocument(ctx context.Context, key string, body []byte) error {
	if _, err := db.Pool.Exec(ctx, upsertSourceDocumentSQL, key, body); err != nil {
		return fmt.Errorf("upsert source document: %w", err)
	}

	return nil
}

// DeleteDocument removes the entry for key. A missing entry is not an error.
func (db *DB) DeleteDocument(ctx context.Context, key string) error {
	if _, err := db.Pool.Exec(ctx, deleteSourceDocumentSQL, key); err != nil {
		return fmt.Errorf("delete source document: %w", err)
	}

	return nil
}

// DeleteStaleDocuments removes cache entries fetched before the cutoff.
func (db *DB) DeleteStaleDocuments(ctx context.Context, before time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, deleteStaleSourceDocumentsSQL, before)
	if err != nil {
		return 0, fmt.Errorf("delete stale source documents: %w", err)
	}

	return tag.RowsAffected(), nil
}

func isFresh(fetchedAt time.Time, maxAge time.Duration, now time.Time) bool {
	if fetchedAt.IsZero() || maxAge <= 0 {
		return false
	}

	return now.Sub(fetchedAt) <= maxAge
}
