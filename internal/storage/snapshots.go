package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/cluster-eval-board/internal/core/domain"
	apperrors "github.com/lueurxax/cluster-eval-board/internal/core/errors"
)

// Snapshot is a stored report summary at a point in time.
type Snapshot struct {
	ID        string               `json:"id"`
	Slug      string               `json:"slug"`
	Level     int                  `json:"level"`
	Summary   domain.ReportSummary `json:"summary"`
	CreatedAt time.Time            `json:"createdAt"`
}

const (
	insertSnapshotSQL = `
INSERT INTO evaluation_snapshots (id, slug, level, summary, created_at)
VALUES ($1, $2, $3, $4, $5)`

	listSnapshotsSQL = `
SELECT id, slug, level, summary, created_at
FROM evaluation_snapshots
WHERE slug = $1 AND level = $2
ORDER BY created_at DESC
LIMIT $3`
)

// InsertSnapshot stores a summary for slug and level and returns the new snapshot.
func (db *DB) InsertSnapshot(ctx context.Context, slug string, level int, summary domain.ReportSummary) (*Snapshot, error) {
	if slug == "" {
		return nil, fmt.Errorf("insert snapshot: %w: empty slug", apperrors.ErrInvalidInput)
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot summary: %w", err)
	}

	snap := &Snapshot{
		ID:        uuid.NewString(),
		Slug:      SanitizeUTF8(slug),
		Level:     level,
		Summary:   summary,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := db.Pool.Exec(ctx, insertSnapshotSQL, snap.ID, snap.Slug, snap.Level, payload, snap.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}

	return snap, nil
}

// ListSnapshots returns the newest snapshots for slug and level, newest first.
func (db *DB) ListSnapshots(ctx context.Context, slug string, level, limit int) ([]Snapshot, error) {
	rows, err := db.Pool.Query(ctx, listSnapshotsSQL, slug, level, ClampSnapshotLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot

	for rows.Next() {
		var (
			id        pgtype.UUID
			snap      Snapshot
			payload   []byte
			createdAt pgtype.Timestamptz
		)

		if err := rows.Scan(&id, &snap.Slug, &snap.Level, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}

		if err := json.Unmarshal(payload, &snap.Summary); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot summary: %w", err)
		}

		snap.ID = fromUUID(id)
		snap.CreatedAt = fromTimestamptz(createdAt)
		snapshots = append(snapshots, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return snapshots, nil
}

func fromUUID(uid pgtype.UUID) string {
	if !uid.Valid {
		return ""
	}

	return uuid.UUID(uid.Bytes).String()
}

// ClampSnapshotLimit bounds a requested history length.
func ClampSnapshotLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultSnapshotLimit
	case limit > MaxSnapshotLimit:
		return MaxSnapshotLimit
	default:
		return limit
	}
}
