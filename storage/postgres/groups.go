package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spacepanda-project/spacepanda/internal/errs"
	"github.com/spacepanda-project/spacepanda/storage"
)

type groupStore struct{ db *pgxpool.Pool }

// SaveSnapshotsAtomic persists all snapshots in a single transaction, so
// a write failure partway through leaves no partial snapshots visible
// (spec §4.3 "Atomic group snapshot save").
func (g *groupStore) SaveSnapshotsAtomic(ctx context.Context, snapshots []*storage.GroupSnapshot) error {
	tx, err := g.db.Begin(ctx)
	if err != nil {
		return errs.ErrIo
	}
	defer tx.Rollback(ctx)

	for _, snap := range snapshots {
		_, err := tx.Exec(ctx,
			`INSERT INTO groups (channel_id, epoch, data) VALUES ($1, $2, $3)
			 ON CONFLICT (channel_id, epoch) DO UPDATE SET data = EXCLUDED.data`,
			snap.ChannelID, snap.Epoch, snap.Data)
		if err != nil {
			return errs.ErrIo
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.ErrIo
	}
	return nil
}

func (g *groupStore) LoadLatestSnapshot(ctx context.Context, channelID string) (*storage.GroupSnapshot, error) {
	row := g.db.QueryRow(ctx,
		`SELECT channel_id, epoch, data, created_at FROM groups
		 WHERE channel_id = $1 ORDER BY epoch DESC LIMIT 1`, channelID)

	var snap storage.GroupSnapshot
	if err := row.Scan(&snap.ChannelID, &snap.Epoch, &snap.Data, &snap.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.ErrNotFound
		}
		return nil, errs.ErrIo
	}
	return &snap, nil
}
