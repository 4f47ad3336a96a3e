package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spacepanda-project/spacepanda/internal/errs"
	"github.com/spacepanda-project/spacepanda/storage"
)

type opLogStore struct{ db *pgxpool.Pool }

func (o *opLogStore) AppendOperation(ctx context.Context, entry *storage.OperationLogEntry) error {
	_, err := o.db.Exec(ctx,
		`INSERT INTO operation_log (channel_id, sequence, kind, payload)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (channel_id, sequence) DO NOTHING`,
		entry.ChannelID, entry.Sequence, entry.Kind, entry.Payload)
	if err != nil {
		return errs.ErrIo
	}
	return nil
}

func (o *opLogStore) ListOperationsSince(ctx context.Context, channelID string, sinceSequence uint64) ([]*storage.OperationLogEntry, error) {
	rows, err := o.db.Query(ctx,
		`SELECT channel_id, sequence, kind, payload, created_at FROM operation_log
		 WHERE channel_id = $1 AND sequence >= $2 ORDER BY sequence ASC`,
		channelID, sinceSequence)
	if err != nil {
		return nil, errs.ErrIo
	}
	defer rows.Close()

	var out []*storage.OperationLogEntry
	for rows.Next() {
		var e storage.OperationLogEntry
		if err := rows.Scan(&e.ChannelID, &e.Sequence, &e.Kind, &e.Payload, &e.CreatedAt); err != nil {
			return nil, errs.ErrIo
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (o *opLogStore) CompactBefore(ctx context.Context, channelID string, sequence uint64) error {
	_, err := o.db.Exec(ctx,
		`DELETE FROM operation_log WHERE channel_id = $1 AND sequence < $2`,
		channelID, sequence)
	if err != nil {
		return errs.ErrIo
	}
	return nil
}
