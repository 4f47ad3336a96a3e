package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spacepanda-project/spacepanda/internal/errs"
	"github.com/spacepanda-project/spacepanda/storage"
)

type messageStore struct{ db *pgxpool.Pool }

func (m *messageStore) AppendMessage(ctx context.Context, msg *storage.MessageRecord) error {
	_, err := m.db.Exec(ctx,
		`INSERT INTO messages (id, channel_id, sender_hash, ciphertext, sequence, processed)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ChannelID, msg.SenderHash, msg.Ciphertext, msg.Sequence, msg.Processed)
	if err != nil {
		return errs.ErrIo
	}
	return nil
}

func (m *messageStore) ListMessages(ctx context.Context, channelID string, fromSequence uint64, limit int) ([]*storage.MessageRecord, error) {
	rows, err := m.db.Query(ctx,
		`SELECT id, channel_id, sender_hash, ciphertext, sequence, processed, created_at
		 FROM messages WHERE channel_id = $1 AND sequence >= $2
		 ORDER BY sequence ASC LIMIT $3`, channelID, fromSequence, limit)
	if err != nil {
		return nil, errs.ErrIo
	}
	defer rows.Close()

	var out []*storage.MessageRecord
	for rows.Next() {
		var rec storage.MessageRecord
		if err := rows.Scan(&rec.ID, &rec.ChannelID, &rec.SenderHash, &rec.Ciphertext,
			&rec.Sequence, &rec.Processed, &rec.CreatedAt); err != nil {
			return nil, errs.ErrIo
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
