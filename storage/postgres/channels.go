package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spacepanda-project/spacepanda/internal/errs"
	"github.com/spacepanda-project/spacepanda/storage"
)

type channelStore struct{ db *pgxpool.Pool }

func (c *channelStore) SaveChannel(ctx context.Context, rec *storage.ChannelRecord) error {
	_, err := c.db.Exec(ctx,
		`INSERT INTO channels (channel_id, name_ct, topic_ct, members_ct, schema_version)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (channel_id) DO UPDATE SET
		   name_ct = EXCLUDED.name_ct, topic_ct = EXCLUDED.topic_ct,
		   members_ct = EXCLUDED.members_ct, schema_version = EXCLUDED.schema_version,
		   updated_at = now()`,
		rec.ChannelID, rec.NameCT, rec.TopicCT, rec.MembersCT, rec.SchemaVersion)
	if err != nil {
		return errs.ErrIo
	}
	return nil
}

func (c *channelStore) LoadChannel(ctx context.Context, channelID string) (*storage.ChannelRecord, error) {
	row := c.db.QueryRow(ctx,
		`SELECT channel_id, name_ct, topic_ct, members_ct, schema_version, updated_at
		 FROM channels WHERE channel_id = $1`, channelID)

	var rec storage.ChannelRecord
	err := row.Scan(&rec.ChannelID, &rec.NameCT, &rec.TopicCT, &rec.MembersCT, &rec.SchemaVersion, &rec.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.ErrNotFound
		}
		return nil, errs.ErrIo
	}
	return &rec, nil
}

func (c *channelStore) DeleteChannel(ctx context.Context, channelID string) error {
	tag, err := c.db.Exec(ctx, `DELETE FROM channels WHERE channel_id = $1`, channelID)
	if err != nil {
		return errs.ErrIo
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
