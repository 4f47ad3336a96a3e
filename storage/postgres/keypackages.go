package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spacepanda-project/spacepanda/internal/errs"
	"github.com/spacepanda-project/spacepanda/storage"
)

type keyPackageStore struct{ db *pgxpool.Pool }

func (k *keyPackageStore) SaveKeyPackage(ctx context.Context, kp *storage.KeyPackageRecord) error {
	_, err := k.db.Exec(ctx,
		`INSERT INTO key_packages (id, owner_id, data, used) VALUES ($1, $2, $3, false)`,
		kp.ID, kp.OwnerID, kp.Data)
	if err != nil {
		return errs.ErrIo
	}
	return nil
}

// LoadKeyPackage atomically marks the row used and returns it in the
// same statement, so two concurrent loads of the same KeyPackage can
// never both succeed (spec §4.3 "KeyPackage single-use").
func (k *keyPackageStore) LoadKeyPackage(ctx context.Context, id string) (*storage.KeyPackageRecord, error) {
	row := k.db.QueryRow(ctx,
		`UPDATE key_packages SET used = true
		 WHERE id = $1 AND used = false
		 RETURNING id, owner_id, data, used, created_at`, id)

	var kp storage.KeyPackageRecord
	err := row.Scan(&kp.ID, &kp.OwnerID, &kp.Data, &kp.Used, &kp.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.ErrNotFound
		}
		return nil, errs.ErrIo
	}
	return &kp, nil
}
