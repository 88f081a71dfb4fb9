package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/famkeep/vaultsync/internal/errs"
	"github.com/famkeep/vaultsync/internal/model"
)

// VaultRepo implements VaultRepository using PostgreSQL.
type VaultRepo struct{ db *DB }

// NewVaultRepo constructs a vault entry repository.
func NewVaultRepo(db *DB) *VaultRepo { return &VaultRepo{db: db} }

// GetBySourceRef loads the entry linked to (source, source_reference).
func (r *VaultRepo) GetBySourceRef(ctx context.Context, source, sourceRef string) (*model.VaultEntry, error) {
	const q = `
SELECT id, service_name, username, password_enc, url, category, owner_id, shared_with,
       source, source_reference, notes, tags, is_shared, created_at, updated_at
FROM vault_entries WHERE source=$1 AND source_reference=$2`
	row := r.db.Pool.QueryRow(ctx, q, source, sourceRef)
	var e model.VaultEntry
	err := row.Scan(&e.ID, &e.ServiceName, &e.Username, &e.PasswordEnc, &e.URL, &e.Category,
		&e.OwnerID, &e.SharedWith, &e.Source, &e.SourceReference, &e.Notes, &e.Tags,
		&e.IsShared, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Upsert inserts or updates atomically on the (source, source_reference)
// uniqueness key. Two concurrent reconciliations for the same provider cannot
// both insert; the loser's values win via DO UPDATE and the original id is kept.
func (r *VaultRepo) Upsert(ctx context.Context, e *model.VaultEntry) (uuid.UUID, bool, error) {
	const q = `
INSERT INTO vault_entries
  (id, service_name, username, password_enc, url, category, owner_id, shared_with,
   source, source_reference, notes, tags, is_shared)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (source, source_reference) DO UPDATE SET
  service_name=EXCLUDED.service_name,
  username=EXCLUDED.username,
  password_enc=EXCLUDED.password_enc,
  url=EXCLUDED.url,
  category=EXCLUDED.category,
  owner_id=EXCLUDED.owner_id,
  shared_with=EXCLUDED.shared_with,
  notes=EXCLUDED.notes,
  tags=EXCLUDED.tags,
  is_shared=EXCLUDED.is_shared,
  updated_at=now()
RETURNING id, (xmax = 0) AS created`
	var (
		id      uuid.UUID
		created bool
	)
	err := r.db.Pool.QueryRow(ctx, q,
		e.ID, e.ServiceName, e.Username, e.PasswordEnc, e.URL, e.Category, e.OwnerID,
		e.SharedWith, e.Source, e.SourceReference, e.Notes, e.Tags, e.IsShared,
	).Scan(&id, &created)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, false, fmt.Errorf("vault upsert: %w", errs.ErrConflict)
		}
		return uuid.Nil, false, err
	}
	return id, created, nil
}

// UpdateByID rewrites an existing entry in place.
func (r *VaultRepo) UpdateByID(ctx context.Context, e *model.VaultEntry) error {
	const q = `
UPDATE vault_entries SET
  service_name=$2, username=$3, password_enc=$4, url=$5, category=$6, owner_id=$7,
  shared_with=$8, source=$9, source_reference=$10, notes=$11, tags=$12, is_shared=$13,
  updated_at=now()
WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q,
		e.ID, e.ServiceName, e.Username, e.PasswordEnc, e.URL, e.Category, e.OwnerID,
		e.SharedWith, e.Source, e.SourceReference, e.Notes, e.Tags, e.IsShared)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("vault update: %w", errs.ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// DeleteBySourceRef removes the linked entry; deleting nothing is not an error.
func (r *VaultRepo) DeleteBySourceRef(ctx context.Context, source, sourceRef string) (bool, error) {
	const q = `DELETE FROM vault_entries WHERE source=$1 AND source_reference=$2`
	tag, err := r.db.Pool.Exec(ctx, q, source, sourceRef)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
