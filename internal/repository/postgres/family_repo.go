package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/famkeep/vaultsync/internal/errs"
	"github.com/famkeep/vaultsync/internal/model"
)

// FamilyRepo implements FamilyRepository using PostgreSQL.
type FamilyRepo struct{ db *DB }

// NewFamilyRepo constructs a family graph repository.
func NewFamilyRepo(db *DB) *FamilyRepo { return &FamilyRepo{db: db} }

// GetMembers loads family members by id; unknown ids are absent from the map.
func (r *FamilyRepo) GetMembers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.FamilyMember, error) {
	out := make(map[uuid.UUID]model.FamilyMember, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	const q = `
SELECT id, full_name, member_type, user_id, guardian_id, COALESCE(email, '')
FROM family_members WHERE id = ANY($1)`
	rows, err := r.db.Pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m model.FamilyMember
		if err = rows.Scan(&m.ID, &m.FullName, &m.MemberType, &m.UserID, &m.GuardianID, &m.Email); err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

// AccountIDByEmail resolves a system account id by email.
func (r *FamilyRepo) AccountIDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	const q = `SELECT id FROM accounts WHERE lower(email)=lower($1)`
	var id uuid.UUID
	if err := r.db.Pool.QueryRow(ctx, q, email).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, errs.ErrNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}
