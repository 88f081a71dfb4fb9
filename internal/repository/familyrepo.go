package repository

import (
	"context"

	"github.com/famkeep/vaultsync/internal/model"
	"github.com/gofrs/uuid/v5"
)

// FamilyRepository provides read access to the family/person graph and account
// lookups used for ownership resolution.
type FamilyRepository interface {
	// GetMembers loads family members by id. Missing ids are simply absent
	// from the result map.
	GetMembers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.FamilyMember, error)

	// AccountIDByEmail resolves a system account by email (errs.ErrNotFound if none).
	AccountIDByEmail(ctx context.Context, email string) (uuid.UUID, error)
}
