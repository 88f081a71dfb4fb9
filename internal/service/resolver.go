// Package service contains application services for ownership resolution and
// portal-password synchronization.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/famkeep/vaultsync/internal/errs"
	"github.com/famkeep/vaultsync/internal/model"
	"github.com/famkeep/vaultsync/internal/repository"
)

// Resolver maps person-graph identifiers to a canonical owner account and a
// deduplicated list of additional viewers.
type Resolver interface {
	// ResolveOwnerAndShared resolves each person to a system account (direct
	// link, then guardian's link, then email lookup), dropping persons that
	// resolve to nothing. The first resolved account becomes the owner; the
	// rest, plus extraShared, become sharedWith. With no resolutions the
	// fallback owner is used; if that is nil too, errs.ErrMissingOwner.
	ResolveOwnerAndShared(ctx context.Context, personIDs, extraShared []uuid.UUID, fallbackOwner uuid.UUID) (model.Ownership, error)
}

type ResolverImpl struct {
	family repository.FamilyRepository
}

// NewResolver constructs a Resolver over the family graph.
func NewResolver(family repository.FamilyRepository) *ResolverImpl {
	return &ResolverImpl{family: family}
}

func (r *ResolverImpl) ResolveOwnerAndShared(ctx context.Context, personIDs, extraShared []uuid.UUID, fallbackOwner uuid.UUID) (model.Ownership, error) {
	members, err := r.family.GetMembers(ctx, dedupe(personIDs))
	if err != nil {
		return model.Ownership{}, fmt.Errorf("load members: %w", err)
	}

	// Guardians may live outside the requested set; fetch the missing ones.
	var guardianIDs []uuid.UUID
	for _, m := range members {
		if !m.UserID.Valid && m.GuardianID.Valid {
			if _, ok := members[m.GuardianID.UUID]; !ok {
				guardianIDs = append(guardianIDs, m.GuardianID.UUID)
			}
		}
	}
	guardians := map[uuid.UUID]model.FamilyMember{}
	if len(guardianIDs) > 0 {
		guardians, err = r.family.GetMembers(ctx, dedupe(guardianIDs))
		if err != nil {
			return model.Ownership{}, fmt.Errorf("load guardians: %w", err)
		}
	}

	var accounts []uuid.UUID
	seen := map[uuid.UUID]bool{}
	add := func(id uuid.UUID) {
		if id != uuid.Nil && !seen[id] {
			seen[id] = true
			accounts = append(accounts, id)
		}
	}

	for _, pid := range personIDs {
		m, ok := members[pid]
		if !ok {
			continue
		}
		acct, err := r.resolveMember(ctx, m, members, guardians)
		if err != nil {
			return model.Ownership{}, err
		}
		add(acct)
	}

	if len(accounts) == 0 {
		if fallbackOwner == uuid.Nil {
			return model.Ownership{}, errs.ErrMissingOwner
		}
		accounts = append(accounts, fallbackOwner)
		seen[fallbackOwner] = true
	}

	for _, id := range extraShared {
		add(id)
	}

	return model.Ownership{OwnerID: accounts[0], SharedWith: accounts[1:]}, nil
}

// resolveMember returns the account for one person, or uuid.Nil if none.
func (r *ResolverImpl) resolveMember(
	ctx context.Context, m model.FamilyMember,
	members, guardians map[uuid.UUID]model.FamilyMember,
) (uuid.UUID, error) {
	if m.UserID.Valid {
		return m.UserID.UUID, nil
	}
	if m.GuardianID.Valid {
		g, ok := members[m.GuardianID.UUID]
		if !ok {
			g, ok = guardians[m.GuardianID.UUID]
		}
		if ok && g.UserID.Valid {
			return g.UserID.UUID, nil
		}
	}
	if m.Email != "" {
		id, err := r.family.AccountIDByEmail(ctx, m.Email)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return uuid.Nil, fmt.Errorf("account by email: %w", err)
		}
	}
	return uuid.Nil, nil
}

// dedupe removes duplicate ids preserving first-seen order.
func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
