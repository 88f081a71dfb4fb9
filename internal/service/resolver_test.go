package service

import (
	"context"
	"strings"
	"testing"

	"github.com/gofrs/uuid/v5"

	"github.com/famkeep/vaultsync/internal/errs"
	"github.com/famkeep/vaultsync/internal/model"
	"github.com/famkeep/vaultsync/internal/repository"
)

type fakeFamilyRepo struct {
	members  map[uuid.UUID]model.FamilyMember
	accounts map[string]uuid.UUID
}

var _ repository.FamilyRepository = (*fakeFamilyRepo)(nil)

func (f *fakeFamilyRepo) GetMembers(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]model.FamilyMember, error) {
	out := make(map[uuid.UUID]model.FamilyMember, len(ids))
	for _, id := range ids {
		if m, ok := f.members[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (f *fakeFamilyRepo) AccountIDByEmail(_ context.Context, email string) (uuid.UUID, error) {
	if id, ok := f.accounts[strings.ToLower(email)]; ok {
		return id, nil
	}
	return uuid.Nil, errs.ErrNotFound
}

func newID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.Must(uuid.NewV4())
}

func linked(id, userID uuid.UUID) model.FamilyMember {
	return model.FamilyMember{ID: id, UserID: uuid.NullUUID{UUID: userID, Valid: true}}
}

func TestResolver_FirstSeenOrderDeterminism(t *testing.T) {
	ctx := context.Background()
	a, b, c := newID(t), newID(t), newID(t)
	u1, u2 := newID(t), newID(t)

	repo := &fakeFamilyRepo{members: map[uuid.UUID]model.FamilyMember{
		a: linked(a, u1),
		b: linked(b, u2),
		c: {ID: c}, // resolves to nothing, silently dropped
	}}
	r := NewResolver(repo)

	own, err := r.ResolveOwnerAndShared(ctx, []uuid.UUID{a, b, a, c}, nil, uuid.Nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if own.OwnerID != u1 {
		t.Fatalf("owner want %s got %s", u1, own.OwnerID)
	}
	if len(own.SharedWith) != 1 || own.SharedWith[0] != u2 {
		t.Fatalf("sharedWith want [%s] got %v", u2, own.SharedWith)
	}
}

func TestResolver_GuardianLink(t *testing.T) {
	ctx := context.Background()
	child, guardian := newID(t), newID(t)
	parentAcct := newID(t)

	repo := &fakeFamilyRepo{members: map[uuid.UUID]model.FamilyMember{
		child: {
			ID:         child,
			MemberType: "child",
			GuardianID: uuid.NullUUID{UUID: guardian, Valid: true},
		},
		guardian: linked(guardian, parentAcct),
	}}
	r := NewResolver(repo)

	// Guardian is fetched even though only the child is in the request set.
	own, err := r.ResolveOwnerAndShared(ctx, []uuid.UUID{child}, nil, uuid.Nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if own.OwnerID != parentAcct {
		t.Fatalf("owner want guardian account %s got %s", parentAcct, own.OwnerID)
	}
}

func TestResolver_EmailFallback(t *testing.T) {
	ctx := context.Background()
	person, acct := newID(t), newID(t)

	repo := &fakeFamilyRepo{
		members:  map[uuid.UUID]model.FamilyMember{person: {ID: person, Email: "jane@example.com"}},
		accounts: map[string]uuid.UUID{"jane@example.com": acct},
	}
	r := NewResolver(repo)

	own, err := r.ResolveOwnerAndShared(ctx, []uuid.UUID{person}, nil, uuid.Nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if own.OwnerID != acct {
		t.Fatalf("owner want %s got %s", acct, own.OwnerID)
	}
}

func TestResolver_FallbackOwner(t *testing.T) {
	ctx := context.Background()
	ghost, creator := newID(t), newID(t)

	r := NewResolver(&fakeFamilyRepo{members: map[uuid.UUID]model.FamilyMember{}})

	own, err := r.ResolveOwnerAndShared(ctx, []uuid.UUID{ghost}, nil, creator)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if own.OwnerID != creator || len(own.SharedWith) != 0 {
		t.Fatalf("want fallback owner %s, got %+v", creator, own)
	}
}

func TestResolver_NoOwner_Fails(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(&fakeFamilyRepo{members: map[uuid.UUID]model.FamilyMember{}})

	_, err := r.ResolveOwnerAndShared(ctx, []uuid.UUID{newID(t)}, nil, uuid.Nil)
	if err == nil || !strings.Contains(err.Error(), errs.ErrMissingOwner.Error()) {
		t.Fatalf("want missing owner, got %v", err)
	}
}

func TestResolver_ExtraSharedMergeKeepsInvariant(t *testing.T) {
	ctx := context.Background()
	a := newID(t)
	u1, u2 := newID(t), newID(t)

	repo := &fakeFamilyRepo{members: map[uuid.UUID]model.FamilyMember{a: linked(a, u1)}}
	r := NewResolver(repo)

	// Extra list repeats the owner and contains duplicates.
	own, err := r.ResolveOwnerAndShared(ctx, []uuid.UUID{a}, []uuid.UUID{u1, u2, u2}, uuid.Nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if own.OwnerID != u1 {
		t.Fatalf("owner want %s got %s", u1, own.OwnerID)
	}
	if len(own.SharedWith) != 1 || own.SharedWith[0] != u2 {
		t.Fatalf("sharedWith must exclude owner and dupes, got %v", own.SharedWith)
	}
}
