// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// ProviderType classifies the domain entity an external login belongs to.
type ProviderType string

const (
	ProviderMedical  ProviderType = "medical"
	ProviderPet      ProviderType = "pet"
	ProviderAcademic ProviderType = "academic"
	ProviderOther    ProviderType = "other"
)

// Category returns the vault category label for the provider type.
func (p ProviderType) Category() string {
	switch p {
	case ProviderMedical:
		return "Medical"
	case ProviderPet:
		return "Pet Care"
	case ProviderAcademic:
		return "Education"
	default:
		return "Other"
	}
}

// ProviderRecord is an external login surface tied to a domain entity
// (doctor, vet, academic portal, generic contact). Password is plaintext at
// this boundary only and is never persisted unencrypted.
type ProviderRecord struct {
	Type             ProviderType
	ProviderID       uuid.UUID // id of the underlying domain entity, not the vault entry
	PortalID         string    // optional explicit link, preferred over ProviderID
	Name             string
	PortalURL        string
	Username         string
	Password         string // freshly supplied plaintext, may be empty
	PasswordEnc      string // previously stored envelope, used when Password is empty
	RelatedPersonIDs []uuid.UUID
	ExtraShared      []uuid.UUID // externally supplied share list, merged after resolution
	CreatedBy        uuid.UUID   // fallback owner when no related person resolves
	Notes            string
	Source           string // provenance tag, e.g. "doctors", "contacts"
}

// SourceReference returns the vault link key: the explicit portal id when
// present, otherwise the provider id.
func (r ProviderRecord) SourceReference() string {
	if r.PortalID != "" {
		return r.PortalID
	}
	return r.ProviderID.String()
}

// SourceTag returns the provenance tag, defaulting by provider type.
func (r ProviderRecord) SourceTag() string {
	if r.Source != "" {
		return r.Source
	}
	return string(r.Type) + "-portal"
}

// VaultEntry is the stored, encrypted credential record.
type VaultEntry struct {
	ID              uuid.UUID
	ServiceName     string
	Username        string
	PasswordEnc     string // envelope format: hex(iv):hex(tag):hex(ct)
	URL             string
	Category        string
	OwnerID         uuid.UUID
	SharedWith      []uuid.UUID // owner excluded, no duplicates
	Source          string
	SourceReference string
	Notes           string
	Tags            []string
	IsShared        bool // derived: len(SharedWith) > 0
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FamilyMember is a person-graph entry (human or pet), optionally linked to a
// system account directly, through a guardian, or by email.
type FamilyMember struct {
	ID         uuid.UUID
	FullName   string
	MemberType string // adult | child | pet
	UserID     uuid.NullUUID
	GuardianID uuid.NullUUID
	Email      string
}

// Ownership is the result of resolving related persons to system accounts.
type Ownership struct {
	OwnerID    uuid.UUID
	SharedWith []uuid.UUID
}

// Action reports what the sync engine did to the vault entry.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionRemoved Action = "removed"
)

// SyncResult is the caller-facing outcome of one reconciliation.
type SyncResult struct {
	Success bool      `json:"success"`
	Action  Action    `json:"action,omitempty"`
	EntryID uuid.UUID `json:"vault_entry_id,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Contact is a generic contact record as submitted by the owning application.
// Module/Category/ContactType are free-text fields scanned for provider-type
// inference.
type Contact struct {
	ID             uuid.UUID
	Name           string
	Module         string
	Category       string
	ContactType    string
	PortalURL      string
	PortalUsername string
	// PortalPassword overrides the stored ciphertext when non-nil; an explicit
	// empty string means "clear the password".
	PortalPassword *string
	PasswordEnc    string
	RelatedTo      []uuid.UUID
	AssignedTo     []uuid.UUID
	Patients       []uuid.UUID
	Pets           []uuid.UUID
	CreatedBy      uuid.UUID
	Source         string
	Notes          string
}
