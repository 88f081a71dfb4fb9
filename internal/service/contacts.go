package service

import (
	"context"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/famkeep/vaultsync/internal/crypto"
	"github.com/famkeep/vaultsync/internal/model"
)

// ReasonUnsupportedType marks a contact with no recognizable portal category.
// It is a normal outcome for generic contacts, not an error.
const ReasonUnsupportedType = "unsupported-type"

// typeKeywords maps provider types to the keyword families scanned in the
// contact's free-text fields. Matching is case-insensitive substring search.
var typeKeywords = []struct {
	typ      model.ProviderType
	keywords []string
}{
	{model.ProviderMedical, []string{"health", "medical", "doctor"}},
	{model.ProviderPet, []string{"pet", "vet"}},
	{model.ProviderAcademic, []string{"academic", "education", "school"}},
}

// InferProviderType scans free-text fields for a provider keyword family.
// Kept pure so the heuristic can be tested and later swapped for an explicit
// type tag without touching the sync engine.
func InferProviderType(fields ...string) (model.ProviderType, bool) {
	for _, family := range typeKeywords {
		for _, f := range fields {
			lower := strings.ToLower(f)
			for _, kw := range family.keywords {
				if strings.Contains(lower, kw) {
					return family.typ, true
				}
			}
		}
	}
	return "", false
}

// ContactSync is the thin policy layer between generic contact records and
// the sync engine.
type ContactSync interface {
	// OnContactUpserted infers the provider type and reconciles the vault entry.
	OnContactUpserted(ctx context.Context, sessionToken string, c model.Contact) (model.SyncResult, error)
	// OnContactDeleted removes any associated vault entry; tolerates none existing.
	OnContactDeleted(ctx context.Context, sessionToken string, c model.Contact) (model.SyncResult, error)
}

type ContactSyncImpl struct {
	sync   SyncService
	cipher crypto.Cipher
	log    *zap.Logger
}

// NewContactSync constructs the contact adapter.
func NewContactSync(sync SyncService, cipher crypto.Cipher, log *zap.Logger) *ContactSyncImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &ContactSyncImpl{sync: sync, cipher: cipher, log: log}
}

func (s *ContactSyncImpl) OnContactUpserted(ctx context.Context, sessionToken string, c model.Contact) (model.SyncResult, error) {
	typ, ok := InferProviderType(c.Module, c.Category, c.ContactType)
	if !ok {
		return model.SyncResult{Success: true, Reason: ReasonUnsupportedType}, nil
	}

	password := s.sourcePassword(ctx, sessionToken, c)

	rec := model.ProviderRecord{
		Type:             typ,
		ProviderID:       c.ID,
		Name:             c.Name,
		PortalURL:        c.PortalURL,
		Username:         c.PortalUsername,
		Password:         password,
		RelatedPersonIDs: unionIDs(c.RelatedTo, c.AssignedTo, c.Patients, c.Pets),
		CreatedBy:        c.CreatedBy,
		Notes:            c.Notes,
		Source:           contactSource(c),
	}
	return s.sync.Ensure(ctx, sessionToken, rec)
}

// sourcePassword picks the effective plaintext for a contact save: an explicit
// override wins (an empty override means "clear"); otherwise the stored
// ciphertext is decrypted for reuse. A decrypt failure is logged and treated
// as no password available, which triggers removal rather than failing the
// contact save.
func (s *ContactSyncImpl) sourcePassword(ctx context.Context, sessionToken string, c model.Contact) string {
	if c.PortalPassword != nil {
		return *c.PortalPassword
	}
	if c.PasswordEnc == "" {
		return ""
	}
	plaintext, legacy, err := s.cipher.Decrypt(ctx, c.PasswordEnc, sessionToken)
	if err != nil {
		s.log.Warn("stored portal password unreadable, treating as absent",
			zap.String("contact_id", c.ID.String()), zap.Error(err))
		return ""
	}
	if legacy {
		s.log.Warn("contact password decoded via legacy base64 fallback",
			zap.String("contact_id", c.ID.String()))
	}
	return plaintext
}

func (s *ContactSyncImpl) OnContactDeleted(ctx context.Context, sessionToken string, c model.Contact) (model.SyncResult, error) {
	typ, ok := InferProviderType(c.Module, c.Category, c.ContactType)
	if !ok {
		// The entry may predate a category change; still attempt removal.
		typ = model.ProviderOther
	}
	return s.sync.Delete(ctx, typ, c.ID, "", contactSource(c))
}

func contactSource(c model.Contact) string {
	if c.Source != "" {
		return c.Source
	}
	return "contacts"
}

// unionIDs merges possibly-nil id lists, deduplicated, preserving order.
func unionIDs(lists ...[]uuid.UUID) []uuid.UUID {
	var merged []uuid.UUID
	for _, l := range lists {
		merged = append(merged, l...)
	}
	return dedupe(merged)
}
