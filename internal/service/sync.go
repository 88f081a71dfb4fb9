package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/famkeep/vaultsync/internal/crypto"
	"github.com/famkeep/vaultsync/internal/errs"
	"github.com/famkeep/vaultsync/internal/model"
	"github.com/famkeep/vaultsync/internal/repository"
)

// Failure reasons surfaced to callers alongside success=false.
const (
	ReasonMissingOwner = "missing-owner"
	ReasonCryptoFailed = "crypto-failed"
	ReasonWriteFailed  = "write-failed"
)

// SyncService reconciles provider records with vault entries: exactly one
// entry per provider once reconciliation completes, removed when the
// credential set is incomplete.
type SyncService interface {
	// Ensure creates, updates, or removes the vault entry for rec.
	Ensure(ctx context.Context, sessionToken string, rec model.ProviderRecord) (model.SyncResult, error)
	// Delete removes the entry for the given provider key; idempotent.
	Delete(ctx context.Context, typ model.ProviderType, providerID uuid.UUID, portalID, source string) (model.SyncResult, error)
	// ResyncAll reconciles a batch; one record's failure never aborts the rest.
	ResyncAll(ctx context.Context, sessionToken string, recs []model.ProviderRecord) []model.SyncResult
}

type SyncServiceImpl struct {
	vault    repository.VaultRepository
	resolver Resolver
	cipher   crypto.Cipher
	log      *zap.Logger
}

// NewSyncService constructs the sync engine.
func NewSyncService(vault repository.VaultRepository, resolver Resolver, cipher crypto.Cipher, log *zap.Logger) *SyncServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncServiceImpl{vault: vault, resolver: resolver, cipher: cipher, log: log}
}

// Ensure reconciles one provider record. Update policy: the password is
// re-encrypted on every update (one crypto call per record; no
// decrypt-and-compare).
func (s *SyncServiceImpl) Ensure(ctx context.Context, sessionToken string, rec model.ProviderRecord) (model.SyncResult, error) {
	password, res, err := s.resolvePassword(ctx, sessionToken, rec)
	if err != nil {
		return res, err
	}

	// Incomplete credentials model the entry as absent, not as an error.
	if rec.PortalURL == "" || rec.Username == "" || password == "" {
		return s.remove(ctx, rec.SourceTag(), rec.SourceReference(), rec.ProviderID)
	}

	own, err := s.resolver.ResolveOwnerAndShared(ctx, rec.RelatedPersonIDs, rec.ExtraShared, rec.CreatedBy)
	if err != nil {
		if errors.Is(err, errs.ErrMissingOwner) {
			s.log.Warn("no owner resolved, skipping vault write",
				zap.String("provider_type", string(rec.Type)),
				zap.String("provider_id", rec.ProviderID.String()))
			return model.SyncResult{Success: false, Reason: ReasonMissingOwner}, err
		}
		return model.SyncResult{Success: false, Error: err.Error()}, err
	}

	enc, err := s.cipher.Encrypt(ctx, password, sessionToken)
	if err != nil {
		return model.SyncResult{Success: false, Reason: ReasonCryptoFailed, Error: err.Error()}, err
	}

	entry := &model.VaultEntry{
		ServiceName:     rec.Name,
		Username:        rec.Username,
		PasswordEnc:     enc,
		URL:             rec.PortalURL,
		Category:        rec.Type.Category(),
		OwnerID:         own.OwnerID,
		SharedWith:      own.SharedWith,
		Source:          rec.SourceTag(),
		SourceReference: rec.SourceReference(),
		Notes:           rec.Notes,
		Tags:            []string{"portal", string(rec.Type)},
		IsShared:        len(own.SharedWith) > 0,
	}

	existing, err := s.findExisting(ctx, entry.Source, entry.SourceReference, rec.ProviderID)
	if err != nil {
		return model.SyncResult{Success: false, Reason: ReasonWriteFailed, Error: err.Error()}, err
	}

	if existing != nil {
		entry.ID = existing.ID
		if err := s.vault.UpdateByID(ctx, entry); err != nil {
			return model.SyncResult{Success: false, Reason: ReasonWriteFailed, Error: err.Error()},
				fmt.Errorf("sync write: %w", err)
		}
		s.logOutcome(rec, model.ActionUpdated, entry.ID)
		return model.SyncResult{Success: true, Action: model.ActionUpdated, EntryID: entry.ID}, nil
	}

	id, err := uuid.NewV4()
	if err != nil {
		return model.SyncResult{Success: false, Error: err.Error()}, err
	}
	entry.ID = id
	entryID, created, err := s.vault.Upsert(ctx, entry)
	if err != nil {
		return model.SyncResult{Success: false, Reason: ReasonWriteFailed, Error: err.Error()},
			fmt.Errorf("sync write: %w", err)
	}
	action := model.ActionCreated
	if !created {
		// Lost an insert race; the upsert updated the surviving row in place.
		action = model.ActionUpdated
	}
	s.logOutcome(rec, action, entryID)
	return model.SyncResult{Success: true, Action: action, EntryID: entryID}, nil
}

// resolvePassword returns the effective plaintext: fresh plaintext when
// supplied, else the stored ciphertext decrypted through the crypto boundary.
func (s *SyncServiceImpl) resolvePassword(ctx context.Context, sessionToken string, rec model.ProviderRecord) (string, model.SyncResult, error) {
	if rec.Password != "" {
		return rec.Password, model.SyncResult{}, nil
	}
	if rec.PasswordEnc == "" {
		return "", model.SyncResult{}, nil
	}
	plaintext, legacy, err := s.cipher.Decrypt(ctx, rec.PasswordEnc, sessionToken)
	if err != nil {
		return "", model.SyncResult{Success: false, Reason: ReasonCryptoFailed, Error: err.Error()}, err
	}
	if legacy {
		s.log.Warn("stored password decoded via legacy base64 fallback",
			zap.String("provider_type", string(rec.Type)),
			zap.String("provider_id", rec.ProviderID.String()))
	}
	return plaintext, model.SyncResult{}, nil
}

// findExisting looks the entry up by the preferred link key, then by the
// provider id for rows written before an explicit portal link existed.
func (s *SyncServiceImpl) findExisting(ctx context.Context, source, sourceRef string, providerID uuid.UUID) (*model.VaultEntry, error) {
	e, err := s.vault.GetBySourceRef(ctx, source, sourceRef)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	if fallback := providerID.String(); fallback != sourceRef {
		e, err = s.vault.GetBySourceRef(ctx, source, fallback)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// Delete removes the vault entry for (providerType, providerId).
func (s *SyncServiceImpl) Delete(ctx context.Context, typ model.ProviderType, providerID uuid.UUID, portalID, source string) (model.SyncResult, error) {
	rec := model.ProviderRecord{Type: typ, ProviderID: providerID, PortalID: portalID, Source: source}
	return s.remove(ctx, rec.SourceTag(), rec.SourceReference(), providerID)
}

func (s *SyncServiceImpl) remove(ctx context.Context, source, sourceRef string, providerID uuid.UUID) (model.SyncResult, error) {
	removed, err := s.vault.DeleteBySourceRef(ctx, source, sourceRef)
	if err != nil {
		return model.SyncResult{Success: false, Reason: ReasonWriteFailed, Error: err.Error()},
			fmt.Errorf("sync delete: %w", err)
	}
	if !removed {
		if fallback := providerID.String(); fallback != sourceRef {
			if _, err := s.vault.DeleteBySourceRef(ctx, source, fallback); err != nil {
				return model.SyncResult{Success: false, Reason: ReasonWriteFailed, Error: err.Error()},
					fmt.Errorf("sync delete: %w", err)
			}
		}
	}
	return model.SyncResult{Success: true, Action: model.ActionRemoved}, nil
}

// ResyncAll reconciles each record in turn, collecting per-record outcomes.
func (s *SyncServiceImpl) ResyncAll(ctx context.Context, sessionToken string, recs []model.ProviderRecord) []model.SyncResult {
	results := make([]model.SyncResult, 0, len(recs))
	for _, rec := range recs {
		res, err := s.Ensure(ctx, sessionToken, rec)
		if err != nil {
			s.log.Error("resync record failed",
				zap.String("provider_type", string(rec.Type)),
				zap.String("provider_id", rec.ProviderID.String()),
				zap.Error(err))
		}
		results = append(results, res)
	}
	return results
}

func (s *SyncServiceImpl) logOutcome(rec model.ProviderRecord, action model.Action, entryID uuid.UUID) {
	s.log.Info("vault entry reconciled",
		zap.String("provider_type", string(rec.Type)),
		zap.String("provider_id", rec.ProviderID.String()),
		zap.String("action", string(action)),
		zap.String("entry_id", entryID.String()))
}
