package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/famkeep/vaultsync/internal/errs"
	"github.com/famkeep/vaultsync/internal/metrics"
	"github.com/famkeep/vaultsync/internal/model"
	"github.com/famkeep/vaultsync/internal/service"
)

// SyncHandler exposes the reconciliation engine to the owning application's
// route handlers. Sync failures return success=false in a 200 body: the
// caller's domain save must not roll back on a derived side effect.
type SyncHandler struct {
	sync     service.SyncService
	contacts service.ContactSync
	col      *metrics.Collector
	log      *zap.Logger
}

// NewSyncHandler constructs the sync API handler.
func NewSyncHandler(sync service.SyncService, contacts service.ContactSync, col *metrics.Collector, log *zap.Logger) *SyncHandler {
	return &SyncHandler{sync: sync, contacts: contacts, col: col, log: log}
}

type providerRecordDTO struct {
	Type             string      `json:"provider_type" binding:"required"`
	ProviderID       uuid.UUID   `json:"provider_id" binding:"required"`
	PortalID         string      `json:"portal_id"`
	Name             string      `json:"provider_name"`
	PortalURL        string      `json:"portal_url"`
	Username         string      `json:"username"`
	Password         string      `json:"password"`
	PasswordEnc      string      `json:"password_enc"`
	RelatedPersonIDs []uuid.UUID `json:"related_person_ids"`
	SharedWith       []uuid.UUID `json:"shared_with"`
	CreatedBy        uuid.UUID   `json:"created_by"`
	Notes            string      `json:"notes"`
	Source           string      `json:"source"`
}

var providerTypes = map[string]model.ProviderType{
	"medical":  model.ProviderMedical,
	"pet":      model.ProviderPet,
	"academic": model.ProviderAcademic,
	"other":    model.ProviderOther,
}

func (d providerRecordDTO) toModel() (model.ProviderRecord, bool) {
	typ, ok := providerTypes[d.Type]
	if !ok {
		return model.ProviderRecord{}, false
	}
	return model.ProviderRecord{
		Type:             typ,
		ProviderID:       d.ProviderID,
		PortalID:         d.PortalID,
		Name:             d.Name,
		PortalURL:        d.PortalURL,
		Username:         d.Username,
		Password:         d.Password,
		PasswordEnc:      d.PasswordEnc,
		RelatedPersonIDs: d.RelatedPersonIDs,
		ExtraShared:      d.SharedWith,
		CreatedBy:        d.CreatedBy,
		Notes:            d.Notes,
		Source:           d.Source,
	}, true
}

type contactDTO struct {
	ID             uuid.UUID   `json:"contact_id" binding:"required"`
	Name           string      `json:"name"`
	Module         string      `json:"module"`
	Category       string      `json:"category"`
	ContactType    string      `json:"contact_type"`
	PortalURL      string      `json:"portal_url"`
	PortalUsername string      `json:"portal_username"`
	PortalPassword *string     `json:"portal_password"`
	PasswordEnc    string      `json:"password_enc"`
	RelatedTo      []uuid.UUID `json:"related_to"`
	AssignedTo     []uuid.UUID `json:"assigned_to"`
	Patients       []uuid.UUID `json:"patients"`
	Pets           []uuid.UUID `json:"pets"`
	CreatedBy      uuid.UUID   `json:"created_by"`
	Source         string      `json:"source"`
	Notes          string      `json:"notes"`
}

func (d contactDTO) toModel() model.Contact {
	return model.Contact{
		ID:             d.ID,
		Name:           d.Name,
		Module:         d.Module,
		Category:       d.Category,
		ContactType:    d.ContactType,
		PortalURL:      d.PortalURL,
		PortalUsername: d.PortalUsername,
		PortalPassword: d.PortalPassword,
		PasswordEnc:    d.PasswordEnc,
		RelatedTo:      d.RelatedTo,
		AssignedTo:     d.AssignedTo,
		Patients:       d.Patients,
		Pets:           d.Pets,
		CreatedBy:      d.CreatedBy,
		Source:         d.Source,
		Notes:          d.Notes,
	}
}

// EnsurePortal reconciles one provider record.
func (h *SyncHandler) EnsurePortal(c *gin.Context) {
	var dto providerRecordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request", "details": err.Error()})
		return
	}
	rec, ok := dto.toModel()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider_type", "details": dto.Type})
		return
	}
	res, err := h.sync.Ensure(c.Request.Context(), sessionToken(c), rec)
	h.respond(c, res, err)
}

// DeletePortal removes the vault entry for a provider key. Idempotent.
func (h *SyncHandler) DeletePortal(c *gin.Context) {
	typ, ok := providerTypes[c.Query("provider_type")]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider_type"})
		return
	}
	providerID, err := uuid.FromString(c.Query("provider_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad provider_id"})
		return
	}
	res, err := h.sync.Delete(c.Request.Context(), typ, providerID, c.Query("portal_id"), c.Query("source"))
	h.respond(c, res, err)
}

// UpsertContact runs the contact-triggered sync path.
func (h *SyncHandler) UpsertContact(c *gin.Context) {
	var dto contactDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request", "details": err.Error()})
		return
	}
	res, err := h.contacts.OnContactUpserted(c.Request.Context(), sessionToken(c), dto.toModel())
	h.respond(c, res, err)
}

// DeleteContact removes any vault entry tied to a deleted contact.
func (h *SyncHandler) DeleteContact(c *gin.Context) {
	var dto contactDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request", "details": err.Error()})
		return
	}
	res, err := h.contacts.OnContactDeleted(c.Request.Context(), sessionToken(c), dto.toModel())
	h.respond(c, res, err)
}

type resyncRequest struct {
	Providers []providerRecordDTO `json:"providers" binding:"required"`
}

// Resync reconciles a batch of provider records for backfills. Per-record
// failures are reported in the results, never aborting the batch.
func (h *SyncHandler) Resync(c *gin.Context) {
	var req resyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request", "details": err.Error()})
		return
	}
	recs := make([]model.ProviderRecord, 0, len(req.Providers))
	for i, dto := range req.Providers {
		rec, ok := dto.toModel()
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider_type", "details": req.Providers[i].Type})
			return
		}
		recs = append(recs, rec)
	}

	results := h.sync.ResyncAll(c.Request.Context(), sessionToken(c), recs)
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	h.col.Inc("resync_batches")
	c.JSON(http.StatusOK, gin.H{"results": results, "failed": failed})
}

// respond maps engine outcomes to the caller-facing shape. Authorization
// failures from a remote crypto boundary surface as 401; everything else is a
// structured 200 so the owning feature's save is never rolled back.
func (h *SyncHandler) respond(c *gin.Context, res model.SyncResult, err error) {
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		case errors.Is(err, errs.ErrMissingOwner):
			h.col.Inc("sync_missing_owner")
		default:
			h.col.Inc("sync_failures")
		}
		c.JSON(http.StatusOK, res)
		return
	}
	if res.Action != "" {
		h.col.Inc("sync_" + string(res.Action))
	} else {
		h.col.Inc("sync_skipped")
	}
	c.JSON(http.StatusOK, res)
}
