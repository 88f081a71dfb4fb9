package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/famkeep/vaultsync/internal/errs"
	"github.com/famkeep/vaultsync/internal/metrics"
	"github.com/famkeep/vaultsync/internal/model"
	"github.com/famkeep/vaultsync/internal/service"
)

type fakeSyncService struct {
	res model.SyncResult
	err error

	lastRec    *model.ProviderRecord
	deleteArgs []string
	resynced   int
}

var _ service.SyncService = (*fakeSyncService)(nil)

func (f *fakeSyncService) Ensure(_ context.Context, _ string, rec model.ProviderRecord) (model.SyncResult, error) {
	f.lastRec = &rec
	return f.res, f.err
}

func (f *fakeSyncService) Delete(_ context.Context, typ model.ProviderType, providerID uuid.UUID, portalID, source string) (model.SyncResult, error) {
	f.deleteArgs = []string{string(typ), providerID.String(), portalID, source}
	return f.res, f.err
}

func (f *fakeSyncService) ResyncAll(_ context.Context, _ string, recs []model.ProviderRecord) []model.SyncResult {
	f.resynced = len(recs)
	out := make([]model.SyncResult, len(recs))
	for i := range recs {
		out[i] = model.SyncResult{Success: i != 1, Action: model.ActionCreated}
	}
	return out
}

type fakeContactSync struct {
	res      model.SyncResult
	err      error
	upserts  int
	deletes  int
	lastName string
}

var _ service.ContactSync = (*fakeContactSync)(nil)

func (f *fakeContactSync) OnContactUpserted(_ context.Context, _ string, c model.Contact) (model.SyncResult, error) {
	f.upserts++
	f.lastName = c.Name
	return f.res, f.err
}

func (f *fakeContactSync) OnContactDeleted(_ context.Context, _ string, _ model.Contact) (model.SyncResult, error) {
	f.deletes++
	return f.res, f.err
}

func syncEngine(t *testing.T, sync *fakeSyncService, contacts *fakeContactSync) (*gin.Engine, *metrics.Collector) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	col := metrics.NewCollector()
	h := NewSyncHandler(sync, contacts, col, zap.NewNop())

	engine := gin.New()
	engine.Use(func(c *gin.Context) { c.Set(ctxSessionToken, "tok") })
	engine.POST("/sync/portal", h.EnsurePortal)
	engine.DELETE("/sync/portal", h.DeletePortal)
	engine.POST("/sync/contact", h.UpsertContact)
	engine.DELETE("/sync/contact", h.DeleteContact)
	engine.POST("/sync/resync", h.Resync)
	return engine, col
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func portalBody(typ string) gin.H {
	return gin.H{
		"provider_type": typ,
		"provider_id":   uuid.Must(uuid.NewV4()).String(),
		"provider_name": "Dr. Chen Pediatrics",
		"portal_url":    "https://patient.example.com",
		"username":      "jane",
		"password":      "secret123",
	}
}

func TestEnsurePortal_OK(t *testing.T) {
	entryID := uuid.Must(uuid.NewV4())
	sync := &fakeSyncService{res: model.SyncResult{Success: true, Action: model.ActionCreated, EntryID: entryID}}
	engine, col := syncEngine(t, sync, &fakeContactSync{})

	w, out := doJSON(t, engine, http.MethodPost, "/sync/portal", portalBody("medical"))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, out["success"])
	require.Equal(t, "created", out["action"])
	require.Equal(t, entryID.String(), out["vault_entry_id"])
	require.Equal(t, model.ProviderMedical, sync.lastRec.Type)
	require.Equal(t, int64(1), col.Counters()["sync_created"])
}

func TestEnsurePortal_UnknownType(t *testing.T) {
	sync := &fakeSyncService{}
	engine, _ := syncEngine(t, sync, &fakeContactSync{})

	w, _ := doJSON(t, engine, http.MethodPost, "/sync/portal", portalBody("plumbing"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Nil(t, sync.lastRec)
}

func TestEnsurePortal_MissingOwnerIsStructured200(t *testing.T) {
	sync := &fakeSyncService{
		res: model.SyncResult{Success: false, Reason: "missing-owner"},
		err: errs.ErrMissingOwner,
	}
	engine, col := syncEngine(t, sync, &fakeContactSync{})

	w, out := doJSON(t, engine, http.MethodPost, "/sync/portal", portalBody("pet"))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, false, out["success"])
	require.Equal(t, "missing-owner", out["reason"])
	require.Equal(t, int64(1), col.Counters()["sync_missing_owner"])
}

func TestEnsurePortal_Unauthorized(t *testing.T) {
	sync := &fakeSyncService{err: errs.ErrUnauthorized}
	engine, _ := syncEngine(t, sync, &fakeContactSync{})

	w, _ := doJSON(t, engine, http.MethodPost, "/sync/portal", portalBody("medical"))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeletePortal_QueryParams(t *testing.T) {
	sync := &fakeSyncService{res: model.SyncResult{Success: true, Action: model.ActionRemoved}}
	engine, _ := syncEngine(t, sync, &fakeContactSync{})

	id := uuid.Must(uuid.NewV4())
	w, out := doJSON(t, engine, http.MethodDelete,
		"/sync/portal?provider_type=academic&provider_id="+id.String()+"&portal_id=p-9&source=schools", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "removed", out["action"])
	require.Equal(t, []string{"academic", id.String(), "p-9", "schools"}, sync.deleteArgs)
}

func TestDeletePortal_BadParams(t *testing.T) {
	sync := &fakeSyncService{}
	engine, _ := syncEngine(t, sync, &fakeContactSync{})

	w, _ := doJSON(t, engine, http.MethodDelete, "/sync/portal?provider_type=medical&provider_id=not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, engine, http.MethodDelete, "/sync/portal?provider_type=bogus&provider_id="+uuid.Must(uuid.NewV4()).String(), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Nil(t, sync.deleteArgs)
}

func TestUpsertContact_SkippedCountsSeparately(t *testing.T) {
	contacts := &fakeContactSync{res: model.SyncResult{Success: true, Reason: "unsupported-type"}}
	engine, col := syncEngine(t, &fakeSyncService{}, contacts)

	w, out := doJSON(t, engine, http.MethodPost, "/sync/contact", gin.H{
		"contact_id": uuid.Must(uuid.NewV4()).String(),
		"name":       "Bob the Plumber",
		"category":   "Home Services",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, out["success"])
	require.Equal(t, 1, contacts.upserts)
	require.Equal(t, "Bob the Plumber", contacts.lastName)
	require.Equal(t, int64(1), col.Counters()["sync_skipped"])
}

func TestDeleteContact(t *testing.T) {
	contacts := &fakeContactSync{res: model.SyncResult{Success: true, Action: model.ActionRemoved}}
	engine, _ := syncEngine(t, &fakeSyncService{}, contacts)

	w, _ := doJSON(t, engine, http.MethodDelete, "/sync/contact", gin.H{
		"contact_id": uuid.Must(uuid.NewV4()).String(),
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, contacts.deletes)
}

func TestResync_ReportsFailedCount(t *testing.T) {
	sync := &fakeSyncService{}
	engine, col := syncEngine(t, sync, &fakeContactSync{})

	w, out := doJSON(t, engine, http.MethodPost, "/sync/resync", gin.H{
		"providers": []gin.H{portalBody("medical"), portalBody("pet"), portalBody("other")},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 3, sync.resynced)
	require.Equal(t, float64(1), out["failed"])
	require.Equal(t, int64(1), col.Counters()["resync_batches"])
}

func TestResync_RejectsUnknownTypeInBatch(t *testing.T) {
	sync := &fakeSyncService{}
	engine, _ := syncEngine(t, sync, &fakeContactSync{})

	w, _ := doJSON(t, engine, http.MethodPost, "/sync/resync", gin.H{
		"providers": []gin.H{portalBody("medical"), portalBody("bogus")},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, 0, sync.resynced)
}
