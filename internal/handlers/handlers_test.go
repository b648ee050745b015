package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/edr"
	"github.com/Ramsey-B/clover/pkg/erp"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/samm"
)

const partnerBpnl = "BPNL4444444444XX"

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(testLogger())
	e.Use(middleware.Context())
	return e
}

func do(e *echo.Echo, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type fakeTokens struct {
	puts    []edr.Token
	updates map[string]string
}

func (f *fakeTokens) Put(_ context.Context, token edr.Token) error {
	f.puts = append(f.puts, token)
	return nil
}

func (f *fakeTokens) UpdateAuthCode(_ context.Context, transferID, authCode string) error {
	if f.updates == nil {
		f.updates = map[string]string{}
	}
	f.updates[transferID] = authCode
	return nil
}

func TestEDRHandler(t *testing.T) {
	tokens := &fakeTokens{}
	e := newEcho()
	NewEDRHandler(tokens, testLogger()).RegisterRoutes(e)

	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{
			name: "complete token",
			path: "/edrendpoint",
			body: `{"id":"tp-1","authKey":"Authorization","authCode":"secret","endpoint":"https://partner.example/api/public"}`,
			code: http.StatusOK,
		},
		{
			name: "missing endpoint",
			path: "/edrendpoint",
			body: `{"id":"tp-1","authKey":"Authorization","authCode":"secret"}`,
			code: http.StatusBadRequest,
		},
		{
			name: "endpoint is not a url",
			path: "/edrendpoint",
			body: `{"id":"tp-1","authKey":"Authorization","authCode":"secret","endpoint":"nowhere"}`,
			code: http.StatusBadRequest,
		},
		{
			name: "vertical whitespace",
			path: "/edrendpoint",
			body: `{"id":"tp-1\n","authKey":"Authorization","authCode":"secret","endpoint":"https://partner.example"}`,
			code: http.StatusBadRequest,
		},
		{
			name: "not json",
			path: "/edrendpoint",
			body: `{`,
			code: http.StatusBadRequest,
		},
		{
			name: "auth code",
			path: "/authCodes",
			body: `{"id":"tp-2","authCode":"rotated"}`,
			code: http.StatusOK,
		},
		{
			name: "auth code without id",
			path: "/authCodes",
			body: `{"authCode":"rotated"}`,
			code: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}

	require.Len(t, tokens.puts, 1)
	assert.Equal(t, edr.Token{
		TransferID: "tp-1",
		AuthKey:    "Authorization",
		AuthCode:   "secret",
		Endpoint:   "https://partner.example/api/public",
	}, tokens.puts[0])
	assert.Equal(t, map[string]string{"tp-2": "rotated"}, tokens.updates)
}

type fakeProvider struct {
	bpnl      string
	cx        string
	direction models.Direction
	err       error
}

func (f *fakeProvider) ItemStock(_ context.Context, bpnl, cx string, direction models.Direction) (*samm.ItemStock, error) {
	f.bpnl, f.cx, f.direction = bpnl, cx, direction
	if f.err != nil {
		return nil, f.err
	}
	return &samm.ItemStock{MaterialGlobalAssetID: cx, Direction: string(direction), Positions: []samm.ItemStockPosition{}}, nil
}

func (f *fakeProvider) PartTypeInformation(_ context.Context, bpnl, materialNumber string) (*samm.PartTypeInformation, error) {
	f.bpnl = bpnl
	if f.err != nil {
		return nil, f.err
	}
	return &samm.PartTypeInformation{
		CatenaXID:           "urn:uuid:own",
		PartTypeInformation: samm.PartTypeDetails{ManufacturerPartID: materialNumber},
	}, nil
}

type fakeCorrelator struct {
	got *erp.Response
	err error
}

func (f *fakeCorrelator) HandleResponse(_ context.Context, resp *erp.Response) error {
	f.got = resp
	return f.err
}

func TestSubmodelHandler(t *testing.T) {
	provider := &fakeProvider{}
	correlator := &fakeCorrelator{}
	e := newEcho()
	NewSubmodelHandler(provider, correlator).RegisterRoutes(e)
	partner := map[string]string{middleware.HeaderEdcBpn: partnerBpnl}

	t.Run("item stock", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/submodel/item-stock/urn:uuid:own/OUTBOUND", "", partner)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"materialGlobalAssetId":"urn:uuid:own","direction":"OUTBOUND","positions":[]}`, rec.Body.String())
		assert.Equal(t, partnerBpnl, provider.bpnl)
		assert.Equal(t, models.DirectionOutbound, provider.direction)
	})

	t.Run("missing partner header", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/submodel/item-stock/urn:uuid:own/OUTBOUND", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed partner header", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/submodel/item-stock/urn:uuid:own/OUTBOUND", "", map[string]string{middleware.HeaderEdcBpn: "partner"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown direction", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/submodel/item-stock/urn:uuid:own/SIDEWAYS", "", partner)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("provider errors pass through", func(t *testing.T) {
		provider.err = httperror.NewHTTPError(http.StatusNotFound, "material not shared with partner")
		defer func() { provider.err = nil }()
		rec := do(e, http.MethodGet, "/submodel/item-stock/urn:uuid:other/INBOUND", "", partner)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "material not shared with partner")
	})

	t.Run("part type", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/submodel/part-type/MNR-8101-ID146955.001", "", partner)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var out samm.PartTypeInformation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal(t, "urn:uuid:own", out.CatenaXID)
		assert.Equal(t, "MNR-8101-ID146955.001", out.PartTypeInformation.ManufacturerPartID)
	})

	t.Run("erp answer", func(t *testing.T) {
		id := uuid.New()
		body := `{"requestId":"` + id.String() + `","partnerBpnl":"` + partnerBpnl + `","responseType":"ItemStock","sammVersion":"2.0","responseTimestamp":1700000000000,"content":{"positions":[]}}`
		rec := do(e, http.MethodPost, "/erp-adapter", body, nil)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		require.NotNil(t, correlator.got)
		assert.Equal(t, id, correlator.got.RequestID)
		assert.JSONEq(t, `{"positions":[]}`, string(correlator.got.Content))
	})

	t.Run("erp answer without content", func(t *testing.T) {
		correlator.got = nil
		body := `{"requestId":"` + uuid.NewString() + `","partnerBpnl":"` + partnerBpnl + `","responseType":"ItemStock"}`
		rec := do(e, http.MethodPost, "/erp-adapter", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Nil(t, correlator.got)
	})

	t.Run("erp answer for unknown request", func(t *testing.T) {
		correlator.err = httperror.NewHTTPError(http.StatusNotFound, "unknown request")
		defer func() { correlator.err = nil }()
		body := `{"requestId":"` + uuid.NewString() + `","partnerBpnl":"` + partnerBpnl + `","responseType":"ItemStock","content":{}}`
		rec := do(e, http.MethodPost, "/erp-adapter", body, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

type memoryPartners struct {
	partners map[uuid.UUID]*models.Partner
}

func (m *memoryPartners) Create(_ context.Context, p *models.Partner) error {
	for _, existing := range m.partners {
		if existing.Bpnl == p.Bpnl {
			return httperror.NewHTTPErrorf(http.StatusConflict, "partner %s already exists", p.Bpnl)
		}
	}
	p.ID = uuid.New()
	m.partners[p.ID] = p
	return nil
}

func (m *memoryPartners) GetByID(_ context.Context, id uuid.UUID) (*models.Partner, error) {
	p, ok := m.partners[id]
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "partner %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (m *memoryPartners) List(context.Context) ([]models.Partner, error) {
	out := make([]models.Partner, 0, len(m.partners))
	for _, p := range m.partners {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memoryPartners) Update(_ context.Context, p *models.Partner) error {
	if _, ok := m.partners[p.ID]; !ok {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "partner %s not found", p.ID)
	}
	m.partners[p.ID] = p
	return nil
}

func (m *memoryPartners) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.partners, id)
	return nil
}

func TestPartnerHandler(t *testing.T) {
	store := &memoryPartners{partners: map[uuid.UUID]*models.Partner{}}
	e := newEcho()
	NewPartnerHandler(store, testLogger()).RegisterRoutes(e.Group("/api/v1"))

	body := `{"name":"Control Unit Creator","bpnl":"` + partnerBpnl + `","edc_url":"https://partner.example/api/v1/dsp","sites":[{"bpns":"BPNS4444444444XX"}]}`
	rec := do(e, http.MethodPost, "/api/v1/partners", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.Partner
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.True(t, store.partners[created.ID].OwnsSite("BPNS4444444444XX"))

	assert.Equal(t, http.StatusConflict, do(e, http.MethodPost, "/api/v1/partners", body, nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(e, http.MethodPost, "/api/v1/partners", `{"name":"x","bpnl":"BPNL123","edc_url":"https://partner.example"}`, nil).Code)

	rec = do(e, http.MethodPut, "/api/v1/partners/"+created.ID.String(),
		`{"name":"Renamed","edc_url":"https://partner.example/dsp"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Renamed", store.partners[created.ID].Name)
	assert.Equal(t, partnerBpnl, store.partners[created.ID].Bpnl)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/v1/partners/not-a-uuid", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/v1/partners/"+uuid.NewString(), "", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, "/api/v1/partners/"+created.ID.String(), "", nil).Code)
	assert.Empty(t, store.partners)
}

type memoryMaterials struct {
	materials map[string]*models.Material
	relations []models.MaterialPartnerRelation
}

func (m *memoryMaterials) Upsert(_ context.Context, mat *models.Material) error {
	m.materials[mat.OwnMaterialNumber] = mat
	return nil
}

func (m *memoryMaterials) Get(_ context.Context, number string) (*models.Material, error) {
	mat, ok := m.materials[number]
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "material %s not found", number)
	}
	return mat, nil
}

func (m *memoryMaterials) List(context.Context) ([]models.Material, error) { return nil, nil }

func (m *memoryMaterials) UpsertRelation(_ context.Context, rel *models.MaterialPartnerRelation) error {
	m.relations = append(m.relations, *rel)
	return nil
}

func (m *memoryMaterials) ListRelationsByPartner(_ context.Context, partnerID uuid.UUID) ([]models.MaterialPartnerRelation, error) {
	var out []models.MaterialPartnerRelation
	for _, rel := range m.relations {
		if rel.PartnerID == partnerID {
			out = append(out, rel)
		}
	}
	return out, nil
}

func TestMaterialHandler(t *testing.T) {
	partnerID := uuid.New()
	partners := &memoryPartners{partners: map[uuid.UUID]*models.Partner{partnerID: {ID: partnerID, Bpnl: partnerBpnl}}}
	materials := &memoryMaterials{materials: map[string]*models.Material{}}
	e := newEcho()
	NewMaterialHandler(materials, partners, testLogger()).RegisterRoutes(e.Group("/api/v1"))

	rec := do(e, http.MethodPut, "/api/v1/materials", `{"own_material_number":"MNR-7307-AU340474.002","material_flag":true}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cx := materials.materials["MNR-7307-AU340474.002"].MaterialNumberCx
	assert.True(t, strings.HasPrefix(cx, "urn:uuid:"))

	rec = do(e, http.MethodPut, "/api/v1/materials", `{"own_material_number":"MNR-7307-AU340474.002","name":"Semiconductor","material_flag":true}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cx, materials.materials["MNR-7307-AU340474.002"].MaterialNumberCx, "generated CX numbers are stable")

	assert.Equal(t, http.StatusBadRequest,
		do(e, http.MethodPut, "/api/v1/materials", `{"own_material_number":"MNR-1"}`, nil).Code)

	path := "/api/v1/partners/" + partnerID.String() + "/relations"
	rec = do(e, http.MethodPut, path, `{"own_material_number":"MNR-7307-AU340474.002","partner_supplies_material":true,"partner_material_number":"MNR-8101-ID146955.001"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest,
		do(e, http.MethodPut, path, `{"own_material_number":"MNR-7307-AU340474.002","partner_buys_material":true}`, nil).Code,
		"the material is not a product")
	assert.Equal(t, http.StatusNotFound,
		do(e, http.MethodPut, "/api/v1/partners/"+uuid.NewString()+"/relations", `{"own_material_number":"MNR-7307-AU340474.002","partner_supplies_material":true}`, nil).Code)

	rec = do(e, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var relations []models.MaterialPartnerRelation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &relations))
	require.Len(t, relations, 1)
	assert.Equal(t, "MNR-8101-ID146955.001", relations[0].PartnerMaterialNumber)
}

type fakeReconciler struct {
	keys []models.SyncKey
	err  error
}

func (f *fakeReconciler) Reconcile(_ context.Context, key models.SyncKey) error {
	f.keys = append(f.keys, key)
	return f.err
}

func (f *fakeReconciler) EnqueueReconcile(_ context.Context, key models.SyncKey) error {
	f.keys = append(f.keys, key)
	return nil
}

type fakeScheduler struct {
	enabled bool
	runs    int
}

func (f *fakeScheduler) Enabled() bool           { return f.enabled }
func (f *fakeScheduler) SetEnabled(enabled bool) { f.enabled = enabled }
func (f *fakeScheduler) IsRunning() bool         { return false }

func (f *fakeScheduler) RunOnce(context.Context) error {
	f.runs++
	return nil
}

type fakeNegotiations []models.PendingNegotiation

func (f fakeNegotiations) Pending() []models.PendingNegotiation { return f }

type fakeErpLists struct{}

func (fakeErpLists) List(context.Context) ([]models.ErpTriggerTuple, error) { return nil, nil }
func (fakeErpLists) ListRecent(_ context.Context, limit int) ([]models.OutgoingErpRequest, error) {
	return make([]models.OutgoingErpRequest, limit), nil
}

func TestAdminHandler(t *testing.T) {
	sync := &fakeReconciler{}
	queued := &fakeReconciler{}
	scheduler := &fakeScheduler{enabled: true}
	pending := fakeNegotiations{{ID: "n-1", PartnerBpnl: partnerBpnl, AssetType: models.AssetTypeItemStock}}
	e := newEcho()
	NewAdminHandler(sync, queued, pending, fakeErpLists{}, fakeErpLists{}, scheduler, testLogger()).RegisterRoutes(e.Group("/api/v1"))

	partnerID := uuid.New()
	body := func(async bool, direction string) string {
		b, _ := json.Marshal(map[string]any{
			"own_material_number": "MNR-7307-AU340474.002",
			"partner_id":          partnerID,
			"asset_type":          string(models.AssetTypeItemStock),
			"direction":           direction,
			"async":               async,
		})
		return string(b)
	}

	t.Run("reconcile inline", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/api/v1/reconcile", body(false, "OUTBOUND"), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Len(t, sync.keys, 1)
		assert.Equal(t, partnerID, sync.keys[0].PartnerID)
		assert.Empty(t, queued.keys)
	})

	t.Run("reconcile queued", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/api/v1/reconcile", body(true, "INBOUND"), nil)
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Len(t, queued.keys, 1)
		assert.Equal(t, models.DirectionInbound, queued.keys[0].Direction)
	})

	t.Run("reconcile with unknown direction", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/api/v1/reconcile", body(false, "UP"), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("reconcile failure", func(t *testing.T) {
		sync.err = errors.New("connector unreachable")
		defer func() { sync.err = nil }()
		rec := do(e, http.MethodPost, "/api/v1/reconcile", body(false, "OUTBOUND"), nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("negotiations", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/api/v1/negotiations", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"id":"n-1"`)
	})

	t.Run("triggers are never null", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/api/v1/erp/triggers", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("requests limit", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/api/v1/erp/requests?limit=2", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var out []models.OutgoingErpRequest
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Len(t, out, 2)
		assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/v1/erp/requests?limit=-1", "", nil).Code)
	})

	t.Run("scheduler toggle", func(t *testing.T) {
		rec := do(e, http.MethodPut, "/api/v1/erp/scheduler", `{"enabled":false}`, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"enabled":false,"running":false}`, rec.Body.String())
		assert.False(t, scheduler.enabled)

		assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPut, "/api/v1/erp/scheduler", `{}`, nil).Code)

		assert.Equal(t, http.StatusNoContent, do(e, http.MethodPost, "/api/v1/erp/scheduler/run", "", nil).Code)
		assert.Equal(t, 1, scheduler.runs)
	})
}
