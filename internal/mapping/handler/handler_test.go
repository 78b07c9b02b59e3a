package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svs-mapping/internal/config"
	"svs-mapping/internal/mapping/model"
	"svs-mapping/internal/mapping/service"
	"svs-mapping/internal/storage/memory"
)

func newTestRouter(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()
	st := memory.New()
	st.AddProduct(model.Product{ID: 1, Name: "Молоко 2.5%", Category: "Молочные продукты", Code: "M-1", IsActive: true})
	st.AddProduct(model.Product{ID: 2, Name: "Хлеб", Code: "H-1", IsActive: true})
	st.AddProduct(model.Product{ID: 3, Name: "Гвозди", Code: "G-1", IsActive: true})

	svc := service.New(st, service.MatchConfig{}, zerolog.Nop())
	h := New(svc, config.Config{MaxUploadMB: 1}, zerolog.Nop())

	r := chi.NewRouter()
	r.Post("/api/svs/materials", h.Materials)
	r.Get("/api/svs/mappings", h.ListMappings)
	r.Post("/api/svs/mappings", h.SaveMapping)
	r.Get("/api/svs/export", h.Export)
	r.Get("/api/svs/stats", h.Stats)
	r.Get("/api/svs/updates", h.Updates)
	r.Post("/api/products/import", h.ImportProducts)
	return r, st
}

const catalogJSON = `{"MatItem":[
	{"GroupMatId":61,"MatId":610001,"MeasureId":1,"NameGroupMat":"Молочная продукция","NameMat":"молоко 2,5%","NameMeasure":"л"},
	{"GroupMatId":62,"MatId":620001,"MeasureId":2,"NameGroupMat":"Хлеб","NameMat":"Хлебобулочные изделия","NameMeasure":"кг"}
]}`

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Message
}

func TestMaterialsJSON(t *testing.T) {
	r, st := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/svs/materials?organizationId=7&autoSave=true", strings.NewReader(catalogJSON))
	req.Header.Set("Content-Type", "application/json")
	rec := do(t, r, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rep model.RunReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 2, rep.Mapped)
	assert.Equal(t, 1, rep.Unmapped)
	assert.Equal(t, 2, rep.Materials)
	require.NotNil(t, rep.OrganizationID)
	assert.Equal(t, int64(7), *rep.OrganizationID)

	ov, found, err := st.Override(context.Background(), 7, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "610001", ov.SvsCode)
}

func TestMaterialsRejectsBadInput(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name string
		url  string
		body string
		want string
	}{
		{"broken json", "/api/svs/materials", `{"MatItem":[`, "invalid JSON"},
		{"empty catalog", "/api/svs/materials", `{"MatItem":[]}`, "catalog has no materials"},
		{"material without id", "/api/svs/materials", `{"MatItem":[{"NameMat":"Молоко"}]}`, "MatId is required"},
		{"bad organization", "/api/svs/materials?organizationId=abc", catalogJSON, "organizationId"},
		{"negative organization", "/api/svs/materials?organizationId=-3", catalogJSON, "organizationId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, r, httptest.NewRequest(http.MethodPost, tt.url, strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, errorMessage(t, rec), tt.want)
		})
	}
}

func TestMaterialsFile(t *testing.T) {
	r, st := newTestRouter(t)

	csv := "Код материала;Наименование материала;Код группы;Наименование группы;Единица измерения\n" +
		"610001;молоко 2,5%;61;Молочная продукция;л\n" +
		"620001;Хлебобулочные изделия;62;Хлеб;кг\n"
	body, ct := multipartBody(t, "svs.csv", csv, map[string]string{"notes": "октябрь"})
	req := httptest.NewRequest(http.MethodPost, "/api/svs/materials?autoSave=1", body)
	req.Header.Set("Content-Type", ct)

	rec := do(t, r, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	p, err := st.Product(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "620001", p.SvsCode)

	ups, err := st.CatalogUpdates(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, ups, 1)
	assert.Equal(t, "file", ups[0].UpdateSource)
	assert.Equal(t, "октябрь", ups[0].Notes)
}

func TestMaterialsFileWithBadRow(t *testing.T) {
	r, st := newTestRouter(t)

	csv := "MatId,NameMat\n610001,Молоко\nабв,Хлеб\n"
	body, ct := multipartBody(t, "svs.csv", csv, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/svs/materials?autoSave=1", body)
	req.Header.Set("Content-Type", ct)

	rec := do(t, r, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "row 2")

	ups, _ := st.CatalogUpdates(context.Background(), 10)
	assert.Empty(t, ups)
}

func TestSaveAndListMappings(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(t, r, httptest.NewRequest(http.MethodPost, "/api/svs/mappings",
		strings.NewReader(`{"productId":42,"svsCode":"1","organizationId":7}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, httptest.NewRequest(http.MethodPost, "/api/svs/mappings?organizationId=7",
		strings.NewReader(`{"productId":3,"svsCode":"700001","localPrice":"12.50"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, r, httptest.NewRequest(http.MethodGet, "/api/svs/mappings?organizationId=7&page=2&pageSize=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var page model.Page[model.MappingRow]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.PageNumber)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "700001", page.Records[0].SvsCode)
	assert.True(t, page.Records[0].IsManual)
	assert.Equal(t, "12.5", page.Records[0].LocalPrice.Decimal.String())

	rec = do(t, r, httptest.NewRequest(http.MethodGet, "/api/svs/stats?organizationId=7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st model.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 1, st.ManualMapped)
	assert.Equal(t, 2, st.UnmappedProducts)
}

func TestListMappingsHugePage(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(t, r, httptest.NewRequest(http.MethodGet, "/api/svs/mappings?page=9223372036854775807&pageSize=50", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page model.Page[model.MappingRow]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 3, page.TotalCount)
	assert.Empty(t, page.Records)
}

func TestExportEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(t, r, httptest.NewRequest(http.MethodGet, "/api/svs/export?organizationId=7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="svs_mappings_org_7_`)

	var doc model.ExportDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, 3, doc.TotalMappings)
	assert.Equal(t, 3, doc.UnmappedCount)
}

func TestUpdatesEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	for i := 0; i < 3; i++ {
		rec := do(t, r, httptest.NewRequest(http.MethodPost, "/api/svs/materials", strings.NewReader(catalogJSON)))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(t, r, httptest.NewRequest(http.MethodGet, "/api/svs/updates?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var ups []model.CatalogUpdate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ups))
	assert.Len(t, ups, 2)
	assert.Equal(t, "api", ups[0].UpdateSource)
}

func TestImportProductsEndpoint(t *testing.T) {
	r, st := newTestRouter(t)

	csv := "Наименование;Шифр;Категория;Ед изм;Цена\n" +
		"Молоко 3,2%;M-1;Молочные продукты;л;\"89,90\"\n" +
		"Кефир 1%;K-1;Молочные продукты;л;64\n" +
		";;;;\n" +
		"Наименование;Шифр;Категория;Ед изм;Цена\n"
	body, ct := multipartBody(t, "products.csv", csv, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/products/import", body)
	req.Header.Set("Content-Type", ct)

	rec := do(t, r, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sum model.ImportSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 1, sum.Created)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 1, sum.Skipped)

	p, err := st.Product(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Молоко 3,2%", p.Name)
	assert.Equal(t, "89.9", p.Price.Decimal.String())
}

func TestImportProductsRequiresFile(t *testing.T) {
	r, _ := newTestRouter(t)
	body, ct := multipartBody(t, "products.dbf", "x", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/products/import", body)
	req.Header.Set("Content-Type", ct)

	rec := do(t, r, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, httptest.NewRequest(http.MethodPost, "/api/products/import", strings.NewReader("{}")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
