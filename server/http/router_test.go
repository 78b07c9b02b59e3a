package serverhttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svs-mapping/internal/config"
	mapHnd "svs-mapping/internal/mapping/handler"
	"svs-mapping/internal/mapping/service"
	"svs-mapping/internal/storage/memory"
)

type downDB struct{}

func (downDB) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, cfg config.Config, db interface{ Ping(context.Context) error }) http.Handler {
	t.Helper()
	st := memory.New()
	svc := service.New(st, service.MatchConfig{}, zerolog.Nop())
	return NewRouter(cfg, zerolog.Nop(), mapHnd.New(svc, cfg, zerolog.Nop()), db)
}

func testConfig() config.Config {
	return config.Config{AllowOrigins: []string{"*"}, MaxUploadMB: 1, RateLimitRPS: 0.001, RateLimitBurst: 1}
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, testConfig(), memory.New())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	h = newTestServer(t, testConfig(), downDB{})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRoutes(t *testing.T) {
	h := newTestServer(t, testConfig(), memory.New())

	for _, path := range []string{"/api/svs/mappings", "/api/svs/stats", "/api/svs/updates", "/api/svs/export"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reconcile", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/svs/mappings", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWritesAreRateLimited(t *testing.T) {
	h := newTestServer(t, testConfig(), memory.New())

	post := func() int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/svs/mappings", strings.NewReader(`{}`)))
		return rec.Code
	}
	require.Equal(t, http.StatusBadRequest, post())
	assert.Equal(t, http.StatusTooManyRequests, post())

	// чтение лимит не трогает
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/svs/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBodyLimit(t *testing.T) {
	h := newTestServer(t, testConfig(), memory.New())
	big := `{"MatItem":[` + strings.Repeat(`{"MatId":1,"NameMat":"Молоко"},`, 40000) + `{"MatId":2,"NameMat":"Хлеб"}]}`

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/svs/materials", strings.NewReader(big)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
