package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"svs-mapping/internal/config"
	"svs-mapping/internal/fileio"
	"svs-mapping/internal/mapping/model"
	"svs-mapping/internal/mapping/service"
	"svs-mapping/internal/middleware"
)

type Handler struct {
	svc       *service.Service
	log       zerolog.Logger
	autoSave  bool
	maxMemory int64
}

func New(svc *service.Service, cfg config.Config, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:       svc,
		log:       logger,
		autoSave:  cfg.AutoSave,
		maxMemory: int64(cfg.MaxUploadMB) << 20,
	}
}

func (h *Handler) logger(r *http.Request) zerolog.Logger {
	if rid := middleware.GetRequestID(r); rid != "" {
		return h.log.With().Str("rid", rid).Logger()
	}
	return h.log
}

// Materials (POST /api/svs/materials) загружает справочник СВС и запускает сверку.
// Тело: JSON {"MatItem":[...]} или multipart с полем file (csv/xls/xlsx).
func (h *Handler) Materials(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)
	orgID, err := parseOrgID(r.URL.Query().Get("organizationId"))
	if err != nil {
		h.writeError(w, log, err)
		return
	}
	req := model.RunRequest{
		OrganizationID: orgID,
		AutoSave:       toBool(r.URL.Query().Get("autoSave"), h.autoSave),
		Source:         "api",
	}

	if isMultipart(r) {
		file, fh, err := h.formFile(r)
		if err != nil {
			h.writeError(w, log, err)
			return
		}
		defer file.Close()
		rows, err := fileio.ReadAnyMaps(file, fh.Filename, atoi(r.FormValue("header_row"), 1))
		if err != nil {
			h.writeError(w, log, model.NewValidation("handler.Materials", "failed to read "+fh.Filename, err))
			return
		}
		if req.Catalog, err = catalogFromRows(rows); err != nil {
			h.writeError(w, log, err)
			return
		}
		req.Source = "file"
		req.Notes = strings.TrimSpace(r.FormValue("notes"))
		log.Debug().Str("file", fh.Filename).Int("rows", len(rows)).Msg("svs catalog file parsed")
	} else {
		var body model.CatalogRequest
		if err := decodeJSON(r, &body); err != nil {
			h.writeError(w, log, err)
			return
		}
		req.Catalog = body.MatItem
		req.Notes = body.Notes
		if body.UpdateSource != "" {
			req.Source = body.UpdateSource
		}
	}

	report, err := h.svc.Reconcile(r.Context(), req)
	if err != nil {
		h.writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListMappings (GET /api/svs/mappings)
func (h *Handler) ListMappings(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)
	q := r.URL.Query()
	orgID, err := parseOrgID(q.Get("organizationId"))
	if err != nil {
		h.writeError(w, log, err)
		return
	}
	page, err := h.svc.Mappings(r.Context(), orgID, atoi(q.Get("page"), 1), atoi(q.Get("pageSize"), service.DefaultPageSize))
	if err != nil {
		h.writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// SaveMapping (POST /api/svs/mappings) сохраняет ручное сопоставление.
func (h *Handler) SaveMapping(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)
	var req model.SaveRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, log, err)
		return
	}
	if req.OrganizationID == nil {
		orgID, err := parseOrgID(r.URL.Query().Get("organizationId"))
		if err != nil {
			h.writeError(w, log, err)
			return
		}
		req.OrganizationID = orgID
	}
	if err := h.svc.SaveMapping(r.Context(), req); err != nil {
		h.writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "mapping saved"})
}

// Export (GET /api/svs/export) отдаёт JSON-файл с текущими сопоставлениями.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)
	orgID, err := parseOrgID(r.URL.Query().Get("organizationId"))
	if err != nil {
		h.writeError(w, log, err)
		return
	}
	doc, err := h.svc.Export(r.Context(), orgID)
	if err != nil {
		h.writeError(w, log, err)
		return
	}
	name := service.ExportFileName(orgID, doc.ExportDate)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Cache-Control", "no-store")
	if err := service.WriteExport(w, doc); err != nil {
		log.Error().Err(err).Msg("write export")
		return
	}
	log.Info().Str("file", name).Int("mappings", doc.TotalMappings).Msg("svs export done")
}

// Stats (GET /api/svs/stats)
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)
	orgID, err := parseOrgID(r.URL.Query().Get("organizationId"))
	if err != nil {
		h.writeError(w, log, err)
		return
	}
	st, err := h.svc.Stats(r.Context(), orgID)
	if err != nil {
		h.writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Updates (GET /api/svs/updates) отдаёт журнал загрузок справочника.
func (h *Handler) Updates(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)
	ups, err := h.svc.Updates(r.Context(), atoi(r.URL.Query().Get("limit"), 10))
	if err != nil {
		h.writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, ups)
}

// ImportProducts (POST /api/products/import) загружает справочник продуктов из файла.
func (h *Handler) ImportProducts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := h.logger(r)
	file, fh, err := h.formFile(r)
	if err != nil {
		h.writeError(w, log, err)
		return
	}
	defer file.Close()

	rows, err := fileio.ReadAnyMaps(file, fh.Filename, atoi(r.FormValue("header_row"), 1))
	if err != nil {
		h.writeError(w, log, model.NewValidation("handler.ImportProducts", "failed to read "+fh.Filename, err))
		return
	}
	products, skipped, err := productsFromRows(rows)
	if err != nil {
		h.writeError(w, log, err)
		return
	}
	sum, err := h.svc.ImportProducts(r.Context(), products)
	if err != nil {
		h.writeError(w, log, err)
		return
	}
	sum.Total += skipped
	sum.Skipped += skipped
	log.Info().
		Str("file", fh.Filename).
		Int("rows", len(rows)).
		Dur("elapsed", time.Since(start)).
		Msg("products file imported")
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) formFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	const op = "handler.formFile"
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, nil, err
		}
		return nil, nil, model.NewValidation(op, "bad multipart form", err)
	}
	file, fh, err := r.FormFile("file")
	if err != nil {
		return nil, nil, model.NewValidation(op, "missing file", err)
	}
	return file, fh, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return model.NewValidation("handler.decodeJSON", "invalid JSON body", err)
	}
	return nil
}

// parseOrgID: пустая строка означает глобальный режим (nil).
func parseOrgID(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return nil, model.NewValidation("handler.parseOrgID", fmt.Sprintf("organizationId %q must be a positive integer", s), err)
	}
	return &id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeError: валидация → 400, нет записи → 404, слишком большое тело → 413, остальное → 500.
func (h *Handler) writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	var tooBig *http.MaxBytesError
	switch {
	case model.IsValidation(err):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, model.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.As(err, &tooBig):
		status, msg = http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit)
	case errors.Is(err, context.Canceled):
		log.Warn().Err(err).Msg("request canceled")
		return
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	} else {
		log.Warn().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}
