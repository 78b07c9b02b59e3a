package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"svs-mapping/internal/mapping/model"
)

type Service struct {
	store   Store
	matcher *Matcher
	log     zerolog.Logger
	now     func() time.Time
}

func New(store Store, cfg MatchConfig, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		matcher: NewMatcher(cfg),
		log:     logger.With().Str("component", "svs-mapping").Logger(),
		now:     time.Now,
	}
}

// ValidateCatalog отклоняет справочник целиком, если хотя бы один материал без MatId или NameMat.
func ValidateCatalog(catalog []model.CatalogEntry) error {
	const op = "service.ValidateCatalog"
	if len(catalog) == 0 {
		return model.NewValidation(op, "catalog has no materials", model.ErrEmptyCatalog)
	}
	for i, e := range catalog {
		if e.ItemID <= 0 {
			return model.NewValidation(op, fmt.Sprintf("material #%d: MatId is required", i+1), nil)
		}
		if strings.TrimSpace(e.ItemName) == "" {
			return model.NewValidation(op, fmt.Sprintf("material #%d (MatId %d): NameMat is required", i+1, e.ItemID), nil)
		}
	}
	return nil
}

// Reconcile: прогон сверки всех активных продуктов со справочником СВС.
// Продукты обрабатываются последовательно, каждая запись сохраняется сразу;
// ошибка записи по одному продукту не прерывает прогон.
func (s *Service) Reconcile(ctx context.Context, req model.RunRequest) (model.RunReport, error) {
	if err := ValidateCatalog(req.Catalog); err != nil {
		return model.RunReport{}, err
	}
	products, err := s.store.ActiveProducts(ctx)
	if err != nil {
		return model.RunReport{}, fmt.Errorf("load products: %w", err)
	}

	runID := uuid.NewString()
	log := s.log.With().Str("run", runID).Logger()
	if req.OrganizationID != nil {
		log = log.With().Int64("org", *req.OrganizationID).Logger()
	}
	log.Info().
		Int("products", len(products)).
		Int("materials", len(req.Catalog)).
		Bool("autosave", req.AutoSave).
		Msg("svs reconcile start")

	start := s.now()
	report := model.RunReport{
		RunID:          runID,
		OrganizationID: req.OrganizationID,
		AutoSave:       req.AutoSave,
		Materials:      len(req.Catalog),
		Total:          len(products),
		Results:        make([]model.MatchResult, 0, len(products)),
	}

	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("reconcile aborted after %d products: %w", len(report.Results), err)
		}
		res := s.matcher.Match(p, req.Catalog)
		if err := s.apply(ctx, &res, p, req); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, fmt.Errorf("reconcile aborted at product %d: %w", p.ID, err)
			}
			log.Error().Err(err).Int64("product_id", p.ID).Str("product", p.Name).Msg("save mapping")
			res.Error = fmt.Sprintf("product %d (%s): %v", p.ID, p.Name, err)
			report.Errored++
		} else if res.AssignedCode != "" {
			report.Mapped++
		} else {
			report.Unmapped++
		}
		report.Results = append(report.Results, res)
	}

	upd := model.CatalogUpdate{
		ID:                runID,
		UpdateDate:        s.now().UTC(),
		TotalMaterials:    len(req.Catalog),
		MappedMaterials:   report.Mapped,
		UnmappedMaterials: report.Unmapped,
		ErroredProducts:   report.Errored,
		UpdateSource:      req.Source,
		Notes:             req.Notes,
		OrganizationID:    req.OrganizationID,
	}
	if err := s.store.AddCatalogUpdate(ctx, upd); err != nil {
		log.Warn().Err(err).Msg("catalog update log")
	}

	log.Info().
		Int("mapped", report.Mapped).
		Int("unmapped", report.Unmapped).
		Int("errored", report.Errored).
		Dur("elapsed", s.now().Sub(start)).
		Msg("svs reconcile done")
	return report, nil
}

// apply сводит результат автосверки с уже сохранёнными кодами.
func (s *Service) apply(ctx context.Context, res *model.MatchResult, p model.Product, req model.RunRequest) error {
	if req.OrganizationID == nil {
		return s.applyGlobal(ctx, res, p, req.AutoSave)
	}
	org := *req.OrganizationID
	ov, found, err := s.store.Override(ctx, org, p.ID)
	if err != nil {
		return err
	}
	auto := res.AssignedCode
	switch {
	case found && ov.IsManual:
		// ручное сопоставление главнее автосверки
		res.AssignedCode = ov.SvsCode
		res.IsAutoMatched = false
		return nil
	case auto == "":
		if found {
			res.AssignedCode = ov.SvsCode
			res.IsAutoMatched = false
		}
		return nil
	case !req.AutoSave:
		return nil
	case found:
		if ov.SvsCode == auto {
			return nil
		}
		ov.SvsCode = auto
		return s.store.UpsertOverride(ctx, ov)
	default:
		return s.store.UpsertOverride(ctx, model.Override{
			OrganizationID: org,
			ProductID:      p.ID,
			SvsCode:        auto,
			IsActive:       true,
		})
	}
}

func (s *Service) applyGlobal(ctx context.Context, res *model.MatchResult, p model.Product, autoSave bool) error {
	if res.AssignedCode == "" {
		res.AssignedCode = p.SvsCode
		if p.SvsCode != "" {
			res.IsAutoMatched = false
		}
		return nil
	}
	if !autoSave || res.AssignedCode == p.SvsCode {
		return nil
	}
	return s.store.SetGlobalCode(ctx, p.ID, res.AssignedCode)
}

// SaveMapping: ручное сопоставление. Для организации помечается IsManual и
// больше не перезаписывается автосверкой; без организации меняется глобальный код.
func (s *Service) SaveMapping(ctx context.Context, req model.SaveRequest) error {
	const op = "service.SaveMapping"
	code := strings.TrimSpace(req.SvsCode)
	if code == "" && req.SvsMatID > 0 {
		code = strconv.Itoa(req.SvsMatID)
	}
	if req.ProductID <= 0 {
		return model.NewValidation(op, "productId is required", nil)
	}
	if code == "" {
		return model.NewValidation(op, "svsCode is required", nil)
	}
	if _, err := s.store.Product(ctx, req.ProductID); err != nil {
		return fmt.Errorf("product %d: %w", req.ProductID, err)
	}

	if req.OrganizationID == nil {
		if err := s.store.SetGlobalCode(ctx, req.ProductID, code); err != nil {
			return fmt.Errorf("save global code for product %d: %w", req.ProductID, err)
		}
		s.log.Info().Int64("product_id", req.ProductID).Str("code", code).Msg("global svs code saved")
		return nil
	}

	org := *req.OrganizationID
	ov, found, err := s.store.Override(ctx, org, req.ProductID)
	if err != nil {
		return fmt.Errorf("load mapping for product %d: %w", req.ProductID, err)
	}
	if !found {
		ov = model.Override{OrganizationID: org, ProductID: req.ProductID, IsActive: true}
	}
	ov.SvsCode = code
	ov.IsManual = true
	if req.LocalPrice.Valid {
		ov.LocalPrice = req.LocalPrice
	}
	if err := s.store.UpsertOverride(ctx, ov); err != nil {
		return fmt.Errorf("save mapping for product %d: %w", req.ProductID, err)
	}
	s.log.Info().Int64("org", org).Int64("product_id", req.ProductID).Str("code", code).Msg("manual svs mapping saved")
	return nil
}

// currentMappings возвращает действующий код каждого активного продукта; код организации главнее глобального.
func (s *Service) currentMappings(ctx context.Context, orgID *int64) ([]model.MappingRow, error) {
	products, err := s.store.ActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	var overrides map[int64]model.Override
	if orgID != nil {
		if overrides, err = s.store.Overrides(ctx, *orgID); err != nil {
			return nil, fmt.Errorf("load mappings of organization %d: %w", *orgID, err)
		}
	}

	rows := make([]model.MappingRow, 0, len(products))
	for _, p := range products {
		row := model.MappingRow{
			ProductID:   p.ID,
			ProductName: p.Name,
			ProductCode: p.Code,
			Category:    p.Category,
			Unit:        p.Unit,
			SvsCode:     p.SvsCode,
			Source:      "none",
		}
		if p.SvsCode != "" {
			row.Source = "global"
		}
		if ov, ok := overrides[p.ID]; ok && ov.SvsCode != "" {
			row.SvsCode = ov.SvsCode
			row.IsManual = ov.IsManual
			row.LocalPrice = ov.LocalPrice
			row.Source = "organization"
		}
		rows = append(rows, row)
	}
	return rows, nil
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Mappings: постраничный список текущих сопоставлений.
func (s *Service) Mappings(ctx context.Context, orgID *int64, page, pageSize int) (model.Page[model.MappingRow], error) {
	rows, err := s.currentMappings(ctx, orgID)
	if err != nil {
		return model.Page[model.MappingRow]{}, err
	}
	return Paginate(rows, page, pageSize), nil
}

// Paginate режет срез на страницы; page с 1, размер ограничен MaxPageSize.
func Paginate[T any](all []T, page, pageSize int) model.Page[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	total := len(all)
	pages := (total + pageSize - 1) / pageSize

	// сравнение до умножения: огромный page не должен переполнить смещение
	from := total
	if page-1 < pages {
		from = (page - 1) * pageSize
	}
	to := from + pageSize
	if to > total {
		to = total
	}
	return model.Page[T]{
		Records:    append([]T{}, all[from:to]...),
		TotalCount: total,
		PageNumber: page,
		PageSize:   pageSize,
		TotalPages: pages,
	}
}

func (s *Service) Stats(ctx context.Context, orgID *int64) (model.Stats, error) {
	rows, err := s.currentMappings(ctx, orgID)
	if err != nil {
		return model.Stats{}, err
	}
	st := model.Stats{OrganizationID: orgID, TotalProducts: len(rows)}
	for _, r := range rows {
		if r.SvsCode == "" {
			st.UnmappedProducts++
			continue
		}
		st.MappedProducts++
		if r.IsManual {
			st.ManualMapped++
		} else {
			st.AutoMapped++
		}
	}
	if st.TotalProducts > 0 {
		st.MappingPercent = float64(st.MappedProducts) / float64(st.TotalProducts) * 100
	}
	return st, nil
}

// Updates: последние записи журнала загрузок справочника, новые первыми.
func (s *Service) Updates(ctx context.Context, limit int) ([]model.CatalogUpdate, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.CatalogUpdates(ctx, limit)
}

// ImportProducts: загрузка справочника продуктов (ключ: шифр, иначе наименование).
func (s *Service) ImportProducts(ctx context.Context, products []model.Product) (model.ImportSummary, error) {
	const op = "service.ImportProducts"
	if len(products) == 0 {
		return model.ImportSummary{}, model.NewValidation(op, "no products in file", nil)
	}
	for i, p := range products {
		if strings.TrimSpace(p.Name) == "" {
			return model.ImportSummary{}, model.NewValidation(op, fmt.Sprintf("product #%d: name is required", i+1), nil)
		}
	}
	sum, err := s.store.UpsertProducts(ctx, products)
	if err != nil {
		return sum, fmt.Errorf("import products: %w", err)
	}
	s.log.Info().
		Int("total", sum.Total).
		Int("created", sum.Created).
		Int("updated", sum.Updated).
		Msg("products imported")
	return sum, nil
}
