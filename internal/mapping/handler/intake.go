package handler

import (
	"fmt"
	"strings"

	"svs-mapping/internal/mapping/model"
	"svs-mapping/internal/utils"
)

// Колонки выгрузки справочника СВС: имя из JSON СВС либо русский заголовок.
const (
	colGroupID     = "GroupMatId|Код группы|ИД группы"
	colItemID      = "MatId|Код материала|ИД материала"
	colMeasureID   = "MeasureId|Код единицы измерения|Код ед изм"
	colGroupName   = "NameGroupMat|Наименование группы|Группа материалов|Группа"
	colItemName    = "NameMat|Наименование материала|Материал|Наименование"
	colMeasureName = "NameMeasure|Единица измерения|Ед изм"
)

// Колонки справочника продуктов системы питания.
const (
	colProductName     = "Наименование|Продукт|Name"
	colProductCategory = "Категория|Группа|Category"
	colProductCode     = "Шифр|Код|Code"
	colProductExternal = "Внешний код|ExternalId"
	colProductSvsCode  = "Код СВС|SvsCode"
	colProductUnit     = "Ед изм|Единица измерения|Unit"
	colProductPrice    = "Цена|Price"
)

// resolveColumns сопоставляет нужные поля с заголовками файла, каждая колонка достаётся одному полю.
func resolveColumns(rec map[string]string, wants ...string) map[string]string {
	taken := map[string]bool{}
	out := make(map[string]string, len(wants))
	for _, w := range wants {
		if k := resolveKey(rec, w, taken); k != "" {
			out[w] = k
			taken[k] = true
		}
	}
	return out
}

func cell(rec map[string]string, cols map[string]string, want string) string {
	k, ok := cols[want]
	if !ok {
		return ""
	}
	return strings.TrimSpace(rec[k])
}

// catalogFromRows: строки файла в материалы СВС. Одна битая строка отклоняет весь файл.
func catalogFromRows(rows []map[string]string) ([]model.CatalogEntry, error) {
	const op = "handler.catalogFromRows"
	if len(rows) == 0 {
		return nil, model.NewValidation(op, "file has no rows", model.ErrEmptyCatalog)
	}
	cols := resolveColumns(rows[0], colItemID, colGroupID, colMeasureID, colGroupName, colMeasureName, colItemName)
	if _, ok := cols[colItemID]; !ok {
		return nil, model.NewValidation(op, "column MatId not found", nil)
	}
	if _, ok := cols[colItemName]; !ok {
		return nil, model.NewValidation(op, "column NameMat not found", nil)
	}

	out := make([]model.CatalogEntry, 0, len(rows))
	for i, rec := range rows {
		if looksLikeHeaderMap(rec) {
			continue
		}
		itemID, ok := utils.ParseIntRU(cell(rec, cols, colItemID))
		if !ok {
			return nil, model.NewValidation(op, fmt.Sprintf("row %d: MatId %q is not a number", i+1, cell(rec, cols, colItemID)), nil)
		}
		e := model.CatalogEntry{
			ItemID:      itemID,
			GroupName:   cell(rec, cols, colGroupName),
			ItemName:    cell(rec, cols, colItemName),
			MeasureName: cell(rec, cols, colMeasureName),
		}
		if s := cell(rec, cols, colGroupID); s != "" {
			if e.GroupID, ok = utils.ParseIntRU(s); !ok {
				return nil, model.NewValidation(op, fmt.Sprintf("row %d: GroupMatId %q is not a number", i+1, s), nil)
			}
		}
		if s := cell(rec, cols, colMeasureID); s != "" {
			if e.MeasureID, ok = utils.ParseIntRU(s); !ok {
				return nil, model.NewValidation(op, fmt.Sprintf("row %d: MeasureId %q is not a number", i+1, s), nil)
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// productsFromRows: строки файла в продукты. Строки без наименования пропускаются.
func productsFromRows(rows []map[string]string) ([]model.Product, int, error) {
	const op = "handler.productsFromRows"
	if len(rows) == 0 {
		return nil, 0, model.NewValidation(op, "file has no rows", nil)
	}
	cols := resolveColumns(rows[0],
		colProductSvsCode, colProductExternal, colProductCode, colProductCategory,
		colProductUnit, colProductPrice, colProductName)
	if _, ok := cols[colProductName]; !ok {
		return nil, 0, model.NewValidation(op, "column with product name not found", nil)
	}

	skipped := 0
	out := make([]model.Product, 0, len(rows))
	for i, rec := range rows {
		name := cell(rec, cols, colProductName)
		if name == "" || looksLikeHeaderMap(rec) {
			skipped++
			continue
		}
		p := model.Product{
			Name:       name,
			Category:   cell(rec, cols, colProductCategory),
			Code:       cell(rec, cols, colProductCode),
			ExternalID: cell(rec, cols, colProductExternal),
			SvsCode:    cell(rec, cols, colProductSvsCode),
			Unit:       cell(rec, cols, colProductUnit),
			IsActive:   true,
		}
		if s := cell(rec, cols, colProductPrice); s != "" {
			price, ok := utils.ParseDecimalRU(s)
			if !ok {
				return nil, 0, model.NewValidation(op, fmt.Sprintf("row %d: price %q is not a number", i+1, s), nil)
			}
			p.Price = price
		}
		out = append(out, p)
	}
	return out, skipped, nil
}
