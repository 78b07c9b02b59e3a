package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CatalogEntry: материал справочника СВС. Поля JSON совпадают с выгрузкой СВС.
type CatalogEntry struct {
	GroupID     int    `json:"GroupMatId"`
	ItemID      int    `json:"MatId"`
	MeasureID   int    `json:"MeasureId"`
	GroupName   string `json:"NameGroupMat"`
	ItemName    string `json:"NameMat"`
	MeasureName string `json:"NameMeasure"`
}

// CatalogRequest: тело POST /api/svs/materials.
type CatalogRequest struct {
	MatItem      []CatalogEntry `json:"MatItem"`
	Notes        string         `json:"Notes,omitempty"`
	UpdateSource string         `json:"UpdateSource,omitempty"`
}

// Product: продукт из системы учёта питания.
type Product struct {
	ID         int64               `json:"id"`
	Name       string              `json:"name"`
	Category   string              `json:"category,omitempty"`
	Code       string              `json:"code,omitempty"`       // шифр из системы питания
	ExternalID string              `json:"externalId,omitempty"` // например "213|13"
	SvsCode    string              `json:"svsCode,omitempty"`    // глобальный код СВС по умолчанию
	Unit       string              `json:"unit,omitempty"`
	Price      decimal.NullDecimal `json:"price"`
	IsActive   bool                `json:"isActive"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// Override: код СВС продукта для конкретной организации.
// IsManual=true означает ручное сопоставление, автосверка его не трогает.
type Override struct {
	OrganizationID int64               `json:"organizationId"`
	ProductID      int64               `json:"productId"`
	SvsCode        string              `json:"svsCode"`
	IsManual       bool                `json:"isManual"`
	LocalPrice     decimal.NullDecimal `json:"localPrice"`
	IsActive       bool                `json:"isActive"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// MatchResult: результат сопоставления одного продукта за один прогон.
type MatchResult struct {
	ProductID        int64   `json:"productId"`
	ProductName      string  `json:"productName"`
	ProductCode      string  `json:"productCode"`
	MatchedItemID    *int    `json:"svsMatId,omitempty"`
	MatchedItemName  string  `json:"svsName,omitempty"`
	MatchedGroupID   *int    `json:"svsGroupId,omitempty"`
	MatchedGroupName string  `json:"svsGroupName,omitempty"`
	MeasureName      string  `json:"svsMeasure,omitempty"`
	IsAutoMatched    bool    `json:"isAutoMapped"`
	Confidence       float64 `json:"confidence"`
	AssignedCode     string  `json:"svsCode,omitempty"`
	Tier             string  `json:"tier,omitempty"` // exact | contains | fuzzy
	Error            string  `json:"error,omitempty"`
}

// RunRequest: параметры одного прогона сверки.
type RunRequest struct {
	Catalog        []CatalogEntry
	OrganizationID *int64
	AutoSave       bool
	Source         string // manual | api | file
	Notes          string
}

// RunReport: итог прогона, частичный успех допустим.
type RunReport struct {
	RunID          string        `json:"runId"`
	OrganizationID *int64        `json:"organizationId,omitempty"`
	AutoSave       bool          `json:"autoSave"`
	Materials      int           `json:"materials"`
	Total          int           `json:"totalProducts"`
	Mapped         int           `json:"autoMapped"`
	Unmapped       int           `json:"unmapped"`
	Errored        int           `json:"errored"`
	Results        []MatchResult `json:"mappings"`
}

// CatalogUpdate: запись журнала загрузок справочника СВС.
type CatalogUpdate struct {
	ID                string    `json:"id"`
	UpdateDate        time.Time `json:"updateDate"`
	TotalMaterials    int       `json:"totalMaterials"`
	MappedMaterials   int       `json:"mappedMaterials"`
	UnmappedMaterials int       `json:"unmappedMaterials"`
	ErroredProducts   int       `json:"erroredProducts"`
	UpdateSource      string    `json:"updateSource,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	OrganizationID    *int64    `json:"organizationId,omitempty"`
}

// SaveRequest: ручное сохранение сопоставления.
type SaveRequest struct {
	ProductID      int64               `json:"productId"`
	SvsMatID       int                 `json:"svsMatId"`
	SvsCode        string              `json:"svsCode"`
	OrganizationID *int64              `json:"organizationId,omitempty"`
	LocalPrice     decimal.NullDecimal `json:"localPrice"`
	Notes          string              `json:"notes,omitempty"`
}

// MappingRow: текущее состояние сопоставления продукта (для списка и экспорта).
type MappingRow struct {
	ProductID   int64               `json:"productId"`
	ProductName string              `json:"productName"`
	ProductCode string              `json:"productCode"`
	Category    string              `json:"category,omitempty"`
	Unit        string              `json:"unit,omitempty"`
	SvsCode     string              `json:"svsCode,omitempty"`
	IsManual    bool                `json:"isManual"`
	Source      string              `json:"source"` // organization | global | none
	LocalPrice  decimal.NullDecimal `json:"localPrice"`
}

// Page: страница результатов.
type Page[T any] struct {
	Records    []T `json:"records"`
	TotalCount int `json:"totalCount"`
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// Stats: сводка по сопоставлениям.
type Stats struct {
	OrganizationID   *int64  `json:"organizationId,omitempty"`
	TotalProducts    int     `json:"totalProducts"`
	MappedProducts   int     `json:"mappedProducts"`
	UnmappedProducts int     `json:"unmappedProducts"`
	ManualMapped     int     `json:"manualMappedProducts"`
	AutoMapped       int     `json:"autoMappedProducts"`
	MappingPercent   float64 `json:"mappingPercentage"`
}

// ExportDocument: выгрузка текущего состояния сопоставлений.
type ExportDocument struct {
	ExportDate     time.Time    `json:"exportDate"`
	OrganizationID *int64       `json:"organizationId"`
	TotalMappings  int          `json:"totalMappings"`
	MappedCount    int          `json:"mappedCount"`
	UnmappedCount  int          `json:"unmappedCount"`
	Mappings       []MappingRow `json:"mappings"`
}

// ImportSummary: итог загрузки продуктов.
type ImportSummary struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}
