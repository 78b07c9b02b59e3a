package service

import (
	"context"

	"svs-mapping/internal/mapping/model"
)

// Store: хранилище продуктов, сопоставлений организаций и журнала загрузок.
// Реализации: storage/sqlstore (sqlite3, mysql) и storage/memory.
type Store interface {
	ActiveProducts(ctx context.Context) ([]model.Product, error)
	Product(ctx context.Context, id int64) (model.Product, error)
	SetGlobalCode(ctx context.Context, productID int64, code string) error
	UpsertProducts(ctx context.Context, products []model.Product) (model.ImportSummary, error)

	// Override возвращает found=false, если сопоставления для пары нет.
	Override(ctx context.Context, orgID, productID int64) (model.Override, bool, error)
	Overrides(ctx context.Context, orgID int64) (map[int64]model.Override, error)
	UpsertOverride(ctx context.Context, o model.Override) error

	AddCatalogUpdate(ctx context.Context, u model.CatalogUpdate) error
	CatalogUpdates(ctx context.Context, limit int) ([]model.CatalogUpdate, error)
}
