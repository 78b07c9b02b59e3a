package sqlstore

import (
	"context"
	"database/sql"

	"svs-mapping/internal/mapping/model"
)

func (s *Store) AddCatalogUpdate(ctx context.Context, u model.CatalogUpdate) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO svs_catalog_updates
		 (id, update_date, total_materials, mapped_materials, unmapped_materials, errored_products, update_source, notes, organization_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, formatTime(u.UpdateDate), u.TotalMaterials, u.MappedMaterials, u.UnmappedMaterials,
		u.ErroredProducts, nullString(u.UpdateSource), nullString(u.Notes), nullInt64(u.OrganizationID))
	if err != nil {
		return model.NewDB("sqlstore.AddCatalogUpdate", "insert catalog update", err)
	}
	return nil
}

func (s *Store) CatalogUpdates(ctx context.Context, limit int) ([]model.CatalogUpdate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, update_date, total_materials, mapped_materials, unmapped_materials, errored_products,
		        update_source, notes, organization_id
		 FROM svs_catalog_updates ORDER BY update_date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, model.NewDB("sqlstore.CatalogUpdates", "query catalog updates", err)
	}
	defer rows.Close()

	var out []model.CatalogUpdate
	for rows.Next() {
		var (
			u             model.CatalogUpdate
			date          string
			source, notes sql.NullString
			org           sql.NullInt64
		)
		if err := rows.Scan(&u.ID, &date, &u.TotalMaterials, &u.MappedMaterials, &u.UnmappedMaterials,
			&u.ErroredProducts, &source, &notes, &org); err != nil {
			return nil, model.NewDB("sqlstore.CatalogUpdates", "scan catalog update", err)
		}
		u.UpdateDate = parseTime(date)
		u.UpdateSource, u.Notes = source.String, notes.String
		if org.Valid {
			id := org.Int64
			u.OrganizationID = &id
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewDB("sqlstore.CatalogUpdates", "iterate catalog updates", err)
	}
	return out, nil
}
