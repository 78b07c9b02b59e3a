package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"svs-mapping/internal/mapping/model"
)

const overrideColumns = `organization_id, product_id, svs_code, is_manual, local_price, is_active, created_at, updated_at`

func scanOverride(r rowScanner) (model.Override, error) {
	var (
		o                    model.Override
		code                 sql.NullString
		createdAt, updatedAt string
	)
	err := r.Scan(&o.OrganizationID, &o.ProductID, &code, &o.IsManual, &o.LocalPrice, &o.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return model.Override{}, err
	}
	o.SvsCode = code.String
	o.CreatedAt, o.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
	return o, nil
}

func (s *Store) Override(ctx context.Context, orgID, productID int64) (model.Override, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+overrideColumns+` FROM organization_products WHERE organization_id = ? AND product_id = ?`,
		orgID, productID)
	o, err := scanOverride(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Override{}, false, nil
	}
	if err != nil {
		return model.Override{}, false, model.NewDB("sqlstore.Override", "query mapping", err)
	}
	return o, true, nil
}

func (s *Store) Overrides(ctx context.Context, orgID int64) (map[int64]model.Override, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+overrideColumns+` FROM organization_products WHERE organization_id = ?`, orgID)
	if err != nil {
		return nil, model.NewDB("sqlstore.Overrides", "query mappings", err)
	}
	defer rows.Close()

	out := make(map[int64]model.Override)
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, model.NewDB("sqlstore.Overrides", "scan mapping", err)
		}
		out[o.ProductID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewDB("sqlstore.Overrides", "iterate mappings", err)
	}
	return out, nil
}

// UpsertOverride: UPDATE по паре (организация, продукт), при отсутствии: INSERT.
// Если параллельный прогон успел вставить строку первым, повторяем UPDATE (последний пишущий побеждает).
func (s *Store) UpsertOverride(ctx context.Context, o model.Override) error {
	const op = "sqlstore.UpsertOverride"
	now := s.stamp()

	update := func() (int64, error) {
		res, err := s.db.ExecContext(ctx,
			`UPDATE organization_products
			 SET svs_code = ?, is_manual = ?, local_price = ?, is_active = ?, updated_at = ?
			 WHERE organization_id = ? AND product_id = ?`,
			nullString(o.SvsCode), o.IsManual, o.LocalPrice, o.IsActive, now, o.OrganizationID, o.ProductID)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}

	n, err := update()
	if err != nil {
		return model.NewDB(op, "update mapping", err)
	}
	if n > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO organization_products
		 (organization_id, product_id, svs_code, is_manual, local_price, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrganizationID, o.ProductID, nullString(o.SvsCode), o.IsManual, o.LocalPrice, o.IsActive, now, now)
	if isUniqueConstraintError(err) {
		if _, err = update(); err != nil {
			return model.NewDB(op, "update mapping after conflict", err)
		}
		return nil
	}
	if err != nil {
		return model.NewDB(op, "insert mapping", err)
	}
	return nil
}
