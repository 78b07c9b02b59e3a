package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"svs-mapping/internal/mapping/model"
)

const productColumns = `id, name, category, code, external_id, svs_code, unit, price, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(r rowScanner) (model.Product, error) {
	var (
		p                                    model.Product
		category, code, extID, svsCode, unit sql.NullString
		createdAt, updatedAt                 string
	)
	err := r.Scan(&p.ID, &p.Name, &category, &code, &extID, &svsCode, &unit, &p.Price, &p.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return model.Product{}, err
	}
	p.Category, p.Code, p.ExternalID = category.String, code.String, extID.String
	p.SvsCode, p.Unit = svsCode.String, unit.String
	p.CreatedAt, p.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
	return p, nil
}

func (s *Store) ActiveProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, model.NewDB("sqlstore.ActiveProducts", "query products", err)
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, model.NewDB("sqlstore.ActiveProducts", "scan product", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewDB("sqlstore.ActiveProducts", "iterate products", err)
	}
	return out, nil
}

func (s *Store) Product(ctx context.Context, id int64) (model.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, model.ErrNotFound
	}
	if err != nil {
		return model.Product{}, model.NewDB("sqlstore.Product", "query product", err)
	}
	return p, nil
}

func (s *Store) SetGlobalCode(ctx context.Context, productID int64, code string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET svs_code = ?, updated_at = ? WHERE id = ?`,
		nullString(code), s.stamp(), productID)
	if err != nil {
		return model.NewDB("sqlstore.SetGlobalCode", "update product", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// UpsertProducts: загрузка справочника продуктов одной транзакцией.
// Ключ: шифр, если задан, иначе точное наименование среди продуктов без шифра.
func (s *Store) UpsertProducts(ctx context.Context, products []model.Product) (model.ImportSummary, error) {
	const op = "sqlstore.UpsertProducts"
	sum := model.ImportSummary{Total: len(products)}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sum, model.NewDB(op, "begin", err)
	}
	defer tx.Rollback()

	now := s.stamp()
	for _, p := range products {
		var id int64
		if p.Code != "" {
			err = tx.QueryRowContext(ctx, `SELECT id FROM products WHERE code = ? ORDER BY id LIMIT 1`, p.Code).Scan(&id)
		} else {
			err = tx.QueryRowContext(ctx,
				`SELECT id FROM products WHERE (code IS NULL OR code = '') AND name = ? ORDER BY id LIMIT 1`,
				p.Name).Scan(&id)
		}
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx,
				`INSERT INTO products (name, category, code, external_id, svs_code, unit, price, is_active, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
				p.Name, nullString(p.Category), nullString(p.Code), nullString(p.ExternalID),
				nullString(p.SvsCode), nullString(p.Unit), p.Price, now, now)
			if err != nil {
				return sum, model.NewDB(op, "insert product "+p.Name, err)
			}
			sum.Created++
		case err != nil:
			return sum, model.NewDB(op, "lookup product "+p.Name, err)
		default:
			_, err = tx.ExecContext(ctx,
				`UPDATE products SET name = ?, category = ?, external_id = ?, unit = ?,
				 price = COALESCE(?, price), is_active = 1, updated_at = ? WHERE id = ?`,
				p.Name, nullString(p.Category), nullString(p.ExternalID), nullString(p.Unit), p.Price, now, id)
			if err != nil {
				return sum, model.NewDB(op, "update product "+p.Name, err)
			}
			sum.Updated++
		}
	}
	if err := tx.Commit(); err != nil {
		return model.ImportSummary{Total: len(products)}, model.NewDB(op, "commit", err)
	}
	return sum, nil
}
