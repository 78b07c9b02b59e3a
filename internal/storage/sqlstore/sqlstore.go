/*
Package sqlstore хранит продукты, сопоставления СВС по организациям и
журнал загрузок справочника на database/sql.

Драйверы: "sqlite3" (mattn/go-sqlite3, по умолчанию) и "mysql"
(go-sql-driver/mysql). SQL общий, отличается только DDL.

Таблицы:

	products               продукты, svs_code хранит глобальный код СВС
	organization_products  код СВС продукта в организации, UNIQUE(organization_id, product_id)
	svs_catalog_updates    журнал прогонов сверки

Время хранится строкой RFC3339 (наносекунды, фиксированная ширина) в UTC, деньги строкой decimal.
Запись сопоставления выполняется сразу, без общей транзакции на весь прогон.
*/
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// Open открывает БД и создаёт схему. Для sqlite dsn задаёт путь к файлу или ":memory:".
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if path := strings.TrimPrefix(strings.SplitN(dsn, "?", 2)[0], "file:"); path != ":memory:" && path != "" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
		}
	case DriverMySQL:
		if !strings.Contains(dsn, "charset=") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			// clientFoundRows: UPDATE без изменений тоже считается найденной строкой
			dsn += sep + "charset=utf8mb4&clientFoundRows=true"
		}
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// один коннект: ":memory:" живёт в пределах соединения, запись в sqlite всё равно одна
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(10 * time.Minute)
	}

	s := &Store{db: db, driver: driver, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if s.driver == DriverMySQL {
		stmts = mysqlSchema
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		category TEXT,
		code TEXT,
		external_id TEXT,
		svs_code TEXT,
		unit TEXT,
		price TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_code ON products(code)`,
	`CREATE TABLE IF NOT EXISTS organization_products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		organization_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		svs_code TEXT,
		is_manual INTEGER NOT NULL DEFAULT 0,
		local_price TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(organization_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS svs_catalog_updates (
		id TEXT PRIMARY KEY,
		update_date TEXT NOT NULL,
		total_materials INTEGER NOT NULL,
		mapped_materials INTEGER NOT NULL,
		unmapped_materials INTEGER NOT NULL,
		errored_products INTEGER NOT NULL DEFAULT 0,
		update_source TEXT,
		notes TEXT,
		organization_id INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_svs_catalog_updates_date ON svs_catalog_updates(update_date)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		category VARCHAR(50) NULL,
		code VARCHAR(20) NULL,
		external_id VARCHAR(50) NULL,
		svs_code VARCHAR(50) NULL,
		unit VARCHAR(50) NULL,
		price VARCHAR(32) NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at VARCHAR(40) NOT NULL,
		updated_at VARCHAR(40) NOT NULL,
		INDEX idx_products_code (code)
	) DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS organization_products (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		organization_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		svs_code VARCHAR(50) NULL,
		is_manual TINYINT(1) NOT NULL DEFAULT 0,
		local_price VARCHAR(32) NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at VARCHAR(40) NOT NULL,
		updated_at VARCHAR(40) NOT NULL,
		UNIQUE KEY uq_org_product (organization_id, product_id),
		CONSTRAINT fk_org_products_product FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
	) DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS svs_catalog_updates (
		id CHAR(36) NOT NULL PRIMARY KEY,
		update_date VARCHAR(40) NOT NULL,
		total_materials INT NOT NULL,
		mapped_materials INT NOT NULL,
		unmapped_materials INT NOT NULL,
		errored_products INT NOT NULL DEFAULT 0,
		update_source VARCHAR(50) NULL,
		notes VARCHAR(500) NULL,
		organization_id BIGINT NULL,
		INDEX idx_svs_catalog_updates_date (update_date)
	) DEFAULT CHARSET=utf8mb4`,
}

// фиксированная ширина: строки сортируются так же, как время
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (s *Store) stamp() string { return formatTime(s.now()) }

func formatTime(t time.Time) string { return t.UTC().Format(tsLayout) }

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}
