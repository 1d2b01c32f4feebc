// Package catalog maps detector class names to display names and unit
// prices. The simulated backend prices its detections from it.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - empty database
// 1 - products table
const currentSchemaVersion = 1

// ErrNotFound is returned by Lookup for an unknown class name.
var ErrNotFound = errors.New("catalog: product not found")

// Product is one catalog row.
type Product struct {
	ClassName   string          `json:"class_name" yaml:"class_name"`
	ProductName string          `json:"product_name" yaml:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price" yaml:"unit_price"`
}

// Store is a SQLite-backed catalog.
type Store struct {
	db *sql.DB
}

// Open creates or opens a catalog database at path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//
// Safe to call repeatedly on the same file.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Upsert inserts p or replaces the row with the same class name.
func (s *Store) Upsert(ctx context.Context, p Product) error {
	if err := validate(p); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, upsertSQL, p.ClassName, p.ProductName, p.UnitPrice.String())
	if err != nil {
		return fmt.Errorf("upsert %s: %w", p.ClassName, err)
	}
	return nil
}

const upsertSQL = `
	INSERT INTO products (class_name, product_name, unit_price)
	VALUES (?, ?, ?)
	ON CONFLICT(class_name) DO UPDATE SET
		product_name = excluded.product_name,
		unit_price   = excluded.unit_price,
		updated_at   = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
`

// Seed upserts every product in one transaction and returns how many rows
// were written. Seeding twice leaves the same catalog.
func (s *Store) Seed(ctx context.Context, products []Product) (int, error) {
	for _, p := range products {
		if err := validate(p); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare seed: %w", err)
	}
	defer stmt.Close()

	for _, p := range products {
		if _, err := stmt.ExecContext(ctx, p.ClassName, p.ProductName, p.UnitPrice.String()); err != nil {
			return 0, fmt.Errorf("seed %s: %w", p.ClassName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return len(products), nil
}

// Lookup returns the product for a class name, or ErrNotFound.
func (s *Store) Lookup(ctx context.Context, className string) (Product, error) {
	var p Product
	var price string
	err := s.db.QueryRowContext(ctx, `
		SELECT class_name, product_name, unit_price
		FROM products
		WHERE class_name = ?
	`, className).Scan(&p.ClassName, &p.ProductName, &price)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: %s", ErrNotFound, className)
	}
	if err != nil {
		return Product{}, fmt.Errorf("lookup %s: %w", className, err)
	}

	p.UnitPrice, err = decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("lookup %s: bad unit price %q: %w", className, price, err)
	}
	return p, nil
}

// List returns every product ordered by class name.
func (s *Store) List(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT class_name, product_name, unit_price
		FROM products
		ORDER BY class_name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		var price string
		if err := rows.Scan(&p.ClassName, &p.ProductName, &price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if p.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("product %s: bad unit price %q: %w", p.ClassName, price, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

func validate(p Product) error {
	if p.ClassName == "" {
		return errors.New("catalog: class name is required")
	}
	if p.ProductName == "" {
		return fmt.Errorf("catalog: %s: product name is required", p.ClassName)
	}
	if p.UnitPrice.IsNegative() {
		return fmt.Errorf("catalog: %s: negative unit price %s", p.ClassName, p.UnitPrice)
	}
	return nil
}
