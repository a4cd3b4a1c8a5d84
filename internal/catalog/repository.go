package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"

	"github.com/amarnathnag/fitnect-cart/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID            string
	Name          string
	Brand         string
	Description   string
	UnitPrice     float64
	ImageURLs     []string
	StockQuantity int
	CreatedAt     time.Time
}

// Snapshot is what a cart entry carries around.
func (p *Product) Snapshot() domain.ProductSnapshot {
	return domain.ProductSnapshot{
		ID:            p.ID,
		Name:          p.Name,
		Brand:         p.Brand,
		UnitPrice:     p.UnitPrice,
		ImageURLs:     p.ImageURLs,
		StockQuantity: p.StockQuantity,
	}
}

// Repository reads the product catalog from the embedded sqlite database.
// The catalog is written by the admin tooling, read-only here.
type Repository struct {
	db *sql.DB
}

type RepoInterface interface {
	ListProducts(ctx context.Context) ([]*Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	Close() error
	RunMigrations(string) error
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) ListProducts(ctx context.Context) ([]*Product, error) {
	query := `
		SELECT id, name, brand, description, unit_price, image_urls, stock_quantity, created_at
		FROM products
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*Product, error) {
	query := `
		SELECT id, name, brand, description, unit_price, image_urls, stock_quantity, created_at
		FROM products
		WHERE id = ?
	`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	return p, nil
}

func scanProduct(scan func(...any) error) (*Product, error) {
	p := &Product{}
	var imagesJSON []byte
	err := scan(
		&p.ID,
		&p.Name,
		&p.Brand,
		&p.Description,
		&p.UnitPrice,
		&imagesJSON,
		&p.StockQuantity,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	if len(imagesJSON) > 0 {
		if err := json.Unmarshal(imagesJSON, &p.ImageURLs); err != nil {
			return nil, fmt.Errorf("unmarshal image urls: %w", err)
		}
	}

	return p, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
