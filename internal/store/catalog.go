// Package store provides the Postgres-backed product catalog.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/luxelabs/concierge/models"
)

// Catalog is the product lookup capability consumed by the pipeline.
type Catalog interface {
	// GetByIDs resolves products preserving the order of ids; unknown
	// ids are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	ListAll(ctx context.Context) ([]models.Product, error)
	Upsert(ctx context.Context, p models.Product) (models.Product, error)
	Delete(ctx context.Context, id string) error
}

type Store struct {
	DB *sql.DB
}

// NewWithDSN opens a Postgres connection and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

const productColumns = `id, name, category, price, description, sizes, shoe_sizes, image_url, is_featured, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (models.Product, error) {
	var p models.Product
	var sizes, shoeSizes pq.StringArray
	var imageURL sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Description,
		&sizes, &shoeSizes, &imageURL, &p.IsFeatured, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return models.Product{}, err
	}
	p.Sizes = sizes
	p.ShoeSizes = shoeSizes
	p.ImageURL = imageURL.String
	return p, nil
}

func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ListAll(ctx context.Context) ([]models.Product, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Upsert(ctx context.Context, p models.Product) (models.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	row := s.DB.QueryRowContext(ctx, `
		INSERT INTO products (id, name, category, price, description, sizes, shoe_sizes, image_url, is_featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			description = EXCLUDED.description,
			sizes = EXCLUDED.sizes,
			shoe_sizes = EXCLUDED.shoe_sizes,
			image_url = EXCLUDED.image_url,
			is_featured = EXCLUDED.is_featured,
			updated_at = now()
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Category, p.Price, p.Description,
		pq.Array(p.Sizes), pq.Array(p.ShoeSizes), p.ImageURL, p.IsFeatured)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return models.Product{}, fmt.Errorf("upsert product: %w", err)
	}
	return p, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrProductNotFound
	}
	return nil
}

var _ Catalog = (*Store)(nil)
