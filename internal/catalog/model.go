// Package catalog holds categories and products, their validation rules and
// the cached read paths the HTTP layer serves.
package catalog

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("catalog: not found")

type Category struct {
	ID       int64  `json:"categoryId"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

// Product references its category by id only.
type Product struct {
	ID               int64     `json:"productId"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Price            float64   `json:"price"`
	ImageURL         string    `json:"imageUrl"`
	Stock            float64   `json:"stock"`
	RegistrationDate time.Time `json:"registrationDate"`
	CategoryID       int64     `json:"categoryId"`
}

// ProductPatch carries the fields a partial update may change.
type ProductPatch struct {
	Stock            *float64   `json:"stock,omitempty"`
	RegistrationDate *time.Time `json:"registrationDate,omitempty"`
}

// PriceCriteria selects how FilterProductsByPrice compares prices.
type PriceCriteria string

const (
	PriceGreater PriceCriteria = "gt"
	PriceLess    PriceCriteria = "lt"
	PriceEqual   PriceCriteria = "eq"
)

type CategoryRepository interface {
	// ListCategories returns every category ordered by id.
	ListCategories(ctx context.Context) ([]Category, error)
	// GetCategory returns ErrNotFound for unknown ids; so do Update and Delete.
	GetCategory(ctx context.Context, id int64) (*Category, error)
	CreateCategory(ctx context.Context, c *Category) (*Category, error)
	UpdateCategory(ctx context.Context, c *Category) (*Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

type ProductRepository interface {
	// ListProducts returns every product ordered by id.
	ListProducts(ctx context.Context) ([]Product, error)
	ListProductsByCategory(ctx context.Context, categoryID int64) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) (*Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// Repositories is the unit of work handed to a transaction.
type Repositories interface {
	CategoryRepository
	ProductRepository
}

// Store is implemented by the memory, SQLite and Postgres backends.
// WithinTx commits when fn returns nil and rolls back otherwise.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}
