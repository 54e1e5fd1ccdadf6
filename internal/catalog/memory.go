package catalog

import (
	"context"
	"sort"
	"sync"
)

type memData struct {
	categories map[int64]Category
	products   map[int64]Product
	nextCat    int64
	nextProd   int64
}

func (d *memData) clone() *memData {
	cp := &memData{
		categories: make(map[int64]Category, len(d.categories)),
		products:   make(map[int64]Product, len(d.products)),
		nextCat:    d.nextCat,
		nextProd:   d.nextProd,
	}
	for k, v := range d.categories {
		cp.categories[k] = v
	}
	for k, v := range d.products {
		cp.products[k] = v
	}
	return cp
}

// MemoryStore keeps the catalog in maps guarded by one mutex. A transaction
// works on a copy that replaces the live data on commit.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memData{
		categories: map[int64]Category{},
		products:   map[int64]Product{},
		nextCat:    1,
		nextProd:   1,
	}}
}

func (m *MemoryStore) WithinTx(_ context.Context, fn func(Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{data: m.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.data = tx.data
	return nil
}

func (m *MemoryStore) view(fn func(*memTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memTx{data: m.data})
}

func (m *MemoryStore) ListCategories(ctx context.Context) (out []Category, err error) {
	err = m.view(func(tx *memTx) error { out, err = tx.ListCategories(ctx); return err })
	return out, err
}

func (m *MemoryStore) GetCategory(ctx context.Context, id int64) (out *Category, err error) {
	err = m.view(func(tx *memTx) error { out, err = tx.GetCategory(ctx, id); return err })
	return out, err
}

func (m *MemoryStore) CreateCategory(ctx context.Context, c *Category) (out *Category, err error) {
	err = m.view(func(tx *memTx) error { out, err = tx.CreateCategory(ctx, c); return err })
	return out, err
}

func (m *MemoryStore) UpdateCategory(ctx context.Context, c *Category) (out *Category, err error) {
	err = m.view(func(tx *memTx) error { out, err = tx.UpdateCategory(ctx, c); return err })
	return out, err
}

func (m *MemoryStore) DeleteCategory(ctx context.Context, id int64) error {
	return m.view(func(tx *memTx) error { return tx.DeleteCategory(ctx, id) })
}

func (m *MemoryStore) ListProducts(ctx context.Context) (out []Product, err error) {
	err = m.view(func(tx *memTx) error { out, err = tx.ListProducts(ctx); return err })
	return out, err
}

func (m *MemoryStore) ListProductsByCategory(ctx context.Context, categoryID int64) (out []Product, err error) {
	err = m.view(func(tx *memTx) error { out, err = tx.ListProductsByCategory(ctx, categoryID); return err })
	return out, err
}

func (m *MemoryStore) GetProduct(ctx context.Context, id int64) (out *Product, err error) {
	err = m.view(func(tx *memTx) error { out, err = tx.GetProduct(ctx, id); return err })
	return out, err
}

func (m *MemoryStore) CreateProduct(ctx context.Context, p *Product) (out *Product, err error) {
	err = m.view(func(tx *memTx) error { out, err = tx.CreateProduct(ctx, p); return err })
	return out, err
}

func (m *MemoryStore) UpdateProduct(ctx context.Context, p *Product) (out *Product, err error) {
	err = m.view(func(tx *memTx) error { out, err = tx.UpdateProduct(ctx, p); return err })
	return out, err
}

func (m *MemoryStore) DeleteProduct(ctx context.Context, id int64) error {
	return m.view(func(tx *memTx) error { return tx.DeleteProduct(ctx, id) })
}

// memTx is the unlocked view; callers hold MemoryStore.mu or own the data.
type memTx struct{ data *memData }

func (t *memTx) ListCategories(context.Context) ([]Category, error) {
	out := make([]Category, 0, len(t.data.categories))
	for _, c := range t.data.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) GetCategory(_ context.Context, id int64) (*Category, error) {
	c, ok := t.data.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (t *memTx) CreateCategory(_ context.Context, c *Category) (*Category, error) {
	n := *c
	n.ID = t.data.nextCat
	t.data.nextCat++
	t.data.categories[n.ID] = n
	return &n, nil
}

func (t *memTx) UpdateCategory(_ context.Context, c *Category) (*Category, error) {
	if _, ok := t.data.categories[c.ID]; !ok {
		return nil, ErrNotFound
	}
	t.data.categories[c.ID] = *c
	n := *c
	return &n, nil
}

func (t *memTx) DeleteCategory(_ context.Context, id int64) error {
	if _, ok := t.data.categories[id]; !ok {
		return ErrNotFound
	}
	delete(t.data.categories, id)
	return nil
}

func (t *memTx) ListProducts(context.Context) ([]Product, error) {
	out := make([]Product, 0, len(t.data.products))
	for _, p := range t.data.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) ListProductsByCategory(ctx context.Context, categoryID int64) ([]Product, error) {
	all, _ := t.ListProducts(ctx)
	out := all[:0]
	for _, p := range all {
		if p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *memTx) GetProduct(_ context.Context, id int64) (*Product, error) {
	p, ok := t.data.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (t *memTx) CreateProduct(_ context.Context, p *Product) (*Product, error) {
	if _, ok := t.data.categories[p.CategoryID]; !ok {
		return nil, ErrNotFound
	}
	n := *p
	n.ID = t.data.nextProd
	t.data.nextProd++
	t.data.products[n.ID] = n
	return &n, nil
}

func (t *memTx) UpdateProduct(_ context.Context, p *Product) (*Product, error) {
	if _, ok := t.data.products[p.ID]; !ok {
		return nil, ErrNotFound
	}
	if _, ok := t.data.categories[p.CategoryID]; !ok {
		return nil, ErrNotFound
	}
	t.data.products[p.ID] = *p
	n := *p
	return &n, nil
}

func (t *memTx) DeleteProduct(_ context.Context, id int64) error {
	if _, ok := t.data.products[id]; !ok {
		return ErrNotFound
	}
	delete(t.data.products, id)
	return nil
}
