package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/example/apicatalog/internal/cache"
	"github.com/example/apicatalog/internal/paging"
)

var ErrInvalidCriteria = errors.New("catalog: price criteria must be gt, lt or eq")

const (
	categoriesKey = "categories"
	productsKey   = "products"
)

func categoryKey(id int64) string { return fmt.Sprintf("category:%d", id) }
func productKey(id int64) string  { return fmt.Sprintf("product:%d", id) }

// Service serves catalog reads through the response cache and drops the
// affected keys on every write before returning, so a read that follows a
// write never sees the old value.
type Service struct {
	store  Store
	cache  *cache.Cache
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, c *cache.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = cache.New()
	}
	return &Service{store: store, cache: c, logger: logger, now: time.Now}
}

func (s *Service) categories(ctx context.Context) ([]Category, error) {
	return cache.GetOrCompute(ctx, s.cache, categoriesKey, s.store.ListCategories)
}

func (s *Service) products(ctx context.Context) ([]Product, error) {
	return cache.GetOrCompute(ctx, s.cache, productsKey, s.store.ListProducts)
}

// ListCategories returns every category. An empty catalog is ErrNotFound.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	all, err := s.categories(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		s.logger.WarnContext(ctx, "categories not found")
		return nil, ErrNotFound
	}
	return slices.Clone(all), nil
}

func (s *Service) PageCategories(ctx context.Context, p paging.Params) (paging.Page[Category], error) {
	all, err := s.categories(ctx)
	if err != nil {
		return paging.Page[Category]{}, err
	}
	return paging.Slice(all, p.PageNumber, p.PageSize), nil
}

// FilterCategoriesByName matches name as a case-insensitive substring. An
// empty name matches everything.
func (s *Service) FilterCategoriesByName(ctx context.Context, name string, p paging.Params) (paging.Page[Category], error) {
	all, err := s.categories(ctx)
	if err != nil {
		return paging.Page[Category]{}, err
	}
	needle := strings.ToLower(name)
	var out []Category
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			out = append(out, c)
		}
	}
	return paging.Slice(out, p.PageNumber, p.PageSize), nil
}

func (s *Service) GetCategory(ctx context.Context, id int64) (*Category, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	c, err := cache.GetOrCompute(ctx, s.cache, categoryKey(id), func(ctx context.Context) (Category, error) {
		c, err := s.store.GetCategory(ctx, id)
		if err != nil {
			return Category{}, err
		}
		return *c, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "category not found", "id", id)
		}
		return nil, err
	}
	return &c, nil
}

func (s *Service) CreateCategory(ctx context.Context, c Category) (*Category, error) {
	if err := asError(ValidateCategory(c)); err != nil {
		return nil, err
	}
	c.ID = 0
	created, err := s.store.CreateCategory(ctx, &c)
	if err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}
	s.cache.Invalidate(categoriesKey, categoryKey(created.ID))
	return created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, c Category) (*Category, error) {
	if c.ID <= 0 {
		return nil, ErrNotFound
	}
	if err := asError(ValidateCategory(c)); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateCategory(ctx, &c)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(categoriesKey, categoryKey(c.ID))
	return updated, nil
}

// DeleteCategory removes the category and every product in it in one
// transaction.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	var removed []Product
	err := s.store.WithinTx(ctx, func(r Repositories) error {
		if _, err := r.GetCategory(ctx, id); err != nil {
			return err
		}
		products, err := r.ListProductsByCategory(ctx, id)
		if err != nil {
			return err
		}
		for _, p := range products {
			if err := r.DeleteProduct(ctx, p.ID); err != nil {
				return err
			}
		}
		removed = products
		return r.DeleteCategory(ctx, id)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "category not found", "id", id)
		}
		return err
	}

	keys := []string{categoriesKey, categoryKey(id), productsKey}
	for _, p := range removed {
		keys = append(keys, productKey(p.ID))
	}
	s.cache.Invalidate(keys...)
	s.logger.InfoContext(ctx, "category deleted", "id", id, "products", len(removed))
	return nil
}

func (s *Service) PageProducts(ctx context.Context, p paging.Params) (paging.Page[Product], error) {
	all, err := s.products(ctx)
	if err != nil {
		return paging.Page[Product]{}, err
	}
	return paging.Slice(all, p.PageNumber, p.PageSize), nil
}

// FilterProductsByPrice keeps products priced above, below or equal to
// price, ordered by price. An empty criteria returns every product.
func (s *Service) FilterProductsByPrice(ctx context.Context, price float64, criteria PriceCriteria, p paging.Params) (paging.Page[Product], error) {
	var keep func(float64) bool
	switch PriceCriteria(strings.ToLower(string(criteria))) {
	case "":
	case PriceGreater:
		keep = func(v float64) bool { return v > price }
	case PriceLess:
		keep = func(v float64) bool { return v < price }
	case PriceEqual:
		keep = func(v float64) bool { return v == price }
	default:
		return paging.Page[Product]{}, ErrInvalidCriteria
	}

	all, err := s.products(ctx)
	if err != nil {
		return paging.Page[Product]{}, err
	}
	if keep == nil {
		return paging.Slice(all, p.PageNumber, p.PageSize), nil
	}
	var out []Product
	for _, prod := range all {
		if keep(prod.Price) {
			out = append(out, prod)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return paging.Slice(out, p.PageNumber, p.PageSize), nil
}

// ProductsByCategory pages the products of one category; the category must
// exist.
func (s *Service) ProductsByCategory(ctx context.Context, categoryID int64, p paging.Params) (paging.Page[Product], error) {
	if _, err := s.GetCategory(ctx, categoryID); err != nil {
		return paging.Page[Product]{}, err
	}
	products, err := s.store.ListProductsByCategory(ctx, categoryID)
	if err != nil {
		return paging.Page[Product]{}, err
	}
	return paging.Slice(products, p.PageNumber, p.PageSize), nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	p, err := cache.GetOrCompute(ctx, s.cache, productKey(id), func(ctx context.Context) (Product, error) {
		p, err := s.store.GetProduct(ctx, id)
		if err != nil {
			return Product{}, err
		}
		return *p, nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) checkCategory(ctx context.Context, id int64) error {
	if id <= 0 {
		return nil
	}
	if _, err := s.store.GetCategory(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &ValidationError{Violations: []Violation{{Field: "categoryId", Message: "category does not exist"}}}
		}
		return err
	}
	return nil
}

// CreateProduct stamps the registration date when the caller left it empty.
func (s *Service) CreateProduct(ctx context.Context, p Product) (*Product, error) {
	if err := asError(ValidateProduct(p)); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, p.CategoryID); err != nil {
		return nil, err
	}
	p.ID = 0
	if p.RegistrationDate.IsZero() {
		p.RegistrationDate = s.now().UTC()
	}
	created, err := s.store.CreateProduct(ctx, &p)
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}
	s.cache.Invalidate(productsKey, productKey(created.ID))
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, p Product) (*Product, error) {
	if p.ID <= 0 {
		return nil, ErrNotFound
	}
	if err := asError(ValidateProduct(p)); err != nil {
		return nil, err
	}
	current, err := s.store.GetProduct(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, p.CategoryID); err != nil {
		return nil, err
	}
	if p.RegistrationDate.IsZero() {
		p.RegistrationDate = current.RegistrationDate
	}
	updated, err := s.store.UpdateProduct(ctx, &p)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(productsKey, productKey(p.ID))
	return updated, nil
}

// PatchProduct applies stock and registration date changes. The patched
// product must pass ValidateProductPatch.
func (s *Service) PatchProduct(ctx context.Context, id int64, patch ProductPatch) (*Product, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	current, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *current
	if patch.Stock != nil {
		next.Stock = *patch.Stock
	}
	if patch.RegistrationDate != nil {
		next.RegistrationDate = *patch.RegistrationDate
	}
	if err := asError(ValidateProductPatch(next, s.now())); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateProduct(ctx, &next)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(productsKey, productKey(id))
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(productsKey, productKey(id))
	return nil
}
