package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/apicatalog/internal/cache"
	"github.com/example/apicatalog/internal/paging"
)

// countingStore records how often the list queries reach the store.
type countingStore struct {
	*MemoryStore
	categoryLists int
}

func (c *countingStore) ListCategories(ctx context.Context) ([]Category, error) {
	c.categoryLists++
	return c.MemoryStore.ListCategories(ctx)
}

func newService(t *testing.T) (*Service, *countingStore) {
	t.Helper()
	store := &countingStore{MemoryStore: NewMemoryStore()}
	svc := NewService(store, cache.New(), nil)
	return svc, store
}

func seed(t *testing.T, svc *Service) (Category, Product) {
	t.Helper()
	ctx := context.Background()
	cat, err := svc.CreateCategory(ctx, Category{Name: "Bebidas", ImageURL: "bebidas.jpg"})
	require.NoError(t, err)
	prod, err := svc.CreateProduct(ctx, Product{
		Name: "Coca-Cola Diet", Description: "Refrigerante de cola 350 ml",
		Price: 5.45, ImageURL: "cocacola.png", Stock: 50, CategoryID: cat.ID,
	})
	require.NoError(t, err)
	return *cat, *prod
}

func TestListCategories_EmptyIsNotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.ListCategories(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	page, err := svc.PageCategories(context.Background(), paging.Params{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.TotalCount)
}

func TestListCategories_CachedUntilWrite(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	seed(t, svc)

	_, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	_, err = svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.categoryLists)

	_, err = svc.CreateCategory(ctx, Category{Name: "Lanches", ImageURL: "lanches.jpg"})
	require.NoError(t, err)
	all, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 2, store.categoryLists)
}

func TestGetCategory_ReadAfterWrite(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	cat, _ := seed(t, svc)

	got, err := svc.GetCategory(ctx, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bebidas", got.Name)

	cat.Name = "Drinks"
	_, err = svc.UpdateCategory(ctx, cat)
	require.NoError(t, err)

	got, err = svc.GetCategory(ctx, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Drinks", got.Name)

	_, err = svc.GetCategory(ctx, 0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetCategory(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteCategory_Cascades(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	cat, prod := seed(t, svc)

	_, err := svc.GetProduct(ctx, prod.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCategory(ctx, cat.ID))
	_, err = svc.GetCategory(ctx, cat.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetProduct(ctx, prod.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.DeleteCategory(ctx, cat.ID), ErrNotFound)
}

func TestWithinTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(r Repositories) error {
		_, err := r.CreateCategory(ctx, &Category{Name: "Bebidas", ImageURL: "b.jpg"})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	all, err := store.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFilterCategoriesByName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	for _, n := range []string{"Bebidas", "Lanches", "Sobremesas"} {
		_, err := svc.CreateCategory(ctx, Category{Name: n, ImageURL: "x.jpg"})
		require.NoError(t, err)
	}
	page, err := svc.FilterCategoriesByName(ctx, "ES", paging.Params{PageNumber: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Lanches", page.Items[0].Name)
	assert.Equal(t, "Sobremesas", page.Items[1].Name)
}

func TestFilterProductsByPrice(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	cat, _ := seed(t, svc)
	for _, price := range []float64{8.5, 6.75} {
		_, err := svc.CreateProduct(ctx, Product{
			Name: "Product", Description: "d", Price: price, ImageURL: "p.png", Stock: 1, CategoryID: cat.ID,
		})
		require.NoError(t, err)
	}

	prices := func(p paging.Page[Product]) []float64 {
		var out []float64
		for _, it := range p.Items {
			out = append(out, it.Price)
		}
		return out
	}

	page, err := svc.FilterProductsByPrice(ctx, 6, PriceGreater, paging.Params{})
	require.NoError(t, err)
	assert.Equal(t, []float64{6.75, 8.5}, prices(page))

	page, err = svc.FilterProductsByPrice(ctx, 6, PriceLess, paging.Params{})
	require.NoError(t, err)
	assert.Equal(t, []float64{5.45}, prices(page))

	page, err = svc.FilterProductsByPrice(ctx, 8.5, "EQ", paging.Params{})
	require.NoError(t, err)
	assert.Equal(t, []float64{8.5}, prices(page))

	page, err = svc.FilterProductsByPrice(ctx, 0, "", paging.Params{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)

	_, err = svc.FilterProductsByPrice(ctx, 1, "maior", paging.Params{})
	assert.ErrorIs(t, err, ErrInvalidCriteria)
}

func TestProductsByCategory(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	cat, prod := seed(t, svc)

	page, err := svc.ProductsByCategory(ctx, cat.ID, paging.Params{PageNumber: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, prod.ID, page.Items[0].ID)

	_, err = svc.ProductsByCategory(ctx, 42, paging.Params{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateProduct_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.CreateProduct(ctx, Product{Name: "bad", Price: 0})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := map[string]bool{}
	for _, v := range verr.Violations {
		fields[v.Field] = true
	}
	for _, f := range []string{"name", "description", "imageUrl", "price", "categoryId"} {
		assert.True(t, fields[f], "expected a violation on %s", f)
	}

	_, err = svc.CreateProduct(ctx, Product{
		Name: "Pudim 100g", Description: "d", Price: 6.75, ImageURL: "p.png", Stock: 1, CategoryID: 7,
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "categoryId", verr.Violations[0].Field)
}

func TestPatchProduct(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	_, prod := seed(t, svc)

	_, err := svc.GetProduct(ctx, prod.ID)
	require.NoError(t, err)

	stock := 10.0
	tomorrow := now.Add(24 * time.Hour)
	got, err := svc.PatchProduct(ctx, prod.ID, ProductPatch{Stock: &stock, RegistrationDate: &tomorrow})
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Stock)

	cached, err := svc.GetProduct(ctx, prod.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, cached.Stock)

	zero := 0.0
	_, err = svc.PatchProduct(ctx, prod.ID, ProductPatch{Stock: &zero})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "stock", verr.Violations[0].Field)

	later := now.Add(time.Hour)
	_, err = svc.PatchProduct(ctx, prod.ID, ProductPatch{RegistrationDate: &later})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "registrationDate", verr.Violations[0].Field)

	_, err = svc.PatchProduct(ctx, 99, ProductPatch{Stock: &stock})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteProduct(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, prod := seed(t, svc)

	page, err := svc.PageProducts(ctx, paging.Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)

	require.NoError(t, svc.DeleteProduct(ctx, prod.ID))
	page, err = svc.PageProducts(ctx, paging.Params{})
	require.NoError(t, err)
	assert.Zero(t, page.TotalCount)
	assert.ErrorIs(t, svc.DeleteProduct(ctx, prod.ID), ErrNotFound)
}

func TestValidateCategory(t *testing.T) {
	assert.Empty(t, ValidateCategory(Category{Name: "Bebidas", ImageURL: "b.jpg"}))
	v := ValidateCategory(Category{Name: "bebidas", ImageURL: ""})
	require.Len(t, v, 2)
	assert.Equal(t, "name", v[0].Field)
	assert.Equal(t, "imageUrl", v[1].Field)
}
