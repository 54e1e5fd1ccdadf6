package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/example/apicatalog/internal/catalog"
	"github.com/example/apicatalog/internal/paging"
)

// writePage publishes the paging metadata in X-Pagination and the items as
// the body.
func writePage[T any](w http.ResponseWriter, p paging.Page[T]) {
	meta, _ := json.Marshal(p.Metadata())
	w.Header().Set("X-Pagination", string(meta))
	writeJSON(w, http.StatusOK, p.Items)
}

// pathID parses {id}; ok is false after a 400 has been written.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid id")
		return 0, false
	}
	return id, true
}

// Categories

func (a *App) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	all, err := a.Catalog.ListCategories(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (a *App) HandlePageCategories(w http.ResponseWriter, r *http.Request) {
	page, err := a.Catalog.PageCategories(r.Context(), paging.ParseParams(r.URL.Query()))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writePage(w, page)
}

func (a *App) HandleFilterCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := a.Catalog.FilterCategoriesByName(r.Context(), q.Get("name"), paging.ParseParams(q))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writePage(w, page)
}

func (a *App) HandleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := a.Catalog.GetCategory(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *App) HandleCategoryProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	page, err := a.Catalog.ProductsByCategory(r.Context(), id, paging.ParseParams(r.URL.Query()))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writePage(w, page)
}

func (a *App) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in catalog.Category
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Category cannot be null")
		return
	}
	c, err := a.Catalog.CreateCategory(r.Context(), in)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/categories/"+strconv.FormatInt(c.ID, 10))
	writeJSON(w, http.StatusCreated, c)
}

func (a *App) HandleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in catalog.Category
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if in.ID != 0 && in.ID != id {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Category ID mismatch")
		return
	}
	in.ID = id
	c, err := a.Catalog.UpdateCategory(r.Context(), in)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *App) HandleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.Catalog.DeleteCategory(r.Context(), id); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Category deleted successfully"})
}

// Products

func (a *App) HandlePageProducts(w http.ResponseWriter, r *http.Request) {
	page, err := a.Catalog.PageProducts(r.Context(), paging.ParseParams(r.URL.Query()))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writePage(w, page)
}

func (a *App) HandleFilterProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var price float64
	if raw := q.Get("price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "price must be a number")
			return
		}
		price = v
	}
	criteria := catalog.PriceCriteria(q.Get("criteria"))
	if q.Get("price") == "" {
		criteria = ""
	}
	page, err := a.Catalog.FilterProductsByPrice(r.Context(), price, criteria, paging.ParseParams(q))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writePage(w, page)
}

func (a *App) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := a.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *App) HandleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.Product
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Product cannot be null")
		return
	}
	p, err := a.Catalog.CreateProduct(r.Context(), in)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/products/"+strconv.FormatInt(p.ID, 10))
	writeJSON(w, http.StatusCreated, p)
}

func (a *App) HandleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in catalog.Product
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if in.ID != 0 && in.ID != id {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Product ID mismatch")
		return
	}
	in.ID = id
	p, err := a.Catalog.UpdateProduct(r.Context(), in)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *App) HandlePatchProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in catalog.ProductPatch
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Product cannot be null")
		return
	}
	p, err := a.Catalog.PatchProduct(r.Context(), id, in)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"productId":        p.ID,
		"stock":            p.Stock,
		"registrationDate": p.RegistrationDate,
	})
}

func (a *App) HandleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.Catalog.DeleteProduct(r.Context(), id); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}
