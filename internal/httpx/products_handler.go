package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sixstreet/storefront/internal/inventory"
)

type ProductSource interface {
	ResolveProductGroup(ctx context.Context, groupID string) inventory.ProductMeta
	AvailableSKUs(ctx context.Context, groupID string) []inventory.SKU
}

type CatalogLister interface {
	List(ctx context.Context, name string) ([]inventory.Item, error)
}

// ProductsHandler serves catalog reads; they need no login.
type ProductsHandler struct {
	Products ProductSource
	Catalog  CatalogLister
}

type productResp struct {
	inventory.ProductMeta
	SKUs []inventory.SKU `json:"skus"`
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products/{groupID}", h.getProduct)
	r.Get("/catalog/{category}", h.listCatalog)
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	meta := h.Products.ResolveProductGroup(ctx, groupID)
	if !meta.Found {
		writeJSON(w, http.StatusNotFound, meta)
		return
	}
	writeJSON(w, http.StatusOK, productResp{ProductMeta: meta, SKUs: h.Products.AvailableSKUs(ctx, groupID)})
}

func (h *ProductsHandler) listCatalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	items, err := h.Catalog.List(ctx, chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
