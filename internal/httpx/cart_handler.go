package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sixstreet/storefront/internal/cart"
)

type CartProvider interface {
	For(userID string) *cart.Store
}

type CartHandler struct {
	Carts CartProvider
}

type cartResp struct {
	Items    []cart.LineItem `json:"items"`
	Subtotal int64           `json:"subtotal"`
	Notice   string          `json:"notice,omitempty"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.getCart)
	r.Post("/cart/items", h.addItem)
	r.Delete("/cart/items/{id}", h.removeItem)
	r.Post("/cart/sync", h.sync)
}

func (h *CartHandler) store(r *http.Request) *cart.Store {
	u, _ := UserFrom(r.Context())
	return h.Carts.For(u.UserID)
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// gagal baca tetap render keranjang terakhir; Fetch sudah kirim CartFetchFailed
	items, err := h.store(r).Fetch(ctx)
	resp := cartResp{Items: items, Subtotal: cart.Subtotal(items)}
	if resp.Items == nil {
		resp.Items = []cart.LineItem{}
	}
	if err != nil {
		resp.Notice = "Gagal memuat keranjang"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req cart.Item
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	st := h.store(r)
	line, err := st.Add(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	items := st.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"item": line, "items": items, "subtotal": cart.Subtotal(items)})
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	st := h.store(r)
	if err := st.Remove(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	items := st.Snapshot()
	writeJSON(w, http.StatusOK, cartResp{Items: items, Subtotal: cart.Subtotal(items)})
}

func (h *CartHandler) sync(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	st := h.store(r)
	if err := st.Sync(ctx); err != nil {
		writeError(w, err)
		return
	}
	items := st.Snapshot()
	writeJSON(w, http.StatusOK, cartResp{Items: items, Subtotal: cart.Subtotal(items)})
}
