package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sixstreet/storefront/internal/commerce"
	"github.com/sixstreet/storefront/internal/shipping"
)

type OrderSource interface {
	UserTransactions(ctx context.Context, userID string) ([]commerce.TransactionRow, error)
}

type ShippingOptions interface {
	Options(ctx context.Context, destination, courier string) ([]shipping.Option, error)
}

// OrdersHandler serves order history and standalone rate lookups.
type OrdersHandler struct {
	Orders   OrderSource
	Shipping ShippingOptions
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Get("/shipping/options", h.shippingOptions)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rows, err := h.Orders.UserTransactions(ctx, u.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commerce.GroupTransactions(rows))
}

func (h *OrdersHandler) shippingOptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	opts, err := h.Shipping.Options(ctx, q.Get("destination"), q.Get("courier"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}
