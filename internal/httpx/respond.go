package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sixstreet/storefront/internal/cart"
	"github.com/sixstreet/storefront/internal/catalog"
	"github.com/sixstreet/storefront/internal/checkout"
	"github.com/sixstreet/storefront/internal/commerce"
	"github.com/sixstreet/storefront/internal/discount"
	"github.com/sixstreet/storefront/internal/shipping"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func statusOf(err error) int {
	var elig *discount.EligibilityError
	var se *commerce.StatusError
	switch {
	case errors.Is(err, cart.ErrInvalidItem),
		errors.Is(err, shipping.ErrUnknownCourier),
		errors.Is(err, shipping.ErrNoDestination),
		errors.Is(err, checkout.ErrUnknownOutcome):
		return http.StatusBadRequest
	case errors.Is(err, checkout.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, cart.ErrNotFound),
		errors.Is(err, catalog.ErrUnknownListing),
		errors.Is(err, checkout.ErrTransactionNotFound),
		errors.Is(err, checkout.ErrSessionNotFound),
		errors.Is(err, checkout.ErrAddressNotFound),
		errors.Is(err, checkout.ErrServiceNotFound),
		errors.Is(err, checkout.ErrVoucherNotFound):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrPendingReconciliation),
		errors.Is(err, checkout.ErrNotPending),
		errors.Is(err, checkout.ErrNotReady),
		errors.Is(err, checkout.ErrInFlight),
		errors.Is(err, checkout.ErrLocked),
		errors.Is(err, checkout.ErrNoCourier),
		errors.Is(err, checkout.ErrPointsLocked),
		errors.Is(err, checkout.ErrInvalidOutcome):
		return http.StatusConflict
	case errors.As(err, &elig),
		errors.Is(err, discount.ErrVoucherUsed),
		errors.Is(err, discount.ErrVoucherExpired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shipping.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &se), errors.Is(err, checkout.ErrRedeemFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), map[string]string{"error": err.Error()})
}
