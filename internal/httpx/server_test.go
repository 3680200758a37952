package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sixstreet/storefront/internal/cart"
	"github.com/sixstreet/storefront/internal/catalog"
	"github.com/sixstreet/storefront/internal/checkout"
	"github.com/sixstreet/storefront/internal/commerce"
	"github.com/sixstreet/storefront/internal/discount"
	"github.com/sixstreet/storefront/internal/inventory"
	"github.com/sixstreet/storefront/internal/session"
	"github.com/sixstreet/storefront/internal/shipping"
)

const (
	userSID  = "sid-7"
	otherSID = "sid-8"
	txUUID   = "0b6c9a1e-2f4d-4e8a-9d1c-7a5b3e2f1c90"
)

// fakeCommerce stands in for the Commerce Backend across cart, orders and checkout.
type fakeCommerce struct {
	mu      sync.Mutex
	rows    []commerce.CartRow
	cartErr error
	tokens  []string
	calls   []string
}

func (f *fakeCommerce) Cart(context.Context, string) ([]commerce.CartRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cartErr != nil {
		return nil, f.cartErr
	}
	return append([]commerce.CartRow(nil), f.rows...), nil
}

func (f *fakeCommerce) AddToCart(ctx context.Context, _ string, in commerce.CartAdd) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, commerce.TokenFrom(ctx))
	for i, r := range f.rows {
		if r.ProductID.String() == in.ProductID && r.Size == in.Size {
			f.rows[i].Quantity += in.Quantity
			return nil
		}
	}
	f.rows = append(f.rows, commerce.CartRow{
		ID: commerce.ID(fmt.Sprint(100 + len(f.rows))), ProductID: commerce.ID(in.ProductID),
		ProductGroupID: commerce.ID(in.ProductGroupID), Size: in.Size, Quantity: in.Quantity, Price: in.Price,
	})
	return nil
}

func (f *fakeCommerce) RemoveCartItem(context.Context, string, string) error { return nil }

func (f *fakeCommerce) UserTransactions(_ context.Context, userID string) ([]commerce.TransactionRow, error) {
	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }
	return []commerce.TransactionRow{
		{TransactionUUID: "a", UserID: commerce.ID(userID), Quantity: 1, Price: 100_000, CreatedAt: day(1)},
		{TransactionUUID: "b", UserID: commerce.ID(userID), Quantity: 2, Price: 50_000, CreatedAt: day(3)},
		{TransactionUUID: "a", UserID: commerce.ID(userID), Quantity: 1, Price: 25_000, CreatedAt: day(1)},
	}, nil
}

func (f *fakeCommerce) record(c string) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeCommerce) Transaction(_ context.Context, id string) ([]commerce.TransactionRow, error) {
	if id != txUUID {
		return nil, &commerce.StatusError{Method: http.MethodGet, Path: "/transaction/" + id, Code: http.StatusNotFound}
	}
	return []commerce.TransactionRow{{
		TransactionUUID: txUUID, UserID: "7", ProductGroupID: "900", Category: "sneakers",
		Quantity: 1, Price: 1_000_000, Status: commerce.StatusPending,
	}}, nil
}

func (f *fakeCommerce) Addresses(context.Context, string) ([]commerce.Address, error) {
	return []commerce.Address{{ID: "1", City: "Jakarta Selatan", SubdistrictID: "5120"}}, nil
}

func (f *fakeCommerce) Membership(context.Context, string) (commerce.Membership, error) {
	return commerce.Membership{AvailablePoints: 50}, nil
}

func (f *fakeCommerce) Vouchers(context.Context, string) ([]commerce.Voucher, error) {
	return []commerce.Voucher{{Code: "SIX20", DiscountPercentage: 20, ApplicableProducts: "sixstreet"}}, nil
}

func (f *fakeCommerce) ApplyVoucher(context.Context, string, bool, commerce.VoucherApply) (commerce.VoucherResult, error) {
	f.record("voucher")
	return commerce.VoucherResult{}, nil
}

func (f *fakeCommerce) RedeemPoints(context.Context, commerce.PointsRedeem) error {
	f.record("redeem")
	return nil
}

func (f *fakeCommerce) UpdateTransaction(context.Context, string, commerce.TransactionUpdate) error {
	f.record("update")
	return nil
}

func (f *fakeCommerce) CreatePayment(context.Context, commerce.PaymentRequest) (commerce.PaymentToken, error) {
	f.record("payment")
	return commerce.PaymentToken{Token: "snap-1"}, nil
}

func (f *fakeCommerce) ProcessPoints(context.Context, string) error {
	f.record("process")
	return nil
}

type fakeShipping struct{}

func (fakeShipping) Options(_ context.Context, dest, courier string) ([]shipping.Option, error) {
	if dest == "" {
		return nil, shipping.ErrNoDestination
	}
	if courier != "jne" {
		return nil, shipping.ErrUnknownCourier
	}
	return []shipping.Option{{Courier: "jne", Service: "REG", Cost: 18000, ETD: "2-3"}}, nil
}

type fakeProducts struct{}

func (fakeProducts) ResolveProductGroup(_ context.Context, id string) inventory.ProductMeta {
	if id != "900" {
		return inventory.ProductMeta{GroupID: id, DisplayName: "Product " + id, Image: inventory.PlaceholderImage}
	}
	return inventory.ProductMeta{GroupID: id, DisplayName: "Runner 01", Category: "sneakers", Found: true}
}

func (fakeProducts) AvailableSKUs(context.Context, string) []inventory.SKU {
	n := 2
	return []inventory.SKU{{ItemID: "42", Size: "42", AvailableQty: &n}}
}

type fakeCatalog struct{}

func (fakeCatalog) List(_ context.Context, name string) ([]inventory.Item, error) {
	if name != "sneakers" {
		return nil, catalog.ErrUnknownListing
	}
	return []inventory.Item{{GroupID: "900", Name: "Runner 01"}}, nil
}

type testServer struct {
	router  http.Handler
	backend *fakeCommerce
	carts   *cart.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	codec, err := session.NewPasetoCodec("")
	require.NoError(t, err)
	resolver := session.NewResolver(session.NewMemoryStorage(), codec, nil)
	ctx := context.Background()
	require.NoError(t, resolver.Store(ctx, userSID, session.User{UserID: "7"}, time.Hour))
	require.NoError(t, resolver.Store(ctx, otherSID, session.User{UserID: "8"}, time.Hour))

	backend := &fakeCommerce{}
	carts := cart.NewRegistry(cart.Options{Backend: backend, Meta: fakeProducts{}, SyncDelay: time.Hour})
	t.Cleanup(carts.Close)
	svc := &checkout.Service{Backend: backend, Shipping: fakeShipping{}}

	router := NewRouter(&Auth{Sessions: resolver},
		[]Registrar{&ProductsHandler{Products: fakeProducts{}, Catalog: fakeCatalog{}}},
		&CartHandler{Carts: carts},
		&OrdersHandler{Orders: backend, Shipping: fakeShipping{}},
		&CheckoutHandler{Checkout: svc},
	)
	return &testServer{router: router, backend: backend, carts: carts}
}

func (s *testServer) do(t *testing.T, method, path, sid string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: CookieSession, Value: sid})
		req.AddCookie(&http.Cookie{Name: CookieToken, Value: "jwt-" + sid})
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestGuestsAreRejected(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/cart", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/orders", "unknown-sid", nil).Code)
	// katalog publik
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/catalog/sneakers", "", nil).Code)
}

func TestCartAddMergesAndForwardsToken(t *testing.T) {
	s := newTestServer(t)
	add := func(qty int) *httptest.ResponseRecorder {
		return s.do(t, http.MethodPost, "/cart/items", userSID, cart.Item{
			ProductID: "42", ProductGroupID: "900", Size: "M", Quantity: qty, Price: 150_000,
		})
	}
	require.Equal(t, http.StatusOK, add(1).Code)
	require.Equal(t, http.StatusOK, add(2).Code)

	items := s.carts.For("7").Snapshot()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, []string{"jwt-" + userSID, "jwt-" + userSID}, s.backend.tokens)

	rec := s.do(t, http.MethodGet, "/cart", userSID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got cartResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Runner 01", got.Items[0].DisplayName)
	assert.Equal(t, int64(450_000), got.Subtotal)
}

func TestCartReadFailureRendersEmptyState(t *testing.T) {
	s := newTestServer(t)
	s.backend.cartErr = errors.New("dial tcp: connection refused")

	rec := s.do(t, http.MethodGet, "/cart", userSID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got cartResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Empty(t, got.Items)
	assert.Equal(t, int64(0), got.Subtotal)
	assert.NotEmpty(t, got.Notice)
}

func TestCartAddInvalid(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/cart/items", userSID, cart.Item{ProductID: "42", Size: "M"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductsAndCatalog(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/products/900", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p productResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "Runner 01", p.DisplayName)
	assert.Len(t, p.SKUs, 1)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/products/1", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/catalog/furniture", "", nil).Code)
}

func TestOrdersAndShipping(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/orders", userSID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []commerce.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 2)
	assert.Equal(t, "b", orders[0].TransactionUUID)
	assert.Equal(t, int64(125_000), orders[1].Subtotal)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/shipping/options?destination=5120&courier=jne", userSID, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/shipping/options?courier=jne", userSID, nil).Code)
}

func TestCheckoutFlow(t *testing.T) {
	s := newTestServer(t)
	base := "/checkout/" + txUUID

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, base, userSID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/checkout/nope", userSID, nil).Code)

	rec := s.do(t, http.MethodPost, base, userSID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, base, otherSID, nil).Code)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, base+"/submit", userSID, nil).Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, base+"/address", userSID, addressReq{AddressID: "1"}).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, base+"/courier", userSID, courierReq{Courier: "jne"}).Code)

	// voucher label sendiri tidak berlaku untuk sneakers
	assert.Equal(t, http.StatusUnprocessableEntity, s.do(t, http.MethodPost, base+"/voucher", userSID, voucherReq{Code: "SIX20"}).Code)

	rec = s.do(t, http.MethodPut, base+"/points", userSID, pointsReq{Points: 80})
	require.Equal(t, http.StatusOK, rec.Code)
	var sum checkout.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 50, sum.PointsUsed)
	assert.Equal(t, int64(1_000_000+18_000-50_000), sum.FinalTotal)
	assert.True(t, sum.CanSubmit)

	rec = s.do(t, http.MethodPost, base+"/submit", userSID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tok submitResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	assert.Equal(t, "snap-1", tok.Token)

	rec = s.do(t, http.MethodPost, base+"/outcome", userSID, outcomeReq{Outcome: "close"})
	require.Equal(t, http.StatusOK, rec.Code)
	var res checkout.OutcomeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, checkout.StateReadyToPay, res.State)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, base+"/outcome", userSID, outcomeReq{Outcome: "maybe"}).Code)
	assert.Equal(t, []string{"redeem", "update", "payment"}, s.backend.calls)
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{cart.ErrInvalidItem, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", checkout.ErrForbidden), http.StatusForbidden},
		{cart.ErrNotFound, http.StatusNotFound},
		{checkout.ErrInFlight, http.StatusConflict},
		{&discount.EligibilityError{Code: "SIX20", Required: "sixstreet"}, http.StatusUnprocessableEntity},
		{discount.ErrVoucherExpired, http.StatusUnprocessableEntity},
		{shipping.ErrUnavailable, http.StatusServiceUnavailable},
		{&commerce.StatusError{Code: http.StatusInternalServerError}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, statusOf(c.err), c.err.Error())
	}
}
