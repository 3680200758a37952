package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFake(t *testing.T, register func(r chi.Router)) *Client {
	t.Helper()
	r := chi.NewRouter()
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 2*time.Second, nil)
}

func TestCartForwardsBearerAndDecodesMixedIDs(t *testing.T) {
	var auth string
	c := newFake(t, func(r chi.Router) {
		r.Get("/cart/{userID}", func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			assert.Equal(t, "7", chi.URLParam(r, "userID"))
			_, _ = w.Write([]byte(`[{"id":11,"product_id":"42","product_group_id":900,"size":"M","quantity":2,"price":150000}]`))
		})
	})

	rows, err := c.Cart(WithToken(context.Background(), "tok-1"), "7")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", auth)
	require.Len(t, rows, 1)
	assert.Equal(t, ID("11"), rows[0].ID)
	assert.Equal(t, ID("42"), rows[0].ProductID)
	assert.Equal(t, ID("900"), rows[0].ProductGroupID)
}

func TestStatusError(t *testing.T) {
	c := newFake(t, func(r chi.Router) {
		r.Delete("/cart/{userID}/{itemID}", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		})
	})

	err := c.RemoveCartItem(context.Background(), "7", "11")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadGateway))
	assert.Contains(t, err.Error(), "DELETE /cart/7/11")
}

func TestApplyVoucherPicksEndpoint(t *testing.T) {
	var hits []string
	c := newFake(t, func(r chi.Router) {
		r.Post("/voucher/{userID}", func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, "voucher")
			_, _ = w.Write([]byte(`{"discount_amount":100000}`))
		})
		r.Post("/voucher_sixstreet/{userID}", func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, "voucher_sixstreet")
			_, _ = w.Write([]byte(`{}`))
		})
	})
	ctx := context.Background()

	res, err := c.ApplyVoucher(ctx, "7", false, VoucherApply{Code: "SNK10"})
	require.NoError(t, err)
	require.NotNil(t, res.DiscountAmount)
	assert.EqualValues(t, 100000, *res.DiscountAmount)

	res, err = c.ApplyVoucher(ctx, "7", true, VoucherApply{Code: "SIX"})
	require.NoError(t, err)
	assert.Nil(t, res.DiscountAmount)
	assert.Equal(t, []string{"voucher", "voucher_sixstreet"}, hits)
}

func TestUpdateTransactionSendsBody(t *testing.T) {
	var got TransactionUpdate
	c := newFake(t, func(r chi.Router) {
		r.Put("/transaction/{uuid}", func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusNoContent)
		})
	})

	err := c.UpdateTransaction(context.Background(), "trx-1", TransactionUpdate{Courier: "jne", FinalTotal: 10, Status: StatusPending})
	require.NoError(t, err)
	assert.Equal(t, "jne", got.Courier)
	assert.Equal(t, StatusPending, got.Status)
}

func TestGroupTransactions(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	rows := []TransactionRow{
		{TransactionUUID: "a", Price: 100, Quantity: 2, Status: StatusPaid, CreatedAt: t1, FinalTotal: 250},
		{TransactionUUID: "b", Price: 50, Quantity: 1, Status: StatusPending, CreatedAt: t2},
		{TransactionUUID: "a", Price: 30, Quantity: 1, Status: StatusPaid, CreatedAt: t1, FinalTotal: 250},
	}

	orders := GroupTransactions(rows)

	require.Len(t, orders, 2)
	assert.Equal(t, "b", orders[0].TransactionUUID)
	assert.Equal(t, "a", orders[1].TransactionUUID)
	assert.Len(t, orders[1].Items, 2)
	assert.EqualValues(t, 230, orders[1].Subtotal)
	assert.EqualValues(t, 250, orders[1].FinalTotal)
}
