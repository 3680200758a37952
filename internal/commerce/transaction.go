package commerce

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"time"
)

const (
	StatusPending   = "PENDING"
	StatusPaid      = "PAID"
	StatusShipped   = "SHIPPED"
	StatusDelivered = "DELIVERED"
	StatusCancelled = "CANCELLED"
)

// TransactionRow is one product line of a transaction; rows sharing
// TransactionUUID form one order.
type TransactionRow struct {
	ID              ID        `json:"id"`
	TransactionUUID string    `json:"transaction_uuid"`
	UserID          ID        `json:"user_id"`
	ProductID       ID        `json:"product_id"`
	ProductGroupID  ID        `json:"product_group_id"`
	ProductName     string    `json:"product_name"`
	Category        string    `json:"category"`
	Brand           string    `json:"brand"`
	Size            string    `json:"size"`
	Quantity        int       `json:"quantity"`
	Price           int64     `json:"price"`
	City            string    `json:"city"`
	Subdistrict     string    `json:"subdistrict"`
	SubdistrictID   string    `json:"subdistrict_id"`
	AddressDetail   string    `json:"address_detail"`
	Courier         string    `json:"courier"`
	Service         string    `json:"service"`
	ETD             string    `json:"etd"`
	ShippingCost    int64     `json:"shipping_cost"`
	VoucherApplied  bool      `json:"voucher_applied"`
	VoucherCode     string    `json:"voucher_code"`
	VoucherDiscount int64     `json:"voucher_discount"`
	PointsUsed      int       `json:"points_used"`
	PointsValue     int64     `json:"points_value"`
	Total           int64     `json:"total"`
	FinalTotal      int64     `json:"final_total"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func (r TransactionRow) LineTotal() int64 { return r.Price * int64(r.Quantity) }

// TransactionUpdate is written to every row of the transaction before payment.
type TransactionUpdate struct {
	City            string `json:"city"`
	Subdistrict     string `json:"subdistrict"`
	SubdistrictID   string `json:"subdistrict_id"`
	AddressDetail   string `json:"address_detail"`
	Courier         string `json:"courier"`
	Service         string `json:"service"`
	ETD             string `json:"etd"`
	ShippingCost    int64  `json:"shipping_cost"`
	VoucherApplied  bool   `json:"voucher_applied"`
	VoucherCode     string `json:"voucher_code,omitempty"`
	VoucherDiscount int64  `json:"voucher_discount"`
	PointsUsed      int    `json:"points_used"`
	PointsValue     int64  `json:"points_value"`
	Total           int64  `json:"total"`
	FinalTotal      int64  `json:"final_total"`
	Status          string `json:"status"`
}

func (c *Client) Transaction(ctx context.Context, txUUID string) ([]TransactionRow, error) {
	var rows []TransactionRow
	if err := c.do(ctx, http.MethodGet, "/transaction/"+url.PathEscape(txUUID), nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) UserTransactions(ctx context.Context, userID string) ([]TransactionRow, error) {
	var rows []TransactionRow
	if err := c.do(ctx, http.MethodGet, "/transaction/user/"+url.PathEscape(userID), nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) UpdateTransaction(ctx context.Context, txUUID string, upd TransactionUpdate) error {
	return c.do(ctx, http.MethodPut, "/transaction/"+url.PathEscape(txUUID), upd, nil)
}

// Order is a transaction group as shown in order history.
type Order struct {
	TransactionUUID string           `json:"transaction_uuid"`
	Status          string           `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	Courier         string           `json:"courier,omitempty"`
	Service         string           `json:"service,omitempty"`
	Items           []TransactionRow `json:"items"`
	Subtotal        int64            `json:"subtotal"`
	ShippingCost    int64            `json:"shipping_cost"`
	VoucherDiscount int64            `json:"voucher_discount"`
	PointsValue     int64            `json:"points_value"`
	FinalTotal      int64            `json:"final_total"`
}

// GroupTransactions folds rows into orders, newest first. Order-level fields are
// repeated on every row, so they are taken from the first row of each group.
func GroupTransactions(rows []TransactionRow) []Order {
	idx := map[string]int{}
	var out []Order
	for _, r := range rows {
		i, ok := idx[r.TransactionUUID]
		if !ok {
			idx[r.TransactionUUID] = len(out)
			out = append(out, Order{
				TransactionUUID: r.TransactionUUID,
				Status:          r.Status,
				CreatedAt:       r.CreatedAt,
				Courier:         r.Courier,
				Service:         r.Service,
				ShippingCost:    r.ShippingCost,
				VoucherDiscount: r.VoucherDiscount,
				PointsValue:     r.PointsValue,
				FinalTotal:      r.FinalTotal,
			})
			i = len(out) - 1
		}
		out[i].Items = append(out[i].Items, r)
		out[i].Subtotal += r.LineTotal()
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out
}
