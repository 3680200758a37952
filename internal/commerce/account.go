package commerce

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

type Address struct {
	ID            ID     `json:"id"`
	Label         string `json:"label"`
	Recipient     string `json:"recipient"`
	Phone         string `json:"phone"`
	City          string `json:"city"`
	Subdistrict   string `json:"subdistrict"`
	SubdistrictID string `json:"subdistrict_id"`
	Detail        string `json:"detail"`
}

type Membership struct {
	AvailablePoints int   `json:"available_points"`
	PointsValueIDR  int64 `json:"points_value_idr"`
}

type Voucher struct {
	Code               string    `json:"code"`
	DiscountPercentage int       `json:"discount_percentage"`
	ApplicableProducts string    `json:"applicable_products"`
	ValidUntil         time.Time `json:"valid_until"`
	IsUsed             bool      `json:"is_used"`
}

type VoucherApply struct {
	Code            string `json:"code"`
	TransactionUUID string `json:"transaction_uuid"`
	OrderAmount     int64  `json:"order_amount"`
}

// VoucherResult carries the backend's discount when it computes one.
type VoucherResult struct {
	DiscountAmount *int64 `json:"discount_amount"`
	Message        string `json:"message"`
}

func (c *Client) Addresses(ctx context.Context, userID string) ([]Address, error) {
	var out []Address
	if err := c.do(ctx, http.MethodGet, "/address/"+url.PathEscape(userID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Membership(ctx context.Context, userID string) (Membership, error) {
	var m Membership
	err := c.do(ctx, http.MethodGet, "/membership/"+url.PathEscape(userID), nil, &m)
	return m, err
}

func (c *Client) Vouchers(ctx context.Context, userID string) ([]Voucher, error) {
	var out []Voucher
	if err := c.do(ctx, http.MethodGet, "/voucher/"+url.PathEscape(userID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyVoucher uses the brand-exclusive endpoint when sixstreet is set.
func (c *Client) ApplyVoucher(ctx context.Context, userID string, sixstreet bool, in VoucherApply) (VoucherResult, error) {
	path := "/voucher/"
	if sixstreet {
		path = "/voucher_sixstreet/"
	}
	var res VoucherResult
	err := c.do(ctx, http.MethodPost, path+url.PathEscape(userID), in, &res)
	return res, err
}

type PointsRedeem struct {
	UserID          string `json:"user_id"`
	TransactionUUID string `json:"transaction_uuid"`
	Points          int    `json:"points"`
}

func (c *Client) RedeemPoints(ctx context.Context, in PointsRedeem) error {
	return c.do(ctx, http.MethodPost, "/points/redeem", in, nil)
}

// ProcessPoints finalizes loyalty accrual after a successful payment.
func (c *Client) ProcessPoints(ctx context.Context, txUUID string) error {
	return c.do(ctx, http.MethodPost, "/points/process/"+url.PathEscape(txUUID), nil, nil)
}
