package commerce

import (
	"context"
	"net/http"
)

type PaymentItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type PaymentRequest struct {
	TransactionUUID string        `json:"transaction_uuid"`
	Items           []PaymentItem `json:"items"`
	ShippingCost    int64         `json:"shipping_cost"`
	VoucherDiscount int64         `json:"voucher_discount"`
	PointsDiscount  int64         `json:"points_discount"`
	GrossAmount     int64         `json:"gross_amount"`
}

type PaymentToken struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

func (c *Client) CreatePayment(ctx context.Context, in PaymentRequest) (PaymentToken, error) {
	var out PaymentToken
	err := c.do(ctx, http.MethodPost, "/payment", in, &out)
	return out, err
}

type ShippingCostRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Weight      int    `json:"weight"`
	Courier     string `json:"courier"`
}

type ShippingService struct {
	Service     string `json:"service"`
	Description string `json:"description"`
	Cost        int64  `json:"cost"`
	ETD         string `json:"etd"`
}

// ShippingCost proxies the third-party rate API through the backend.
func (c *Client) ShippingCost(ctx context.Context, in ShippingCostRequest) ([]ShippingService, error) {
	var out []ShippingService
	if err := c.do(ctx, http.MethodPost, "/shipping/cost", in, &out); err != nil {
		return nil, err
	}
	return out, nil
}
