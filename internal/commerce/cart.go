package commerce

import (
	"context"
	"net/http"
	"net/url"
)

type CartRow struct {
	ID             ID     `json:"id"`
	ProductID      ID     `json:"product_id"`
	ProductGroupID ID     `json:"product_group_id"`
	Size           string `json:"size"`
	Quantity       int    `json:"quantity"`
	Price          int64  `json:"price"`
}

type CartAdd struct {
	ProductID      string `json:"product_id"`
	ProductGroupID string `json:"product_group_id"`
	Size           string `json:"size"`
	Quantity       int    `json:"quantity"`
	Price          int64  `json:"price"`
}

func (c *Client) Cart(ctx context.Context, userID string) ([]CartRow, error) {
	var rows []CartRow
	if err := c.do(ctx, http.MethodGet, "/cart/"+url.PathEscape(userID), nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// AddToCart posts a quantity delta; the backend merges by product and size.
func (c *Client) AddToCart(ctx context.Context, userID string, in CartAdd) error {
	return c.do(ctx, http.MethodPost, "/cart/"+url.PathEscape(userID), in, nil)
}

func (c *Client) UpdateCartItem(ctx context.Context, userID, itemID string, qty int) error {
	return c.do(ctx, http.MethodPut, "/cart/"+url.PathEscape(userID)+"/"+url.PathEscape(itemID),
		map[string]int{"quantity": qty}, nil)
}

func (c *Client) RemoveCartItem(ctx context.Context, userID, itemID string) error {
	return c.do(ctx, http.MethodDelete, "/cart/"+url.PathEscape(userID)+"/"+url.PathEscape(itemID), nil, nil)
}
