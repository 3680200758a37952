package cart

import (
	"fmt"
	"strings"
	"time"
)

const tempPrefix = "temp_"

// LineItem is one cart row. ID is either backend-assigned or a temporary
// token awaiting reconciliation.
type LineItem struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	ProductGroupID string `json:"product_group_id"`
	Size           string `json:"size"`
	Quantity       int    `json:"quantity"`
	Price          int64  `json:"price"`
	DisplayName    string `json:"display_name"`
	DisplayImage   string `json:"display_image"`
	ProductFound   bool   `json:"product_found"`
	Category       string `json:"category,omitempty"`
	Brand          string `json:"brand,omitempty"`
}

func (l LineItem) Temporary() bool { return IsTemporaryID(l.ID) }

func (l LineItem) Total() int64 { return l.Price * int64(l.Quantity) }

func (l LineItem) key() lineKey { return lineKey{l.ProductID, l.Size} }

// Item is an add-to-cart request.
type Item struct {
	ProductID      string `json:"product_id"`
	ProductGroupID string `json:"product_group_id"`
	Size           string `json:"size"`
	Quantity       int    `json:"quantity"`
	Price          int64  `json:"price"`
	DisplayName    string `json:"display_name,omitempty"`
	DisplayImage   string `json:"display_image,omitempty"`
}

func (it Item) validate() error {
	switch {
	case strings.TrimSpace(it.ProductID) == "":
		return fmt.Errorf("%w: product_id required", ErrInvalidItem)
	case strings.TrimSpace(it.ProductGroupID) == "":
		return fmt.Errorf("%w: product_group_id required", ErrInvalidItem)
	case strings.TrimSpace(it.Size) == "":
		return fmt.Errorf("%w: size required", ErrInvalidItem)
	case it.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidItem)
	case it.Price <= 0:
		return fmt.Errorf("%w: price must be positive", ErrInvalidItem)
	}
	return nil
}

type lineKey struct {
	productID string
	size      string
}

func IsTemporaryID(id string) bool { return strings.HasPrefix(id, tempPrefix) }

func tempID(t time.Time) string { return fmt.Sprintf("%s%d", tempPrefix, t.UnixMilli()) }

func Subtotal(items []LineItem) int64 {
	var sum int64
	for _, l := range items {
		sum += l.Total()
	}
	return sum
}
