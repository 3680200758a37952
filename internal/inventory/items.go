package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Item is a listing entry: one product group with its variants.
type Item struct {
	GroupID   string    `json:"group_id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Brand     string    `json:"brand"`
	Thumbnail string    `json:"thumbnail"`
	CreatedAt time.Time `json:"created_at"`
	SKUs      []SKU     `json:"skus"`
}

// MinPrice is the lowest known SKU price, or 0.
func (it Item) MinPrice() int64 {
	var lowest int64
	for _, s := range it.SKUs {
		if s.Price == nil || *s.Price == 0 {
			continue
		}
		if lowest == 0 || *s.Price < lowest {
			lowest = *s.Price
		}
	}
	return lowest
}

type listResp struct {
	Data []struct {
		ItemGroupID  any       `json:"item_group_id"`
		ItemName     string    `json:"item_name"`
		CategoryName string    `json:"item_category_name"`
		BrandName    string    `json:"brand_name"`
		Thumbnail    string    `json:"thumbnail"`
		CreatedDate  string    `json:"created_date"`
		Variants     []skuResp `json:"variants"`
	} `json:"data"`
	TotalCount int `json:"totalCount"`
}

// ListItems returns one page of the catalog and the total item count.
func (a *Adapter) ListItems(ctx context.Context, page, pageSize int) ([]Item, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 200
	}
	var lr listResp
	path := fmt.Sprintf("/inventory/items/?page=%d&pageSize=%d", page, pageSize)
	if err := a.Client.get(ctx, path, &lr); err != nil {
		return nil, 0, err
	}
	out := make([]Item, 0, len(lr.Data))
	for _, d := range lr.Data {
		thumb := d.Thumbnail
		if thumb == "" {
			thumb = PlaceholderImage
		}
		created, _ := time.Parse(time.RFC3339, d.CreatedDate)
		out = append(out, Item{
			GroupID:   idString(d.ItemGroupID),
			Name:      d.ItemName,
			Category:  strings.ToLower(strings.TrimSpace(d.CategoryName)),
			Brand:     strings.ToLower(strings.TrimSpace(d.BrandName)),
			Thumbnail: thumb,
			CreatedAt: created,
			SKUs:      toSKUs(d.Variants),
		})
	}
	return out, lr.TotalCount, nil
}

// InStock reports whether any SKU passes the adapter's threshold.
func (a *Adapter) InStock(it Item) bool {
	for _, s := range it.SKUs {
		if a.Threshold.Available(s) {
			return true
		}
	}
	return false
}
