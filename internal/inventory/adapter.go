package inventory

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const PlaceholderImage = "/images/placeholder-product.png"

// ProductMeta is the display identity shared by all SKUs of a product group.
type ProductMeta struct {
	GroupID     string   `json:"group_id"`
	DisplayName string   `json:"display_name"`
	Image       string   `json:"image"`
	Images      []string `json:"images,omitempty"`
	Category    string   `json:"category,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	Found       bool     `json:"found"`
}

// SKU is one purchasable variant. Price and AvailableQty are nil when the
// service did not report them.
type SKU struct {
	ItemID       string `json:"item_id"`
	Code         string `json:"code"`
	Size         string `json:"size"`
	Price        *int64 `json:"price"`
	AvailableQty *int   `json:"available_qty"`
}

// Cache stores resolved product metadata.
type Cache interface {
	Get(ctx context.Context, groupID string) (ProductMeta, bool)
	Set(ctx context.Context, meta ProductMeta)
}

type Adapter struct {
	Client    *Client
	Cache     Cache
	Threshold Threshold
	Log       *zap.Logger
}

func NewAdapter(c *Client, cache Cache, threshold int, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{Client: c, Cache: cache, Threshold: Threshold(threshold), Log: log}
}

// wire shapes of the inventory service
type groupResp struct {
	ItemGroupID   any         `json:"item_group_id"`
	ItemGroupName string      `json:"item_group_name"`
	CategoryName  string      `json:"item_category_name"`
	BrandName     string      `json:"brand_name"`
	Images        []imageResp `json:"images"`
	ProductSKUs   []skuResp   `json:"product_skus"`
}

type imageResp struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
}

type skuResp struct {
	ItemID          any          `json:"item_id"`
	ItemCode        string       `json:"item_code"`
	SellPrice       *float64     `json:"sell_price"`
	AvailableQty    *float64     `json:"available_qty"`
	VariationValues []labelValue `json:"variation_values"`
}

type labelValue struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

func (a *Adapter) fetchGroup(ctx context.Context, groupID string) (*groupResp, error) {
	var g groupResp
	if err := a.Client.get(ctx, "/inventory/items/group/"+url.PathEscape(groupID), &g); err != nil {
		return nil, err
	}
	if g.ItemGroupName == "" && len(g.ProductSKUs) == 0 && len(g.Images) == 0 {
		return nil, nil
	}
	return &g, nil
}

func notFound(groupID string) ProductMeta {
	return ProductMeta{
		GroupID:     groupID,
		DisplayName: "Product " + groupID,
		Image:       PlaceholderImage,
		Found:       false,
	}
}

// ResolveProductGroup never fails: transport errors and empty payloads
// yield Found=false with placeholder metadata.
func (a *Adapter) ResolveProductGroup(ctx context.Context, groupID string) ProductMeta {
	if groupID == "" {
		return notFound(groupID)
	}
	if a.Cache != nil {
		if m, ok := a.Cache.Get(ctx, groupID); ok {
			return m
		}
	}
	g, err := a.fetchGroup(ctx, groupID)
	if err != nil {
		a.Log.Debug("product group lookup failed", zap.String("group_id", groupID), zap.Error(err))
		return notFound(groupID)
	}
	if g == nil {
		return notFound(groupID)
	}

	m := ProductMeta{
		GroupID:     groupID,
		DisplayName: g.ItemGroupName,
		Image:       PlaceholderImage,
		Category:    strings.ToLower(strings.TrimSpace(g.CategoryName)),
		Brand:       strings.ToLower(strings.TrimSpace(g.BrandName)),
		Found:       true,
	}
	if m.DisplayName == "" {
		m.DisplayName = "Product " + groupID
	}
	for _, img := range g.Images {
		if img.URL != "" {
			m.Images = append(m.Images, img.URL)
		}
	}
	if len(m.Images) > 0 {
		m.Image = m.Images[0]
	}
	if a.Cache != nil {
		a.Cache.Set(ctx, m)
	}
	return m
}

// ResolveSKUs returns an empty slice on any failure.
func (a *Adapter) ResolveSKUs(ctx context.Context, groupID string) []SKU {
	g, err := a.fetchGroup(ctx, groupID)
	if err != nil || g == nil {
		if err != nil {
			a.Log.Debug("sku lookup failed", zap.String("group_id", groupID), zap.Error(err))
		}
		return []SKU{}
	}
	return toSKUs(g.ProductSKUs)
}

func (a *Adapter) AvailableSKUs(ctx context.Context, groupID string) []SKU {
	return a.Threshold.Filter(a.ResolveSKUs(ctx, groupID))
}

func toSKUs(in []skuResp) []SKU {
	out := make([]SKU, 0, len(in))
	for _, s := range in {
		sku := SKU{
			ItemID: idString(s.ItemID),
			Code:   s.ItemCode,
			Size:   sizeOf(s.VariationValues, s.ItemCode),
		}
		if s.SellPrice != nil {
			p := int64(*s.SellPrice)
			sku.Price = &p
		}
		if s.AvailableQty != nil {
			q := int(*s.AvailableQty)
			sku.AvailableQty = &q
		}
		out = append(out, sku)
	}
	return out
}

// sizeOf takes the Size/Ukuran variation, else the last segment of the item code.
func sizeOf(vals []labelValue, code string) string {
	for _, v := range vals {
		switch strings.ToLower(strings.TrimSpace(v.Label)) {
		case "size", "ukuran":
			return strings.TrimSpace(v.Value)
		}
	}
	if i := strings.LastIndexAny(code, "-_"); i >= 0 && i < len(code)-1 {
		return code[i+1:]
	}
	return ""
}

func idString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return fmt.Sprintf("%.0f", x)
	default:
		return fmt.Sprint(x)
	}
}
