package catalog

import (
	"strings"

	"github.com/sixstreet/storefront/internal/inventory"
)

func Builtins() []Listing {
	return []Listing{
		{Name: "sneakers", Match: category("sneakers", "sneaker", "shoes"), Less: Newest},
		{Name: "apparel", Match: category("apparel", "shirt", "t-shirt", "hoodie", "jacket", "pants"), Less: Newest},
		{Name: "eyewear", Match: category("eyewear", "sunglasses"), Less: Newest},
		{Name: "shirt", Match: category("shirt", "t-shirt"), Less: Newest},
		{Name: "accessories", Match: category("accessories", "accessory", "bag", "cap", "socks"), Less: Newest},
		{Name: "sixstreet", Match: sixstreet, Less: Newest},
	}
}

func category(names ...string) func(inventory.Item) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(it inventory.Item) bool { return set[it.Category] }
}

// produk label sendiri, ditandai lewat brand atau kategori
func sixstreet(it inventory.Item) bool {
	return it.Brand == "sixstreet" || it.Category == "sixstreet" ||
		strings.HasPrefix(strings.ToLower(it.Name), "sixstreet")
}

// Newest orders by creation time, then name.
func Newest(a, b inventory.Item) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.Name < b.Name
}

func CheapestFirst(a, b inventory.Item) bool {
	if a.MinPrice() != b.MinPrice() {
		return a.MinPrice() < b.MinPrice()
	}
	return a.Name < b.Name
}
