package inventory

// DefaultThreshold is the minimum quantity for a SKU to count as in stock.
const DefaultThreshold = 1

// Threshold is the stock cutoff applied to every "available" decision.
type Threshold int

// Available reports whether the SKU can be sold: priced (non-nil, non-zero)
// and at least t units on hand. A non-positive t means DefaultThreshold.
func (t Threshold) Available(s SKU) bool {
	need := int(t)
	if need < 1 {
		need = DefaultThreshold
	}
	if s.Price == nil || *s.Price == 0 {
		return false
	}
	return s.AvailableQty != nil && *s.AvailableQty >= need
}

func (t Threshold) Filter(skus []SKU) []SKU {
	out := make([]SKU, 0, len(skus))
	for _, s := range skus {
		if t.Available(s) {
			out = append(out, s)
		}
	}
	return out
}

// Available applies DefaultThreshold.
func Available(s SKU) bool { return Threshold(DefaultThreshold).Available(s) }
