package redisx

import "time"

const (
	// Session entry per browser session: session:{sid}:{name} -> token
	KeySession = "session:%s:%s"

	// Metadata product group dari Inventory Service: inventory:group:{group_id} -> json ProductMeta
	KeyInventoryGroup = "inventory:group:%s"

	// Quote ongkir: shipping:quote:{origin}:{destination}:{weight}:{courier} -> json []Option
	KeyShippingQuote = "shipping:quote:%s:%s:%d:%s"

	// Dedup event processing: dedup:{service}:{id} (id = event_id)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLSession        = 24 * time.Hour
	TTLInventoryGroup = 10 * time.Minute
	TTLShippingQuote  = 10 * time.Minute
	TTLDedup          = 48 * time.Hour
)
