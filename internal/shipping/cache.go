package shipping

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sixstreet/storefront/internal/commerce"
	"github.com/sixstreet/storefront/internal/redisx"
)

type RedisCache struct {
	RDB redis.Cmdable
}

func quoteKey(q commerce.ShippingCostRequest) string {
	return fmt.Sprintf(redisx.KeyShippingQuote, q.Origin, q.Destination, q.Weight, q.Courier)
}

func (c RedisCache) Get(ctx context.Context, q commerce.ShippingCostRequest) ([]Option, bool) {
	s, err := c.RDB.Get(ctx, quoteKey(q)).Result()
	if err != nil {
		return nil, false
	}
	var opts []Option
	if err := json.Unmarshal([]byte(s), &opts); err != nil || len(opts) == 0 {
		return nil, false
	}
	return opts, true
}

func (c RedisCache) Set(ctx context.Context, q commerce.ShippingCostRequest, opts []Option) {
	b, err := json.Marshal(opts)
	if err != nil {
		return
	}
	_ = c.RDB.Set(ctx, quoteKey(q), b, redisx.TTLShippingQuote).Err()
}
