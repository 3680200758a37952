package inventory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sixstreet/storefront/internal/redisx"
)

// RedisCache keeps found product metadata for redisx.TTLInventoryGroup.
// Misses are never cached so a restored product shows up again.
type RedisCache struct {
	RDB redis.Cmdable
	Log *zap.Logger
}

func (c RedisCache) Get(ctx context.Context, groupID string) (ProductMeta, bool) {
	s, err := c.RDB.Get(ctx, fmt.Sprintf(redisx.KeyInventoryGroup, groupID)).Result()
	if err != nil {
		return ProductMeta{}, false
	}
	var m ProductMeta
	if err := json.Unmarshal([]byte(s), &m); err != nil || !m.Found {
		return ProductMeta{}, false
	}
	return m, true
}

func (c RedisCache) Set(ctx context.Context, m ProductMeta) {
	if !m.Found {
		return
	}
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := c.RDB.Set(ctx, fmt.Sprintf(redisx.KeyInventoryGroup, m.GroupID), b, redisx.TTLInventoryGroup).Err(); err != nil && c.Log != nil {
		c.Log.Warn("inventory cache write failed", zap.String("group_id", m.GroupID), zap.Error(err))
	}
}
