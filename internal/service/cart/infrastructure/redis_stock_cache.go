// internal/service/cart/infrastructure/redis_stock_cache.go
package infrastructure

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"bazaar/internal/pkg/redis"
)

const refreshAvailScriptName = "refresh_avail"

// RedisAvailabilityCache 是 port.AvailabilityCache 的 Redis 实现。
// 写穿透：库存账本每次变动后由应用层刷新；带 TTL 兜底，
// 即使漏刷新，陈旧值最多存活一个 TTL 周期后回源。
type RedisAvailabilityCache struct {
	client *redis.Client
}

// NewRedisAvailabilityCache 创建缓存适配器，在创建时加载 Lua 脚本。
func NewRedisAvailabilityCache(client *redis.Client) (*RedisAvailabilityCache, error) {
	if err := client.LoadScriptFromContent(refreshAvailScriptName, refreshAvailScript); err != nil {
		return nil, fmt.Errorf("failed to load availability refresh script: %w", err)
	}
	return &RedisAvailabilityCache{client: client}, nil
}

func availKey(productID string) string {
	return fmt.Sprintf("stock:avail:{%s}", productID)
}

// SetAvailability 原子写入可购数量和 TTL。
func (c *RedisAvailabilityCache) SetAvailability(ctx context.Context, productID string, available int) error {
	_, err := c.client.RunScript(ctx, refreshAvailScriptName, []string{availKey(productID)}, available)
	if err != nil {
		return fmt.Errorf("failed to refresh availability for %s: %w", productID, err)
	}
	return nil
}

// GetAvailability 读取缓存，未命中返回 ok=false。
func (c *RedisAvailabilityCache) GetAvailability(ctx context.Context, productID string) (int, bool, error) {
	val, err := c.client.GetClient().Get(ctx, availKey(productID)).Int()
	if err != nil {
		if err == goredis.Nil {
			return 0, false, nil
		}
		return 0, false, err
	}
	return val, true, nil
}

var refreshAvailScript = `
-- KEYS[1]: 可购数量的 Key, 例如: stock:avail:{product_123}
-- ARGV[1]: 最新的可购数量

-- 写入并续 TTL，两步在脚本内原子完成
redis.call('set', KEYS[1], ARGV[1])
redis.call('expire', KEYS[1], 300)
return 1
`
