// internal/service/cart/domain/port/cache.go
package port

import "context"

// AvailabilityCache 缓存每个商品的可下单数量，供商品列表页低成本读取。
// 写穿透：每次库存账本变动之后刷新对应的缓存值。
// 缓存里只有派生数字，账本才是权威，缓存丢了可以随时从库里重建。
type AvailabilityCache interface {
	// SetAvailability 刷新某个商品的可购数量。
	SetAvailability(ctx context.Context, productID string, available int) error

	// GetAvailability 读取缓存值，未命中时 ok 为 false。
	GetAvailability(ctx context.Context, productID string) (available int, ok bool, err error)
}
