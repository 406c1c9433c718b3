// internal/service/cart/domain/port/notifier.go
package port

// StockNotifier 把库存变化实时推给管理后台。
// 由 WebSocket Hub 实现；推送是 fire-and-forget，没有投递保证。
type StockNotifier interface {
	NotifyStockChanged(productID string, available int)
}
