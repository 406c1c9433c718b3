// internal/service/cart/application/refresher.go
package application

import (
	"context"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/cart/domain"
	"bazaar/internal/service/cart/domain/port"
)

// availabilityRefresher 在每次库存账本变动之后刷新派生视图：
// Redis 里的可购数量缓存，以及推给管理后台的实时库存流。
// 两者都是 best-effort，失败只记日志，不影响主流程。
type availabilityRefresher struct {
	ledger   domain.StockLedger
	cache    port.AvailabilityCache
	notifier port.StockNotifier
}

func (r *availabilityRefresher) refresh(ctx context.Context, productID string) {
	available, err := r.ledger.Available(ctx, productID)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("product_id", productID).Msg("failed to read availability for refresh")
		return
	}

	if r.cache != nil {
		if err := r.cache.SetAvailability(ctx, productID, available); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("product_id", productID).Msg("failed to refresh availability cache")
		}
	}
	if r.notifier != nil {
		r.notifier.NotifyStockChanged(productID, available)
	}
}
