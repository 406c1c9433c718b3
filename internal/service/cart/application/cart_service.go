// internal/service/cart/application/cart_service.go
package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/cart/domain"
	"bazaar/internal/service/cart/domain/port"
)

// CartApplicationService 编排购物车侧的预占操作：加购、改量、释放。
// 每个操作要么完整生效（库存变动 + 记录变动在一个事务里），
// 要么完全不生效，不会留下悬空的半个预占。
type CartApplicationService struct {
	store     domain.ReservationStore
	ledger    domain.StockLedger
	tracer    trace.Tracer
	window    time.Duration
	refresher *availabilityRefresher
}

func NewCartApplicationService(
	store domain.ReservationStore,
	ledger domain.StockLedger,
	cache port.AvailabilityCache,
	notifier port.StockNotifier,
	tracer trace.Tracer,
	window time.Duration,
) *CartApplicationService {
	return &CartApplicationService{
		store:  store,
		ledger: ledger,
		tracer: tracer,
		window: window,
		refresher: &availabilityRefresher{
			ledger:   ledger,
			cache:    cache,
			notifier: notifier,
		},
	}
}

// Reserve 为买家预占 qty 件商品。
// 已有 (shopper, product) 记录时在其上累加并续租，否则新建记录。
// 库存不足返回 domain.ErrInsufficientStock。
func (s *CartApplicationService) Reserve(ctx context.Context, shopperID, productID string, qty int) (*domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "cart.Reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("shopper.id", shopperID),
		attribute.String("product.id", productID),
		attribute.Int("quantity", qty),
	)

	if qty < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	if shopperID == "" || productID == "" {
		return nil, domain.ErrInvalidReservation
	}

	record, err := s.store.Reserve(ctx, shopperID, productID, qty, s.window)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			insufficientStockRejections.Inc()
			span.AddEvent("Reservation rejected: insufficient stock")
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "reserve failed")
		return nil, errors.Wrap(err, "reserve reservation")
	}

	reservationsCreated.Inc()
	logger.Ctx(ctx).Info().
		Str("reservation_id", record.ID).
		Str("shopper_id", shopperID).
		Str("product_id", productID).
		Int("quantity", record.Quantity).
		Time("expires_at", record.ExpiresAt).
		Msg("stock reserved")

	s.refresher.refresh(ctx, productID)
	return record, nil
}

// Adjust 把预占数量改为 newQty 并续租。
// 增量部分需要库存仍然充足，减量部分立即回补。
func (s *CartApplicationService) Adjust(ctx context.Context, recordID string, newQty int) (*domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "cart.Adjust")
	defer span.End()
	span.SetAttributes(
		attribute.String("reservation.id", recordID),
		attribute.Int("quantity.new", newQty),
	)

	if newQty < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	record, err := s.store.Adjust(ctx, recordID, newQty, s.window)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientStock):
			insufficientStockRejections.Inc()
			span.AddEvent("Adjust rejected: insufficient stock")
			return nil, err
		case errors.Is(err, domain.ErrReservationNotFound):
			// 和过期回收撞上了：记录已经没了，对改量来说是错误
			return nil, err
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "adjust failed")
			return nil, errors.Wrap(err, "adjust reservation")
		}
	}

	logger.Ctx(ctx).Info().
		Str("reservation_id", record.ID).
		Str("product_id", record.ProductID).
		Int("quantity", record.Quantity).
		Time("expires_at", record.ExpiresAt).
		Msg("reservation adjusted")

	s.refresher.refresh(ctx, record.ProductID)
	return record, nil
}

// Release 买家主动释放一条预占，数量加回库存。幂等：
// 记录已经不在（过期被回收、或重复调用）直接视为成功。
func (s *CartApplicationService) Release(ctx context.Context, recordID string) error {
	ctx, span := s.tracer.Start(ctx, "cart.Release")
	defer span.End()
	span.SetAttributes(attribute.String("reservation.id", recordID))

	released, err := s.store.Release(ctx, recordID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "release failed")
		return errors.Wrap(err, "release reservation")
	}
	if released == nil {
		span.AddEvent("Reservation already gone, release is a no-op")
		return nil
	}

	reservationsReleased.Inc()
	logger.Ctx(ctx).Info().
		Str("reservation_id", released.ID).
		Str("product_id", released.ProductID).
		Int("quantity", released.Quantity).
		Msg("reservation released, stock restored")

	s.refresher.refresh(ctx, released.ProductID)
	return nil
}

// ListCart 返回买家当前的全部预占记录。
func (s *CartApplicationService) ListCart(ctx context.Context, shopperID string) ([]*domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "cart.ListCart")
	defer span.End()

	records, err := s.store.ListByShopper(ctx, shopperID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "list cart")
	}
	return records, nil
}

// Availability 返回商品当前可下单数量，优先走缓存，未命中回源账本。
func (s *CartApplicationService) Availability(ctx context.Context, productID string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "cart.Availability")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID))

	if s.refresher.cache != nil {
		if available, ok, err := s.refresher.cache.GetAvailability(ctx, productID); err == nil && ok {
			span.AddEvent("Availability cache hit")
			return available, nil
		}
	}

	available, err := s.ledger.Available(ctx, productID)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if s.refresher.cache != nil {
		if err := s.refresher.cache.SetAvailability(ctx, productID, available); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("product_id", productID).Msg("failed to backfill availability cache")
		}
	}
	return available, nil
}
