// internal/service/cart/application/checkout_service.go
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

// CheckoutLine 是结算请求中的一条商品行，
// 必须与买家当前的某条预占记录一一对应。
type CheckoutLine struct {
	ReservationID string
	ProductID     string
	Quantity      int
}

// CheckoutApplicationService 负责把一组预占记录转化为一张订单。
// 核心约束：结算走的是 "消费" 删除路径，库存绝不回补——
// 这些件数在加购时就已经扣掉，结算只是把所有权从租约换成订单。
type CheckoutApplicationService struct {
	store     domain.ReservationStore
	orders    domain.OrderRepository
	products  domain.ProductRepository
	pricing   port.PricingEngine
	publisher port.EventPublisher
	tracer    trace.Tracer
	refresher *availabilityRefresher
}

func NewCheckoutApplicationService(
	store domain.ReservationStore,
	orders domain.OrderRepository,
	products domain.ProductRepository,
	ledger domain.StockLedger,
	pricing port.PricingEngine,
	publisher port.EventPublisher,
	cache port.AvailabilityCache,
	notifier port.StockNotifier,
	tracer trace.Tracer,
) *CheckoutApplicationService {
	return &CheckoutApplicationService{
		store:     store,
		orders:    orders,
		products:  products,
		pricing:   pricing,
		publisher: publisher,
		tracer:    tracer,
		refresher: &availabilityRefresher{
			ledger:   ledger,
			cache:    cache,
			notifier: notifier,
		},
	}
}

// Finalize 结算：校验每条行对应一条活跃预占，为每行定价并冻结，
// 然后在一个事务里落单 + 消费全部预占记录。
// 事务失败时什么都没发生：记录还在、库存照旧，买家可以重试。
func (s *CheckoutApplicationService) Finalize(ctx context.Context, shopperID string, delivery domain.DeliveryInfo, lines []CheckoutLine) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Finalize")
	defer span.End()
	span.SetAttributes(
		attribute.String("shopper.id", shopperID),
		attribute.Int("lines", len(lines)),
	)

	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	// 1. 对照买家当前的预占记录校验每条结算行。
	// 数量无需再查库存——这些件数本来就已经扣掉了。
	active, err := s.store.ListByShopper(ctx, shopperID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "load active reservations")
	}
	byID := make(map[string]*domain.Reservation, len(active))
	for _, r := range active {
		byID[r.ID] = r
	}

	items := make([]domain.OrderItem, 0, len(lines))
	consumed := make([]domain.ConsumedReservation, 0, len(lines))
	for _, line := range lines {
		record, ok := byID[line.ReservationID]
		if !ok || record.ProductID != line.ProductID || record.Quantity != line.Quantity {
			span.AddEvent("Checkout line mismatch", trace.WithAttributes(attribute.String("reservation.id", line.ReservationID)))
			return nil, domain.ErrLineMismatch
		}

		// 2. 商品必须仍然存在（可能在预占期间被下架）
		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				return nil, err
			}
			span.RecordError(err)
			return nil, errors.Wrap(err, "validate product")
		}

		unitPrice, err := s.pricing.Quote(ctx, port.PricingFact{
			ProductID: product.ID,
			BasePrice: product.Price,
			Quantity:  line.Quantity,
		})
		if err != nil {
			span.RecordError(err)
			return nil, errors.Wrap(err, "price checkout line")
		}

		items = append(items, domain.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  line.Quantity,
			UnitPrice: unitPrice,
			Subtotal:  unitPrice * float64(line.Quantity),
		})
		consumed = append(consumed, domain.ConsumedReservation{ID: record.ID, Quantity: record.Quantity})
	}

	order, err := domain.NewOrder(shopperID, delivery, items)
	if err != nil {
		return nil, err
	}

	// 3. 落单 + 消费预占记录，单事务。消费路径不回补库存。
	// 这里的校验快照（第 1 步）并不权威：数量最终以删除条件再验一次，
	// 快照之后发生的改量会让事务整体失败而不是冻结过时的数量。
	if err := s.orders.CreateFromReservations(ctx, order, consumed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalize transaction failed")
		return nil, errors.Wrap(err, "finalize order")
	}

	ordersPlaced.Inc()
	reservationsConsumed.Add(float64(len(consumed)))
	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("shopper_id", shopperID).
		Float64("total_amount", order.TotalAmount).
		Int("items", len(items)).
		Msg("order placed, reservations consumed")

	// 4. 提交后的事件发布失败不影响订单，记日志等待补偿
	if err := s.publisher.PublishOrderPlaced(ctx, &domain.OrderPlaced{
		OrderID:     order.ID,
		ShopperID:   shopperID,
		TotalAmount: order.TotalAmount,
		Items:       order.Items,
		PlacedAt:    order.CreatedAt,
	}); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", order.ID).Msg("failed to publish OrderPlaced event")
	}

	return order, nil
}

// CancelOrder 取消订单并一次性回补库存。
// 守卫在仓储层：只有真正完成状态翻转的那次调用会回补。
func (s *CheckoutApplicationService) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := s.orders.Cancel(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) || errors.Is(err, domain.ErrOrderNotCancellable) {
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		return nil, errors.Wrap(err, "cancel order")
	}

	ordersCancelled.Inc()
	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("shopper_id", order.ShopperID).
		Msg("order cancelled, stock restored")

	for _, item := range order.Items {
		s.refresher.refresh(ctx, item.ProductID)
	}

	if err := s.publisher.PublishOrderCancelled(ctx, &domain.OrderCancelled{
		OrderID:     order.ID,
		ShopperID:   order.ShopperID,
		CancelledAt: time.Now(),
	}); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", order.ID).Msg("failed to publish OrderCancelled event")
	}

	return order, nil
}

// GetOrder 查询单个订单。
func (s *CheckoutApplicationService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.GetOrder")
	defer span.End()
	return s.orders.FindByID(ctx, orderID)
}
