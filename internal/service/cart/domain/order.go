// internal/service/cart/domain/order.go
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// State 定义了订单的生命周期状态。
type State string

const (
	StatePendingPayment State = "PENDING_PAYMENT" // 已落单，等待支付
	StatePaid           State = "PAID"            // 已支付
	StateCancelled      State = "CANCELLED"       // 已取消（买家主动或系统超时）
)

// OrderItem 是订单中一条冻结的商品行。
// 结算时从预占记录转化而来，之后不再变化。
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice float64
	Subtotal  float64
}

// DeliveryInfo 是下单时的收货信息快照。
type DeliveryInfo struct {
	Recipient string
	Phone     string
	Address   string
}

// Order 是订单聚合的根实体。
// 订单持有的库存在结算时已经从预占转为永久占用，
// 之后除显式取消外不再触碰库存账本。
type Order struct {
	ID          string
	ShopperID   string
	Items       []OrderItem
	TotalAmount float64
	Delivery    DeliveryInfo
	State       State
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewOrder 从冻结的商品行创建订单。
func NewOrder(shopperID string, delivery DeliveryInfo, items []OrderItem) (*Order, error) {
	if shopperID == "" {
		return nil, ErrInvalidReservation
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	var total float64
	for _, item := range items {
		total += item.Subtotal
	}

	now := time.Now()
	return &Order{
		ID:          uuid.New().String(),
		ShopperID:   shopperID,
		Items:       items,
		TotalAmount: total,
		Delivery:    delivery,
		State:       StatePendingPayment,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Cancel 取消订单。只有待支付的订单可以取消。
func (o *Order) Cancel() error {
	if o.State != StatePendingPayment {
		return ErrOrderNotCancellable
	}
	o.State = StateCancelled
	o.UpdatedAt = time.Now()
	return nil
}

// Pay 支付订单。
func (o *Order) Pay() error {
	if o.State != StatePendingPayment {
		return errors.New("only pending payment orders can be paid")
	}
	o.State = StatePaid
	o.UpdatedAt = time.Now()
	return nil
}
