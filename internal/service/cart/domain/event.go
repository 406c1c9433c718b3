// internal/service/cart/domain/event.go
package domain

import "time"

// OrderPlaced 在结算成功、预占转为订单后发布。
// 通知服务（外部协作方）消费它给买家发确认邮件。
type OrderPlaced struct {
	OrderID     string      `json:"orderId"`
	ShopperID   string      `json:"shopperId"`
	TotalAmount float64     `json:"totalAmount"`
	Items       []OrderItem `json:"items"`
	PlacedAt    time.Time   `json:"placedAt"`
}

// OrderCancelled 在订单被取消、库存回补后发布。
type OrderCancelled struct {
	OrderID     string    `json:"orderId"`
	ShopperID   string    `json:"shopperId"`
	CancelledAt time.Time `json:"cancelledAt"`
}

// ReservationExpired 在回收任务释放一条过期预占后发布。
type ReservationExpired struct {
	ReservationID string    `json:"reservationId"`
	ShopperID     string    `json:"shopperId"`
	ProductID     string    `json:"productId"`
	Quantity      int       `json:"quantity"`
	ExpiredAt     time.Time `json:"expiredAt"`
}
