// internal/service/cart/domain/reservation.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Reservation 是一条购物车预占记录，它的存在本身就代表一次库存预占。
// 每个 (买家, 商品) 最多一条记录：重复加购是在已有记录上改数量，
// 而不是新建第二条。
type Reservation struct {
	ID        string
	ShopperID string
	ProductID string
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
	// ExpiresAt 是租约的绝对到期时刻。
	// 创建和每次改数量都会重置为 now + window，即"碰一下就续租"。
	ExpiresAt time.Time
}

// NewReservation 创建一条新的预占记录。
func NewReservation(shopperID, productID string, quantity int, window time.Duration) (*Reservation, error) {
	if shopperID == "" || productID == "" {
		return nil, ErrInvalidReservation
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	now := time.Now()
	return &Reservation{
		ID:        uuid.New().String(),
		ShopperID: shopperID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(window),
	}, nil
}

// ChangeQuantity 修改预占数量并续租，返回库存需要承担的差值
// （正数表示还要再扣这么多，负数表示可以回补）。
func (r *Reservation) ChangeQuantity(newQuantity int, window time.Duration) (delta int, err error) {
	if newQuantity < 1 {
		return 0, ErrInvalidQuantity
	}
	delta = newQuantity - r.Quantity
	r.Quantity = newQuantity
	r.Renew(window)
	return delta, nil
}

// Renew 把租约续到 now + window。
func (r *Reservation) Renew(window time.Duration) {
	now := time.Now()
	r.UpdatedAt = now
	r.ExpiresAt = now.Add(window)
}

// IsExpired 判断租约在给定时刻是否已经到期。
func (r *Reservation) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
