// internal/service/cart/domain/product.go
package domain

import "time"

// Product 是商品实体。
// Stock 表示"现在就能下单"的数量：预占成功即扣减，释放/过期即加回，
// 因此它始终是买家视角的真实可购买数，而不是一个派生值。
type Product struct {
	ID        string
	Name      string
	Price     float64
	Stock     int
	CreatedAt time.Time
	UpdatedAt time.Time
}
