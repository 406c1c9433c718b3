// internal/service/cart/domain/errors.go
package domain

import "errors"

var (
	// ErrInsufficientStock 库存不足，调用方可提示买家减少数量后重试
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrProductNotFound 商品不存在或已下架
	ErrProductNotFound = errors.New("product not found")
	// ErrReservationNotFound 预占记录不存在（可能已过期被回收）
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrOrderNotFound 订单不存在
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidQuantity 数量必须是 >= 1 的整数
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrInvalidReservation 预占记录缺少必要字段
	ErrInvalidReservation = errors.New("reservation requires shopper and product")
	// ErrEmptyCart 结算时购物车为空
	ErrEmptyCart = errors.New("cannot finalize an empty cart")
	// ErrOrderNotCancellable 订单当前状态不允许取消
	ErrOrderNotCancellable = errors.New("order is not cancellable in its current state")
	// ErrLineMismatch 结算行与购物车中的预占记录对不上
	ErrLineMismatch = errors.New("checkout line does not match an active reservation")
)
