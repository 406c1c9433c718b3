// internal/service/cart/domain/repository.go
package domain

import (
	"context"
	"time"
)

// StockLedger 是商品库存账本。所有库存变动都必须经过它，
// 而且每一次变动在存储层都是单条原子操作，绝不允许
// "读出来、算一下、写回去" 这种两步写法。
type StockLedger interface {
	// Reserve 条件扣减：仅当 stock >= qty 时执行 stock -= qty，
	// 否则返回 ErrInsufficientStock。检查和扣减是同一条原子语句，
	// 不存在两个买家同时抢到最后一件的窗口。
	Reserve(ctx context.Context, productID string, qty int) (remaining int, err error)

	// Restore 原子加回 qty，返回加回后的库存。
	Restore(ctx context.Context, productID string, qty int) (remaining int, err error)

	// Available 返回当前可下单数量。
	Available(ctx context.Context, productID string) (int, error)
}

// ReservationStore 是预占记录的持久化接口。
// 创建/改量/释放都把记录变更和对应的库存变动放进同一个事务，
// 保证不会出现"记录没了但库存没加回"或反过来的中间态。
type ReservationStore interface {
	FindByID(ctx context.Context, id string) (*Reservation, error)
	FindByShopperAndProduct(ctx context.Context, shopperID, productID string) (*Reservation, error)
	ListByShopper(ctx context.Context, shopperID string) ([]*Reservation, error)

	// FindExpired 返回 expiresAt <= now 的记录，供回收任务处理。
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)

	// Reserve 找到或创建 (shopper, product) 的预占记录：
	// 已存在则数量累加，否则新建；对应的库存扣减在同一事务内完成。
	Reserve(ctx context.Context, shopperID, productID string, qty int, window time.Duration) (*Reservation, error)

	// Adjust 把记录数量改为 newQty 并续租；差值部分的库存扣减或
	// 回补在同一事务内完成。记录不存在时返回 ErrReservationNotFound。
	Adjust(ctx context.Context, recordID string, newQty int, window time.Duration) (*Reservation, error)

	// Release 是 "释放" 删除路径：删除记录并把数量加回库存，
	// 单事务完成。记录已经不存在时幂等成功并返回 nil。
	// 删除语句的影响行数是终态转移的唯一裁判：并发的释放/回收/
	// 结算里只有真正删掉行的那一方会执行回补。
	Release(ctx context.Context, recordID string) (*Reservation, error)

	// ReleaseExpired 是回收任务专用的释放：删除条件额外要求
	// expiresAt <= now。扫描和删除之间发生的续租会让删除命中 0 行，
	// 这条刚续过租的记录对回收任务来说等同于不存在，返回 nil。
	ReleaseExpired(ctx context.Context, recordID string, now time.Time) (*Reservation, error)
}

// ConsumedReservation 是结算消费一条预占记录时的期望快照。
// 数量写进删除条件里：记录在结算途中被改量，删除就命中不了行，
// 整单回滚，订单上不会冻结一个过时的数量。
type ConsumedReservation struct {
	ID       string
	Quantity int
}

// ProductRepository 提供商品目录的只读访问。
// 目录本身的增删改属于后台 CRUD，不在本服务范围内。
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (*Product, error)
}

// OrderRepository 是订单聚合的持久化接口。
type OrderRepository interface {
	// CreateFromReservations 是 "消费" 删除路径的唯一入口：
	// 在同一个事务里落单、写买家购买关系，并删除给定的预占记录
	// 而【不】回补库存——这些库存已经归订单所有。
	// 每条记录按 (id, shopper, quantity) 精确删除：任一记录在事务中
	// 已不存在或数量对不上（被释放、回收或改量抢先）则整体失败，
	// 不产生半成品订单。
	CreateFromReservations(ctx context.Context, order *Order, lines []ConsumedReservation) error

	FindByID(ctx context.Context, id string) (*Order, error)
	ListByShopper(ctx context.Context, shopperID string) ([]*Order, error)

	// Cancel 取消订单并一次性回补全部商品行的库存。
	// 状态翻转采用条件更新：只有把状态从待支付改掉的那一次调用
	// 会执行回补，重复取消幂等返回已取消的订单。
	Cancel(ctx context.Context, orderID string) (*Order, error)
}
