// internal/service/cart/infrastructure/gorm_order_repository.go
package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bazaar/internal/service/cart/domain"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// CreateFromReservations 在一个事务里落单并消费预占记录。
// 消费路径只删记录，绝不回补库存——这是它和 Release 的本质区别，
// 两条路径在类型层面就是两个不同的方法，不靠调用方自觉。
func (r *GormOrderRepository) CreateFromReservations(ctx context.Context, order *domain.Order, lines []domain.ConsumedReservation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 消费预占记录。数量写进删除条件：记录在结算途中被释放、
		// 回收或改量，这里就命中不了行，整单失败回滚，买家重试。
		// 订单冻结的数量和被消费的数量由同一条语句保证一致。
		for _, line := range lines {
			res := tx.Where("id = ? AND shopper_id = ? AND quantity = ?",
				line.ID, order.ShopperID, line.Quantity).
				Delete(&ReservationModel{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				return domain.ErrLineMismatch
			}
		}

		// 2. 落单（含冻结的商品行）
		if err := tx.Create(ToOrderModel(order)).Error; err != nil {
			return err
		}

		// 3. 写买家购买关系
		purchases := make([]PurchaseModel, 0, len(order.Items))
		for _, item := range order.Items {
			purchases = append(purchases, PurchaseModel{
				ShopperID: order.ShopperID,
				ProductID: item.ProductID,
				OrderID:   order.ID,
			})
		}
		return tx.Create(&purchases).Error
	})
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var m OrderModel
	err := r.db.WithContext(ctx).Preload("Items").First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return ToDomainOrder(&m), nil
}

func (r *GormOrderRepository) ListByShopper(ctx context.Context, shopperID string) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).Preload("Items").
		Where("shopper_id = ?", shopperID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	orders := make([]*domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, ToDomainOrder(&models[i]))
	}
	return orders, nil
}

// Cancel 取消订单并回补库存。
// 状态翻转用条件更新做单次守卫：只有把状态从待支付改掉的那一次
// 调用会执行回补，已取消的订单重复取消是幂等的。
func (r *GormOrderRepository) Cancel(ctx context.Context, orderID string) (*domain.Order, error) {
	var out *domain.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m OrderModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").
			First(&m, "id = ?", orderID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrOrderNotFound
			}
			return err
		}

		res := tx.Model(&OrderModel{}).
			Where("id = ? AND state = ?", orderID, string(domain.StatePendingPayment)).
			Updates(map[string]interface{}{
				"state":      string(domain.StateCancelled),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if m.State == string(domain.StateCancelled) {
				// 已经取消过了，幂等返回，不再回补
				out = ToDomainOrder(&m)
				return nil
			}
			return domain.ErrOrderNotCancellable
		}

		for _, item := range m.Items {
			if _, err := restoreStockTx(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		m.State = string(domain.StateCancelled)
		out = ToDomainOrder(&m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
