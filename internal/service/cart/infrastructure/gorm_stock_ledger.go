// internal/service/cart/infrastructure/gorm_stock_ledger.go
package infrastructure

import (
	"context"

	"gorm.io/gorm"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/cart/domain"
)

// GormStockLedger 是 domain.StockLedger 的 GORM 实现。
// 扣减用的是条件原子更新：
//
//	UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?
//
// 检查和扣减是同一条语句，在数据库行锁上串行化，
// 两个并发请求抢最后一件时只有一个 UPDATE 能命中行。
type GormStockLedger struct {
	db *gorm.DB
}

func NewGormStockLedger(db *gorm.DB) *GormStockLedger {
	return &GormStockLedger{db: db}
}

func (l *GormStockLedger) Reserve(ctx context.Context, productID string, qty int) (int, error) {
	var remaining int
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		remaining, err = reserveStockTx(ctx, tx, productID, qty)
		return err
	})
	return remaining, err
}

func (l *GormStockLedger) Restore(ctx context.Context, productID string, qty int) (int, error) {
	var remaining int
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		remaining, err = restoreStockTx(ctx, tx, productID, qty)
		return err
	})
	return remaining, err
}

func (l *GormStockLedger) Available(ctx context.Context, productID string) (int, error) {
	var m ProductModel
	err := l.db.WithContext(ctx).Select("stock").First(&m, "id = ?", productID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, domain.ErrProductNotFound
		}
		return 0, err
	}
	return m.Stock, nil
}

// reserveStockTx 在给定事务内条件扣减库存。
// 预占记录相关的存储实现复用它，把库存变动和记录变动放进同一个事务。
func reserveStockTx(ctx context.Context, tx *gorm.DB, productID string, qty int) (int, error) {
	res := tx.Model(&ProductModel{}).
		Where("id = ? AND stock >= ?", productID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		// 没命中行：要么商品不存在，要么库存不足
		var count int64
		if err := tx.Model(&ProductModel{}).Where("id = ?", productID).Count(&count).Error; err != nil {
			return 0, err
		}
		if count == 0 {
			return 0, domain.ErrProductNotFound
		}
		return 0, domain.ErrInsufficientStock
	}

	remaining, err := readStockTx(tx, productID)
	if err != nil {
		return 0, err
	}
	// 每次账本变动都要留下前后值，便于审计对账
	logger.Ctx(ctx).Info().
		Str("product_id", productID).
		Int("delta", -qty).
		Int("stock_before", remaining+qty).
		Int("stock_after", remaining).
		Msg("stock decremented")
	return remaining, nil
}

// restoreStockTx 在给定事务内原子加回库存。
func restoreStockTx(ctx context.Context, tx *gorm.DB, productID string, qty int) (int, error) {
	res := tx.Model(&ProductModel{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, domain.ErrProductNotFound
	}

	remaining, err := readStockTx(tx, productID)
	if err != nil {
		return 0, err
	}
	logger.Ctx(ctx).Info().
		Str("product_id", productID).
		Int("delta", qty).
		Int("stock_before", remaining-qty).
		Int("stock_after", remaining).
		Msg("stock restored")
	return remaining, nil
}

func readStockTx(tx *gorm.DB, productID string) (int, error) {
	var m ProductModel
	if err := tx.Select("stock").First(&m, "id = ?", productID).Error; err != nil {
		return 0, err
	}
	return m.Stock, nil
}
