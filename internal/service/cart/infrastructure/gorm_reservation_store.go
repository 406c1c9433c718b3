// internal/service/cart/infrastructure/gorm_reservation_store.go
package infrastructure

import (
	"context"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bazaar/internal/service/cart/domain"
)

const mysqlErrDuplicateEntry = 1062

// errDuplicateReservation 标记 (shopper, product) 唯一键冲突：
// 两个并发的首次加购撞在一起，输的一方改走追加路径重试。
var errDuplicateReservation = errors.New("reservation already exists")

// GormReservationStore 是 domain.ReservationStore 的 GORM 实现。
// 所有写操作都在单个数据库事务里同时完成记录变更和库存变更。
type GormReservationStore struct {
	db *gorm.DB
}

func NewGormReservationStore(db *gorm.DB) *GormReservationStore {
	return &GormReservationStore{db: db}
}

func (s *GormReservationStore) FindByID(ctx context.Context, id string) (*domain.Reservation, error) {
	var m ReservationModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, err
	}
	return ToDomainReservation(&m), nil
}

func (s *GormReservationStore) FindByShopperAndProduct(ctx context.Context, shopperID, productID string) (*domain.Reservation, error) {
	var m ReservationModel
	err := s.db.WithContext(ctx).
		Where("shopper_id = ? AND product_id = ?", shopperID, productID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, err
	}
	return ToDomainReservation(&m), nil
}

func (s *GormReservationStore) ListByShopper(ctx context.Context, shopperID string) ([]*domain.Reservation, error) {
	var models []ReservationModel
	err := s.db.WithContext(ctx).
		Where("shopper_id = ?", shopperID).
		Order("created_at").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	records := make([]*domain.Reservation, 0, len(models))
	for i := range models {
		records = append(records, ToDomainReservation(&models[i]))
	}
	return records, nil
}

func (s *GormReservationStore) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	var models []ReservationModel
	err := s.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Order("expires_at").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	records := make([]*domain.Reservation, 0, len(models))
	for i := range models {
		records = append(records, ToDomainReservation(&models[i]))
	}
	return records, nil
}

// Reserve 找到或创建预占记录，并在同一事务内条件扣减库存。
func (s *GormReservationStore) Reserve(ctx context.Context, shopperID, productID string, qty int, window time.Duration) (*domain.Reservation, error) {
	record, err := s.reserveOnce(ctx, shopperID, productID, qty, window)
	if errors.Is(err, errDuplicateReservation) {
		// 并发首次加购输了唯一键竞争，重试一次走追加路径
		record, err = s.reserveOnce(ctx, shopperID, productID, qty, window)
	}
	return record, err
}

func (s *GormReservationStore) reserveOnce(ctx context.Context, shopperID, productID string, qty int, window time.Duration) (*domain.Reservation, error) {
	var out *domain.Reservation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m ReservationModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("shopper_id = ? AND product_id = ?", shopperID, productID).
			First(&m).Error

		if err == nil {
			// 已有记录：追加数量，只为增量扣库存，并续租
			if _, err := reserveStockTx(ctx, tx, productID, qty); err != nil {
				return err
			}
			now := time.Now()
			m.Quantity += qty
			m.UpdatedAt = now
			m.ExpiresAt = now.Add(window)
			if err := tx.Save(&m).Error; err != nil {
				return err
			}
			out = ToDomainReservation(&m)
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// 新建记录：先扣库存再插入，任一步失败整体回滚
		record, err := domain.NewReservation(shopperID, productID, qty, window)
		if err != nil {
			return err
		}
		if _, err := reserveStockTx(ctx, tx, productID, qty); err != nil {
			return err
		}
		if err := tx.Create(ToReservationModel(record)).Error; err != nil {
			var mysqlErr *mysql.MySQLError
			if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
				return errDuplicateReservation
			}
			return err
		}
		out = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Adjust 把记录数量改为 newQty 并续租，差值部分同事务扣减或回补库存。
func (s *GormReservationStore) Adjust(ctx context.Context, recordID string, newQty int, window time.Duration) (*domain.Reservation, error) {
	var out *domain.Reservation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m ReservationModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&m, "id = ?", recordID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrReservationNotFound
			}
			return err
		}

		record := ToDomainReservation(&m)
		delta, err := record.ChangeQuantity(newQty, window)
		if err != nil {
			return err
		}

		switch {
		case delta > 0:
			if _, err := reserveStockTx(ctx, tx, record.ProductID, delta); err != nil {
				return err
			}
		case delta < 0:
			if _, err := restoreStockTx(ctx, tx, record.ProductID, -delta); err != nil {
				return err
			}
		}

		updated := ToReservationModel(record)
		if err := tx.Model(&ReservationModel{}).Where("id = ?", recordID).
			Updates(map[string]interface{}{
				"quantity":   updated.Quantity,
				"updated_at": updated.UpdatedAt,
				"expires_at": updated.ExpiresAt,
			}).Error; err != nil {
			return err
		}
		out = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Release 是 "释放" 删除路径：删除记录并回补库存，单事务。
// 删除语句的影响行数裁决并发竞争：0 行说明别的路径已经处理过
// 这条记录，本次调用不做任何回补，幂等返回 nil。
func (s *GormReservationStore) Release(ctx context.Context, recordID string) (*domain.Reservation, error) {
	var out *domain.Reservation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m ReservationModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&m, "id = ?", recordID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		res := tx.Where("id = ?", recordID).Delete(&ReservationModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if _, err := restoreStockTx(ctx, tx, m.ProductID, m.Quantity); err != nil {
			return err
		}
		out = ToDomainReservation(&m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReleaseExpired 和 Release 一样删记录加回库存，但删除条件
// 额外带上 expires_at <= now：扫描之后、删除之前发生的续租
// 会让删除命中 0 行，这条记录继续活着，本次调用返回 nil。
func (s *GormReservationStore) ReleaseExpired(ctx context.Context, recordID string, now time.Time) (*domain.Reservation, error) {
	var out *domain.Reservation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m ReservationModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&m, "id = ?", recordID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		res := tx.Where("id = ? AND expires_at <= ?", recordID, now).
			Delete(&ReservationModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 租约刚被续上，记录不再过期
			return nil
		}

		if _, err := restoreStockTx(ctx, tx, m.ProductID, m.Quantity); err != nil {
			return err
		}
		out = ToDomainReservation(&m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
