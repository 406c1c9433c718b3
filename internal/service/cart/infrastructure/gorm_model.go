// internal/service/cart/infrastructure/gorm_model.go
package infrastructure

import (
	"time"
)

// ProductModel 对应数据库中的 products 表。
// stock 列是权威库存，只允许通过原子 UPDATE 语句变更。
type ProductModel struct {
	ID        string  `gorm:"primaryKey;size:64"`
	Name      string  `gorm:"size:255"`
	Price     float64 `gorm:"type:decimal(10,2)"`
	Stock     int     `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ProductModel) TableName() string {
	return "products"
}

// ReservationModel 对应 cart_reservations 表。
// (shopper_id, product_id) 唯一索引保证同一买家同一商品只有一条记录；
// expires_at 上的普通索引服务于回收任务的扫描。
// 注意：这张表不配置任何存储层 TTL，过期删除只由应用层回收任务执行。
type ReservationModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	ShopperID string `gorm:"size:64;not null;uniqueIndex:uniq_shopper_product"`
	ProductID string `gorm:"size:64;not null;uniqueIndex:uniq_shopper_product"`
	Quantity  int    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time `gorm:"not null;index"`
}

func (ReservationModel) TableName() string {
	return "cart_reservations"
}

// OrderModel 对应 orders 表。
type OrderModel struct {
	ID          string  `gorm:"primaryKey;size:64"`
	ShopperID   string  `gorm:"size:64;not null;index"`
	State       string  `gorm:"size:32;not null"`
	TotalAmount float64 `gorm:"type:decimal(10,2)"`
	Recipient   string  `gorm:"size:128"`
	Phone       string  `gorm:"size:32"`
	Address     string  `gorm:"size:512"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Items []OrderItemModel `gorm:"foreignKey:OrderID"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应 order_items 表，落单后不再变化。
type OrderItemModel struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"`
	OrderID   string  `gorm:"size:64;not null;index"`
	ProductID string  `gorm:"size:64;not null"`
	Name      string  `gorm:"size:255"`
	Quantity  int     `gorm:"not null"`
	UnitPrice float64 `gorm:"type:decimal(10,2)"`
	Subtotal  float64 `gorm:"type:decimal(10,2)"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}

// PurchaseModel 对应 shopper_purchases 表，
// 记录买家和商品的购买关系（"买过的人还买过"之类的功能用）。
type PurchaseModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ShopperID string `gorm:"size:64;not null;index:idx_shopper_product"`
	ProductID string `gorm:"size:64;not null;index:idx_shopper_product"`
	OrderID   string `gorm:"size:64;not null"`
	CreatedAt time.Time
}

func (PurchaseModel) TableName() string {
	return "shopper_purchases"
}
