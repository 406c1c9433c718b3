// internal/service/cart/infrastructure/mapper.go
package infrastructure

import (
	"bazaar/internal/service/cart/domain"
)

// ToDomainProduct 把数据库模型转换为领域模型。
func ToDomainProduct(m *ProductModel) *domain.Product {
	return &domain.Product{
		ID:        m.ID,
		Name:      m.Name,
		Price:     m.Price,
		Stock:     m.Stock,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func ToDomainReservation(m *ReservationModel) *domain.Reservation {
	return &domain.Reservation{
		ID:        m.ID,
		ShopperID: m.ShopperID,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		ExpiresAt: m.ExpiresAt,
	}
}

func ToReservationModel(r *domain.Reservation) *ReservationModel {
	return &ReservationModel{
		ID:        r.ID,
		ShopperID: r.ShopperID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		ExpiresAt: r.ExpiresAt,
	}
}

func ToDomainOrder(m *OrderModel) *domain.Order {
	items := make([]domain.OrderItem, 0, len(m.Items))
	for _, im := range m.Items {
		items = append(items, domain.OrderItem{
			ProductID: im.ProductID,
			Name:      im.Name,
			Quantity:  im.Quantity,
			UnitPrice: im.UnitPrice,
			Subtotal:  im.Subtotal,
		})
	}
	return &domain.Order{
		ID:          m.ID,
		ShopperID:   m.ShopperID,
		Items:       items,
		TotalAmount: m.TotalAmount,
		Delivery: domain.DeliveryInfo{
			Recipient: m.Recipient,
			Phone:     m.Phone,
			Address:   m.Address,
		},
		State:     domain.State(m.State),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func ToOrderModel(o *domain.Order) *OrderModel {
	items := make([]OrderItemModel, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemModel{
			OrderID:   o.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal,
		})
	}
	return &OrderModel{
		ID:          o.ID,
		ShopperID:   o.ShopperID,
		State:       string(o.State),
		TotalAmount: o.TotalAmount,
		Recipient:   o.Delivery.Recipient,
		Phone:       o.Delivery.Phone,
		Address:     o.Delivery.Address,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		Items:       items,
	}
}
