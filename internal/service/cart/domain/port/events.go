// internal/service/cart/domain/port/events.go
package port

import (
	"context"

	"bazaar/internal/service/cart/domain"
)

// EventPublisher 是领域事件的出站端口，由 Kafka 适配器实现。
// 事件发布都是 best-effort：发布失败记日志，不回滚业务事务。
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *domain.OrderPlaced) error
	PublishOrderCancelled(ctx context.Context, event *domain.OrderCancelled) error
	PublishReservationExpired(ctx context.Context, event *domain.ReservationExpired) error
}
