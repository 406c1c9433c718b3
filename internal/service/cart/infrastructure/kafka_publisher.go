// internal/service/cart/infrastructure/kafka_publisher.go
package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/mq"
	"bazaar/internal/service/cart/domain"
)

const (
	OrderPlacedTopic        = "order-placed-topic"
	OrderCancelledTopic     = "order-cancelled-topic"
	ReservationExpiredTopic = "reservation-expired-topic"
)

// KafkaEventPublisher 是 port.EventPublisher 的 Kafka 实现。
// 消息 Key 取买家/商品 ID，保证同一实体的事件落到同一分区保序。
type KafkaEventPublisher struct {
	placedWriter    *kafka.Writer
	cancelledWriter *kafka.Writer
	expiredWriter   *kafka.Writer
}

func NewKafkaEventPublisher(brokers []string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		placedWriter:    mq.NewKafkaWriter(brokers, OrderPlacedTopic),
		cancelledWriter: mq.NewKafkaWriter(brokers, OrderCancelledTopic),
		expiredWriter:   mq.NewKafkaWriter(brokers, ReservationExpiredTopic),
	}
}

func (p *KafkaEventPublisher) PublishOrderPlaced(ctx context.Context, event *domain.OrderPlaced) error {
	return p.produce(ctx, p.placedWriter, event.ShopperID, event)
}

func (p *KafkaEventPublisher) PublishOrderCancelled(ctx context.Context, event *domain.OrderCancelled) error {
	return p.produce(ctx, p.cancelledWriter, event.ShopperID, event)
}

func (p *KafkaEventPublisher) PublishReservationExpired(ctx context.Context, event *domain.ReservationExpired) error {
	return p.produce(ctx, p.expiredWriter, event.ProductID, event)
}

func (p *KafkaEventPublisher) produce(ctx context.Context, writer *kafka.Writer, key string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to marshal domain event")
		return err
	}
	return mq.ProduceMessage(ctx, writer, []byte(key), payload)
}

// Close 关闭全部底层 Writer。
func (p *KafkaEventPublisher) Close() error {
	var firstErr error
	for _, w := range []*kafka.Writer{p.placedWriter, p.cancelledWriter, p.expiredWriter} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
