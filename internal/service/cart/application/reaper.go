// internal/service/cart/application/reaper.go
package application

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/cart/domain"
	"bazaar/internal/service/cart/domain/port"
	"bazaar/internal/zookeeper"
)

const sweepBatchSize = 500

// SweepLock 是清扫的跨实例互斥。抢不到锁返回 ErrSweepLockHeld，
// 调用方直接跳过本轮，不排队。
type SweepLock interface {
	TryLock() error
	Unlock() error
}

// ErrSweepLockHeld 表示另一个实例正在清扫。
var ErrSweepLockHeld = zookeeper.ErrLockHeld

// NoopSweepLock 用于单实例部署和测试。
type NoopSweepLock struct{}

func (NoopSweepLock) TryLock() error { return nil }
func (NoopSweepLock) Unlock() error  { return nil }

// Reaper 周期性回收过期的预占记录：每条记录走 "释放" 删除路径，
// 把数量加回库存并删除记录。它是整个进程里唯一的过期处理权威，
// 存储层没有配置任何 TTL 自动删除——"记录被悄悄删掉但库存没回补"
// 正是这个子系统最危险的故障模式。
type Reaper struct {
	store     domain.ReservationStore
	publisher port.EventPublisher
	tracer    trace.Tracer
	refresher *availabilityRefresher
	lock      SweepLock
	interval  time.Duration

	sf   singleflight.Group
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewReaper(
	store domain.ReservationStore,
	ledger domain.StockLedger,
	publisher port.EventPublisher,
	cache port.AvailabilityCache,
	notifier port.StockNotifier,
	tracer trace.Tracer,
	lock SweepLock,
	interval time.Duration,
) *Reaper {
	if lock == nil {
		lock = NoopSweepLock{}
	}
	return &Reaper{
		store:     store,
		publisher: publisher,
		tracer:    tracer,
		refresher: &availabilityRefresher{
			ledger:   ledger,
			cache:    cache,
			notifier: notifier,
		},
		lock:     lock,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start 启动回收循环：进程启动时先清一次（补上停机期间过期的记录），
// 之后按固定间隔执行。
func (r *Reaper) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		logger.Logger.Info().Dur("interval", r.interval).Msg("reservation reaper started")

		if _, err := r.Sweep(ctx); err != nil && !errors.Is(err, ErrSweepLockHeld) {
			logger.Logger.Error().Err(err).Msg("startup sweep failed")
		}

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := r.Sweep(ctx); err != nil && !errors.Is(err, ErrSweepLockHeld) {
					logger.Logger.Error().Err(err).Msg("sweep failed")
				}
			case <-r.stop:
				return
			}
		}
	}()
}

// Stop 停止回收循环，等当前一轮清扫做完再返回。
func (r *Reaper) Stop() {
	r.once.Do(func() { close(r.stop) })
	r.wg.Wait()
	logger.Logger.Info().Msg("reservation reaper stopped")
}

// Sweep 执行一轮清扫，返回处理的记录数。
// singleflight 保证进程内同一时刻只有一轮在跑；
// 分布式锁保证多实例部署时同一时刻只有一个实例在跑。
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	result, err, _ := r.sf.Do("sweep", func() (interface{}, error) {
		return r.sweepOnce(ctx)
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

func (r *Reaper) sweepOnce(ctx context.Context) (int, error) {
	if err := r.lock.TryLock(); err != nil {
		if errors.Is(err, ErrSweepLockHeld) {
			logger.Ctx(ctx).Debug().Msg("sweep skipped: another instance holds the lock")
			return 0, ErrSweepLockHeld
		}
		return 0, errors.Wrap(err, "acquire sweep lock")
	}
	defer func() {
		if err := r.lock.Unlock(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("failed to release sweep lock")
		}
	}()

	ctx, span := r.tracer.Start(ctx, "reaper.Sweep")
	defer span.End()

	start := time.Now()
	processed := 0
	for {
		expired, err := r.store.FindExpired(ctx, time.Now(), sweepBatchSize)
		if err != nil {
			span.RecordError(err)
			return processed, errors.Wrap(err, "find expired reservations")
		}
		if len(expired) == 0 {
			break
		}

		batchProcessed := 0
		for _, record := range expired {
			if err := r.reapOne(ctx, record); err != nil {
				// 单条失败不能中断整轮清扫，下一轮还会再看到它
				sweepFailures.Inc()
				logger.Ctx(ctx).Error().Err(err).
					Str("reservation_id", record.ID).
					Str("product_id", record.ProductID).
					Msg("failed to reap expired reservation")
				continue
			}
			batchProcessed++
		}
		processed += batchProcessed

		// 整批都失败时不再查下一批，避免在坏数据上空转
		if len(expired) < sweepBatchSize || batchProcessed == 0 {
			break
		}
	}

	sweepDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("reaped", processed))
	if processed > 0 {
		logger.Ctx(ctx).Info().Int("reaped", processed).Msg("expired reservations released")
	}
	return processed, nil
}

func (r *Reaper) reapOne(ctx context.Context, record *domain.Reservation) error {
	// ReleaseExpired 内部以删除行数裁决：如果买家的显式释放或结算
	// 抢先一步，这里拿到 nil 并且不会二次回补。删除条件里带着
	// expires_at <= now，扫描之后被续租的记录同样不会被误删。
	released, err := r.store.ReleaseExpired(ctx, record.ID, time.Now())
	if err != nil {
		return err
	}
	if released == nil {
		return nil
	}

	reservationsReaped.Inc()
	logger.Ctx(ctx).Info().
		Str("reservation_id", released.ID).
		Str("shopper_id", released.ShopperID).
		Str("product_id", released.ProductID).
		Int("quantity", released.Quantity).
		Time("expired_at", released.ExpiresAt).
		Msg("expired reservation reaped, stock restored")

	r.refresher.refresh(ctx, released.ProductID)

	if err := r.publisher.PublishReservationExpired(ctx, &domain.ReservationExpired{
		ReservationID: released.ID,
		ShopperID:     released.ShopperID,
		ProductID:     released.ProductID,
		Quantity:      released.Quantity,
		ExpiredAt:     released.ExpiresAt,
	}); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("reservation_id", released.ID).Msg("failed to publish ReservationExpired event")
	}
	return nil
}
