// cmd/cart-service/main.go
package main

import (
	"context"

	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"bazaar/internal/pkg/bootstrap"
	"bazaar/internal/pkg/logger"
	pkgredis "bazaar/internal/pkg/redis"
	"bazaar/internal/service/cart/application"
	"bazaar/internal/service/cart/domain/port"
	"bazaar/internal/service/cart/infrastructure"
	"bazaar/internal/service/cart/infrastructure/rule"
	"bazaar/internal/service/cart/interfaces"
	"bazaar/internal/zookeeper"
)

const serviceName = "cart-service"

// main 是应用的组装根 (Composition Root)：
// 创建并组装所有依赖项，然后交给 bootstrap 启动。
func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()

	// 1. MySQL
	db, err := gorm.Open(mysql.Open(cfg.Infra.Mysql.DSN), &gorm.Config{})
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	if err := db.AutoMigrate(
		&infrastructure.ProductModel{},
		&infrastructure.ReservationModel{},
		&infrastructure.OrderModel{},
		&infrastructure.OrderItemModel{},
		&infrastructure.PurchaseModel{},
	); err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to migrate schema")
	}

	// 2. Redis 可购数量缓存
	redisClient, err := pkgredis.NewClient(cfg.Infra.Redis.Addr)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	cache, err := infrastructure.NewRedisAvailabilityCache(redisClient)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to initialize availability cache")
	}

	// 3. Kafka 事件发布
	publisher := infrastructure.NewKafkaEventPublisher(cfg.Infra.Kafka.Brokers)

	// 4. 回收任务的跨实例锁（没配 ZooKeeper 时退化为单实例模式）
	var sweepLock application.SweepLock = application.NoopSweepLock{}
	var zkConn *zookeeper.Conn
	if len(cfg.Infra.Zookeeper.Servers) > 0 && cfg.Infra.Zookeeper.Servers[0] != "" {
		zkConn, err = zookeeper.Connect(cfg.Infra.Zookeeper.Servers)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("failed to connect to zookeeper")
		}
		sweepLock = zookeeper.NewDistributedLock(zkConn, "reservation-sweep")
	} else {
		logger.Logger.Warn().Msg("zookeeper not configured, sweep lock is process-local only")
	}

	// 5. 定价规则引擎
	pricing, err := rule.NewCELPricingEngine(cfg.App.PricingRule)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("invalid pricing rule")
	}

	// 6. 仓储与应用服务
	tracer := otel.Tracer(serviceName)
	ledger := infrastructure.NewGormStockLedger(db)
	store := infrastructure.NewGormReservationStore(db)
	orders := infrastructure.NewGormOrderRepository(db)
	products := infrastructure.NewGormProductRepository(db)

	var feed *interfaces.StockFeedHub
	var notifier port.StockNotifier
	if cfg.App.FeatureFlags.EnableStockFeed {
		feed = interfaces.NewStockFeedHub()
		go feed.Run()
		notifier = feed
	}

	cartSvc := application.NewCartApplicationService(store, ledger, cache, notifier, tracer, cfg.App.ReservationWindow)
	checkoutSvc := application.NewCheckoutApplicationService(store, orders, products, ledger, pricing, publisher, cache, notifier, tracer)

	reaper := application.NewReaper(store, ledger, publisher, cache, notifier, tracer, sweepLock, cfg.App.SweepInterval)
	reaper.Start(context.Background())

	handler := interfaces.NewCartHandler(cartSvc, checkoutSvc, feed)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8085,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
		OnShutdown: func(ctx context.Context) {
			// 先停回收任务，让当前一轮清扫做完
			reaper.Stop()
			if err := publisher.Close(); err != nil {
				logger.Logger.Error().Err(err).Msg("error closing kafka publisher")
			}
			if err := redisClient.Close(); err != nil {
				logger.Logger.Error().Err(err).Msg("error closing redis client")
			}
			if zkConn != nil {
				zkConn.Close()
			}
		},
	})
}
