// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"bazaar/internal/pkg/logger"
)

// Config 是整个进程的配置根。
// 从 yaml 文件加载，未提供的字段使用默认值。
type Config struct {
	App struct {
		// ReservationWindow 是购物车预占的租约时长，
		// 每次创建或修改预占都会把到期时间重置为 now + window。
		ReservationWindow time.Duration `yaml:"reservationWindow"`
		// SweepInterval 是过期预占回收任务的执行间隔。
		SweepInterval time.Duration `yaml:"sweepInterval"`
		// PricingRule 是结算定价使用的 CEL 表达式，留空表示按目录价。
		PricingRule  string `yaml:"pricingRule"`
		FeatureFlags struct {
			// EnableStockFeed 控制是否向管理后台推送库存变更
			EnableStockFeed bool `yaml:"enableStockFeed"`
		} `yaml:"featureFlags"`
	} `yaml:"app"`

	Infra struct {
		Mysql struct {
			DSN string `yaml:"dsn"`
		} `yaml:"mysql"`
		Redis struct {
			Addr string `yaml:"addr"`
		} `yaml:"redis"`
		Kafka struct {
			Brokers []string `yaml:"brokers"`
		} `yaml:"kafka"`
		Zookeeper struct {
			Servers []string `yaml:"servers"`
		} `yaml:"zookeeper"`
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Nacos struct {
			ServerAddrs string `yaml:"serverAddrs"`
			Namespace   string `yaml:"namespace"`
			Group       string `yaml:"group"`
		} `yaml:"nacos"`
	} `yaml:"infra"`
}

var (
	currentConfig *Config
	configOnce    sync.Once
)

// Init 加载配置文件。必须在 StartService 之前调用。
// 配置文件路径来自 CONFIG_FILE 环境变量，默认 configs/config.yaml。
func Init() {
	configOnce.Do(func() {
		cfg := defaultConfig()

		path := getEnv("CONFIG_FILE", "configs/config.yaml")
		data, err := os.ReadFile(path)
		if err != nil {
			// 没有配置文件时退回默认值，方便本地直接起服务
			logger.Logger.Warn().Err(err).Str("path", path).Msg("config file not readable, using defaults")
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			logger.Logger.Fatal().Err(err).Str("path", path).Msg("failed to parse config file")
		}

		currentConfig = cfg
	})
}

// GetCurrentConfig 返回进程配置。Init 之前调用会得到默认值。
func GetCurrentConfig() *Config {
	if currentConfig == nil {
		Init()
	}
	return currentConfig
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.App.ReservationWindow = 20 * time.Minute
	cfg.App.SweepInterval = 30 * time.Minute
	cfg.App.FeatureFlags.EnableStockFeed = true
	cfg.Infra.Mysql.DSN = getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/bazaar?charset=utf8mb4&parseTime=True&loc=Local")
	cfg.Infra.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Infra.Kafka.Brokers = []string{getEnv("KAFKA_BROKER", "localhost:9092")}
	cfg.Infra.Zookeeper.Servers = []string{getEnv("ZK_SERVER", "localhost:2181")}
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces")
	cfg.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", "")
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", "")
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", "DEFAULT_GROUP")
	return cfg
}

// getEnv 从环境变量读取配置，不存在时返回兜底值。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
