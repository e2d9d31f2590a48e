package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// BLEConfig BLE 连接配置
type BLEConfig struct {
	// 扫描信号强度下限（dBm），弱于该值的广播被丢弃
	RSSIThreshold int
	// 扫描超时
	ScanTimeout time.Duration
	// 连接建立后到开启通知通道的固定延迟
	// ⚠️ 手环固件的硬性协议要求：提前开启通知会导致数据通道静默失败
	SettleDelay time.Duration
	// 非用户主动断开时的自动重连
	ReconnectMax  int
	ReconnectWait time.Duration
	// 主动请求一次实时摘要的轮询间隔
	PollInterval time.Duration
}

// AggregationConfig 聚合配置
type AggregationConfig struct {
	// 聚合窗口长度
	Window time.Duration
	// 窗口缓冲区上限（超出后丢弃最旧样本）
	BufferCap int
	// 窗口完成检查间隔（状态刷新循环）
	CheckInterval time.Duration
}

// BackendSyncConfig 云端同步配置
type BackendSyncConfig struct {
	BaseURL string
	// 单批记录数
	BatchSize int
	// 重试上限，达到后记录进入 DLQ
	MaxRetries int
	// 失败记录的重试退避间隔
	Backoff time.Duration
	// 单次调用内的批次循环安全上限（防止病态重试风暴下的死循环）
	LoopCap int
	// 定时触发间隔
	Interval time.Duration
	// HTTP 超时
	Timeout time.Duration
}

// PlatformSyncConfig 平台健康数据存储同步配置
type PlatformSyncConfig struct {
	BaseURL string
	// 推送窗口：只推送最近该时长内未同步的记录
	PushWindow time.Duration
	// 拉取窗口
	PullWindow time.Duration
	// 定时触发间隔
	Interval time.Duration
	Timeout  time.Duration
}

// RetentionConfig 本地保留策略
type RetentionConfig struct {
	// 两条同步轨道都完成后，记录在本地保留的天数
	Days int
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string
	Format string
}

// Config 手环网关服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig

	BLE          BLEConfig
	Aggregation  AggregationConfig
	BackendSync  BackendSyncConfig
	PlatformSync PlatformSyncConfig
	Retention    RetentionConfig

	// 上报给云端的应用版本（X-App-Version 头）
	AppVersion string

	Log LogConfig
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "wisefido_band")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// BLE 配置
	cfg.BLE.RSSIThreshold = getEnvInt("BLE_RSSI_THRESHOLD", -90)
	cfg.BLE.ScanTimeout = getEnvDuration("BLE_SCAN_TIMEOUT", 30*time.Second)
	cfg.BLE.SettleDelay = getEnvDuration("BLE_SETTLE_DELAY", 3*time.Second)
	cfg.BLE.ReconnectMax = getEnvInt("BLE_RECONNECT_MAX", 3)
	cfg.BLE.ReconnectWait = getEnvDuration("BLE_RECONNECT_WAIT", 2*time.Second)
	cfg.BLE.PollInterval = getEnvDuration("BLE_POLL_INTERVAL", 5*time.Second)

	// 聚合配置
	cfg.Aggregation.Window = getEnvDuration("AGG_WINDOW", 5*time.Minute)
	cfg.Aggregation.BufferCap = getEnvInt("AGG_BUFFER_CAP", 1000)
	cfg.Aggregation.CheckInterval = getEnvDuration("AGG_CHECK_INTERVAL", 15*time.Second)

	// 云端同步配置
	cfg.BackendSync.BaseURL = getEnv("BACKEND_SYNC_URL", "")
	cfg.BackendSync.BatchSize = getEnvInt("BACKEND_SYNC_BATCH_SIZE", 50)
	cfg.BackendSync.MaxRetries = getEnvInt("BACKEND_SYNC_MAX_RETRIES", 5)
	cfg.BackendSync.Backoff = getEnvDuration("BACKEND_SYNC_BACKOFF", 30*time.Second)
	cfg.BackendSync.LoopCap = getEnvInt("BACKEND_SYNC_LOOP_CAP", 500)
	cfg.BackendSync.Interval = getEnvDuration("BACKEND_SYNC_INTERVAL", 30*time.Minute)
	cfg.BackendSync.Timeout = getEnvDuration("BACKEND_SYNC_TIMEOUT", 30*time.Second)

	// 平台同步配置
	cfg.PlatformSync.BaseURL = getEnv("PLATFORM_SYNC_URL", "")
	cfg.PlatformSync.PushWindow = getEnvDuration("PLATFORM_PUSH_WINDOW", 24*time.Hour)
	cfg.PlatformSync.PullWindow = getEnvDuration("PLATFORM_PULL_WINDOW", 7*24*time.Hour)
	cfg.PlatformSync.Interval = getEnvDuration("PLATFORM_SYNC_INTERVAL", 15*time.Minute)
	cfg.PlatformSync.Timeout = getEnvDuration("PLATFORM_SYNC_TIMEOUT", 30*time.Second)

	cfg.Retention.Days = getEnvInt("RETENTION_DAYS", 30)

	cfg.AppVersion = getEnv("APP_VERSION", "dev")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if v, err := time.ParseDuration(value); err == nil && v > 0 {
			return v
		}
	}
	return defaultValue
}
