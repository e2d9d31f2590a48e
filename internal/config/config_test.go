package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// 检查默认值
	if cfg.Database.Host != "localhost" {
		t.Errorf("Expected DB_HOST default 'localhost', got '%s'", cfg.Database.Host)
	}

	if cfg.Database.Database != "wisefido_band" {
		t.Errorf("Expected DB_NAME default 'wisefido_band', got '%s'", cfg.Database.Database)
	}

	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Expected REDIS_ADDR default 'localhost:6379', got '%s'", cfg.Redis.Addr)
	}

	if cfg.BLE.RSSIThreshold != -90 {
		t.Errorf("Expected BLE_RSSI_THRESHOLD default -90, got %d", cfg.BLE.RSSIThreshold)
	}

	if cfg.BLE.SettleDelay != 3*time.Second {
		t.Errorf("Expected BLE_SETTLE_DELAY default 3s, got %v", cfg.BLE.SettleDelay)
	}

	if cfg.BLE.ReconnectMax != 3 {
		t.Errorf("Expected BLE_RECONNECT_MAX default 3, got %d", cfg.BLE.ReconnectMax)
	}

	if cfg.BLE.ReconnectWait != 2*time.Second {
		t.Errorf("Expected BLE_RECONNECT_WAIT default 2s, got %v", cfg.BLE.ReconnectWait)
	}

	if cfg.Aggregation.Window != 5*time.Minute {
		t.Errorf("Expected AGG_WINDOW default 5m, got %v", cfg.Aggregation.Window)
	}

	if cfg.Aggregation.BufferCap != 1000 {
		t.Errorf("Expected AGG_BUFFER_CAP default 1000, got %d", cfg.Aggregation.BufferCap)
	}

	if cfg.BackendSync.MaxRetries != 5 {
		t.Errorf("Expected BACKEND_SYNC_MAX_RETRIES default 5, got %d", cfg.BackendSync.MaxRetries)
	}

	if cfg.BackendSync.Backoff != 30*time.Second {
		t.Errorf("Expected BACKEND_SYNC_BACKOFF default 30s, got %v", cfg.BackendSync.Backoff)
	}

	if cfg.BackendSync.LoopCap != 500 {
		t.Errorf("Expected BACKEND_SYNC_LOOP_CAP default 500, got %d", cfg.BackendSync.LoopCap)
	}

	if cfg.PlatformSync.PushWindow != 24*time.Hour {
		t.Errorf("Expected PLATFORM_PUSH_WINDOW default 24h, got %v", cfg.PlatformSync.PushWindow)
	}

	if cfg.PlatformSync.PullWindow != 7*24*time.Hour {
		t.Errorf("Expected PLATFORM_PULL_WINDOW default 168h, got %v", cfg.PlatformSync.PullWindow)
	}

	if cfg.Retention.Days != 30 {
		t.Errorf("Expected RETENTION_DAYS default 30, got %d", cfg.Retention.Days)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Expected LOG_LEVEL default 'info', got '%s'", cfg.Log.Level)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_HOST", "db.internal")
	os.Setenv("BLE_RSSI_THRESHOLD", "-75")
	os.Setenv("BACKEND_SYNC_BATCH_SIZE", "100")
	os.Setenv("AGG_WINDOW", "10m")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Database.Host != "db.internal" {
		t.Errorf("Expected DB_HOST 'db.internal', got '%s'", cfg.Database.Host)
	}

	if cfg.BLE.RSSIThreshold != -75 {
		t.Errorf("Expected BLE_RSSI_THRESHOLD -75, got %d", cfg.BLE.RSSIThreshold)
	}

	if cfg.BackendSync.BatchSize != 100 {
		t.Errorf("Expected BACKEND_SYNC_BATCH_SIZE 100, got %d", cfg.BackendSync.BatchSize)
	}

	if cfg.Aggregation.Window != 10*time.Minute {
		t.Errorf("Expected AGG_WINDOW 10m, got %v", cfg.Aggregation.Window)
	}
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("BACKEND_SYNC_MAX_RETRIES", "not-a-number")
	os.Setenv("AGG_WINDOW", "-5m")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.BackendSync.MaxRetries != 5 {
		t.Errorf("Expected fallback to default 5, got %d", cfg.BackendSync.MaxRetries)
	}

	if cfg.Aggregation.Window != 5*time.Minute {
		t.Errorf("Expected fallback to default 5m, got %v", cfg.Aggregation.Window)
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "secret",
		Database: "wisefido_band",
		SSLMode:  "disable",
	}

	dsn := cfg.GetDSN()
	expected := "host=localhost port=5432 user=postgres password=secret dbname=wisefido_band sslmode=disable"
	if dsn != expected {
		t.Errorf("Expected DSN '%s', got '%s'", expected, dsn)
	}
}
