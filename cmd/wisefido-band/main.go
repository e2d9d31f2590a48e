package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wisefido-band/internal/aggregator"
	"wisefido-band/internal/band"
	"wisefido-band/internal/ble"
	"wisefido-band/internal/config"
	"wisefido-band/internal/database"
	"wisefido-band/internal/healthstore"
	"wisefido-band/internal/logger"
	"wisefido-band/internal/redisclient"
	"wisefido-band/internal/repository"
	"wisefido-band/internal/scheduler"
	"wisefido-band/internal/service"
	"wisefido-band/internal/stream"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-band")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. 初始化数据库与 Redis
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient := redisclient.NewRedisClient(&cfg.Redis)
	defer redisClient.Close()
	kv := redisclient.NewRedisKVStore(redisClient)

	// 4. 仓储层
	metricRepo := repository.NewHealthMetricRepository(db, log)
	deviceRepo := repository.NewDeviceRepository(db, log)
	syncLogRepo := repository.NewSyncLogRepository(db, log)

	// 5. BLE 链路：客户端 → 实时流适配器 → 连接状态机
	bandClient := band.NewGobleClient(log)
	adapter := stream.NewAdapter(cfg, bandClient, kv, log)
	engine := aggregator.NewEngine(cfg, log)
	adapter.Subscribe(engine.AddSample)
	manager := ble.NewManager(cfg, bandClient, deviceRepo, adapter, log)

	// 6. 两条同步轨道
	identity := service.NewIdentity(kv, log)
	cloudClient := service.NewCloudClient(cfg.BackendSync.BaseURL, cfg.BackendSync.Timeout, cfg.AppVersion, log)
	backendSync := service.NewBackendSyncManager(metricRepo, cloudClient, identity, &cfg.BackendSync, log)

	platformStore := healthstore.NewClient(cfg.PlatformSync.BaseURL, cfg.PlatformSync.Timeout, log)
	platformSync := service.NewPlatformSyncManager(metricRepo, platformStore, syncLogRepo, nil, &cfg.PlatformSync, log)

	// 7. 网关服务
	gateway := service.NewGateway(cfg, db, kv, manager, engine, metricRepo, deviceRepo, backendSync, platformSync, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := gateway.Start(ctx); err != nil {
		log.Fatal("Failed to start gateway", zap.Error(err))
	}

	// 8. 定时同步调度
	sched := scheduler.New(gateway, nil, nil, cfg, log, ctx)
	if err := sched.Start(); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// 9. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("Received signal, shutting down",
		zap.String("signal", sig.String()),
	)

	sched.Stop()
	gateway.Stop()
	cancel()

	log.Info("Band gateway service stopped")
}
