package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"wisefido-band/internal/aggregator"
	"wisefido-band/internal/ble"
	"wisefido-band/internal/config"
	"wisefido-band/internal/models"
	"wisefido-band/internal/redisclient"
	"wisefido-band/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 连接状态镜像键，供其他进程（如诊断工具）观察当前链路状态
const connStateKey = "band:conn:state"

// 落库失败时待重试窗口的缓冲上限（约一小时的聚合窗口）
const maxPendingMetrics = 12

// MetricPersistStore 聚合记录落库与保留清理的最小存储接口
type MetricPersistStore interface {
	InsertMetric(m *models.HealthMetric) (int64, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// Gateway 手环网关服务主体
// 串联连接状态机、实时数据流、聚合引擎与两条同步轨道
type Gateway struct {
	cfg        *config.Config
	db         *sql.DB
	kv         redisclient.KVStore
	logger     *zap.Logger
	manager    *ble.Manager
	engine     *aggregator.Engine
	metricRepo MetricPersistStore
	deviceRepo *repository.DeviceRepository
	backend    *BackendSyncManager
	platform   *PlatformSyncManager

	pendingMu sync.Mutex
	pending   []*models.HealthMetric

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewGateway(
	cfg *config.Config,
	db *sql.DB,
	kv redisclient.KVStore,
	manager *ble.Manager,
	engine *aggregator.Engine,
	metricRepo MetricPersistStore,
	deviceRepo *repository.DeviceRepository,
	backend *BackendSyncManager,
	platform *PlatformSyncManager,
	logger *zap.Logger,
) *Gateway {
	return &Gateway{
		cfg:        cfg,
		db:         db,
		kv:         kv,
		manager:    manager,
		engine:     engine,
		metricRepo: metricRepo,
		deviceRepo: deviceRepo,
		backend:    backend,
		platform:   platform,
		logger:     logger,
	}
}

// Start 启动网关后台循环，并尝试重连上次使用的设备
func (g *Gateway) Start(ctx context.Context) error {
	ctx, g.cancel = context.WithCancel(ctx)

	g.manager.SubscribeState(func(state models.ConnState) {
		g.mirrorConnState(state)
	})
	g.mirrorConnState(g.manager.State())

	g.wg.Add(1)
	go g.persistLoop(ctx)

	// 启动时自动重连最近一次连接的设备
	last, err := g.deviceRepo.GetLastDevice()
	if err != nil {
		g.logger.Warn("Failed to load last device", zap.Error(err))
	} else if last != nil {
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.logger.Info("Reconnecting to last device",
				zap.String("mac", last.MAC),
				zap.String("name", last.Name))
			if err := g.manager.Connect(ctx, models.ScannedDevice{
				MAC:  last.MAC,
				Name: last.Name,
			}); err != nil {
				g.logger.Warn("Launch reconnect failed", zap.Error(err))
			}
		}()
	}

	g.logger.Info("Band gateway started")
	return nil
}

// persistLoop 周期性检查聚合窗口，完成时落库
func (g *Gateway) persistLoop(ctx context.Context) {
	defer g.wg.Done()

	ticker := time.NewTicker(g.cfg.Aggregation.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// 退出前把未完成窗口落库，避免丢失缓冲中的样本
			g.flushWindow()
			return
		case <-ticker.C:
			if g.engine.WindowComplete() {
				g.flushWindow()
			} else {
				// 没有新窗口也要重试之前落库失败的记录
				g.drainPending()
			}
		}
	}
}

// flushWindow 归约当前窗口并连同历史待重试记录一起落库
// 已 Drain 的窗口不能因数据库故障丢失，落库失败的记录进入
// 有界待重试缓冲
func (g *Gateway) flushWindow() {
	if metric := g.engine.Drain(); metric != nil {
		g.bufferPending(metric)
	}
	g.drainPending()
}

func (g *Gateway) bufferPending(metric *models.HealthMetric) {
	g.pendingMu.Lock()
	defer g.pendingMu.Unlock()
	if len(g.pending) >= maxPendingMetrics {
		// 数据库长时间不可用时淘汰最旧窗口，保持内存有界
		g.logger.Warn("Pending metric buffer full, dropping oldest window",
			zap.Time("window_start", g.pending[0].WindowStart))
		g.pending = g.pending[1:]
	}
	g.pending = append(g.pending, metric)
}

func (g *Gateway) drainPending() {
	g.pendingMu.Lock()
	defer g.pendingMu.Unlock()
	for len(g.pending) > 0 {
		metric := g.pending[0]
		id, err := g.metricRepo.InsertMetric(metric)
		if err != nil {
			g.logger.Error("Failed to persist aggregated metric, will retry",
				zap.Error(err),
				zap.Int("pending", len(g.pending)))
			return
		}
		g.pending = g.pending[1:]
		g.logger.Info("Persisted aggregated metric",
			zap.Int64("id", id),
			zap.Time("window_start", metric.WindowStart),
			zap.String("device_id", metric.DeviceID))
	}
}

func (g *Gateway) mirrorConnState(state models.ConnState) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.kv.Set(ctx, connStateKey, string(state), 0); err != nil {
		g.logger.Warn("Failed to mirror connection state", zap.Error(err))
	}
}

// RunBackendSync 执行一次后端同步（调度器与手动触发共用入口）
func (g *Gateway) RunBackendSync(ctx context.Context) SyncResult {
	correlationID := uuid.NewString()
	g.logger.Info("Backend sync started", zap.String("correlation_id", correlationID))
	result := g.backend.SyncBatch(ctx, g.cfg.BackendSync.BatchSize, correlationID)
	g.logger.Info("Backend sync finished",
		zap.Int("synced", result.SyncedCount),
		zap.Int("failed", result.FailedCount),
		zap.Bool("retryable", result.Retryable),
		zap.String("correlation_id", correlationID))
	return result
}

// RunPlatformSync 执行一次平台同步周期
func (g *Gateway) RunPlatformSync(ctx context.Context) CycleResult {
	result := g.platform.RunCycle(ctx)
	g.logger.Info("Platform sync finished",
		zap.Bool("push_success", result.PushSuccess),
		zap.Int("pushed", result.PushedCount),
		zap.Bool("pull_success", result.PullSuccess),
		zap.Int("pulled", result.PulledCount))
	return result
}

// RunRetentionSweep 删除两条同步轨道均已完成且超过保留期的记录
func (g *Gateway) RunRetentionSweep() error {
	cutoff := time.Now().AddDate(0, 0, -g.cfg.Retention.Days)
	deleted, err := g.metricRepo.DeleteOlderThan(cutoff)
	if err != nil {
		g.logger.Error("Retention sweep failed", zap.Error(err))
		return err
	}
	if deleted > 0 {
		g.logger.Info("Retention sweep completed",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
	return nil
}

// Stop 停止后台循环并断开设备连接
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	if err := g.manager.Disconnect(); err != nil {
		g.logger.Warn("Disconnect on shutdown failed", zap.Error(err))
	}
	g.wg.Wait()
	g.logger.Info("Band gateway stopped")
}
