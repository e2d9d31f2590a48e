package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"wisefido-band/internal/band"
	"wisefido-band/internal/config"
	"wisefido-band/internal/models"
	"wisefido-band/internal/redisclient"

	"go.uber.org/zap"
)

// 实时快照缓存的 TTL：快照只反映"刚刚"的状态，断连后自然过期
const snapshotTTL = 2 * time.Minute

// Adapter 实时流适配器
// 在链路激活后订阅手环的实时数据通道，对每个样本做生理量程校验，
// 合法样本写入单槽位最新值缓存（last-write-wins，不排队）并分发给观察者；
// 越界样本整体丢弃并记日志。激活期间以固定间隔主动请求一次摘要快照，
// 作为推送流之外的补充
type Adapter struct {
	cfg    *config.Config
	client band.Client
	kv     redisclient.KVStore
	logger *zap.Logger

	mu        sync.RWMutex
	latest    *models.RealTimeSample
	observers []func(models.RealTimeSample)

	pollCancel context.CancelFunc
}

func NewAdapter(cfg *config.Config, client band.Client, kv redisclient.KVStore, logger *zap.Logger) *Adapter {
	return &Adapter{
		cfg:    cfg,
		client: client,
		kv:     kv,
		logger: logger,
	}
}

// Subscribe 注册样本观察者（聚合引擎、UI 读取路径）
func (a *Adapter) Subscribe(fn func(models.RealTimeSample)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
}

// Latest 最新合法快照的副本，尚无数据时为 nil
func (a *Adapter) Latest() *models.RealTimeSample {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.latest == nil {
		return nil
	}
	s := *a.latest
	return &s
}

// Activate 实现 ble.Activation：开启通知通道并启动摘要轮询
func (a *Adapter) Activate() error {
	if err := a.client.EnableNotifications(a.handleSample); err != nil {
		return fmt.Errorf("failed to enable realtime notifications: %w", err)
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.pollCancel = cancel
	a.mu.Unlock()
	go a.pollLoop(pollCtx)

	a.logger.Info("Realtime stream activated",
		zap.Duration("poll_interval", a.cfg.BLE.PollInterval),
	)
	return nil
}

// Deactivate 实现 ble.Activation：停止轮询（订阅由链路断开统一撤销）
func (a *Adapter) Deactivate() {
	a.mu.Lock()
	cancel := a.pollCancel
	a.pollCancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.logger.Info("Realtime stream deactivated")
}

// pollLoop 连接期间定时请求一次摘要快照
func (a *Adapter) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.BLE.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.client.RequestSnapshot(); err != nil {
				a.logger.Debug("Snapshot request failed", zap.Error(err))
			}
		}
	}
}

// handleSample 校验并发布一个实时样本
func (a *Adapter) handleSample(sample models.RealTimeSample) {
	if err := Validate(&sample); err != nil {
		// 数据质量错误：整体丢弃，不做部分更新，不进入持久化
		a.logger.Warn("Discarding out-of-range sample",
			zap.String("device_id", sample.DeviceID),
			zap.Error(err),
		)
		return
	}

	a.mu.Lock()
	a.latest = &sample
	observers := make([]func(models.RealTimeSample), len(a.observers))
	copy(observers, a.observers)
	a.mu.Unlock()

	for _, fn := range observers {
		fn(sample)
	}

	a.publishSnapshot(&sample)
}

// publishSnapshot 把最新快照镜像到 Redis，供读取路径消费
func (a *Adapter) publishSnapshot(sample *models.RealTimeSample) {
	data, err := json.Marshal(sample)
	if err != nil {
		a.logger.Error("Failed to marshal realtime snapshot", zap.Error(err))
		return
	}

	key := fmt.Sprintf("band:device:%s:realtime", sample.DeviceID)
	if err := a.kv.Set(context.Background(), key, string(data), snapshotTTL); err != nil {
		a.logger.Debug("Failed to cache realtime snapshot",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
