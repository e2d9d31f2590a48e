package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wisefido-band/internal/config"
	"wisefido-band/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// 连续失败后的退避基数与上限
const (
	backoffBase = time.Minute
	backoffMax  = time.Hour
)

// 手动触发返回的状态
const (
	TriggerStatusSyncing = "syncing"
	TriggerStatusSuccess = "success"
	TriggerStatusFailed  = "failed"
)

// NetworkChecker 网络可用性约束
type NetworkChecker interface {
	NetworkAvailable() bool
}

// BatteryChecker 电量约束
type BatteryChecker interface {
	BatteryOK() bool
}

// AlwaysOnNetwork 默认实现：始终认为网络可用
type AlwaysOnNetwork struct{}

func (AlwaysOnNetwork) NetworkAvailable() bool { return true }

// AlwaysOKBattery 默认实现：始终认为电量充足
type AlwaysOKBattery struct{}

func (AlwaysOKBattery) BatteryOK() bool { return true }

// Syncer 调度器驱动的同步入口
type Syncer interface {
	RunBackendSync(ctx context.Context) service.SyncResult
	RunPlatformSync(ctx context.Context) service.CycleResult
	RunRetentionSweep() error
}

// TriggerResult 手动触发的结果
type TriggerResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Scheduler 周期性同步调度器
// 基于 cron 的固定间隔触发，叠加网络/电量约束与失败退避；
// 连续失败按指数退避跳过后续触发，成功后复位
type Scheduler struct {
	cron    *cron.Cron
	syncer  Syncer
	network NetworkChecker
	battery BatteryChecker
	cfg     *config.Config
	logger  *zap.Logger
	baseCtx context.Context

	mu sync.Mutex
	// 每条同步轨道独立的失败计数与跳过期限
	backendFailures   int
	backendSkipUntil  time.Time
	platformFailures  int
	platformSkipUntil time.Time

	// 手动触发与定时触发互斥
	running bool
}

func New(syncer Syncer, network NetworkChecker, battery BatteryChecker, cfg *config.Config, logger *zap.Logger, baseCtx context.Context) *Scheduler {
	if network == nil {
		network = AlwaysOnNetwork{}
	}
	if battery == nil {
		battery = AlwaysOKBattery{}
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Scheduler{
		cron:    cron.New(),
		syncer:  syncer,
		network: network,
		battery: battery,
		cfg:     cfg,
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Start 注册定时任务并启动调度
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(everySpec(s.cfg.BackendSync.Interval), s.backendJob); err != nil {
		return fmt.Errorf("failed to register backend sync job: %w", err)
	}
	if _, err := s.cron.AddFunc(everySpec(s.cfg.PlatformSync.Interval), s.platformJob); err != nil {
		return fmt.Errorf("failed to register platform sync job: %w", err)
	}
	// 保留清理每天一次，不受网络/电量约束
	if _, err := s.cron.AddFunc("@every 24h", func() {
		_ = s.syncer.RunRetentionSweep()
	}); err != nil {
		return fmt.Errorf("failed to register retention job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		zap.Duration("backend_interval", s.cfg.BackendSync.Interval),
		zap.Duration("platform_interval", s.cfg.PlatformSync.Interval))
	return nil
}

// Stop 停止调度并等待在途任务完成
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

func everySpec(interval time.Duration) string {
	return fmt.Sprintf("@every %s", interval)
}

// constraintsOK 定时触发前的设备状态约束检查
func (s *Scheduler) constraintsOK(job string) bool {
	if !s.network.NetworkAvailable() {
		s.logger.Info("Sync skipped: network unavailable", zap.String("job", job))
		return false
	}
	if !s.battery.BatteryOK() {
		s.logger.Info("Sync skipped: battery low", zap.String("job", job))
		return false
	}
	return true
}

func (s *Scheduler) backendJob() {
	s.mu.Lock()
	if time.Now().Before(s.backendSkipUntil) {
		until := s.backendSkipUntil
		s.mu.Unlock()
		s.logger.Info("Backend sync skipped: backing off", zap.Time("until", until))
		return
	}
	if s.running {
		s.mu.Unlock()
		s.logger.Info("Backend sync skipped: another sync in progress")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer s.clearRunning()

	if !s.constraintsOK("backend") {
		return
	}

	result := s.syncer.RunBackendSync(s.baseCtx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if result.FailedCount > 0 && result.SyncedCount == 0 {
		s.backendFailures++
		s.backendSkipUntil = time.Now().Add(backoffFor(s.backendFailures))
		s.logger.Warn("Backend sync failed, backing off",
			zap.Int("consecutive_failures", s.backendFailures),
			zap.Time("skip_until", s.backendSkipUntil))
		return
	}
	s.backendFailures = 0
	s.backendSkipUntil = time.Time{}
}

func (s *Scheduler) platformJob() {
	s.mu.Lock()
	if time.Now().Before(s.platformSkipUntil) {
		until := s.platformSkipUntil
		s.mu.Unlock()
		s.logger.Info("Platform sync skipped: backing off", zap.Time("until", until))
		return
	}
	if s.running {
		s.mu.Unlock()
		s.logger.Info("Platform sync skipped: another sync in progress")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer s.clearRunning()

	if !s.constraintsOK("platform") {
		return
	}

	result := s.syncer.RunPlatformSync(s.baseCtx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !result.FullySuccessful() {
		s.platformFailures++
		s.platformSkipUntil = time.Now().Add(backoffFor(s.platformFailures))
		s.logger.Warn("Platform sync failed, backing off",
			zap.Int("consecutive_failures", s.platformFailures),
			zap.Time("skip_until", s.platformSkipUntil))
		return
	}
	s.platformFailures = 0
	s.platformSkipUntil = time.Time{}
}

func (s *Scheduler) clearRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// backoffFor 指数退避：1m, 2m, 4m, ... 封顶 1h
func backoffFor(failures int) time.Duration {
	backoff := backoffBase
	for i := 1; i < failures; i++ {
		backoff *= 2
		if backoff >= backoffMax {
			return backoffMax
		}
	}
	return backoff
}

// TriggerNow 手动触发一次完整同步（后端 + 平台）
// 手动触发绕过退避与约束检查，但仍与定时任务互斥
func (s *Scheduler) TriggerNow(ctx context.Context) TriggerResult {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return TriggerResult{Status: TriggerStatusSyncing}
	}
	s.running = true
	s.mu.Unlock()
	defer s.clearRunning()

	backend := s.syncer.RunBackendSync(ctx)
	platform := s.syncer.RunPlatformSync(ctx)

	s.mu.Lock()
	if backend.FailedCount == 0 || backend.SyncedCount > 0 {
		s.backendFailures = 0
		s.backendSkipUntil = time.Time{}
	}
	if platform.FullySuccessful() {
		s.platformFailures = 0
		s.platformSkipUntil = time.Time{}
	}
	s.mu.Unlock()

	if backend.FailedCount > 0 && backend.SyncedCount == 0 {
		return TriggerResult{
			Status:  TriggerStatusFailed,
			Message: fmt.Sprintf("backend sync failed for %d records", backend.FailedCount),
		}
	}
	if !platform.FullySuccessful() {
		msg := "platform sync failed"
		if platform.PushError != nil {
			msg = fmt.Sprintf("platform push failed: %v", platform.PushError)
		} else if platform.PullError != nil {
			msg = fmt.Sprintf("platform pull failed: %v", platform.PullError)
		}
		return TriggerResult{Status: TriggerStatusFailed, Message: msg}
	}
	return TriggerResult{Status: TriggerStatusSuccess}
}
