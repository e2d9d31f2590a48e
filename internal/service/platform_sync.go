package service

import (
	"context"
	"time"

	"wisefido-band/internal/config"
	"wisefido-band/internal/healthstore"
	"wisefido-band/internal/models"
	"wisefido-band/internal/repository"

	"go.uber.org/zap"
)

// PlatformMetricStore 平台同步所需的本地存储操作
type PlatformMetricStore interface {
	FetchPlatformUnsynced(since time.Time) ([]*models.HealthMetric, error)
	MarkPlatformSynced(ids []int64, at time.Time) error
}

// SyncLogger 同步日志记录
type SyncLogger interface {
	AppendEntry(direction string, success bool, recordCount int, errMsg *string) error
}

// Merger 平台记录与本地记录的合并扩展点
// 当前版本只统计拉取数量，不回写本地存储
type Merger interface {
	MergeIncoming(platform []healthstore.Record, local []*models.HealthMetric) error
}

// NopMerger 默认合并器，不做任何事
type NopMerger struct{}

func (NopMerger) MergeIncoming([]healthstore.Record, []*models.HealthMetric) error { return nil }

// CycleResult 一次平台同步周期的结果
type CycleResult struct {
	PushSuccess bool
	PushError   error
	PushedCount int

	PullSuccess bool
	PullError   error
	PulledCount int
}

// FullySuccessful 推拉两个方向是否都成功
func (r CycleResult) FullySuccessful() bool {
	return r.PushSuccess && r.PullSuccess
}

// PlatformSyncManager 平台健康数据存储同步
// 每个周期先推送本地未同步记录，再拉取平台记录；
// 可用性或权限检查失败时两个方向都立即失败
type PlatformSyncManager struct {
	metrics PlatformMetricStore
	store   healthstore.Store
	syncLog SyncLogger
	merger  Merger
	cfg     *config.PlatformSyncConfig
	logger  *zap.Logger
}

func NewPlatformSyncManager(metrics PlatformMetricStore, store healthstore.Store, syncLog SyncLogger, merger Merger, cfg *config.PlatformSyncConfig, logger *zap.Logger) *PlatformSyncManager {
	if merger == nil {
		merger = NopMerger{}
	}
	return &PlatformSyncManager{
		metrics: metrics,
		store:   store,
		syncLog: syncLog,
		merger:  merger,
		cfg:     cfg,
		logger:  logger,
	}
}

// RunCycle 执行一次完整的平台同步周期
func (p *PlatformSyncManager) RunCycle(ctx context.Context) CycleResult {
	result := CycleResult{}

	if err := p.store.Available(ctx); err != nil {
		p.logger.Warn("Platform health store unavailable", zap.Error(err))
		result.PushError = err
		result.PullError = err
		p.logCycle(result)
		return result
	}
	if err := p.store.CheckPermissions(ctx); err != nil {
		p.logger.Warn("Platform health store permissions missing", zap.Error(err))
		result.PushError = err
		result.PullError = err
		p.logCycle(result)
		return result
	}

	result.PushedCount, result.PushError = p.push(ctx)
	result.PushSuccess = result.PushError == nil

	result.PulledCount, result.PullError = p.pull(ctx)
	result.PullSuccess = result.PullError == nil

	p.logCycle(result)
	return result
}

// push 推送最近推送窗口内未同步的记录
func (p *PlatformSyncManager) push(ctx context.Context) (int, error) {
	since := time.Now().Add(-p.cfg.PushWindow)
	pending, err := p.metrics.FetchPlatformUnsynced(since)
	if err != nil {
		p.logger.Error("Failed to fetch unsynced metrics", zap.Error(err))
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var records []healthstore.Record
	ids := make([]int64, 0, len(pending))
	for _, m := range pending {
		records = append(records, metricToRecords(m)...)
		ids = append(ids, m.ID)
	}

	if err := p.store.WriteRecords(ctx, records); err != nil {
		p.logger.Error("Failed to write records to platform store",
			zap.Int("metric_count", len(pending)),
			zap.Error(err))
		return 0, err
	}
	if err := p.metrics.MarkPlatformSynced(ids, time.Now()); err != nil {
		p.logger.Error("Failed to mark metrics as platform synced", zap.Error(err))
		return 0, err
	}

	p.logger.Info("Pushed metrics to platform store",
		zap.Int("metric_count", len(pending)),
		zap.Int("record_count", len(records)))
	return len(pending), nil
}

// pull 拉取拉取窗口内的平台记录，交给合并器处理
func (p *PlatformSyncManager) pull(ctx context.Context) (int, error) {
	from := time.Now().Add(-p.cfg.PullWindow)
	records, err := p.store.ReadRecords(ctx, from, time.Now())
	if err != nil {
		p.logger.Error("Failed to read records from platform store", zap.Error(err))
		return 0, err
	}

	if err := p.merger.MergeIncoming(records, nil); err != nil {
		p.logger.Error("Failed to merge platform records", zap.Error(err))
		return 0, err
	}

	p.logger.Info("Pulled records from platform store", zap.Int("record_count", len(records)))
	return len(records), nil
}

func (p *PlatformSyncManager) logCycle(result CycleResult) {
	p.appendLog(repository.SyncDirectionPush, result.PushSuccess, result.PushedCount, result.PushError)
	p.appendLog(repository.SyncDirectionPull, result.PullSuccess, result.PulledCount, result.PullError)
}

func (p *PlatformSyncManager) appendLog(direction string, success bool, count int, cycleErr error) {
	var errMsg *string
	if cycleErr != nil {
		msg := truncateError(cycleErr.Error())
		errMsg = &msg
	}
	if err := p.syncLog.AppendEntry(direction, success, count, errMsg); err != nil {
		p.logger.Error("Failed to append sync log entry",
			zap.String("direction", direction),
			zap.Error(err))
	}
}

// metricToRecords 将一条聚合记录展开为平台存储的记录集合
// 零值字段表示该窗口内无此类数据，不生成记录
func metricToRecords(m *models.HealthMetric) []healthstore.Record {
	// 记录只携带窗口起点，窗口终点以记录落库时间近似
	end := m.CreatedAt
	if end.IsZero() {
		end = m.WindowStart
	}

	var records []healthstore.Record
	add := func(recType string, value, secondary float64) {
		records = append(records, healthstore.Record{
			Type:           recType,
			StartTime:      m.WindowStart,
			EndTime:        end,
			Value:          value,
			SecondaryValue: secondary,
			DeviceID:       m.DeviceID,
		})
	}

	if m.HeartRate > 0 {
		add(healthstore.RecordTypeHeartRate, float64(m.HeartRate), 0)
	}
	if m.BPSystolic > 0 && m.BPDiastolic > 0 {
		add(healthstore.RecordTypeBloodPressure, float64(m.BPSystolic), float64(m.BPDiastolic))
	}
	if m.SpO2 > 0 {
		add(healthstore.RecordTypeOxygen, float64(m.SpO2), 0)
	}
	if m.Steps > 0 {
		add(healthstore.RecordTypeSteps, float64(m.Steps), 0)
	}
	if m.Calories > 0 {
		add(healthstore.RecordTypeCalories, float64(m.Calories), 0)
	}
	if m.Distance > 0 {
		add(healthstore.RecordTypeDistance, float64(m.Distance), 0)
	}
	if m.TotalSleep > 0 {
		add(healthstore.RecordTypeSleep, float64(m.TotalSleep), 0)
	}
	if m.Temperature > 0 {
		add(healthstore.RecordTypeTemperature, m.Temperature, 0)
	}
	return records
}
