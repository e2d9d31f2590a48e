package service

import (
	"context"
	"errors"
	"time"

	"wisefido-band/internal/config"
	"wisefido-band/internal/models"

	"go.uber.org/zap"
)

// 同步失败原因存储的最大长度
const maxErrorMessageLen = 500

// MetricSyncStore 后端同步所需的存储操作
type MetricSyncStore interface {
	FetchBackendEligible(limit int, cutoff time.Time, maxRetries int) ([]*models.HealthMetric, error)
	MarkSyncing(ids []int64, at time.Time) error
	MarkSynced(ids []int64, at time.Time) error
	MarkFailed(ids []int64, errMsg string, at time.Time, maxRetries int) error
	MarkFailedPermanent(ids []int64, reason string, maxRetries int) error
}

// Uploader 云端上传接口
type Uploader interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResponse, error)
}

// UserIDProvider 匿名用户标识来源
type UserIDProvider interface {
	UserID(ctx context.Context) (string, error)
}

// SyncResult 一次后端同步批处理的结果
type SyncResult struct {
	SyncedCount int
	FailedCount int
	// Retryable 为 false 表示遇到永久性错误，调度器不应立即重试
	Retryable bool
}

// BackendSyncManager 后端同步状态机
// 逐批拉取待同步记录，标记为 syncing 后上传，
// 根据上传结果推进到 synced / failed / dlq
type BackendSyncManager struct {
	store    MetricSyncStore
	uploader Uploader
	identity UserIDProvider
	cfg      *config.BackendSyncConfig
	logger   *zap.Logger
}

func NewBackendSyncManager(store MetricSyncStore, uploader Uploader, identity UserIDProvider, cfg *config.BackendSyncConfig, logger *zap.Logger) *BackendSyncManager {
	return &BackendSyncManager{
		store:    store,
		uploader: uploader,
		identity: identity,
		cfg:      cfg,
		logger:   logger,
	}
}

// SyncBatch 执行一次完整的后端同步
// 循环处理直到没有符合条件的记录、达到迭代上限或遇到永久性错误
// batchSize 由调用方指定（调度器传配置值，工具可以传更小的批）
func (s *BackendSyncManager) SyncBatch(ctx context.Context, batchSize int, correlationID string) SyncResult {
	result := SyncResult{Retryable: true}

	for i := 0; i < s.cfg.LoopCap; i++ {
		select {
		case <-ctx.Done():
			s.logger.Warn("Backend sync cancelled", zap.String("correlation_id", correlationID))
			return result
		default:
		}

		cutoff := time.Now().Add(-s.cfg.Backoff)
		batch, err := s.store.FetchBackendEligible(batchSize, cutoff, s.cfg.MaxRetries)
		if err != nil {
			s.logger.Error("Failed to fetch pending metrics", zap.Error(err))
			return result
		}
		if len(batch) == 0 {
			return result
		}

		// 缺少设备标识的记录无法被后端接受，直接标记为永久失败
		var invalid, valid []int64
		var metrics []*models.HealthMetric
		for _, m := range batch {
			if m.DeviceID == "" {
				invalid = append(invalid, m.ID)
				continue
			}
			valid = append(valid, m.ID)
			metrics = append(metrics, m)
		}
		if len(invalid) > 0 {
			if err := s.store.MarkFailedPermanent(invalid, "missing device identifier", s.cfg.MaxRetries); err != nil {
				s.logger.Error("Failed to mark invalid metrics", zap.Error(err))
				return result
			}
			result.FailedCount += len(invalid)
			s.logger.Warn("Skipped metrics without device id",
				zap.Int("count", len(invalid)),
				zap.String("correlation_id", correlationID))
		}
		if len(valid) == 0 {
			continue
		}

		userID, err := s.identity.UserID(ctx)
		if err != nil {
			s.logger.Error("Failed to resolve user id", zap.Error(err))
			return result
		}

		now := time.Now()
		if err := s.store.MarkSyncing(valid, now); err != nil {
			s.logger.Error("Failed to mark metrics as syncing", zap.Error(err))
			return result
		}

		dtos := make([]MetricDTO, 0, len(metrics))
		for _, m := range metrics {
			dtos = append(dtos, ToMetricDTO(m, userID))
		}

		resp, err := s.uploader.Upload(ctx, &UploadRequest{
			Metrics:       dtos,
			CorrelationID: correlationID,
		})
		if err != nil {
			msg := truncateError(err.Error())
			if markErr := s.store.MarkFailed(valid, msg, time.Now(), s.cfg.MaxRetries); markErr != nil {
				s.logger.Error("Failed to mark metrics as failed", zap.Error(markErr))
				return result
			}
			result.FailedCount += len(valid)

			var upErr *UploadError
			if errors.As(err, &upErr) && !upErr.Retryable {
				// 永久性错误（如认证失败）对整批生效，继续循环没有意义
				s.logger.Error("Backend rejected upload permanently",
					zap.Int("status_code", upErr.StatusCode),
					zap.String("correlation_id", correlationID),
					zap.Error(err))
				result.Retryable = false
				return result
			}

			s.logger.Warn("Backend upload failed",
				zap.Int("count", len(valid)),
				zap.String("correlation_id", correlationID),
				zap.Error(err))
			continue
		}

		if err := s.store.MarkSynced(valid, time.Now()); err != nil {
			s.logger.Error("Failed to mark metrics as synced", zap.Error(err))
			return result
		}
		result.SyncedCount += len(valid)
		s.logger.Info("Backend batch synced",
			zap.Int("count", len(valid)),
			zap.Int("server_synced", resp.SyncedCount),
			zap.Int("server_failed", resp.FailedCount),
			zap.String("correlation_id", correlationID))
	}

	s.logger.Warn("Backend sync reached iteration cap",
		zap.Int("cap", s.cfg.LoopCap),
		zap.String("correlation_id", correlationID))
	return result
}

func truncateError(msg string) string {
	if len(msg) > maxErrorMessageLen {
		return msg[:maxErrorMessageLen]
	}
	return msg
}
